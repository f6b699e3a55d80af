package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	digestA = "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2"
	digestB = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	// SHA-256 of the empty file.
	digestEmpty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestParse_ValidEntries(t *testing.T) {
	input := digestA + "  linux_x64/node/node-portable.tar.gz\n" +
		digestB + "   linux_x64/node/SHASUMS256.txt\n" +
		digestEmpty + "  linux_x64/tool/tool.bin\n"

	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}

	tests := []struct {
		path string
		want string
	}{
		{"linux_x64/node/node-portable.tar.gz", digestA},
		{"linux_x64/node/SHASUMS256.txt", digestB},
		{"linux_x64/tool/tool.bin", digestEmpty},
	}
	for _, tt := range tests {
		got, ok := m.Lookup(tt.path)
		if !ok {
			t.Errorf("Lookup(%q) missing", tt.path)
			continue
		}
		if got != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParse_SkipsNoiseLines(t *testing.T) {
	input := "# generated by make-kit.sh\n" +
		"\n" +
		digestA + "  good/file.bin\n" +
		"not a digest line\n" +
		"ABCDEF  uppercase-or-short-hash.bin\n" +
		digestB + " single-space-separator.bin\n" + // one space: not an entry
		strings.ToUpper(digestB) + "  uppercase-digest.bin\n"

	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (noise lines must be skipped)", m.Len())
	}
	if _, ok := m.Lookup("good/file.bin"); !ok {
		t.Error("the one valid entry was not kept")
	}
}

func TestParse_PathNormalization(t *testing.T) {
	input := digestA + `  win32_x64\node\node.exe` + "\n" +
		digestB + "  /linux_x64/leading-slash.bin\n"

	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if _, ok := m.Lookup("win32_x64/node/node.exe"); !ok {
		t.Error("backslash path was not normalized to forward slashes")
	}
	if _, ok := m.Lookup("linux_x64/leading-slash.bin"); !ok {
		t.Error("leading slash was not stripped")
	}
	if got := NormalizePath("//double/slash.bin"); got != "double/slash.bin" {
		t.Errorf("NormalizePath(//...) = %q, want all leading slashes stripped", got)
	}
	// Lookup itself normalizes too.
	if _, ok := m.Lookup(`win32_x64\node\node.exe`); !ok {
		t.Error("Lookup did not normalize backslash path")
	}
}

func TestParse_RejectsTraversal(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"plain dotdot", "../escape"},
		{"embedded dotdot", "linux_x64/../../escape"},
		{"backslash dotdot", `linux_x64\..\escape`},
		{"trailing dotdot", "linux_x64/.."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := digestA + "  ok/file.bin\n" + digestB + "  " + tt.path + "\n"
			_, err := Parse(strings.NewReader(input))
			if err == nil {
				t.Fatal("Parse succeeded, want traversal rejection")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("error = %v, want ErrMalformed", err)
			}
			var malformed *MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("error type = %T, want *MalformedError", err)
			}
			if malformed.Line != 2 {
				t.Errorf("Line = %d, want 2", malformed.Line)
			}
		})
	}
}

func TestParse_DotDotInFilenameAllowed(t *testing.T) {
	// ".." must be rejected only as a whole segment; "a..b" is a legal name.
	input := digestA + "  linux_x64/some..file.bin\n"
	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := m.Lookup("linux_x64/some..file.bin"); !ok {
		t.Error("filename containing '..' was dropped")
	}
}

func TestParse_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"only noise", "# comment\n\nnot-a-digest  file\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if !errors.Is(err, ErrEmpty) {
				t.Errorf("error = %v, want ErrEmpty", err)
			}
		})
	}
}

func TestParse_DuplicateLastWriteWins(t *testing.T) {
	input := digestA + "  dup/file.bin\n" + digestB + "  dup/file.bin\n"

	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got, _ := m.Lookup("dup/file.bin")
	if got != digestB {
		t.Errorf("duplicate entry resolved to %q, want last entry %q", got, digestB)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := digestEmpty + "  linux_x64/tool/tool.bin\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.sha256"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestPaths_Sorted(t *testing.T) {
	input := digestA + "  zzz/last.bin\n" + digestB + "  aaa/first.bin\n"
	m, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	paths := m.Paths()
	if len(paths) != 2 || paths[0] != "aaa/first.bin" || paths[1] != "zzz/last.bin" {
		t.Errorf("Paths() = %v, want sorted [aaa/first.bin zzz/last.bin]", paths)
	}
}
