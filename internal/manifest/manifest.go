// Package manifest parses checksum manifests in the sha256sum output format:
// one entry per line, a 64-character lowercase hex SHA-256 digest, two or
// more spaces, then a path relative to the payload root.
//
// A parsed Manifest is immutable. It is loaded once per install or verify
// invocation and discarded afterwards; callers that install repeatedly from
// the same payload may hold on to it themselves.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

// FileName is the manifest's well-known name at the payload root.
const FileName = "checksums.sha256"

var (
	// ErrNotFound indicates the manifest file does not exist.
	ErrNotFound = errors.New("manifest file not found")

	// ErrEmpty indicates the manifest contained no valid entries. An empty
	// manifest means the payload was packaged wrong and must not verify.
	ErrEmpty = errors.New("manifest contains no valid entries")

	// ErrMalformed indicates an entry violated a structural invariant.
	ErrMalformed = errors.New("malformed manifest")
)

// MalformedError reports the offending line of a manifest that failed a
// structural invariant. It wraps ErrMalformed for errors.Is classification.
type MalformedError struct {
	Line   int    // 1-based line number
	Path   string // the normalized relative path on that line
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed manifest entry at line %d (%s): %s", e.Line, e.Path, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

// entryPattern matches a digest line: 64 lowercase hex chars, two or more
// spaces, then a non-empty path. Lines that do not match are tolerated and
// skipped, which keeps the parser compatible with manifests carrying
// comments or entries for other digest algorithms.
var entryPattern = regexp.MustCompile(`^[a-f0-9]{64}\s{2,}\S.*$`)

// Manifest is an immutable mapping from a posix-normalized relative path to
// its expected lowercase hex SHA-256 digest.
type Manifest struct {
	entries map[string]string
}

// Load reads and parses the manifest file at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads manifest entries from r. Blank and non-matching lines are
// skipped. A matching entry whose path contains a ".." segment fails the
// whole parse: such a path could escape the payload root during install, so
// it is treated as an attack rather than noise.
//
// Duplicate paths resolve last-write-wins, matching how `sha256sum -c`
// effectively treats repeated entries.
func Parse(r io.Reader) (*Manifest, error) {
	entries := make(map[string]string)

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !entryPattern.MatchString(line) {
			continue
		}

		digest := line[:64]
		rel := NormalizePath(strings.TrimLeft(line[64:], " \t"))

		if rel == "" {
			continue
		}
		if hasDotDot(rel) {
			return nil, &MalformedError{
				Line:   lineNum,
				Path:   rel,
				Reason: "path contains a '..' segment",
			}
		}

		entries[rel] = digest
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	return &Manifest{entries: entries}, nil
}

// Lookup returns the expected digest for a normalized relative path.
func (m *Manifest) Lookup(rel string) (string, bool) {
	digest, ok := m.entries[NormalizePath(rel)]
	return digest, ok
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Paths returns all entry paths, sorted, as a fresh slice.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// NormalizePath converts a manifest or payload path to its canonical form:
// forward slashes only, no leading slash. Comparisons stay case-sensitive.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimLeft(p, "/")
}

// hasDotDot reports whether a normalized path contains a ".." segment.
func hasDotDot(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
