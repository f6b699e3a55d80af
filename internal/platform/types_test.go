package platform

import (
	"errors"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    Spec
		wantErr bool
	}{
		{
			name: "linux_x64",
			id:   "linux_x64",
			want: Spec{OSLinux, ArchX64},
		},
		{
			name: "linux_arm64",
			id:   "linux_arm64",
			want: Spec{OSLinux, ArchARM64},
		},
		{
			name: "win32_x64",
			id:   "win32_x64",
			want: Spec{OSWindows, ArchX64},
		},
		{
			name: "mac_arm64",
			id:   "mac_arm64",
			want: Spec{OSMac, ArchARM64},
		},
		{
			name: "mac_x64",
			id:   "mac_x64",
			want: Spec{OSMac, ArchX64},
		},
		{
			name:    "unknown id",
			id:      "solaris_sparc",
			wantErr: true,
		},
		{
			name:    "windows arm64 not produced",
			id:      "win32_arm64",
			wantErr: true,
		},
		{
			name:    "empty",
			id:      "",
			wantErr: true,
		},
		{
			name:    "case sensitive",
			id:      "Linux_X64",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.id)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseID(%q) succeeded, want error", tt.id)
				}
				if !errors.Is(err, ErrUnknownPlatform) {
					t.Errorf("error = %v, want ErrUnknownPlatform", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseID(%q) failed: %v", tt.id, err)
			}
			if got != tt.want {
				t.Errorf("ParseID(%q) = %+v, want %+v", tt.id, got, tt.want)
			}
		})
	}
}

func TestSpecID_RoundTrip(t *testing.T) {
	for _, id := range SupportedIDs() {
		spec, err := ParseID(id)
		if err != nil {
			t.Fatalf("ParseID(%q) failed: %v", id, err)
		}
		if spec.ID() != id {
			t.Errorf("Spec.ID() = %q, want %q", spec.ID(), id)
		}
		if !spec.Valid() {
			t.Errorf("spec for %q reported invalid", id)
		}
	}
}

func TestSpecString(t *testing.T) {
	if got := (Spec{OSLinux, ArchX64}).String(); got != "linux_x64" {
		t.Errorf("String() = %q, want linux_x64", got)
	}

	// Out-of-set pairs fall back to os/arch notation.
	if got := (Spec{OSWindows, ArchARM64}).String(); got != "windows/arm64" {
		t.Errorf("String() = %q, want windows/arm64", got)
	}
}

func TestSpecFromRuntime(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         Spec
		wantErr      bool
	}{
		{"linux", "amd64", Spec{OSLinux, ArchX64}, false},
		{"linux", "arm64", Spec{OSLinux, ArchARM64}, false},
		{"darwin", "arm64", Spec{OSMac, ArchARM64}, false},
		{"darwin", "amd64", Spec{OSMac, ArchX64}, false},
		{"windows", "amd64", Spec{OSWindows, ArchX64}, false},
		{"windows", "arm64", Spec{}, true},
		{"plan9", "amd64", Spec{}, true},
		{"linux", "386", Spec{}, true},
		{"linux", "riscv64", Spec{}, true},
	}

	for _, tt := range tests {
		got, err := specFromRuntime(tt.goos, tt.goarch)
		if tt.wantErr {
			if err == nil {
				t.Errorf("specFromRuntime(%s, %s) succeeded, want error", tt.goos, tt.goarch)
			}
			continue
		}
		if err != nil {
			t.Errorf("specFromRuntime(%s, %s) failed: %v", tt.goos, tt.goarch, err)
			continue
		}
		if got != tt.want {
			t.Errorf("specFromRuntime(%s, %s) = %+v, want %+v", tt.goos, tt.goarch, got, tt.want)
		}
	}
}

func TestDetect_CurrentHost(t *testing.T) {
	info, err := NewDetector().Detect(t.Context())
	if err != nil {
		t.Skipf("host platform outside supported set: %v", err)
	}
	if !info.Spec.Valid() {
		t.Errorf("detected spec %+v is not valid", info.Spec)
	}
	if info.Spec.ID() == "" {
		t.Error("detected spec has empty ID")
	}
}
