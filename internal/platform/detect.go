package platform

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using runtime constants and gopsutil.
type RealDetector struct{}

// NewDetector creates a platform detector for the current host.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect maps runtime.GOOS/GOARCH to a Spec and, on Linux, asks gopsutil for
// distribution details. Distro detection failures are non-fatal: the Spec is
// still returned so installs can proceed, since nothing in the install path
// depends on the distro.
func (d *RealDetector) Detect(ctx context.Context) (*HostInfo, error) {
	spec, err := specFromRuntime(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return nil, fmt.Errorf("detect host platform: %w", err)
	}

	info := &HostInfo{Spec: spec}

	if spec.OS == OSLinux {
		distro, family, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			// Graceful fallback: OS and arch are enough to pick a payload.
			return info, nil
		}
		info.Distro = normalize(distro)
		info.Family = normalize(family)
		info.Version = normalize(version)
	}

	return info, nil
}

// specFromRuntime converts Go runtime identifiers to a platform Spec.
func specFromRuntime(goos, goarch string) (Spec, error) {
	var o OS
	switch goos {
	case "linux":
		o = OSLinux
	case "darwin":
		o = OSMac
	case "windows":
		o = OSWindows
	default:
		return Spec{}, fmt.Errorf("unsupported OS: %s", goos)
	}

	var a Arch
	switch goarch {
	case "amd64":
		a = ArchX64
	case "arm64":
		a = ArchARM64
	default:
		return Spec{}, fmt.Errorf("unsupported architecture: %s (x64 and arm64 only)", goarch)
	}

	spec := Spec{OS: o, Arch: a}
	if !spec.Valid() {
		return Spec{}, fmt.Errorf("no payloads are produced for %s/%s", goos, goarch)
	}
	return spec, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
