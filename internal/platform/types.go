// Package platform identifies the target environments offkit can install
// payloads for. A platform is an (OS family, architecture) pair drawn from a
// small enumerated set; payload trees use the canonical platform ID (e.g.
// "linux_x64") as their top-level directory name.
//
// The package also detects the host platform, using gopsutil for Linux
// distribution details, and can inject a read-only platform table into a Lua
// state for catalog files that need to branch on the target environment.
package platform

import (
	"context"
	"fmt"
)

// OS is an operating system family.
type OS string

const (
	OSWindows OS = "windows"
	OSLinux   OS = "linux"
	OSMac     OS = "macos"
)

// Arch is a normalized CPU architecture.
type Arch string

const (
	ArchX64   Arch = "x64"
	ArchARM64 Arch = "arm64"
)

// Spec identifies a target environment as an (OS, Arch) pair. It is a pure
// lookup key: whether a payload actually exists for a given Spec is decided
// by the resolver against the payload tree, not by this type.
type Spec struct {
	OS   OS
	Arch Arch
}

// Canonical platform IDs. These are the directory names used inside payload
// trees and destination prefixes, and the values accepted by --platform.
const (
	IDWindowsX64 = "win32_x64"
	IDLinuxX64   = "linux_x64"
	IDLinuxARM64 = "linux_arm64"
	IDMacX64     = "mac_x64"
	IDMacARM64   = "mac_arm64"
)

// specByID maps canonical IDs to their Spec. Windows arm64 payloads have
// never been produced by the kit tooling, so the combination is not listed.
var specByID = map[string]Spec{
	IDWindowsX64: {OSWindows, ArchX64},
	IDLinuxX64:   {OSLinux, ArchX64},
	IDLinuxARM64: {OSLinux, ArchARM64},
	IDMacX64:     {OSMac, ArchX64},
	IDMacARM64:   {OSMac, ArchARM64},
}

var idBySpec = func() map[Spec]string {
	m := make(map[Spec]string, len(specByID))
	for id, s := range specByID {
		m[s] = id
	}
	return m
}()

// ErrUnknownPlatform is returned by ParseID for identifiers outside the
// enumerated set.
var ErrUnknownPlatform = fmt.Errorf("unknown platform identifier")

// ParseID resolves a canonical platform identifier string to its Spec.
func ParseID(id string) (Spec, error) {
	spec, ok := specByID[id]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownPlatform, id, SupportedIDs())
	}
	return spec, nil
}

// ID returns the canonical identifier for the spec, or "" if the pair is not
// in the enumerated set.
func (s Spec) ID() string {
	return idBySpec[s]
}

// Valid reports whether the spec is one of the enumerated combinations.
func (s Spec) Valid() bool {
	_, ok := idBySpec[s]
	return ok
}

// String returns the canonical ID, falling back to "os/arch" notation for
// out-of-set pairs so error messages stay readable.
func (s Spec) String() string {
	if id := s.ID(); id != "" {
		return id
	}
	return fmt.Sprintf("%s/%s", s.OS, s.Arch)
}

// IsWindows reports whether the spec targets Windows.
func (s Spec) IsWindows() bool { return s.OS == OSWindows }

// IsLinux reports whether the spec targets Linux.
func (s Spec) IsLinux() bool { return s.OS == OSLinux }

// IsMac reports whether the spec targets macOS.
func (s Spec) IsMac() bool { return s.OS == OSMac }

// SupportedIDs returns the canonical identifiers in stable order.
func SupportedIDs() []string {
	return []string{IDWindowsX64, IDLinuxX64, IDLinuxARM64, IDMacX64, IDMacARM64}
}

// HostInfo describes the detected host platform. Distro fields are populated
// on Linux only and are informational; installation decisions key off Spec.
type HostInfo struct {
	Spec    Spec
	Distro  string // distro ID (e.g. "ubuntu"), Linux only
	Family  string // distro family (e.g. "debian"), Linux only
	Version string // distro version (e.g. "22.04"), Linux only
}

// Detector detects the host platform.
type Detector interface {
	Detect(ctx context.Context) (*HostInfo, error)
}
