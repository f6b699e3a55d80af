package install

import (
	"fmt"

	"github.com/offkit/offkit/internal/verify"
)

// Status is the outcome class of an Install call.
type Status int

const (
	// StatusInstalled: the payload was verified and placed at Result.Path.
	StatusInstalled Status = iota
	// StatusAlreadyInstalled: a valid install for the same (kind, platform,
	// version) triple already exists; nothing was touched.
	StatusAlreadyInstalled
	// StatusVerified: verify-only run, payload matched the manifest.
	StatusVerified
	// StatusVerificationFailed: the payload did not match the manifest (or
	// the manifest itself could not be loaded or its signature rejected).
	StatusVerificationFailed
	// StatusExtractionFailed: staging or the atomic swap failed.
	StatusExtractionFailed
	// StatusNotFound: the platform/kind pair could not be resolved against
	// the payload tree.
	StatusNotFound
)

// String returns the status name used in CLI output.
func (s Status) String() string {
	switch s {
	case StatusInstalled:
		return "installed"
	case StatusAlreadyInstalled:
		return "already installed"
	case StatusVerified:
		return "verified"
	case StatusVerificationFailed:
		return "verification failed"
	case StatusExtractionFailed:
		return "extraction failed"
	case StatusNotFound:
		return "not found"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the sole outcome of an Install call. It carries enough detail
// for a caller to print an actionable message or decide on a retry without
// the installer knowing anything about presentation.
type Result struct {
	Status Status

	// Path is the destination directory (Installed, AlreadyInstalled) or
	// the directory that was checked (Verified).
	Path string

	// InstalledFiles are the payload file names relative to the destination
	// directory, sorted (Installed, Verified).
	InstalledFiles []string

	// Mismatches lists every path that failed digest verification
	// (VerificationFailed).
	Mismatches []verify.Mismatch

	// MissingPaths lists unresolvable patterns or paths (NotFound).
	MissingPaths []string

	// Reason is a human-readable explanation for failure statuses.
	Reason string
}

// Ok reports whether the outcome is a success (exit code 0).
func (r *Result) Ok() bool {
	switch r.Status {
	case StatusInstalled, StatusAlreadyInstalled, StatusVerified:
		return true
	default:
		return false
	}
}

// ExitCode maps the result onto the 0/1/2 process exit convention the
// surrounding kit scripts rely on: 0 success, 1 integrity or placement
// failure, 2 nothing-to-install.
func (r *Result) ExitCode() int {
	switch r.Status {
	case StatusInstalled, StatusAlreadyInstalled, StatusVerified:
		return 0
	case StatusVerificationFailed, StatusExtractionFailed:
		return 1
	case StatusNotFound:
		return 2
	default:
		return 1
	}
}
