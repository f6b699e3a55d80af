// Package verify confirms that payload files match the digests recorded in a
// manifest. It reports every mismatch it finds, not just the first, so
// callers can see the complete damage before deciding whether a partial
// re-download is worthwhile.
package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/offkit/offkit/internal/manifest"
)

// ErrVerificationFailed classifies any digest verification failure.
var ErrVerificationFailed = errors.New("verification failed")

// MismatchKind says why a single path failed verification.
type MismatchKind int

const (
	// NotInManifest: the path was requested but has no manifest entry.
	NotInManifest MismatchKind = iota
	// FileMissing: the manifest lists the path but the file does not exist.
	FileMissing
	// HashMismatch: the file exists but its digest differs.
	HashMismatch
)

// String returns the mismatch kind name used in CLI output.
func (k MismatchKind) String() string {
	switch k {
	case NotInManifest:
		return "not in manifest"
	case FileMissing:
		return "file missing"
	case HashMismatch:
		return "hash mismatch"
	default:
		return "unknown"
	}
}

// Mismatch describes one path that failed verification. Expected and Actual
// are lowercase hex digests and are set only for HashMismatch.
type Mismatch struct {
	Path     string
	Kind     MismatchKind
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	if m.Kind == HashMismatch {
		return fmt.Sprintf("%s: %s (expected %s, got %s)", m.Path, m.Kind, m.Expected, m.Actual)
	}
	return fmt.Sprintf("%s: %s", m.Path, m.Kind)
}

// Failure carries the full mismatch list for a failed verification. It wraps
// ErrVerificationFailed for errors.Is classification.
type Failure struct {
	Mismatches []Mismatch
}

func (f *Failure) Error() string {
	parts := make([]string, len(f.Mismatches))
	for i, m := range f.Mismatches {
		parts[i] = m.String()
	}
	return fmt.Sprintf("verification failed for %d path(s): %s", len(f.Mismatches), strings.Join(parts, "; "))
}

func (f *Failure) Unwrap() error { return ErrVerificationFailed }

// hashWorkers bounds parallel hashing. Hashing is embarrassingly parallel
// but payloads often live on slow removable media, so the pool stays small.
var hashWorkers = min(4, runtime.NumCPU())

// Paths verifies relPaths under rootDir against the manifest. It returns nil
// when every path matches, a *Failure listing every mismatch otherwise, or a
// plain error for I/O problems unrelated to content (and for cancellation).
//
// The function has no shared mutable state: concurrent calls for disjoint
// roots are safe.
func Paths(ctx context.Context, m *manifest.Manifest, rootDir string, relPaths []string) error {
	var (
		mu         sync.Mutex
		mismatches []Mismatch
	)
	record := func(mm Mismatch) {
		mu.Lock()
		mismatches = append(mismatches, mm)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(hashWorkers)

	for _, rel := range relPaths {
		rel := manifest.NormalizePath(rel)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			expected, ok := m.Lookup(rel)
			if !ok {
				record(Mismatch{Path: rel, Kind: NotInManifest})
				return nil
			}

			actual, err := FileDigest(filepath.Join(rootDir, filepath.FromSlash(rel)))
			if err != nil {
				if os.IsNotExist(err) {
					record(Mismatch{Path: rel, Kind: FileMissing})
					return nil
				}
				return fmt.Errorf("hash %s: %w", rel, err)
			}

			if actual != expected {
				record(Mismatch{Path: rel, Kind: HashMismatch, Expected: expected, Actual: actual})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if len(mismatches) > 0 {
		sort.Slice(mismatches, func(i, j int) bool {
			return mismatches[i].Path < mismatches[j].Path
		})
		return &Failure{Mismatches: mismatches}
	}
	return nil
}

// FileDigest streams the file at path through SHA-256 and returns the
// lowercase hex digest.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
