package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/offkit/offkit/internal/platform"
)

var (
	// ErrUnsupportedPlatform indicates the platform is outside the
	// enumerated set or the payload carries no directory for it.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrUnsupportedKind indicates the catalog has no entry for the kind.
	ErrUnsupportedKind = errors.New("unsupported artifact kind")

	// ErrNoMatch indicates a wildcard pattern matched no file.
	ErrNoMatch = errors.New("no file matches pattern")

	// ErrAmbiguousMatch indicates a wildcard pattern matched more than one
	// file. Silently taking the first match is how the old `ls | head -1`
	// kits picked stale artifacts, so ambiguity is always an error.
	ErrAmbiguousMatch = errors.New("pattern matches multiple files")
)

// PatternError reports a wildcard pattern that failed to resolve. It wraps
// ErrNoMatch or ErrAmbiguousMatch for errors.Is classification and keeps the
// pattern itself accessible so callers can report exactly what was missing.
type PatternError struct {
	Pattern string
	Matches []string // base names, ambiguous case only
	reason  error
}

func (e *PatternError) Error() string {
	if len(e.Matches) > 0 {
		return fmt.Sprintf("%v: %q matched %s", e.reason, e.Pattern, strings.Join(e.Matches, ", "))
	}
	return fmt.Sprintf("%v: %q", e.reason, e.Pattern)
}

func (e *PatternError) Unwrap() error { return e.reason }

// Artifact describes what must be installed for one (kind, platform) pair.
// All paths are posix-style and relative to the payload root.
type Artifact struct {
	Kind     string
	Platform platform.Spec
	// Dir is the payload subtree that gets installed, e.g. "linux_x64/node".
	// Installed file names are reported relative to it.
	Dir string
	// Paths are the resolved required files, wildcards already expanded.
	Paths []string
	// Primary is the resolved primary executable, "" if the kind has none.
	Primary string
}

// Resolver resolves artifact kinds against a catalog and a payload tree.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a resolver over the given catalog. A nil catalog uses
// the built-in one.
func NewResolver(catalog Catalog) (*Resolver, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &Resolver{catalog: catalog}, nil
}

// Catalog returns the resolver's catalog.
func (r *Resolver) Catalog() Catalog {
	return r.catalog
}

// Resolve returns the Artifact for the given platform and kind against the
// payload tree rooted at payloadRoot. Wildcard patterns are expanded against
// the real directory listing at call time: zero matches and multiple matches
// are both hard errors.
func (r *Resolver) Resolve(spec platform.Spec, kind, payloadRoot string) (*Artifact, error) {
	if !spec.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, spec)
	}

	kindSpec, ok := r.catalog[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known kinds: %s)", ErrUnsupportedKind, kind, strings.Join(r.catalog.Kinds(), ", "))
	}

	platformDir := filepath.Join(payloadRoot, spec.ID())
	if info, err := os.Stat(platformDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: payload has no %s directory", ErrUnsupportedPlatform, spec.ID())
	}

	paths := make([]string, 0, len(kindSpec.Patterns))
	for _, pattern := range kindSpec.Patterns {
		resolved, err := resolvePattern(platformDir, pattern)
		if err != nil {
			return nil, err
		}
		paths = append(paths, joinPosix(spec.ID(), resolved...)...)
	}
	sort.Strings(paths)

	primary := ""
	if kindSpec.Primary != "" {
		resolved, err := resolvePattern(platformDir, kindSpec.Primary)
		if err != nil {
			return nil, err
		}
		primary = spec.ID() + "/" + resolved[0]
	}

	return &Artifact{
		Kind:     kind,
		Platform: spec,
		Dir:      spec.ID() + "/" + kindSpec.Dir,
		Paths:    paths,
		Primary:  primary,
	}, nil
}

// resolvePattern expands one catalog pattern against platformDir and returns
// the matching paths relative to platformDir (posix-style). Literal patterns
// pass through untouched; whether the file exists is the verifier's call.
// Wildcard patterns must match exactly one regular file.
func resolvePattern(platformDir, pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}

	matches, err := filepath.Glob(filepath.Join(platformDir, filepath.FromSlash(pattern)))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	// Directories never satisfy a file pattern.
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}

	switch len(files) {
	case 0:
		return nil, &PatternError{Pattern: pattern, reason: ErrNoMatch}
	case 1:
		rel, err := filepath.Rel(platformDir, files[0])
		if err != nil {
			return nil, fmt.Errorf("relativize match for %q: %w", pattern, err)
		}
		return []string{filepath.ToSlash(rel)}, nil
	default:
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = filepath.Base(f)
		}
		sort.Strings(names)
		return nil, &PatternError{Pattern: pattern, Matches: names, reason: ErrAmbiguousMatch}
	}
}

// joinPosix prefixes each rel with the platform ID using forward slashes.
func joinPosix(platformID string, rels ...string) []string {
	out := make([]string, len(rels))
	for i, rel := range rels {
		out[i] = platformID + "/" + rel
	}
	return out
}
