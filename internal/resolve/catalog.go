// Package resolve maps an (artifact kind, platform) pair to the set of
// payload files an installation requires. The mapping comes from a catalog:
// a built-in table covering the standard kit layout, optionally overridden
// by a sandboxed catalog.lua file shipped at the payload root.
//
// Payload trees follow the convention <platform-id>/<kind-dir>/<files>, so
// every catalog pattern is relative to the platform directory.
package resolve

import (
	"fmt"
	"sort"
	"strings"
)

// KindSpec describes one installable artifact kind.
type KindSpec struct {
	// Dir is the subdirectory under the platform directory whose contents
	// get installed (e.g. "node"). Install paths are relative to it.
	Dir string
	// Patterns are the required paths, relative to the platform directory.
	// A pattern may contain glob metacharacters; it must then match exactly
	// one file in the payload.
	Patterns []string
	// Primary optionally names the primary executable (again relative to
	// the platform directory, wildcards allowed) used for the post-install
	// smoke check. Empty means no smoke check.
	Primary string
}

// Catalog maps kind names to their specs.
type Catalog map[string]KindSpec

// DefaultCatalog returns the built-in kind table for the standard offline
// kit layout.
func DefaultCatalog() Catalog {
	return Catalog{
		"runtime": {
			Dir:      "node",
			Patterns: []string{"node/node-portable*", "node/SHASUMS256.txt"},
			Primary:  "node/node-portable*",
		},
		"package-manager": {
			Dir:      "pnpm",
			Patterns: []string{"pnpm/pnpm*"},
			Primary:  "pnpm/pnpm*",
		},
		"tool-set": {
			Dir:      "tools",
			Patterns: []string{"tools/manifest.txt"},
		},
		"tool": {
			Dir:      "tool",
			Patterns: []string{"tool/*"},
		},
	}
}

// Merge returns a new catalog with entries from other replacing or extending
// the receiver's. The receiver is not modified.
func (c Catalog) Merge(other Catalog) Catalog {
	merged := make(Catalog, len(c)+len(other))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Kinds returns the catalog's kind names, sorted.
func (c Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c))
	for k := range c {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks every spec's structural invariants. Catalog patterns feed
// directly into filesystem lookups, so user-supplied catalogs (catalog.lua)
// must not be able to point outside the platform directory.
func (c Catalog) Validate() error {
	for kind, spec := range c {
		if kind == "" {
			return fmt.Errorf("catalog contains an empty kind name")
		}
		if strings.ContainsAny(kind, `/\`) {
			return fmt.Errorf("kind %q: name must not contain path separators", kind)
		}
		if err := validateRelPattern(spec.Dir, false); err != nil {
			return fmt.Errorf("kind %q: dir: %w", kind, err)
		}
		if len(spec.Patterns) == 0 {
			return fmt.Errorf("kind %q: at least one required path is needed", kind)
		}
		for _, p := range spec.Patterns {
			if err := validateRelPattern(p, true); err != nil {
				return fmt.Errorf("kind %q: path %q: %w", kind, p, err)
			}
		}
		if spec.Primary != "" {
			if err := validateRelPattern(spec.Primary, true); err != nil {
				return fmt.Errorf("kind %q: primary %q: %w", kind, spec.Primary, err)
			}
		}
	}
	return nil
}

// validateRelPattern enforces that a catalog path is relative, posix-style,
// and free of ".." segments.
func validateRelPattern(p string, allowGlob bool) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.Contains(p, `\`) {
		return fmt.Errorf("must use forward slashes")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("must be relative")
	}
	if !allowGlob && strings.ContainsAny(p, "*?[") {
		return fmt.Errorf("wildcards are not allowed here")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return fmt.Errorf("must not contain '..' segments")
		}
	}
	return nil
}
