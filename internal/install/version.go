package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/offkit/offkit/internal/resolve"
)

// ErrVersionUnknown indicates no version was supplied and none could be
// discovered from the payload.
var ErrVersionUnknown = errors.New("artifact version unknown: pass one explicitly")

var (
	// semverPattern matches an embedded dotted version, e.g. "v20.11.1".
	semverPattern = regexp.MustCompile(`v?\d+\.\d+(?:\.\d+)*`)
	// commitPattern matches a filename segment that is a git commit hash.
	commitPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
	// versionFileName is the fallback version source at the payload root.
	versionFileName = "VERSION"
)

// discoverVersion derives the artifact version from the payload when the
// caller did not supply one: first from the primary (or first) file name
// (dotted version, then commit-hash segment), then from a VERSION file at
// the payload root.
func discoverVersion(payloadRoot string, art *resolve.Artifact) (string, error) {
	name := art.Primary
	if name == "" && len(art.Paths) > 0 {
		name = art.Paths[0]
	}
	base := name[strings.LastIndex(name, "/")+1:]

	if v := semverPattern.FindString(base); v != "" {
		return v, nil
	}
	// Strip extensions so "tool-3f5e2a1c.tar.gz" yields the hash segment.
	trimmed := base
	for ext := filepath.Ext(trimmed); ext != ""; ext = filepath.Ext(trimmed) {
		trimmed = strings.TrimSuffix(trimmed, ext)
	}
	for _, seg := range strings.FieldsFunc(trimmed, func(r rune) bool { return r == '-' || r == '_' }) {
		if commitPattern.MatchString(seg) {
			return seg, nil
		}
	}

	data, err := os.ReadFile(filepath.Join(payloadRoot, versionFileName))
	if err == nil {
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("%w (no version segment in %q and no %s file)", ErrVersionUnknown, base, versionFileName)
}

// sanitizeVersion makes a version identifier safe to use as a directory name
// component: path separators become dashes and a bare "." or ".." is
// rejected by padding. The version is otherwise opaque.
func sanitizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, "/", "-")
	v = strings.ReplaceAll(v, `\`, "-")
	v = strings.ReplaceAll(v, string(os.PathListSeparator), "-")
	if v == "." || v == ".." {
		v = "_" + v
	}
	return v
}
