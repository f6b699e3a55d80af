// Package testutil isolates tests from the host's offkit state.
package testutil

import (
	"path/filepath"
	"testing"
)

// SetupTestEnv redirects every directory offkit derives from the
// environment into a per-test temp directory, so tests never read the
// developer's real config or write outside the test sandbox. It returns
// the sandbox root.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))

	// Windows equivalents, harmless elsewhere.
	t.Setenv("USERPROFILE", tmpDir)
	t.Setenv("APPDATA", filepath.Join(tmpDir, "config"))
	t.Setenv("LOCALAPPDATA", filepath.Join(tmpDir, "data"))

	// Neutralize OFFKIT_ overrides leaking in from the caller's shell.
	// Empty values read as unset.
	for _, key := range []string{"OFFKIT_PREFIX", "OFFKIT_KEYRING", "OFFKIT_LOG_LEVEL", "OFFKIT_PLATFORM"} {
		t.Setenv(key, "")
	}

	return tmpDir
}
