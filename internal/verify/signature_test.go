package verify

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // ProtonMail's maintained fork
)

// signedManifestFixture generates a throwaway key, writes a manifest file,
// its binary detached signature, and the public keyring, and returns their
// paths.
func signedManifestFixture(t *testing.T, manifestContent []byte) (manifestPath, sigPath, keyringPath string) {
	t.Helper()

	dir := t.TempDir()

	entity, err := openpgp.NewEntity("offkit test", "", "test@example.invalid", nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	manifestPath = filepath.Join(dir, "checksums.sha256")
	if err := os.WriteFile(manifestPath, manifestContent, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	var sig bytes.Buffer
	if err := openpgp.DetachSign(&sig, entity, bytes.NewReader(manifestContent), nil); err != nil {
		t.Fatalf("sign manifest: %v", err)
	}
	sigPath = filepath.Join(dir, "checksums.sha256.sig")
	if err := os.WriteFile(sigPath, sig.Bytes(), 0o644); err != nil {
		t.Fatalf("write signature: %v", err)
	}

	var pub bytes.Buffer
	if err := entity.Serialize(&pub); err != nil {
		t.Fatalf("serialize public key: %v", err)
	}
	keyringPath = filepath.Join(dir, "keyring.gpg")
	if err := os.WriteFile(keyringPath, pub.Bytes(), 0o644); err != nil {
		t.Fatalf("write keyring: %v", err)
	}

	return manifestPath, sigPath, keyringPath
}

func TestManifestSignature_Valid(t *testing.T) {
	content := []byte("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855  linux_x64/tool/tool.bin\n")
	manifestPath, sigPath, keyringPath := signedManifestFixture(t, content)

	if err := ManifestSignature(manifestPath, sigPath, keyringPath); err != nil {
		t.Errorf("ManifestSignature failed on valid signature: %v", err)
	}
}

func TestManifestSignature_TamperedManifest(t *testing.T) {
	content := []byte("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855  linux_x64/tool/tool.bin\n")
	manifestPath, sigPath, keyringPath := signedManifestFixture(t, content)

	// Rewrite the manifest after signing.
	if err := os.WriteFile(manifestPath, append(content, []byte("extra line\n")...), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if err := ManifestSignature(manifestPath, sigPath, keyringPath); err == nil {
		t.Error("ManifestSignature accepted a tampered manifest")
	}
}

func TestManifestSignature_WrongKey(t *testing.T) {
	content := []byte("signed with one key\n")
	manifestPath, sigPath, _ := signedManifestFixture(t, content)

	// Keyring from an unrelated key.
	_, _, otherKeyring := signedManifestFixture(t, []byte("other content\n"))

	if err := ManifestSignature(manifestPath, sigPath, otherKeyring); err == nil {
		t.Error("ManifestSignature accepted a signature from an untrusted key")
	}
}

func TestManifestSignature_MissingFiles(t *testing.T) {
	content := []byte("content\n")
	manifestPath, sigPath, keyringPath := signedManifestFixture(t, content)
	missing := filepath.Join(t.TempDir(), "missing")

	if err := ManifestSignature(missing, sigPath, keyringPath); err == nil {
		t.Error("missing manifest accepted")
	}
	if err := ManifestSignature(manifestPath, missing, keyringPath); err == nil {
		t.Error("missing signature accepted")
	}
	if err := ManifestSignature(manifestPath, sigPath, missing); err == nil {
		t.Error("missing keyring accepted")
	}
}
