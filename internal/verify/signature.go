package verify

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // ProtonMail's maintained fork
)

// ManifestSignature checks a detached OpenPGP signature over the manifest
// file before its digests are trusted. Both armored and binary signatures
// are accepted, trying armored first since that is what release tooling
// usually produces.
//
// Signature checking is opt-in: callers without a keyring skip this entirely
// and trust the manifest as-is, matching the air-gapped kits where the
// manifest travels inside the already-trusted payload bundle.
func ManifestSignature(manifestPath, signaturePath, keyringPath string) error {
	keyring, err := loadKeyring(keyringPath)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	manifestFile, err := os.Open(manifestPath)
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer manifestFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, manifestFile, sigFile, nil)
	if err != nil {
		// Retry as a binary signature.
		if _, seekErr := manifestFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind manifest: %w", seekErr)
		}
		if _, seekErr := sigFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, manifestFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("manifest signature verification failed: %w", err)
	}
	return nil
}

// loadKeyring reads an OpenPGP keyring, accepting armored and binary forms.
func loadKeyring(path string) (openpgp.EntityList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("rewind keyring: %w", seekErr)
		}
		keyring, err = openpgp.ReadKeyRing(f)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}
