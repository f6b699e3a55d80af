// Package install orchestrates resolution, verification, and atomic
// placement of offline artifact payloads.
//
// All staging happens in a temporary directory beside the final destination
// on the same filesystem; the destination itself only ever changes through a
// single rename. That all-or-nothing rename is what makes concurrent
// installs of the same (kind, platform, version) triple safe without locks:
// whichever rename lands first is authoritative and the loser observes a
// complete, equally-valid install.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/offkit/offkit/internal/manifest"
	"github.com/offkit/offkit/internal/platform"
	"github.com/offkit/offkit/internal/resolve"
	"github.com/offkit/offkit/internal/verify"
)

// Installer installs verified payloads into a versioned destination tree of
// the shape <prefix>/<kind>/<platform-id>/<version>.
type Installer struct {
	resolver *resolve.Resolver
	logger   Logger
}

// Config holds construction options for an Installer.
type Config struct {
	// Resolver resolves kinds against payload trees. Nil uses the built-in
	// catalog.
	Resolver *resolve.Resolver
	// Logger receives progress events. Nil disables logging.
	Logger Logger
}

// New creates an Installer.
func New(cfg Config) (*Installer, error) {
	resolver := cfg.Resolver
	if resolver == nil {
		var err error
		resolver, err = resolve.NewResolver(nil)
		if err != nil {
			return nil, err
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	return &Installer{resolver: resolver, logger: logger}, nil
}

// Options are the per-call inputs to Install.
type Options struct {
	Platform    platform.Spec
	Kind        string
	PayloadRoot string
	Prefix      string
	// Version identifies the install directory. Empty means discover it
	// from the payload (primary file name, then a VERSION file).
	Version string
	// Force reinstalls over an existing valid destination, atomically.
	Force bool
	// VerifyOnly stops after verification; the filesystem is not touched.
	VerifyOnly bool
	// Keyring, when set, requires a detached signature next to the manifest
	// and verifies it against this keyring file before the manifest is
	// trusted.
	Keyring string
}

func (o Options) validate() error {
	if o.Kind == "" {
		return fmt.Errorf("artifact kind is required")
	}
	if o.PayloadRoot == "" {
		return fmt.Errorf("payload root is required")
	}
	if !o.VerifyOnly && o.Prefix == "" {
		return fmt.Errorf("destination prefix is required")
	}
	return nil
}

// errRaceLost marks a swap that found the destination already populated by a
// concurrent install of the same triple.
var errRaceLost = errors.New("destination created concurrently")

// Install runs the full state machine: resolve the artifact, verify it
// against the manifest, stage it, and atomically swap it into place.
//
// All outcomes from the error taxonomy (verification failure, unresolvable
// artifact, staging/swap failure, already installed) come back inside the
// Result. The returned error is reserved for cancellation and for usage
// problems (invalid options, undiscoverable version) that no payload could
// fix. Failures never leave partial state under the destination path.
func (i *Installer) Install(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Resolving.
	art, err := i.resolver.Resolve(opts.Platform, opts.Kind, opts.PayloadRoot)
	if err != nil {
		i.logger.Error("resolve failed", "kind", opts.Kind, "platform", opts.Platform.String(), "error", err)
		res := &Result{Status: StatusNotFound, Reason: err.Error()}
		var patternErr *resolve.PatternError
		if errors.As(err, &patternErr) {
			res.MissingPaths = []string{patternErr.Pattern}
		}
		return res, nil
	}
	i.logger.Debug("resolved artifact", "kind", art.Kind, "platform", art.Platform.ID(), "paths", len(art.Paths))

	// Verifying.
	manifestPath := filepath.Join(opts.PayloadRoot, manifest.FileName)

	if opts.Keyring != "" {
		sigPath, err := findManifestSignature(manifestPath)
		if err != nil {
			return &Result{Status: StatusVerificationFailed, Reason: err.Error()}, nil
		}
		if err := verify.ManifestSignature(manifestPath, sigPath, opts.Keyring); err != nil {
			i.logger.Error("manifest signature rejected", "error", err)
			return &Result{Status: StatusVerificationFailed, Reason: err.Error()}, nil
		}
		i.logger.Debug("manifest signature verified", "signature", sigPath)
	}

	m, err := manifest.Load(manifestPath)
	if err != nil {
		i.logger.Error("manifest unusable", "path", manifestPath, "error", err)
		return &Result{Status: StatusVerificationFailed, Reason: err.Error()}, nil
	}

	if err := verify.Paths(ctx, m, opts.PayloadRoot, art.Paths); err != nil {
		var failure *verify.Failure
		if errors.As(err, &failure) {
			i.logger.Error("payload verification failed", "mismatches", len(failure.Mismatches))
			return &Result{
				Status:     StatusVerificationFailed,
				Mismatches: failure.Mismatches,
				Reason:     failure.Error(),
			}, nil
		}
		return nil, err
	}
	i.logger.Info("payload verified", "kind", art.Kind, "files", len(art.Paths))

	// Verify-only stops here: version and destination are placement
	// concerns and must not be required just to check a payload.
	if opts.VerifyOnly {
		return &Result{Status: StatusVerified, Path: opts.PayloadRoot, InstalledFiles: art.Paths}, nil
	}

	// Version.
	version := opts.Version
	if version == "" {
		version, err = discoverVersion(opts.PayloadRoot, art)
		if err != nil {
			return nil, err
		}
		i.logger.Debug("discovered version", "version", version)
	}
	version = sanitizeVersion(version)
	if version == "" {
		return nil, ErrVersionUnknown
	}

	destDir := filepath.Join(opts.Prefix, opts.Kind, art.Platform.ID(), version)

	// Idempotence: a destination is an install if and only if it carries a
	// completion receipt.
	if receipt, err := ReadReceipt(destDir); err == nil {
		if !opts.Force {
			i.logger.Info("already installed", "path", destDir)
			return &Result{Status: StatusAlreadyInstalled, Path: destDir, InstalledFiles: receipt.Files}, nil
		}
		i.logger.Info("forcing reinstall", "path", destDir)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Staging. The staging directory lives in the destination's parent so
	// the final rename never crosses a filesystem boundary.
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return &Result{Status: StatusExtractionFailed, Reason: fmt.Sprintf("create destination parent: %v", err)}, nil
	}
	staging, err := os.MkdirTemp(parent, ".staging-"+opts.Kind+"-")
	if err != nil {
		return &Result{Status: StatusExtractionFailed, Reason: fmt.Sprintf("create staging directory: %v", err)}, nil
	}
	swapped := false
	defer func() {
		if !swapped {
			os.RemoveAll(staging)
		}
	}()

	files, err := stagePayload(ctx, opts.PayloadRoot, art, staging)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		i.logger.Error("staging failed", "error", err)
		return &Result{Status: StatusExtractionFailed, Reason: err.Error()}, nil
	}

	if err := i.smokeCheck(staging, art); err != nil {
		return &Result{Status: StatusExtractionFailed, Reason: err.Error()}, nil
	}

	receipt := newReceipt(opts.Kind, art.Platform.ID(), version, files)
	if err := receipt.write(staging); err != nil {
		return &Result{Status: StatusExtractionFailed, Reason: err.Error()}, nil
	}

	// Swapping. Deliberately not cancellable: the rename is the atomicity
	// guarantee.
	if err := i.swap(staging, destDir, opts.Force); err != nil {
		if errors.Is(err, errRaceLost) {
			// The concurrent install verified the same manifest, so its
			// content is as good as ours.
			i.logger.Info("concurrent install won the swap", "path", destDir)
			return &Result{Status: StatusInstalled, Path: destDir, InstalledFiles: files}, nil
		}
		if errors.Is(err, syscall.EXDEV) {
			return &Result{Status: StatusExtractionFailed, Reason: "cross-device rename unsupported: staging and destination must share a filesystem"}, nil
		}
		i.logger.Error("swap failed", "error", err)
		return &Result{Status: StatusExtractionFailed, Reason: err.Error()}, nil
	}
	swapped = true

	i.logger.Info("installed", "path", destDir, "files", len(files))
	return &Result{Status: StatusInstalled, Path: destDir, InstalledFiles: files}, nil
}

// swap renames the fully-staged directory onto the destination. An existing
// destination is either a concurrent winner (valid receipt, not forcing),
// which the caller reports as success, or it is replaced via a
// rename-aside so the destination is never observable in a partial state.
func (i *Installer) swap(staging, dest string, force bool) error {
	if _, err := os.Lstat(dest); err == nil {
		if _, rerr := ReadReceipt(dest); rerr == nil && !force {
			return errRaceLost
		}
		// Forced reinstall, or a markerless leftover from outside
		// interference; replace it.
		backup := dest + ".old-" + uuid.New().String()
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("move aside existing destination: %w", err)
		}
		if err := os.Rename(staging, dest); err != nil {
			// Best effort restore; the backup is still a valid install.
			if restoreErr := os.Rename(backup, dest); restoreErr != nil {
				i.logger.Error("restore after failed swap also failed", "backup", backup, "error", restoreErr)
			}
			return fmt.Errorf("swap staging into place: %w", err)
		}
		os.RemoveAll(backup)
		return nil
	}

	if err := os.Rename(staging, dest); err != nil {
		if _, rerr := ReadReceipt(dest); rerr == nil {
			return errRaceLost
		}
		return fmt.Errorf("swap staging into place: %w", err)
	}
	return nil
}

// smokeCheck confirms the staged primary executable exists as a regular file
// and, outside Windows, is executable. Archive primaries are skipped: the
// archive itself no longer exists after extraction.
func (i *Installer) smokeCheck(staging string, art *resolve.Artifact) error {
	if art.Primary == "" || isTarGz(art.Primary) || filepath.Ext(art.Primary) == ".zip" {
		return nil
	}

	name := installName(art, art.Primary)
	info, err := os.Stat(filepath.Join(staging, filepath.FromSlash(name)))
	if err != nil {
		return fmt.Errorf("primary executable %s missing after staging: %v", name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("primary executable %s is not a regular file", name)
	}
	if !art.Platform.IsWindows() && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("primary executable %s is not executable", name)
	}
	return nil
}

// findManifestSignature locates the detached signature next to the manifest,
// preferring the armored .asc name over .sig.
func findManifestSignature(manifestPath string) (string, error) {
	for _, ext := range []string{".asc", ".sig"} {
		candidate := manifestPath + ext
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("manifest signature not found (expected %s.asc or .sig)", manifestPath)
}
