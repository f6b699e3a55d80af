package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offkit/offkit/internal/install"
)

type installParams struct {
	kind       string
	platformID string
	prefix     string
	version    string
	keyring    string
	force      bool
}

var installFlags installParams

var installCmd = &cobra.Command{
	Use:   "install <payload-root>",
	Short: "Verify an artifact against the kit manifest and install it",
	Long: `Install resolves the requested artifact kind inside the payload kit,
verifies every payload file against checksums.sha256, stages it, and swaps
it atomically into <prefix>/<kind>/<platform>/<version>.

A destination that already holds a completed install is left untouched
unless --force is given. Failures never leave a partial install behind.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVarP(&installFlags.kind, "kind", "k", "tool", "artifact kind to install")
	installCmd.Flags().StringVar(&installFlags.platformID, "platform", "", "target platform id (default: detect host)")
	installCmd.Flags().StringVar(&installFlags.prefix, "prefix", "", "install prefix (default: configured prefix)")
	installCmd.Flags().StringVar(&installFlags.version, "artifact-version", "", "version directory name (default: discovered from the payload)")
	installCmd.Flags().StringVar(&installFlags.keyring, "keyring", "", "OpenPGP keyring; require a valid manifest signature")
	installCmd.Flags().BoolVarP(&installFlags.force, "force", "f", false, "replace an existing install of the same version")
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	payloadRoot := args[0]

	spec, err := resolvePlatform(ctx, installFlags.platformID)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	resolver, err := newResolver(payloadRoot, spec)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	installer, err := install.New(install.Config{
		Resolver: resolver,
		Logger:   cliLogger{logger},
	})
	if err != nil {
		return err
	}

	prefix := installFlags.prefix
	if prefix == "" {
		prefix = settings.Prefix
	}
	keyring := installFlags.keyring
	if keyring == "" {
		keyring = settings.Keyring
	}

	res, err := installer.Install(ctx, install.Options{
		Platform:    spec,
		Kind:        installFlags.kind,
		PayloadRoot: payloadRoot,
		Prefix:      prefix,
		Version:     installFlags.version,
		Force:       installFlags.force,
		Keyring:     keyring,
	})
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	printResult(cmd, res)
	if code := res.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func printResult(cmd *cobra.Command, res *install.Result) {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	switch res.Status {
	case install.StatusInstalled:
		fmt.Fprintf(out, "Installed %d file(s) to %s\n", len(res.InstalledFiles), res.Path)
	case install.StatusAlreadyInstalled:
		fmt.Fprintf(out, "Already installed at %s\n", res.Path)
	case install.StatusVerified:
		fmt.Fprintf(out, "Verified %d file(s) in %s\n", len(res.InstalledFiles), res.Path)
	case install.StatusVerificationFailed:
		fmt.Fprintln(errOut, "Verification failed:")
		if len(res.Mismatches) == 0 {
			fmt.Fprintf(errOut, "  %s\n", res.Reason)
		}
		for _, m := range res.Mismatches {
			fmt.Fprintf(errOut, "  %s\n", m)
		}
	case install.StatusExtractionFailed:
		fmt.Fprintf(errOut, "Install failed: %s\n", res.Reason)
	case install.StatusNotFound:
		fmt.Fprintf(errOut, "Nothing to install: %s\n", res.Reason)
		for _, p := range res.MissingPaths {
			fmt.Fprintf(errOut, "  missing: %s\n", p)
		}
	}
}
