package main

import (
	"github.com/spf13/cobra"

	"github.com/offkit/offkit/internal/install"
)

type verifyParams struct {
	kind       string
	platformID string
	keyring    string
}

var verifyFlags verifyParams

var verifyCmd = &cobra.Command{
	Use:   "verify <payload-root>",
	Short: "Check a payload kit against its manifest without installing",
	Long: `Verify resolves the artifact the same way install does and checks every
payload file against checksums.sha256. The filesystem is never written.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyFlags.kind, "kind", "k", "tool", "artifact kind to verify")
	verifyCmd.Flags().StringVar(&verifyFlags.platformID, "platform", "", "target platform id (default: detect host)")
	verifyCmd.Flags().StringVar(&verifyFlags.keyring, "keyring", "", "OpenPGP keyring; require a valid manifest signature")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	payloadRoot := args[0]

	spec, err := resolvePlatform(ctx, verifyFlags.platformID)
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

	keyring := verifyFlags.keyring
	if keyring == "" {
		keyring = settings.Keyring
	}

	res, err := installer.Install(ctx, install.Options{
		Platform:    spec,
		Kind:        verifyFlags.kind,
		PayloadRoot: payloadRoot,
		Keyring:     keyring,
		VerifyOnly:  true,
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
