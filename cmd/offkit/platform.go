package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/offkit/offkit/internal/platform"
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Show the detected host platform",
	Args:  cobra.NoArgs,
	RunE:  runPlatform,
}

func runPlatform(cmd *cobra.Command, args []string) error {
	host, err := platform.NewDetector().Detect(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:       %s\n", host.Spec.ID())
	fmt.Fprintf(out, "os:       %s\n", host.Spec.OS)
	fmt.Fprintf(out, "arch:     %s\n", host.Spec.Arch)
	if host.Distro != "" {
		fmt.Fprintf(out, "distro:   %s\n", host.Distro)
	}
	if host.Family != "" {
		fmt.Fprintf(out, "family:   %s\n", host.Family)
	}
	if host.Version != "" {
		fmt.Fprintf(out, "version:  %s\n", host.Version)
	}
	fmt.Fprintf(out, "supported: %v\n", platform.SupportedIDs())
	return nil
}
