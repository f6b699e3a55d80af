package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/offkit/offkit/internal/install"
)

var listPrefix string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed installs under the prefix",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listPrefix, "prefix", "", "install prefix (default: configured prefix)")
}

func runList(cmd *cobra.Command, args []string) error {
	prefix := listPrefix
	if prefix == "" {
		prefix = settings.Prefix
	}

	installs, err := install.ListInstalled(prefix)
	if err != nil {
		return err
	}
	if len(installs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No installs under %s\n", prefix)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tPLATFORM\tVERSION\tFILES\tINSTALLED")
	for _, in := range installs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			in.Kind, in.Platform, in.Version,
			len(in.Receipt.Files),
			in.Receipt.InstalledAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}
