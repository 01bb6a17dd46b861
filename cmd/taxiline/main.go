package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build metadata, stamped by -ldflags on release builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taxiline",
		Short: "Taxi order mirroring and subscriptions",
		Long: "Taxiline watches taxi-order channels, collapses duplicates into one\n" +
			"deduplicated forum, and sells subscriber access to the result.",
	}

	root.AddCommand(
		newVersionCmd(),
		newDBCmd(),
		newMirrorCmd(),
		newBotCmd(),
		newRelayCmd(),
		newAdminCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taxiline %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
		},
	}
}

// run maps the root command's outcome to a process exit code.
func run(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(newRootCmd()))
}
