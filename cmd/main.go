// Command mapcheck serves ProGuard/R8 mapping diagnostics for Android events.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mapcheck",
		Short: "ProGuard/R8 mapping diagnostics service",
		Long: `mapcheck inspects normalized Android error events for missing ProGuard/R8
mapping files and misconfigured Gradle plugins, and hosts the debug-file
registry the checks look mappings up in.

Configuration is read from defaults, the YAML file named by MAPCHECK_CONFIG
and MAPCHECK_* environment variables, in that order.`,
		SilenceUsage: true,
		// serve is the default command.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd.ErrOrStderr())
		},
	}
	root.AddCommand(newServeCmd(), newCheckCmd(), newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
