package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the RetailOps CLI. Subcommands are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:           "retailops",
	Short:         "RetailOps module lifecycle CLI",
	Long:          "Operator utilities for the module lifecycle: schema bootstrap, catalog, assignments, approvals, stats and dev tokens.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
