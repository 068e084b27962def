// Package commands wires the resolution service to the CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doubletake-dev/doubletake/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "doubletake",
		Short:   "Find and resolve duplicate transactions in a ledger",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newDetectCommand())
	rootCmd.AddCommand(newCandidatesCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newConfirmCommand())
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newStatsCommand())

	return rootCmd
}
