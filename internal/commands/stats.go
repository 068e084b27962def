package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	var ledgerDir string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show duplicate review statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLedger(cmd.Context(), ledgerDir)
			if err != nil {
				return err
			}
			defer env.close()

			stats, err := env.svc.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Transactions:        %d (%d marked duplicate)\n",
				stats.TotalTransactions, stats.DuplicateTransactions)
			fmt.Printf("Checks:              %d\n", stats.TotalChecks)
			fmt.Printf("  pending:           %d\n", stats.PendingChecks)
			fmt.Printf("  duplicate:         %d\n", stats.ConfirmedDuplicate)
			fmt.Printf("  not duplicate:     %d\n", stats.ConfirmedNotDuplicate)
			fmt.Printf("  skipped:           %d\n", stats.Skipped)
			return nil
		},
	}

	addLedgerFlag(cmd, &ledgerDir)

	return cmd
}
