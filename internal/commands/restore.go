package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRestoreCommand() *cobra.Command {
	var ledgerDir string

	cmd := &cobra.Command{
		Use:   "restore <transaction-id>",
		Short: "Un-mark a duplicate transaction and reopen its checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}

			env, err := openLedger(cmd.Context(), ledgerDir)
			if err != nil {
				return err
			}
			defer env.close()

			result, err := env.svc.Restore(cmd.Context(), txID)
			if err != nil {
				return err
			}
			if err := env.persist(fmt.Sprintf("restore: transaction %d", txID)); err != nil {
				return err
			}

			fmt.Printf("Restored transaction #%d, reopened %d check(s)\n",
				result.TransactionID, result.ReopenedChecks)
			return nil
		},
	}

	addLedgerFlag(cmd, &ledgerDir)

	return cmd
}
