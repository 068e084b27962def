package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/doubletake-dev/doubletake/internal/model"
	"github.com/doubletake-dev/doubletake/internal/review"
)

func newCandidatesCommand() *cobra.Command {
	var ledgerDir string
	var limit int

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List pending duplicate candidates, highest score first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLedger(cmd.Context(), ledgerDir)
			if err != nil {
				return err
			}
			defer env.close()

			details, err := env.svc.PendingCandidates(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(details) == 0 {
				fmt.Println("No pending candidates")
				return nil
			}

			for _, d := range details {
				printCandidate(d)
				fmt.Println()
			}
			fmt.Printf("%d pending candidate(s)\n", len(details))
			return nil
		},
	}

	addLedgerFlag(cmd, &ledgerDir)
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum candidates to list")

	return cmd
}

func newShowCommand() *cobra.Command {
	var ledgerDir string

	cmd := &cobra.Command{
		Use:   "show <check-id>",
		Short: "Show one duplicate candidate in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid check id %q", args[0])
			}

			env, err := openLedger(cmd.Context(), ledgerDir)
			if err != nil {
				return err
			}
			defer env.close()

			d, err := env.svc.CandidateDetail(cmd.Context(), checkID)
			if err != nil {
				return err
			}
			printCandidate(d)
			return nil
		},
	}

	addLedgerFlag(cmd, &ledgerDir)

	return cmd
}

func newConfirmCommand() *cobra.Command {
	var ledgerDir string

	cmd := &cobra.Command{
		Use:   "confirm <check-id> <duplicate|not_duplicate|skip>",
		Short: "Record a decision on a pending candidate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			checkID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid check id %q", args[0])
			}

			env, err := openLedger(cmd.Context(), ledgerDir)
			if err != nil {
				return err
			}
			defer env.close()

			result, err := env.svc.Confirm(cmd.Context(), checkID, model.Decision(args[1]))
			if err != nil {
				return err
			}
			if err := env.persist(fmt.Sprintf("confirm: check %d -> %s", checkID, result.Decision)); err != nil {
				return err
			}

			switch result.Decision {
			case model.DecisionDuplicate:
				fmt.Printf("Marked transaction #%d as a duplicate of #%d\n",
					result.MarkedTransactionID, result.OriginalTransactionID)
			case model.DecisionNotDuplicate:
				fmt.Printf("Check %d recorded as not a duplicate\n", checkID)
			case model.DecisionSkip:
				fmt.Printf("Check %d skipped\n", checkID)
			}
			return nil
		},
	}

	addLedgerFlag(cmd, &ledgerDir)

	return cmd
}

func printCandidate(d review.CandidateDetail) {
	fmt.Printf("Check #%d  score %.3f  (%d day(s) apart, amount diff %s)\n",
		d.Check.ID, d.Check.SimilarityScore, d.DateDiffDays, d.AmountDiff.StringFixed(2))
	for _, t := range []model.Transaction{d.Transaction1, d.Transaction2} {
		fmt.Printf("  #%-6d %s  %10s  %-12s %s\n",
			t.ID, t.Date.Format("2006-01-02"), t.Amount.StringFixed(2), t.Category, t.Description)
	}
}
