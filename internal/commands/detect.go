package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/doubletake-dev/doubletake/internal/dedup"
)

func newDetectCommand() *cobra.Command {
	var ledgerDir string
	var dateTolerance int
	var amountTolerance float64
	var amountTolerancePct float64
	var minScore float64
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect duplicate candidates and queue them for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openLedger(cmd.Context(), ledgerDir)
			if err != nil {
				return err
			}
			defer env.close()

			opts := dedup.Options{
				DateToleranceDays:  dateTolerance,
				AmountToleranceAbs: decimal.NewFromFloat(amountTolerance),
				AmountTolerancePct: amountTolerancePct,
				MinScore:           minScore,
			}
			// Flags left at their defaults fall back to the configured
			// tolerances.
			det := env.cfg.Detection
			if !cmd.Flags().Changed("date-tolerance") {
				opts.DateToleranceDays = det.DateToleranceDays
			}
			if !cmd.Flags().Changed("amount-tolerance") {
				opts.AmountToleranceAbs = decimal.NewFromFloat(det.AmountTolerance)
			}
			if !cmd.Flags().Changed("amount-tolerance-pct") {
				opts.AmountTolerancePct = det.AmountTolerancePct
			}
			if !cmd.Flags().Changed("min-score") && det.MinScore > 0 {
				opts.MinScore = det.MinScore
			}

			if dryRun {
				candidates, err := env.svc.Detect(cmd.Context(), opts, nil)
				if err != nil {
					return err
				}
				for _, c := range candidates {
					fmt.Printf("%.3f  #%d %s %s  ~  #%d %s %s\n",
						c.Score,
						c.A.ID, c.A.Date.Format("2006-01-02"), c.A.Amount.StringFixed(2),
						c.B.ID, c.B.Date.Format("2006-01-02"), c.B.Amount.StringFixed(2))
				}
				fmt.Printf("Detected %d candidate pair(s) (dry run, nothing saved)\n", len(candidates))
				return nil
			}

			result, err := env.svc.DetectAndSave(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := env.persist(fmt.Sprintf("detect: %d new duplicate candidate(s)", result.Inserted)); err != nil {
				return err
			}

			fmt.Printf("Detected %d candidate pair(s), %d new\n", result.Detected, result.Inserted)
			return nil
		},
	}

	addLedgerFlag(cmd, &ledgerDir)
	cmd.Flags().IntVar(&dateTolerance, "date-tolerance", 0, "maximum day difference between a pair")
	cmd.Flags().Float64Var(&amountTolerance, "amount-tolerance", 0, "maximum absolute amount difference")
	cmd.Flags().Float64Var(&amountTolerancePct, "amount-tolerance-pct", 0, "maximum amount difference as a percentage")
	cmd.Flags().Float64Var(&minScore, "min-score", 0.8, "similarity score floor, 0..1")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list candidates without saving them")

	return cmd
}
