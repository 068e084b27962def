// Package review is the resolution service: it runs detection against the
// store, persists candidates into the decision ledger, and applies human
// decisions while keeping transaction flags and the ledger consistent.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/doubletake-dev/doubletake/internal/dedup"
	"github.com/doubletake-dev/doubletake/internal/model"
	"github.com/doubletake-dev/doubletake/internal/store"
)

var (
	// ErrInvalidDecision is returned for a decision outside
	// duplicate/not_duplicate/skip.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrAlreadyDecided is returned when confirming a check that already
	// carries a decision. Decisions move forward exactly once; use Restore
	// to reopen a confirmed duplicate.
	ErrAlreadyDecided = errors.New("check already decided")
	// ErrNotADuplicate is returned when restoring a transaction that is not
	// flagged as a duplicate.
	ErrNotADuplicate = errors.New("transaction is not marked as a duplicate")
)

// Service exposes the duplicate resolution operations over an injected store.
type Service struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewService creates a Service backed by st.
func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

// DetectResult reports the outcome of a detect-and-save run.
type DetectResult struct {
	// Detected is the number of candidate pairs the engine produced.
	Detected int
	// Inserted is the number of new ledger rows; pairs already recorded are
	// skipped silently.
	Inserted int
}

// Detect runs the engine over the active transaction set without writing
// anything, optionally restricted to ids. Useful for previewing tolerances.
func (s *Service) Detect(ctx context.Context, opts dedup.Options, ids []int64) ([]dedup.Candidate, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.store.ListActive(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading active transactions: %w", err)
	}
	return dedup.Detect(txs, opts)
}

// DetectAndSave runs detection and inserts every candidate pair not already
// present in the decision ledger, all within one unit of work. Re-running
// with the same or looser options inserts nothing new.
func (s *Service) DetectAndSave(ctx context.Context, opts dedup.Options) (DetectResult, error) {
	if err := opts.Validate(); err != nil {
		return DetectResult{}, err
	}

	var result DetectResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow store.Store) error {
		txs, err := uow.ListActive(ctx, nil)
		if err != nil {
			return fmt.Errorf("loading active transactions: %w", err)
		}

		candidates, err := dedup.Detect(txs, opts)
		if err != nil {
			return err
		}
		result.Detected = len(candidates)

		detectedAt := s.now()
		for _, c := range candidates {
			inserted, err := uow.InsertCheck(ctx, model.DuplicateCheck{
				TransactionID1:     c.A.ID,
				TransactionID2:     c.B.ID,
				DateToleranceDays:  opts.DateToleranceDays,
				AmountToleranceAbs: opts.AmountToleranceAbs,
				AmountTolerancePct: opts.AmountTolerancePct,
				SimilarityScore:    c.Score,
				DetectedAt:         detectedAt,
			})
			if err != nil {
				return fmt.Errorf("saving candidate (%d, %d): %w", c.A.ID, c.B.ID, err)
			}
			if inserted {
				result.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		return DetectResult{}, err
	}

	s.log.Info().
		Int("detected", result.Detected).
		Int("inserted", result.Inserted).
		Int("date_tolerance_days", opts.DateToleranceDays).
		Str("amount_tolerance_abs", opts.AmountToleranceAbs.String()).
		Float64("amount_tolerance_pct", opts.AmountTolerancePct).
		Msg("detection run complete")
	return result, nil
}

// CandidateDetail is a ledger row enriched with both transactions and the
// deltas a reviewer needs to judge the pair.
type CandidateDetail struct {
	Check        model.DuplicateCheck
	Transaction1 model.Transaction
	Transaction2 model.Transaction
	DateDiffDays int
	AmountDiff   decimal.Decimal
}

// PendingCandidates returns up to limit undecided checks, highest score
// first, each enriched with transaction details.
func (s *Service) PendingCandidates(ctx context.Context, limit int) ([]CandidateDetail, error) {
	checks, err := s.store.ListPendingChecks(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending checks: %w", err)
	}

	details := make([]CandidateDetail, 0, len(checks))
	for _, c := range checks {
		d, err := s.enrich(ctx, s.store, c)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

// CandidateDetail returns one check with its transactions.
func (s *Service) CandidateDetail(ctx context.Context, checkID int64) (CandidateDetail, error) {
	c, err := s.store.GetCheck(ctx, checkID)
	if err != nil {
		return CandidateDetail{}, err
	}
	return s.enrich(ctx, s.store, c)
}

func (s *Service) enrich(ctx context.Context, st store.Store, c model.DuplicateCheck) (CandidateDetail, error) {
	t1, err := st.GetTransaction(ctx, c.TransactionID1)
	if err != nil {
		return CandidateDetail{}, fmt.Errorf("loading transaction %d: %w", c.TransactionID1, err)
	}
	t2, err := st.GetTransaction(ctx, c.TransactionID2)
	if err != nil {
		return CandidateDetail{}, fmt.Errorf("loading transaction %d: %w", c.TransactionID2, err)
	}
	return CandidateDetail{
		Check:        c,
		Transaction1: t1,
		Transaction2: t2,
		DateDiffDays: model.DayDiff(t1.Date, t2.Date),
		AmountDiff:   t1.Amount.Sub(t2.Amount).Abs(),
	}, nil
}

// ConfirmResult reports the outcome of an adjudication.
type ConfirmResult struct {
	CheckID  int64
	Decision model.Decision
	// MarkedTransactionID is the transaction flagged as the duplicate; zero
	// unless the decision was "duplicate".
	MarkedTransactionID int64
	// OriginalTransactionID is the surviving original; zero unless the
	// decision was "duplicate".
	OriginalTransactionID int64
}

// Confirm records a decision on a pending check. For "duplicate" the
// later-dated (or on a tie, higher-id) transaction is flagged as the
// duplicate of the other; for "not_duplicate" both transactions are marked
// reviewed; "skip" only removes the check from the pending queue. The whole
// operation is one unit of work.
func (s *Service) Confirm(ctx context.Context, checkID int64, decision model.Decision) (ConfirmResult, error) {
	if !decision.Valid() {
		return ConfirmResult{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	result := ConfirmResult{CheckID: checkID, Decision: decision}
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow store.Store) error {
		check, err := uow.GetCheck(ctx, checkID)
		if err != nil {
			return err
		}
		if !check.Pending() {
			return fmt.Errorf("%w: check %d is %q", ErrAlreadyDecided, checkID, check.Decision)
		}

		now := s.now()
		switch decision {
		case model.DecisionDuplicate:
			marked, original, err := s.markDuplicate(ctx, uow, check, now)
			if err != nil {
				return err
			}
			result.MarkedTransactionID = marked
			result.OriginalTransactionID = original
		case model.DecisionNotDuplicate:
			if err := s.markReviewed(ctx, uow, check, now); err != nil {
				return err
			}
		case model.DecisionSkip:
			// Only the ledger row changes.
		}

		return uow.RecordDecision(ctx, checkID, decision, now)
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	s.log.Info().
		Int64("check_id", checkID).
		Str("decision", string(decision)).
		Int64("marked_transaction_id", result.MarkedTransactionID).
		Msg("candidate adjudicated")
	return result, nil
}

func (s *Service) markDuplicate(ctx context.Context, uow store.Store, check model.DuplicateCheck, now time.Time) (markedID, originalID int64, err error) {
	t1, err := uow.GetTransaction(ctx, check.TransactionID1)
	if err != nil {
		return 0, 0, fmt.Errorf("loading transaction %d: %w", check.TransactionID1, err)
	}
	t2, err := uow.GetTransaction(ctx, check.TransactionID2)
	if err != nil {
		return 0, 0, fmt.Errorf("loading transaction %d: %w", check.TransactionID2, err)
	}

	loser, original := model.Loser(t1, t2)

	// Duplicates never chain: if the survivor was itself marked a duplicate
	// by another check in the meantime, point the loser at its root.
	root, err := s.rootOriginal(ctx, uow, original)
	if err != nil {
		return 0, 0, err
	}

	err = uow.UpdateTransactionFlags(ctx, loser.ID, store.FlagUpdate{
		IsDuplicate:        true,
		DuplicateOf:        root.ID,
		DuplicateChecked:   true,
		DuplicateCheckedAt: now,
	})
	if err != nil {
		return 0, 0, err
	}

	err = uow.UpdateTransactionFlags(ctx, original.ID, store.FlagUpdate{
		IsDuplicate:        original.IsDuplicate,
		DuplicateOf:        original.DuplicateOf,
		DuplicateChecked:   true,
		DuplicateCheckedAt: now,
	})
	if err != nil {
		return 0, 0, err
	}

	return loser.ID, root.ID, nil
}

func (s *Service) markReviewed(ctx context.Context, uow store.Store, check model.DuplicateCheck, now time.Time) error {
	for _, id := range []int64{check.TransactionID1, check.TransactionID2} {
		t, err := uow.GetTransaction(ctx, id)
		if err != nil {
			return fmt.Errorf("loading transaction %d: %w", id, err)
		}
		err = uow.UpdateTransactionFlags(ctx, id, store.FlagUpdate{
			IsDuplicate:        t.IsDuplicate,
			DuplicateOf:        t.DuplicateOf,
			DuplicateChecked:   true,
			DuplicateCheckedAt: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) rootOriginal(ctx context.Context, uow store.Store, t model.Transaction) (model.Transaction, error) {
	for hops := 0; t.IsDuplicate && t.DuplicateOf != 0; hops++ {
		if hops > 100 {
			return model.Transaction{}, fmt.Errorf("duplicate chain from transaction %d does not terminate", t.ID)
		}
		next, err := uow.GetTransaction(ctx, t.DuplicateOf)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("following duplicate_of from %d: %w", t.ID, err)
		}
		t = next
	}
	return t, nil
}

// RestoreResult reports the outcome of a restore.
type RestoreResult struct {
	TransactionID int64
	// ReopenedChecks is how many confirmed-duplicate checks referencing the
	// transaction went back to pending.
	ReopenedChecks int
}

// Restore clears the duplicate flags on a transaction and returns every
// confirmed-duplicate check referencing it to pending, in one unit of work.
// The argument is the flagged (losing) transaction id, not a check id.
func (s *Service) Restore(ctx context.Context, transactionID int64) (RestoreResult, error) {
	result := RestoreResult{TransactionID: transactionID}
	err := s.store.WithinTx(ctx, func(ctx context.Context, uow store.Store) error {
		t, err := uow.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		if !t.IsDuplicate {
			return fmt.Errorf("%w: transaction %d", ErrNotADuplicate, transactionID)
		}

		err = uow.UpdateTransactionFlags(ctx, transactionID, store.FlagUpdate{})
		if err != nil {
			return err
		}

		checks, err := uow.FindDecidedChecks(ctx, transactionID, model.DecisionDuplicate)
		if err != nil {
			return fmt.Errorf("finding checks for transaction %d: %w", transactionID, err)
		}
		for _, c := range checks {
			if err := uow.ResetDecision(ctx, c.ID); err != nil {
				return err
			}
		}
		result.ReopenedChecks = len(checks)
		return nil
	})
	if err != nil {
		return RestoreResult{}, err
	}

	s.log.Info().
		Int64("transaction_id", transactionID).
		Int("reopened_checks", result.ReopenedChecks).
		Msg("duplicate restored")
	return result, nil
}

// Stats are the aggregate counts over the store and the decision ledger.
type Stats struct {
	TotalTransactions     int
	DuplicateTransactions int
	TotalChecks           int
	PendingChecks         int
	ConfirmedDuplicate    int
	ConfirmedNotDuplicate int
	Skipped               int
}

// Stats returns current aggregate counts.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting: %w", err)
	}
	return Stats{
		TotalTransactions:     counts.Transactions,
		DuplicateTransactions: counts.Duplicates,
		TotalChecks:           counts.Checks,
		PendingChecks:         counts.Pending,
		ConfirmedDuplicate:    counts.ConfirmedDuplicate,
		ConfirmedNotDuplicate: counts.ConfirmedNotDuplicate,
		Skipped:               counts.Skipped,
	}, nil
}
