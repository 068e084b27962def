package filestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doubletake-dev/doubletake/internal/model"
	"github.com/doubletake-dev/doubletake/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedTx(s *Store, date time.Time, amount string) model.Transaction {
	return s.AddTransaction(model.Transaction{Date: date, Amount: dec(amount), Description: "test"})
}

func TestOpenSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	t1 := seedTx(s, day(2025, time.January, 15), "-42.50")
	t2 := seedTx(s, day(2025, time.January, 15), "-42.50")

	ctx := context.Background()
	inserted, err := s.InsertCheck(ctx, model.DuplicateCheck{
		TransactionID1:     t1.ID,
		TransactionID2:     t2.ID,
		AmountToleranceAbs: dec("0"),
		SimilarityScore:    1.0,
		DetectedAt:         time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, s.Save())

	reopened, err := Open(dir)
	require.NoError(t, err)

	got, err := reopened.GetTransaction(ctx, t1.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("-42.50")))
	assert.Equal(t, day(2025, time.January, 15), got.Date)

	check, err := reopened.GetCheck(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, t1.ID, check.TransactionID1)
	assert.Equal(t, t2.ID, check.TransactionID2)
	assert.True(t, check.Pending())
}

func TestOpen_MissingFilesMeansEmptyLedger(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	txs, err := s.ListActive(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestListActive_FiltersDuplicatesAndIDs(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTx(s, day(2025, time.March, 1), "-10.00")
	t2 := seedTx(s, day(2025, time.March, 2), "-20.00")
	t3 := seedTx(s, day(2025, time.March, 3), "-30.00")

	require.NoError(t, s.UpdateTransactionFlags(ctx, t2.ID, store.FlagUpdate{
		IsDuplicate: true, DuplicateOf: t1.ID, DuplicateChecked: true, DuplicateCheckedAt: time.Now(),
	}))

	active, err := s.ListActive(ctx, nil)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, t1.ID, active[0].ID)
	assert.Equal(t, t3.ID, active[1].ID)

	restricted, err := s.ListActive(ctx, []int64{t3.ID})
	require.NoError(t, err)
	require.Len(t, restricted, 1)
	assert.Equal(t, t3.ID, restricted[0].ID)
}

func TestInsertCheck_UnorderedPairInsertedOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTx(s, day(2025, time.March, 1), "-10.00")
	t2 := seedTx(s, day(2025, time.March, 1), "-10.00")

	inserted, err := s.InsertCheck(ctx, model.DuplicateCheck{
		TransactionID1: t2.ID, TransactionID2: t1.ID, // reversed on purpose
		AmountToleranceAbs: dec("0"), SimilarityScore: 1, DetectedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.InsertCheck(ctx, model.DuplicateCheck{
		TransactionID1: t1.ID, TransactionID2: t2.ID,
		AmountToleranceAbs: dec("0"), SimilarityScore: 1, DetectedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	check, err := s.GetCheck(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, t1.ID, check.TransactionID1, "pair stored in canonical order")
	assert.Equal(t, t2.ID, check.TransactionID2)
}

func TestListPendingChecks_OrderAndLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		seedTx(s, day(2025, time.March, 1), "-10.00")
	}

	scores := []float64{0.85, 0.99, 0.91}
	pairs := [][2]int64{{1, 2}, {1, 3}, {2, 4}}
	for i, p := range pairs {
		_, err := s.InsertCheck(ctx, model.DuplicateCheck{
			TransactionID1: p[0], TransactionID2: p[1],
			AmountToleranceAbs: dec("0"), SimilarityScore: scores[i], DetectedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	pending, err := s.ListPendingChecks(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, 0.99, pending[0].SimilarityScore)
	assert.Equal(t, 0.91, pending[1].SimilarityScore)
	assert.Equal(t, 0.85, pending[2].SimilarityScore)

	limited, err := s.ListPendingChecks(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	// Decided checks drop out of the pending list.
	require.NoError(t, s.RecordDecision(ctx, pending[0].ID, model.DecisionSkip, time.Now()))
	pending, err = s.ListPendingChecks(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRecordAndResetDecision(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTx(s, day(2025, time.March, 1), "-10.00")
	t2 := seedTx(s, day(2025, time.March, 1), "-10.00")
	_, err := s.InsertCheck(ctx, model.DuplicateCheck{
		TransactionID1: t1.ID, TransactionID2: t2.ID,
		AmountToleranceAbs: dec("0"), SimilarityScore: 1, DetectedAt: time.Now(),
	})
	require.NoError(t, err)

	decidedAt := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordDecision(ctx, 1, model.DecisionDuplicate, decidedAt))

	check, err := s.GetCheck(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionDuplicate, check.Decision)
	assert.Equal(t, decidedAt, check.DecidedAt)

	found, err := s.FindDecidedChecks(ctx, t2.ID, model.DecisionDuplicate)
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, s.ResetDecision(ctx, 1))
	check, err = s.GetCheck(ctx, 1)
	require.NoError(t, err)
	assert.True(t, check.Pending())
	assert.True(t, check.DecidedAt.IsZero())
}

func TestNotFoundErrors(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.GetTransaction(ctx, 99)
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)

	err = s.UpdateTransactionFlags(ctx, 99, store.FlagUpdate{})
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)

	_, err = s.GetCheck(ctx, 99)
	assert.ErrorIs(t, err, store.ErrCheckNotFound)

	err = s.RecordDecision(ctx, 99, model.DecisionSkip, time.Now())
	assert.ErrorIs(t, err, store.ErrCheckNotFound)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTx(s, day(2025, time.March, 1), "-10.00")
	t2 := seedTx(s, day(2025, time.March, 1), "-10.00")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, uow store.Store) error {
		if err := uow.UpdateTransactionFlags(ctx, t1.ID, store.FlagUpdate{
			IsDuplicate: true, DuplicateOf: t2.ID,
		}); err != nil {
			return err
		}
		if _, err := uow.InsertCheck(ctx, model.DuplicateCheck{
			TransactionID1: t1.ID, TransactionID2: t2.ID,
			AmountToleranceAbs: dec("0"), SimilarityScore: 1, DetectedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetTransaction(ctx, t1.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDuplicate, "update must not survive a failed unit of work")

	_, err = s.GetCheck(ctx, 1)
	assert.ErrorIs(t, err, store.ErrCheckNotFound)
}

func TestWithinTx_CommitsOnSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTx(s, day(2025, time.March, 1), "-10.00")
	t2 := seedTx(s, day(2025, time.March, 1), "-10.00")

	err := s.WithinTx(ctx, func(ctx context.Context, uow store.Store) error {
		return uow.UpdateTransactionFlags(ctx, t1.ID, store.FlagUpdate{
			IsDuplicate: true, DuplicateOf: t2.ID,
			DuplicateChecked: true, DuplicateCheckedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	got, err := s.GetTransaction(ctx, t1.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDuplicate)
	assert.Equal(t, t2.ID, got.DuplicateOf)
}

func TestCounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := seedTx(s, day(2025, time.March, 1), "-10.00")
	t2 := seedTx(s, day(2025, time.March, 1), "-10.00")
	t3 := seedTx(s, day(2025, time.March, 2), "-20.00")

	require.NoError(t, s.UpdateTransactionFlags(ctx, t2.ID, store.FlagUpdate{
		IsDuplicate: true, DuplicateOf: t1.ID,
	}))
	_, err := s.InsertCheck(ctx, model.DuplicateCheck{
		TransactionID1: t1.ID, TransactionID2: t2.ID,
		AmountToleranceAbs: dec("0"), SimilarityScore: 1, DetectedAt: time.Now(),
	})
	require.NoError(t, err)
	_, err = s.InsertCheck(ctx, model.DuplicateCheck{
		TransactionID1: t1.ID, TransactionID2: t3.ID,
		AmountToleranceAbs: dec("0"), SimilarityScore: 0.9, DetectedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordDecision(ctx, 1, model.DecisionDuplicate, time.Now()))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{
		Transactions:       3,
		Duplicates:         1,
		Checks:             2,
		Pending:            1,
		ConfirmedDuplicate: 1,
	}, counts)
}
