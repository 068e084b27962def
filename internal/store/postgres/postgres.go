// Package postgres is the pgx-backed store implementation for shared
// deployments where several reviewers work against one database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/doubletake-dev/doubletake/internal/model"
	"github.com/doubletake-dev/doubletake/internal/store"
)

// querier is the subset of pgx shared by a pool and an open transaction, so
// the same query methods serve both direct calls and units of work.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// NewStore connects a pool and verifies the connection.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool, q: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const transactionColumns = `id, date, amount::text, description, category,
	is_duplicate, duplicate_of, duplicate_checked, duplicate_checked_at`

// ListActive implements store.Store.
func (s *Store) ListActive(ctx context.Context, ids []int64) ([]model.Transaction, error) {
	sql := `SELECT ` + transactionColumns + ` FROM transactions WHERE NOT is_duplicate`
	args := []any{}
	if len(ids) > 0 {
		sql += ` AND id = ANY($1)`
		args = append(args, ids)
	}
	sql += ` ORDER BY id`

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing active transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTransaction implements store.Store.
func (s *Store) GetTransaction(ctx context.Context, id int64) (model.Transaction, error) {
	row := s.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %d: %w", id, store.ErrTransactionNotFound)
	}
	return t, err
}

func scanTransaction(row pgx.Row) (model.Transaction, error) {
	var (
		t         model.Transaction
		amount    string
		dupOf     *int64
		checkedAt *time.Time
	)
	err := row.Scan(&t.ID, &t.Date, &amount, &t.Description, &t.Category,
		&t.IsDuplicate, &dupOf, &t.DuplicateChecked, &checkedAt)
	if err != nil {
		return model.Transaction{}, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if dupOf != nil {
		t.DuplicateOf = *dupOf
	}
	if checkedAt != nil {
		t.DuplicateCheckedAt = *checkedAt
	}
	return t, nil
}

// UpdateTransactionFlags implements store.Store.
func (s *Store) UpdateTransactionFlags(ctx context.Context, id int64, upd store.FlagUpdate) error {
	var dupOf *int64
	if upd.DuplicateOf != 0 {
		dupOf = &upd.DuplicateOf
	}
	var checkedAt *time.Time
	if !upd.DuplicateCheckedAt.IsZero() {
		checkedAt = &upd.DuplicateCheckedAt
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE transactions
		 SET is_duplicate = $2, duplicate_of = $3, duplicate_checked = $4, duplicate_checked_at = $5
		 WHERE id = $1`,
		id, upd.IsDuplicate, dupOf, upd.DuplicateChecked, checkedAt)
	if err != nil {
		return fmt.Errorf("updating transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", id, store.ErrTransactionNotFound)
	}
	return nil
}

// InsertCheck implements store.Store. The unordered-pair unique constraint
// makes repeated detection runs idempotent: an existing pair is skipped, not
// an error.
func (s *Store) InsertCheck(ctx context.Context, check model.DuplicateCheck) (bool, error) {
	tx1, tx2 := check.TransactionID1, check.TransactionID2
	if tx1 > tx2 {
		tx1, tx2 = tx2, tx1
	}

	tag, err := s.q.Exec(ctx,
		`INSERT INTO duplicate_checks
		   (transaction_id_1, transaction_id_2, date_tolerance_days,
		    amount_tolerance_abs, amount_tolerance_pct, similarity_score, detected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (transaction_id_1, transaction_id_2) DO NOTHING`,
		tx1, tx2, check.DateToleranceDays, check.AmountToleranceAbs.String(),
		check.AmountTolerancePct, check.SimilarityScore, check.DetectedAt)
	if err != nil {
		return false, fmt.Errorf("inserting check for pair (%d, %d): %w", tx1, tx2, err)
	}
	return tag.RowsAffected() == 1, nil
}

const checkColumns = `id, transaction_id_1, transaction_id_2, date_tolerance_days,
	amount_tolerance_abs::text, amount_tolerance_pct, similarity_score, detected_at,
	user_decision, decided_at`

// GetCheck implements store.Store.
func (s *Store) GetCheck(ctx context.Context, id int64) (model.DuplicateCheck, error) {
	row := s.q.QueryRow(ctx, `SELECT `+checkColumns+` FROM duplicate_checks WHERE id = $1`, id)
	c, err := scanCheck(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DuplicateCheck{}, fmt.Errorf("check %d: %w", id, store.ErrCheckNotFound)
	}
	return c, err
}

// ListPendingChecks implements store.Store.
func (s *Store) ListPendingChecks(ctx context.Context, limit int) ([]model.DuplicateCheck, error) {
	sql := `SELECT ` + checkColumns + ` FROM duplicate_checks
		WHERE user_decision IS NULL ORDER BY similarity_score DESC, id`
	args := []any{}
	if limit > 0 {
		sql += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending checks: %w", err)
	}
	defer rows.Close()
	return collectChecks(rows)
}

// FindDecidedChecks implements store.Store.
func (s *Store) FindDecidedChecks(ctx context.Context, txID int64, decision model.Decision) ([]model.DuplicateCheck, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+checkColumns+` FROM duplicate_checks
		 WHERE (transaction_id_1 = $1 OR transaction_id_2 = $1) AND user_decision = $2
		 ORDER BY id`,
		txID, string(decision))
	if err != nil {
		return nil, fmt.Errorf("finding checks for transaction %d: %w", txID, err)
	}
	defer rows.Close()
	return collectChecks(rows)
}

func collectChecks(rows pgx.Rows) ([]model.DuplicateCheck, error) {
	var out []model.DuplicateCheck
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCheck(row pgx.Row) (model.DuplicateCheck, error) {
	var (
		c         model.DuplicateCheck
		absTol    string
		decision  *string
		decidedAt *time.Time
	)
	err := row.Scan(&c.ID, &c.TransactionID1, &c.TransactionID2, &c.DateToleranceDays,
		&absTol, &c.AmountTolerancePct, &c.SimilarityScore, &c.DetectedAt,
		&decision, &decidedAt)
	if err != nil {
		return model.DuplicateCheck{}, err
	}

	c.AmountToleranceAbs, err = decimal.NewFromString(absTol)
	if err != nil {
		return model.DuplicateCheck{}, fmt.Errorf("parsing amount tolerance %q: %w", absTol, err)
	}
	if decision != nil {
		c.Decision = model.Decision(*decision)
	}
	if decidedAt != nil {
		c.DecidedAt = *decidedAt
	}
	return c, nil
}

// RecordDecision implements store.Store.
func (s *Store) RecordDecision(ctx context.Context, checkID int64, decision model.Decision, at time.Time) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE duplicate_checks SET user_decision = $2, decided_at = $3 WHERE id = $1`,
		checkID, string(decision), at)
	if err != nil {
		return fmt.Errorf("recording decision on check %d: %w", checkID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("check %d: %w", checkID, store.ErrCheckNotFound)
	}
	return nil
}

// ResetDecision implements store.Store.
func (s *Store) ResetDecision(ctx context.Context, checkID int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE duplicate_checks SET user_decision = NULL, decided_at = NULL WHERE id = $1`,
		checkID)
	if err != nil {
		return fmt.Errorf("resetting decision on check %d: %w", checkID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("check %d: %w", checkID, store.ErrCheckNotFound)
	}
	return nil
}

// Counts implements store.Store.
func (s *Store) Counts(ctx context.Context) (store.Counts, error) {
	var counts store.Counts
	err := s.q.QueryRow(ctx,
		`SELECT
		   (SELECT count(*) FROM transactions),
		   (SELECT count(*) FROM transactions WHERE is_duplicate),
		   count(*),
		   count(*) FILTER (WHERE user_decision IS NULL),
		   count(*) FILTER (WHERE user_decision = 'duplicate'),
		   count(*) FILTER (WHERE user_decision = 'not_duplicate'),
		   count(*) FILTER (WHERE user_decision = 'skip')
		 FROM duplicate_checks`).Scan(
		&counts.Transactions, &counts.Duplicates, &counts.Checks, &counts.Pending,
		&counts.ConfirmedDuplicate, &counts.ConfirmedNotDuplicate, &counts.Skipped)
	if err != nil {
		return store.Counts{}, fmt.Errorf("counting ledger rows: %w", err)
	}
	return counts, nil
}

// WithinTx implements store.Store with a database transaction: begin, run fn
// against a tx-bound view, commit, with rollback on any error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow store.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &Store{pool: s.pool, q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
