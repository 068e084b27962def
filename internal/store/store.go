// Package store defines the persistence contract the resolution service
// depends on. Implementations live in the filestore (CSV ledger directory)
// and postgres subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/doubletake-dev/doubletake/internal/model"
)

var (
	// ErrTransactionNotFound is returned when a transaction id does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrCheckNotFound is returned when a duplicate check id does not exist.
	ErrCheckNotFound = errors.New("duplicate check not found")
)

// FlagUpdate carries the duplicate-review fields written back to a
// transaction. All four fields are written as given.
type FlagUpdate struct {
	IsDuplicate        bool
	DuplicateOf        int64
	DuplicateChecked   bool
	DuplicateCheckedAt time.Time
}

// Counts are the aggregate numbers behind the stats operation.
type Counts struct {
	Transactions          int
	Duplicates            int
	Checks                int
	Pending               int
	ConfirmedDuplicate    int
	ConfirmedNotDuplicate int
	Skipped               int
}

// Store is the persistence surface for transactions and the decision ledger.
//
// Mutating methods called outside WithinTx apply immediately; inside WithinTx
// they are staged and become visible only when the unit of work commits.
type Store interface {
	// ListActive returns transactions with IsDuplicate == false, ordered by
	// id. A non-empty ids slice restricts the result to those ids.
	ListActive(ctx context.Context, ids []int64) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (model.Transaction, error)
	UpdateTransactionFlags(ctx context.Context, id int64, upd FlagUpdate) error

	// InsertCheck adds a pending decision-ledger row and reports whether a
	// row was actually inserted. Re-inserting an already-recorded unordered
	// pair is not an error; it reports false.
	InsertCheck(ctx context.Context, check model.DuplicateCheck) (bool, error)
	GetCheck(ctx context.Context, id int64) (model.DuplicateCheck, error)
	// ListPendingChecks returns up to limit undecided checks ordered by
	// similarity score descending. limit <= 0 means no limit.
	ListPendingChecks(ctx context.Context, limit int) ([]model.DuplicateCheck, error)
	// FindDecidedChecks returns every check referencing txID on either side
	// whose recorded decision equals decision.
	FindDecidedChecks(ctx context.Context, txID int64, decision model.Decision) ([]model.DuplicateCheck, error)
	RecordDecision(ctx context.Context, checkID int64, decision model.Decision, at time.Time) error
	// ResetDecision returns a decided check to pending.
	ResetDecision(ctx context.Context, checkID int64) error

	Counts(ctx context.Context) (Counts, error)

	// WithinTx runs fn against a transactional view of the store. If fn
	// returns an error nothing fn did is visible afterwards; otherwise all
	// of it commits atomically.
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow Store) error) error
}
