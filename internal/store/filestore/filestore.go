// Package filestore is the CSV-backed store implementation: a ledger
// directory holding transactions.csv and duplicate-checks.csv, loaded into
// indexed memory and written back on Save. It is the default store for the
// CLI and the store the tests run against.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/doubletake-dev/doubletake/internal/model"
	"github.com/doubletake-dev/doubletake/internal/store"
)

const (
	transactionsFile = "transactions.csv"
	checksFile       = "duplicate-checks.csv"
)

// Store holds the ledger in memory, indexed by id, with an optional backing
// directory. The zero limit/ordering conventions follow the store.Store
// contract.
type Store struct {
	mu  sync.Mutex
	dir string // "" = memory only

	transactions map[int64]model.Transaction
	checks       map[int64]model.DuplicateCheck
	pairs        map[[2]int64]int64 // canonical pair -> check id
	nextTxID     int64
	nextCheckID  int64
}

// New creates an empty in-memory Store.
func New() *Store {
	return &Store{
		transactions: make(map[int64]model.Transaction),
		checks:       make(map[int64]model.DuplicateCheck),
		pairs:        make(map[[2]int64]int64),
		nextTxID:     1,
		nextCheckID:  1,
	}
}

// Open reads a ledger directory. Missing CSV files are treated as empty.
func Open(dir string) (*Store, error) {
	s := New()
	s.dir = dir

	txs, err := readFile(filepath.Join(dir, transactionsFile), ReadTransactions)
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		s.transactions[t.ID] = t
		if t.ID >= s.nextTxID {
			s.nextTxID = t.ID + 1
		}
	}

	checks, err := readFile(filepath.Join(dir, checksFile), ReadChecks)
	if err != nil {
		return nil, err
	}
	for _, c := range checks {
		s.checks[c.ID] = c
		s.pairs[pairKey(c.TransactionID1, c.TransactionID2)] = c.ID
		if c.ID >= s.nextCheckID {
			s.nextCheckID = c.ID + 1
		}
	}

	return s, nil
}

func readFile[T any](path string, read func(r io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return read(f)
}

// Save writes both CSV files back to the backing directory.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir == "" {
		return errors.New("store has no backing directory")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	txs := s.sortedTransactions()
	if err := writeFile(filepath.Join(s.dir, transactionsFile), txs, WriteTransactions); err != nil {
		return err
	}

	checks := make([]model.DuplicateCheck, 0, len(s.checks))
	for _, c := range s.checks {
		checks = append(checks, c)
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].ID < checks[j].ID })
	return writeFile(filepath.Join(s.dir, checksFile), checks, WriteChecks)
}

func writeFile[T any](path string, items []T, write func(w io.Writer, items []T) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := write(f, items); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// AddTransaction inserts a transaction, assigning an id when t.ID is zero,
// and returns the stored value.
func (s *Store) AddTransaction(t model.Transaction) model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == 0 {
		t.ID = s.nextTxID
	}
	if t.ID >= s.nextTxID {
		s.nextTxID = t.ID + 1
	}
	s.transactions[t.ID] = t
	return t
}

// ListActive implements store.Store.
func (s *Store) ListActive(_ context.Context, ids []int64) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wanted map[int64]bool
	if len(ids) > 0 {
		wanted = make(map[int64]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}

	var out []model.Transaction
	for _, t := range s.sortedTransactions() {
		if t.IsDuplicate {
			continue
		}
		if wanted != nil && !wanted[t.ID] {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTransaction implements store.Store.
func (s *Store) GetTransaction(_ context.Context, id int64) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %d: %w", id, store.ErrTransactionNotFound)
	}
	return t, nil
}

// UpdateTransactionFlags implements store.Store.
func (s *Store) UpdateTransactionFlags(_ context.Context, id int64, upd store.FlagUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, store.ErrTransactionNotFound)
	}
	t.IsDuplicate = upd.IsDuplicate
	t.DuplicateOf = upd.DuplicateOf
	t.DuplicateChecked = upd.DuplicateChecked
	t.DuplicateCheckedAt = upd.DuplicateCheckedAt
	s.transactions[id] = t
	return nil
}

// InsertCheck implements store.Store.
func (s *Store) InsertCheck(_ context.Context, check model.DuplicateCheck) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(check.TransactionID1, check.TransactionID2)
	if _, exists := s.pairs[key]; exists {
		return false, nil
	}

	check.TransactionID1, check.TransactionID2 = key[0], key[1]
	if check.ID == 0 {
		check.ID = s.nextCheckID
	}
	if check.ID >= s.nextCheckID {
		s.nextCheckID = check.ID + 1
	}
	s.checks[check.ID] = check
	s.pairs[key] = check.ID
	return true, nil
}

// GetCheck implements store.Store.
func (s *Store) GetCheck(_ context.Context, id int64) (model.DuplicateCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCheck(id)
}

func (s *Store) getCheck(id int64) (model.DuplicateCheck, error) {
	c, ok := s.checks[id]
	if !ok {
		return model.DuplicateCheck{}, fmt.Errorf("check %d: %w", id, store.ErrCheckNotFound)
	}
	return c, nil
}

// ListPendingChecks implements store.Store.
func (s *Store) ListPendingChecks(_ context.Context, limit int) ([]model.DuplicateCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []model.DuplicateCheck
	for _, c := range s.checks {
		if c.Pending() {
			pending = append(pending, c)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].SimilarityScore != pending[j].SimilarityScore {
			return pending[i].SimilarityScore > pending[j].SimilarityScore
		}
		return pending[i].ID < pending[j].ID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// FindDecidedChecks implements store.Store.
func (s *Store) FindDecidedChecks(_ context.Context, txID int64, decision model.Decision) ([]model.DuplicateCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.DuplicateCheck
	for _, c := range s.checks {
		if c.References(txID) && c.Decision == decision {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecordDecision implements store.Store.
func (s *Store) RecordDecision(_ context.Context, checkID int64, decision model.Decision, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getCheck(checkID)
	if err != nil {
		return err
	}
	c.Decision = decision
	c.DecidedAt = at
	s.checks[checkID] = c
	return nil
}

// ResetDecision implements store.Store.
func (s *Store) ResetDecision(_ context.Context, checkID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getCheck(checkID)
	if err != nil {
		return err
	}
	c.Decision = model.DecisionPending
	c.DecidedAt = time.Time{}
	s.checks[checkID] = c
	return nil
}

// Counts implements store.Store.
func (s *Store) Counts(_ context.Context) (store.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts store.Counts
	counts.Transactions = len(s.transactions)
	for _, t := range s.transactions {
		if t.IsDuplicate {
			counts.Duplicates++
		}
	}
	counts.Checks = len(s.checks)
	for _, c := range s.checks {
		switch c.Decision {
		case model.DecisionPending:
			counts.Pending++
		case model.DecisionDuplicate:
			counts.ConfirmedDuplicate++
		case model.DecisionNotDuplicate:
			counts.ConfirmedNotDuplicate++
		case model.DecisionSkip:
			counts.Skipped++
		}
	}
	return counts, nil
}

// WithinTx implements store.Store. The unit of work runs against a clone of
// the ledger; the clone replaces the live state only when fn succeeds, so a
// failed operation leaves no partial effect.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := &Store{
		transactions: make(map[int64]model.Transaction, len(s.transactions)),
		checks:       make(map[int64]model.DuplicateCheck, len(s.checks)),
		pairs:        make(map[[2]int64]int64, len(s.pairs)),
		nextTxID:     s.nextTxID,
		nextCheckID:  s.nextCheckID,
	}
	for id, t := range s.transactions {
		clone.transactions[id] = t
	}
	for id, c := range s.checks {
		clone.checks[id] = c
	}
	for k, id := range s.pairs {
		clone.pairs[k] = id
	}

	if err := fn(ctx, clone); err != nil {
		return err
	}

	s.transactions = clone.transactions
	s.checks = clone.checks
	s.pairs = clone.pairs
	s.nextTxID = clone.nextTxID
	s.nextCheckID = clone.nextCheckID
	return nil
}

func (s *Store) sortedTransactions() []model.Transaction {
	txs := make([]model.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		txs = append(txs, t)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	return txs
}

func pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}
