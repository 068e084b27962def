package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one row in the transaction ledger.
type Transaction struct {
	ID          int64
	Date        time.Time       // calendar date, no time-of-day semantics
	Amount      decimal.Decimal // negative = expense, positive = income
	Description string
	Category    string

	IsDuplicate        bool
	DuplicateOf        int64 // id of the original transaction, 0 = not set
	DuplicateChecked   bool
	DuplicateCheckedAt time.Time // zero = never reviewed
}

// DayDiff returns the absolute difference between two transaction dates in
// whole days, ignoring any time-of-day component.
func DayDiff(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	diff := int(da.Sub(db).Hours() / 24)
	if diff < 0 {
		diff = -diff
	}
	return diff
}

// Loser returns the transaction that should be flagged as the duplicate when
// a pair is confirmed: the later-dated one, or on a date tie the one with the
// larger id. The second return value is the surviving original.
func Loser(a, b Transaction) (loser, original Transaction) {
	if a.Date.After(b.Date) {
		return a, b
	}
	if b.Date.After(a.Date) {
		return b, a
	}
	if a.ID > b.ID {
		return a, b
	}
	return b, a
}
