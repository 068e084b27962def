package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the recorded outcome of human review on a duplicate check.
type Decision string

const (
	// DecisionPending means no decision has been recorded yet.
	DecisionPending Decision = ""
	// DecisionDuplicate confirms the pair as an accidental duplicate.
	DecisionDuplicate Decision = "duplicate"
	// DecisionNotDuplicate marks the pair as a legitimate repeat.
	DecisionNotDuplicate Decision = "not_duplicate"
	// DecisionSkip removes the pair from the review queue without marking
	// either transaction as reviewed.
	DecisionSkip Decision = "skip"
)

// Valid reports whether d is a decision a caller may record.
func (d Decision) Valid() bool {
	switch d {
	case DecisionDuplicate, DecisionNotDuplicate, DecisionSkip:
		return true
	}
	return false
}

// DuplicateCheck is one row in the decision ledger: a candidate pair of
// transactions, the detection parameters and score that produced it, and the
// review decision once one has been made.
//
// TransactionID1 is always the smaller of the two ids, so the unordered pair
// has exactly one stored representation.
type DuplicateCheck struct {
	ID             int64
	TransactionID1 int64
	TransactionID2 int64

	DateToleranceDays  int
	AmountToleranceAbs decimal.Decimal
	AmountTolerancePct float64
	SimilarityScore    float64
	DetectedAt         time.Time

	Decision  Decision
	DecidedAt time.Time // zero while pending
}

// Pending reports whether the check is still awaiting review.
func (c DuplicateCheck) Pending() bool {
	return c.Decision == DecisionPending
}

// References reports whether either side of the pair is txID.
func (c DuplicateCheck) References(txID int64) bool {
	return c.TransactionID1 == txID || c.TransactionID2 == txID
}

// Other returns the id on the opposite side of the pair from txID.
func (c DuplicateCheck) Other(txID int64) int64 {
	if c.TransactionID1 == txID {
		return c.TransactionID2
	}
	return c.TransactionID1
}
