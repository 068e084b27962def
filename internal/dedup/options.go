// Package dedup implements the duplicate detection engine: bucketing to keep
// pairwise comparison near-linear, a tolerance-based matcher, and a detector
// that produces scored candidate pairs.
package dedup

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidOptions is returned when detection options fail validation.
var ErrInvalidOptions = errors.New("invalid detection options")

// Options are the tunable parameters for one detection run.
type Options struct {
	// DateToleranceDays is the maximum day difference between a pair.
	// 0 means only same-day transactions can match.
	DateToleranceDays int
	// AmountToleranceAbs is the maximum absolute amount difference, in
	// currency units. Zero disables the absolute check.
	AmountToleranceAbs decimal.Decimal
	// AmountTolerancePct is the maximum amount difference as a percentage
	// of the pair's average magnitude. Zero disables the percentage check.
	// When both amount tolerances are zero, amounts must be exactly equal.
	AmountTolerancePct float64
	// MinScore is the similarity floor below which an admissible pair is
	// not reported. Must be within [0, 1].
	MinScore float64
}

// DefaultOptions returns the options used when a caller specifies nothing:
// exact date and amount matching with a 0.8 score floor.
func DefaultOptions() Options {
	return Options{MinScore: 0.8}
}

// Validate rejects options before any store or comparison work happens.
func (o Options) Validate() error {
	if o.DateToleranceDays < 0 {
		return fmt.Errorf("%w: date tolerance must be >= 0, got %d", ErrInvalidOptions, o.DateToleranceDays)
	}
	if o.AmountToleranceAbs.IsNegative() {
		return fmt.Errorf("%w: amount tolerance must be >= 0, got %s", ErrInvalidOptions, o.AmountToleranceAbs)
	}
	if o.AmountTolerancePct < 0 {
		return fmt.Errorf("%w: amount tolerance pct must be >= 0, got %g", ErrInvalidOptions, o.AmountTolerancePct)
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		return fmt.Errorf("%w: min score must be within [0, 1], got %g", ErrInvalidOptions, o.MinScore)
	}
	return nil
}

// exactAmount reports whether amounts must match bit-for-bit.
func (o Options) exactAmount() bool {
	return o.AmountToleranceAbs.IsZero() && o.AmountTolerancePct == 0
}
