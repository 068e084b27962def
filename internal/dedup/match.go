package dedup

import (
	"github.com/shopspring/decimal"

	"github.com/doubletake-dev/doubletake/internal/model"
)

// Score weights. Amount agreement matters more than date proximity because
// recurring bills repeat amounts on different days, while true double-imports
// repeat both.
const (
	dateWeight   = 0.4
	amountWeight = 0.6
)

var two = decimal.NewFromInt(2)

// Admissible applies the hard tolerance filters to a pair. The result is
// symmetric in a and b.
func Admissible(a, b model.Transaction, opts Options) bool {
	if model.DayDiff(a.Date, b.Date) > opts.DateToleranceDays {
		return false
	}

	if opts.exactAmount() {
		return a.Amount.Equal(b.Amount)
	}

	diff := a.Amount.Sub(b.Amount).Abs()
	if opts.AmountToleranceAbs.IsPositive() && diff.GreaterThan(opts.AmountToleranceAbs) {
		return false
	}
	if opts.AmountTolerancePct > 0 {
		avg := a.Amount.Abs().Add(b.Amount.Abs()).Div(two)
		if avg.IsZero() {
			return diff.IsZero()
		}
		pct := diff.Div(avg).InexactFloat64() * 100
		if pct > opts.AmountTolerancePct {
			return false
		}
	}
	return true
}

// Score computes the continuous similarity for a pair, in [0, 1].
// It does not check admissibility.
func Score(a, b model.Transaction, opts Options) float64 {
	return dateWeight*dateSimilarity(a, b, opts) + amountWeight*amountSimilarity(a, b)
}

func dateSimilarity(a, b model.Transaction, opts Options) float64 {
	dayDiff := model.DayDiff(a.Date, b.Date)
	if opts.DateToleranceDays > 0 {
		return 1 - float64(dayDiff)/float64(opts.DateToleranceDays+1)
	}
	if dayDiff == 0 {
		return 1
	}
	return 0
}

func amountSimilarity(a, b model.Transaction) float64 {
	maxAbs := decimal.Max(a.Amount.Abs(), b.Amount.Abs())
	if maxAbs.IsZero() {
		return 1
	}
	diff := a.Amount.Sub(b.Amount).Abs()
	return 1 - diff.Div(maxAbs).InexactFloat64()
}
