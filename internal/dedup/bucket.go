package dedup

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/doubletake-dev/doubletake/internal/model"
)

// Pair is one unordered comparison candidate produced by bucketing.
// It has not yet been through the matcher.
type Pair struct {
	A, B model.Transaction
}

// dateKey groups transactions by exact day, or by month when the date
// tolerance allows cross-day matches (the matcher re-checks the precise day
// difference either way).
type dateKey struct {
	year  int
	month time.Month
	day   int // 0 when bucketing monthly
}

var cents = decimal.NewFromInt(100)

// pairs returns all comparison candidates for the working set under opts,
// free of self-pairs and (a,b)/(b,a) repeats, in a deterministic order.
//
// Amount buckets are compared against themselves and their single next-higher
// neighbor. When only a percentage tolerance is configured, amount bucketing
// is disabled for the date group because a relative tolerance cannot be
// pre-binned.
func pairs(txs []model.Transaction, opts Options) []Pair {
	byDate := make(map[dateKey][]model.Transaction)
	for _, t := range txs {
		k := dateKey{year: t.Date.Year(), month: t.Date.Month()}
		if opts.DateToleranceDays == 0 {
			k.day = t.Date.Day()
		}
		byDate[k] = append(byDate[k], t)
	}

	dateKeys := make([]dateKey, 0, len(byDate))
	for k := range byDate {
		dateKeys = append(dateKeys, k)
	}
	sort.Slice(dateKeys, func(i, j int) bool {
		a, b := dateKeys[i], dateKeys[j]
		if a.year != b.year {
			return a.year < b.year
		}
		if a.month != b.month {
			return a.month < b.month
		}
		return a.day < b.day
	})

	var out []Pair
	for _, k := range dateKeys {
		group := byDate[k]
		if len(group) < 2 {
			continue
		}
		if !opts.exactAmount() && opts.AmountToleranceAbs.IsZero() {
			// Percentage-only tolerance: full pairwise within the date group.
			out = appendAllPairs(out, group)
			continue
		}
		out = appendAmountBucketPairs(out, group, opts)
	}
	return out
}

// amountKey bins |amount| either by exact cents or by bins the width of the
// absolute tolerance.
func amountKey(amount decimal.Decimal, opts Options) int64 {
	abs := amount.Abs()
	if opts.exactAmount() {
		return abs.Mul(cents).Round(0).IntPart()
	}
	return abs.Div(opts.AmountToleranceAbs).Floor().IntPart()
}

func appendAmountBucketPairs(out []Pair, group []model.Transaction, opts Options) []Pair {
	buckets := make(map[int64][]model.Transaction)
	for _, t := range group {
		k := amountKey(t.Amount, opts)
		buckets[k] = append(buckets[k], t)
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		bucket := buckets[k]
		out = appendAllPairs(out, bucket)

		// True matches can straddle a bin boundary; compare against the
		// single next-higher bucket. Anything further apart than one bin
		// width exceeds the absolute tolerance anyway.
		if neighbor, ok := buckets[k+1]; ok {
			for _, a := range bucket {
				for _, b := range neighbor {
					out = append(out, Pair{A: a, B: b})
				}
			}
		}
	}
	return out
}

func appendAllPairs(out []Pair, group []model.Transaction) []Pair {
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			out = append(out, Pair{A: group[i], B: group[j]})
		}
	}
	return out
}
