package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doubletake-dev/doubletake/internal/model"
)

func pairIDs(ps []Pair) [][2]int64 {
	out := make([][2]int64, 0, len(ps))
	for _, p := range ps {
		a, b := p.A.ID, p.B.ID
		if a > b {
			a, b = b, a
		}
		out = append(out, [2]int64{a, b})
	}
	return out
}

func TestPairs_ExactDayBucketsWhenNoDateTolerance(t *testing.T) {
	opts := DefaultOptions()
	txs := []model.Transaction{
		tx(1, day(2025, time.January, 15), "-10.00"),
		tx(2, day(2025, time.January, 15), "-10.00"),
		tx(3, day(2025, time.January, 16), "-10.00"), // different day, never compared
	}

	got := pairIDs(pairs(txs, opts))
	assert.Equal(t, [][2]int64{{1, 2}}, got)
}

func TestPairs_MonthlyBucketsUnderDateTolerance(t *testing.T) {
	opts := Options{DateToleranceDays: 3, MinScore: 0.8}
	txs := []model.Transaction{
		tx(1, day(2025, time.January, 15), "-10.00"),
		tx(2, day(2025, time.January, 16), "-10.00"),
		tx(3, day(2025, time.February, 1), "-10.00"), // other month bucket
	}

	got := pairIDs(pairs(txs, opts))
	assert.Equal(t, [][2]int64{{1, 2}}, got)
}

func TestPairs_NeighborAmountBucketStraddle(t *testing.T) {
	// Bin width 1.00: 9.99 lands in bin 9, 10.01 in bin 10. The neighbor
	// comparison still produces the pair.
	opts := Options{AmountToleranceAbs: dec("1.00"), MinScore: 0.8}
	txs := []model.Transaction{
		tx(1, day(2025, time.January, 15), "-9.99"),
		tx(2, day(2025, time.January, 15), "-10.01"),
	}

	got := pairIDs(pairs(txs, opts))
	assert.Equal(t, [][2]int64{{1, 2}}, got)
}

func TestPairs_BeyondNeighborBucketNotCompared(t *testing.T) {
	// 10.00 (bin 10) and 12.50 (bin 12) are two bins apart; the bucketer
	// deliberately skips them regardless of matcher tolerances.
	opts := Options{AmountToleranceAbs: dec("1.00"), MinScore: 0.8}
	txs := []model.Transaction{
		tx(1, day(2025, time.January, 15), "-10.00"),
		tx(2, day(2025, time.January, 15), "-12.50"),
	}

	assert.Empty(t, pairs(txs, opts))
}

func TestPairs_PctOnlyFallsBackToFullPairwise(t *testing.T) {
	opts := Options{AmountTolerancePct: 2.0, MinScore: 0.8}
	txs := []model.Transaction{
		tx(1, day(2025, time.January, 15), "-10.00"),
		tx(2, day(2025, time.January, 15), "-500.00"),
		tx(3, day(2025, time.January, 15), "-999.99"),
	}

	got := pairIDs(pairs(txs, opts))
	assert.ElementsMatch(t, [][2]int64{{1, 2}, {1, 3}, {2, 3}}, got)
}

func TestPairs_NoSelfOrMirroredPairs(t *testing.T) {
	opts := Options{AmountToleranceAbs: dec("0.50"), MinScore: 0.8}
	txs := []model.Transaction{
		tx(1, day(2025, time.January, 15), "-10.00"),
		tx(2, day(2025, time.January, 15), "-10.10"),
		tx(3, day(2025, time.January, 15), "-10.20"),
		tx(4, day(2025, time.January, 15), "-10.60"),
	}

	seen := make(map[[2]int64]int)
	for _, p := range pairIDs(pairs(txs, opts)) {
		require.NotEqual(t, p[0], p[1], "self pair %v", p)
		seen[p]++
	}
	for p, n := range seen {
		assert.Equal(t, 1, n, "pair %v produced %d times", p, n)
	}
}

func TestPairs_ExactAmountBucketsByCents(t *testing.T) {
	opts := DefaultOptions()
	txs := []model.Transaction{
		tx(1, day(2025, time.January, 15), "-10.00"),
		tx(2, day(2025, time.January, 15), "-10.00"),
		tx(3, day(2025, time.January, 15), "-870.31"),
	}

	got := pairIDs(pairs(txs, opts))
	assert.Contains(t, got, [2]int64{1, 2})
	assert.NotContains(t, got, [2]int64{1, 3})
	assert.NotContains(t, got, [2]int64{2, 3})
}
