package dedup

import (
	"sort"

	"github.com/doubletake-dev/doubletake/internal/model"
)

// Candidate is one scored duplicate-candidate pair. A always carries the
// smaller transaction id.
type Candidate struct {
	A, B  model.Transaction
	Score float64
}

// Detect runs bucketing and matching over the working set and returns all
// admissible pairs meeting the score floor, sorted by score descending.
// Ties keep discovery order. Detect is pure: it never touches a store.
func Detect(txs []model.Transaction, opts Options) ([]Candidate, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var found []Candidate
	for _, p := range pairs(txs, opts) {
		if !Admissible(p.A, p.B, opts) {
			continue
		}
		score := Score(p.A, p.B, opts)
		if score < opts.MinScore {
			continue
		}
		a, b := p.A, p.B
		if a.ID > b.ID {
			a, b = b, a
		}
		found = append(found, Candidate{A: a, B: b, Score: score})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Score > found[j].Score
	})
	return found, nil
}
