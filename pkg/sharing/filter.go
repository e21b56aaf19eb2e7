package sharing

import (
	"slices"

	"github.com/limaJavier/satportfolio/pkg/clause"
)

const (
	minLBDLimit = 2
	raiseBelow  = 0.75
	lowerAbove  = 0.98
)

// lbdFilter is the per-producer admission policy. With adaptive limits a producer that shares too
// little gets a looser LBD limit next round and one that fills its literal budget a tighter one.
type lbdFilter struct {
	maxSize  int
	adaptive bool
	initial  int
	budget   int
	limits   map[int]int
}

func newLBDFilter(cfg Config) *lbdFilter {
	return &lbdFilter{
		maxSize:  cfg.MaxClauseSize,
		adaptive: cfg.Adaptive,
		initial:  max(cfg.InitialLBD, minLBDLimit),
		budget:   cfg.LiteralsPerRound,
		limits:   make(map[int]int),
	}
}

func (f *lbdFilter) limit(producer int) int {
	if limit, ok := f.limits[producer]; ok {
		return limit
	}
	return f.initial
}

// admit splits one producer's exports of a round into kept and filtered clauses, both in export
// order. Under adaptive limits the best clauses are chosen first until the literal budget runs out.
func (f *lbdFilter) admit(producer int, exported []*clause.Clause) (kept, filtered []*clause.Clause) {
	admitted := make([]bool, len(exported))
	ranked := make([]int, len(exported))
	for i := range ranked {
		ranked[i] = i
	}
	if f.adaptive {
		slices.SortStableFunc(ranked, func(a, b int) int {
			switch {
			case clause.Worse(exported[b], exported[a]):
				return -1
			case clause.Worse(exported[a], exported[b]):
				return 1
			}
			return 0
		})
	}

	limit := f.limit(producer)
	literals := 0
	for _, i := range ranked {
		c := exported[i]
		if f.maxSize > 0 && c.Len() > f.maxSize {
			continue
		}
		if f.adaptive {
			if c.LBD() > limit || (f.budget > 0 && literals+c.Len() > f.budget) {
				continue
			}
			literals += c.Len()
		}
		admitted[i] = true
	}

	for i, c := range exported {
		if admitted[i] {
			kept = append(kept, c)
		} else {
			filtered = append(filtered, c)
		}
	}
	return kept, filtered
}

// adjust moves a producer's limit after a round in which it got literals through.
func (f *lbdFilter) adjust(producer int, literals int) {
	if !f.adaptive || f.budget <= 0 {
		return
	}
	limit := f.limit(producer)
	switch {
	case float64(literals) < raiseBelow*float64(f.budget):
		limit++
	case float64(literals) > lowerAbove*float64(f.budget):
		limit = max(limit-1, minLBDLimit)
	}
	f.limits[producer] = limit
}
