package solver

import (
	"sync"

	"github.com/limaJavier/satportfolio/internal/walksat"
	"github.com/limaJavier/satportfolio/pkg/clause"
)

// walkSATSolver can only answer SAT; when its flips run out it reports Unknown.
type walkSATSolver struct {
	base

	mu      sync.Mutex
	search  *walksat.Solver
	waiting []int64
}

func NewWalkSATSolver(id int, opts Options) Adapter {
	s := &walkSATSolver{}
	s.setup(id, "walksat", opts)
	return s
}

func (s *walkSATSolver) noise() float64 {
	noise := s.opts.LocalSearch.Noise
	if s.role > 0 {
		// Spread the members over [0.3, 0.7).
		noise = 0.3 + 0.1*float64(s.role%4)
	}
	return noise
}

func (s *walkSATSolver) Solve() Verdict {
	return s.run(func() Verdict {
		opts := walksat.DefaultOptions()
		opts.Seed = s.seed
		opts.Noise = s.noise()
		if s.opts.LocalSearch.MaxFlips != 0 {
			opts.MaxFlips = s.opts.LocalSearch.MaxFlips
		}
		engine := walksat.New(int(s.formula.Variables), s.formula.Clauses, opts)

		s.mu.Lock()
		for _, literal := range s.waiting {
			engine.Hint(literal)
		}
		s.waiting = nil
		s.search = engine
		s.mu.Unlock()
		s.log.AdapterStarted(s.id, s.engine, s.seed)

		if assignment, found := engine.Solve(s.stopped); found {
			return Verdict{Status: Sat, Model: modelFromAssignment(assignment)}
		}
		return s.undecided()
	})
}

// ExportLearned always returns nothing: local search learns no clauses.
func (s *walkSATSolver) ExportLearned() []*clause.Clause { return nil }

// ImportClauses keeps the unit clauses only; they fix the starting value of their variable.
func (s *walkSATSolver) ImportClauses(clauses []*clause.Clause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clauses {
		if c.Len() != 1 {
			continue
		}
		if s.search != nil {
			s.search.Hint(c.Literals()[0])
		} else {
			s.waiting = append(s.waiting, c.Literals()[0])
		}
	}
}
