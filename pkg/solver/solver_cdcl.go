package solver

import (
	"sync"

	"github.com/limaJavier/satportfolio/internal/cdcl"
	"github.com/limaJavier/satportfolio/pkg/clause"
)

type cdclSolver struct {
	base

	mu      sync.Mutex
	search  *cdcl.Solver
	waiting []*clause.Clause
}

func NewCDCLSolver(id int, opts Options) Adapter {
	s := &cdclSolver{}
	s.setup(id, "cdcl", opts)
	return s
}

// options derives the search parameters of a role. Roles beyond the fixed variants keep cycling
// through them with perturbed activities.
func (s *cdclSolver) options() cdcl.Options {
	opts := cdcl.DefaultOptions()
	opts.Seed = s.seed
	switch s.role % 4 {
	case 1:
		opts.Restart = cdcl.RestartGeometric
		opts.InitialPhase = cdcl.PhasePositive
	case 2:
		opts.InitialPhase = cdcl.PhaseRandom
		opts.RandomActivity = true
	case 3:
		opts.Restart = cdcl.RestartGeometric
		opts.RandomFreq = 0.02
		opts.RestartBase = 50
	}
	if s.role >= 4 {
		opts.RandomActivity = true
	}
	return opts
}

func (s *cdclSolver) Solve() Verdict {
	return s.run(func() Verdict {
		engine := s.build()
		s.log.AdapterStarted(s.id, s.engine, s.seed)

		switch engine.Solve(s.stopped) {
		case cdcl.Sat:
			return Verdict{Status: Sat, Model: modelFromAssignment(engine.Model())}
		case cdcl.Unsat:
			return Verdict{Status: Unsat}
		}
		return s.undecided()
	})
}

func (s *cdclSolver) build() *cdcl.Solver {
	engine := cdcl.New(int(s.formula.Variables), s.options())
	for _, literals := range s.formula.Clauses {
		if !engine.AddClause(literals) {
			break
		}
	}
	engine.OnLearnt(s.offer)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.waiting {
		engine.Import(c.Literals(), c.LBD())
	}
	s.waiting = nil
	s.search = engine
	return engine
}

// ImportClauses queues clauses for the engine's next restart. Clauses arriving before the engine
// exists wait in the adapter.
func (s *cdclSolver) ImportClauses(clauses []*clause.Clause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.search == nil {
		s.waiting = append(s.waiting, clauses...)
		return
	}
	for _, c := range clauses {
		s.search.Import(c.Literals(), c.LBD())
	}
}
