package solver

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/sat"
)

// giniSolver runs gini asynchronously and polls it. gini keeps its learnt clauses to itself, so this
// adapter only consumes shared clauses.
type giniSolver struct {
	base

	mu      sync.Mutex
	waiting [][]int64
}

func NewGiniSolver(id int, opts Options) Adapter {
	s := &giniSolver{}
	s.setup(id, "gini", opts)
	return s
}

func (s *giniSolver) Solve() Verdict {
	return s.run(func() Verdict {
		g := gini.NewV(int(s.formula.Variables))
		for _, i := range s.clauseOrder() {
			addClause(g, s.formula.Clauses[i])
		}
		for _, literals := range s.takeWaiting() {
			addClause(g, literals)
		}
		s.log.AdapterStarted(s.id, s.engine, s.seed)

		ticker := time.NewTicker(s.opts.InterruptPoll)
		defer ticker.Stop()
		for {
			solve := g.GoSolve()
			restart := false
			for !restart {
				if result, done := solve.Test(); done {
					return s.verdict(g, result)
				}
				if s.stopped() {
					solve.Stop()
					return Verdict{Status: Interrupted}
				}
				if s.hasWaiting() {
					if result := solve.Stop(); result != 0 {
						return s.verdict(g, result)
					}
					for _, literals := range s.takeWaiting() {
						addClause(g, literals)
					}
					restart = true
					continue
				}
				<-ticker.C
			}
		}
	})
}

// clauseOrder shuffles the clauses by seed so that gini members start from different watch
// layouts. Role 0 keeps the input order.
func (s *giniSolver) clauseOrder() []int {
	order := make([]int, len(s.formula.Clauses))
	for i := range order {
		order[i] = i
	}
	if s.role == 0 {
		return order
	}
	rng := rand.New(rand.NewPCG(uint64(s.seed), uint64(s.role)))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

func (s *giniSolver) verdict(g *gini.Gini, result int) Verdict {
	switch result {
	case 1:
		return Verdict{Status: Sat, Model: giniModel(g, s.formula)}
	case -1:
		return Verdict{Status: Unsat}
	}
	return s.undecided()
}

func (s *giniSolver) ImportClauses(clauses []*clause.Clause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range clauses {
		s.waiting = append(s.waiting, c.Literals())
	}
}

func (s *giniSolver) hasWaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting) > 0
}

func (s *giniSolver) takeWaiting() [][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	taken := s.waiting
	s.waiting = nil
	return taken
}

func addClause(g *gini.Gini, literals []int64) {
	for _, literal := range literals {
		g.Add(z.Dimacs2Lit(int(literal)))
	}
	g.Add(z.LitNull)
}

func giniModel(g *gini.Gini, formula *sat.SAT) sat.Model {
	model := make(sat.Model, formula.Variables)
	for v := int64(1); v <= int64(formula.Variables); v++ {
		model[v] = g.Value(z.Dimacs2Lit(int(v)))
	}
	return model
}
