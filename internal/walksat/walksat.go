// Package walksat implements WalkSAT local search. It can only ever prove satisfiability.
package walksat

import (
	"math/rand/v2"
	"sync"
)

type Options struct {
	Seed int64
	// Noise is the probability of a random walk move when every candidate breaks a clause.
	Noise float64
	// MaxFlips bounds the whole search. Zero or less means no bound.
	MaxFlips int
	// RestartEvery is the number of flips after which the assignment is re-drawn.
	RestartEvery int
	// StopEvery is how many flips may pass between two stop checks.
	StopEvery int
}

func DefaultOptions() Options {
	return Options{
		Noise:        0.5,
		MaxFlips:     10_000_000,
		RestartEvery: 100_000,
		StopEvery:    1024,
	}
}

type Stats struct {
	Flips    uint64
	Restarts uint64
}

type Solver struct {
	opts    Options
	rng     *rand.Rand
	nVars   int
	clauses [][]int
	// occurrences[lit] lists the clauses holding lit, lit encoded as 2v or 2v+1 for the negation.
	occurrences [][]int

	assignment []bool
	numTrue    []int
	unsat      []int
	unsatPos   []int

	hintMu sync.Mutex
	hints  map[int]bool
	fixed  map[int]bool

	candidates []int
	stats      Stats
}

func encode(literal int64) int {
	if literal < 0 {
		return 2*(int(-literal)-1) + 1
	}
	return 2 * (int(literal) - 1)
}

func New(variables int, clauses [][]int64, opts Options) *Solver {
	defaults := DefaultOptions()
	if opts.Noise <= 0 || opts.Noise > 1 {
		opts.Noise = defaults.Noise
	}
	if opts.RestartEvery <= 0 {
		opts.RestartEvery = defaults.RestartEvery
	}
	if opts.StopEvery <= 0 {
		opts.StopEvery = defaults.StopEvery
	}

	s := &Solver{
		opts:        opts,
		rng:         rand.New(rand.NewPCG(uint64(opts.Seed), 0x2545f4914f6cdd1d)),
		nVars:       variables,
		clauses:     make([][]int, len(clauses)),
		occurrences: make([][]int, 2*variables),
		assignment:  make([]bool, variables),
		numTrue:     make([]int, len(clauses)),
		unsatPos:    make([]int, len(clauses)),
		hints:       make(map[int]bool),
		fixed:       make(map[int]bool),
	}
	for i, clause := range clauses {
		s.clauses[i] = make([]int, len(clause))
		for j, literal := range clause {
			lit := encode(literal)
			s.clauses[i][j] = lit
			s.occurrences[lit] = append(s.occurrences[lit], i)
		}
	}
	return s
}

// Hint fixes the initial value of a variable for the next restarts. Safe to call while Solve runs.
func (s *Solver) Hint(literal int64) {
	v := encode(literal) / 2
	if v >= s.nVars {
		return
	}
	s.hintMu.Lock()
	s.hints[v] = literal > 0
	s.hintMu.Unlock()
}

func (s *Solver) Stats() Stats { return s.stats }

// Solve flips variables until every clause is satisfied, the flip budget runs out or stop returns
// true. It returns the model indexed by 0-based variable and whether one was found.
func (s *Solver) Solve(stop func() bool) ([]bool, bool) {
	s.restart()
	sinceRestart := 0
	for {
		if len(s.unsat) == 0 {
			model := make([]bool, s.nVars)
			copy(model, s.assignment)
			return model, true
		}
		if s.opts.MaxFlips > 0 && s.stats.Flips >= uint64(s.opts.MaxFlips) {
			return nil, false
		}
		if s.stats.Flips%uint64(s.opts.StopEvery) == 0 && stop() {
			return nil, false
		}
		if sinceRestart >= s.opts.RestartEvery {
			s.restart()
			sinceRestart = 0
		}

		clause := s.clauses[s.unsat[s.rng.IntN(len(s.unsat))]]
		if len(clause) == 0 {
			// An empty clause can never be satisfied; keep burning the budget so stop is honored.
			s.stats.Flips++
			sinceRestart++
			continue
		}
		s.flip(s.pick(clause))
		s.stats.Flips++
		sinceRestart++
	}
}

func (s *Solver) restart() {
	s.stats.Restarts++
	s.hintMu.Lock()
	for v, value := range s.hints {
		s.fixed[v] = value
	}
	s.hintMu.Unlock()

	for v := range s.assignment {
		if value, ok := s.fixed[v]; ok {
			s.assignment[v] = value
			continue
		}
		s.assignment[v] = s.rng.IntN(2) == 0
	}

	s.unsat = s.unsat[:0]
	for i, clause := range s.clauses {
		s.numTrue[i] = 0
		s.unsatPos[i] = -1
		for _, lit := range clause {
			if s.isTrue(lit) {
				s.numTrue[i]++
			}
		}
		if s.numTrue[i] == 0 {
			s.addUnsat(i)
		}
	}
}

func (s *Solver) isTrue(lit int) bool {
	return s.assignment[lit/2] == (lit%2 == 0)
}

// breaks counts the clauses that become unsatisfied when v flips.
func (s *Solver) breaks(v int) int {
	trueLit := 2 * v
	if !s.assignment[v] {
		trueLit++
	}
	count := 0
	for _, c := range s.occurrences[trueLit] {
		if s.numTrue[c] == 1 {
			count++
		}
	}
	return count
}

func (s *Solver) pick(clause []int) int {
	best := -1
	s.candidates = s.candidates[:0]
	for _, lit := range clause {
		v := lit / 2
		b := s.breaks(v)
		switch {
		case b == 0:
			return v
		case best < 0 || b < best:
			best = b
			s.candidates = append(s.candidates[:0], v)
		case b == best:
			s.candidates = append(s.candidates, v)
		}
	}
	if s.rng.Float64() < s.opts.Noise {
		return clause[s.rng.IntN(len(clause))] / 2
	}
	return s.candidates[s.rng.IntN(len(s.candidates))]
}

func (s *Solver) flip(v int) {
	wasTrue := 2 * v
	if !s.assignment[v] {
		wasTrue++
	}
	s.assignment[v] = !s.assignment[v]

	for _, c := range s.occurrences[wasTrue] {
		s.numTrue[c]--
		if s.numTrue[c] == 0 {
			s.addUnsat(c)
		}
	}
	for _, c := range s.occurrences[wasTrue^1] {
		s.numTrue[c]++
		if s.numTrue[c] == 1 {
			s.removeUnsat(c)
		}
	}
}

func (s *Solver) addUnsat(c int) {
	s.unsatPos[c] = len(s.unsat)
	s.unsat = append(s.unsat, c)
}

func (s *Solver) removeUnsat(c int) {
	pos := s.unsatPos[c]
	last := s.unsat[len(s.unsat)-1]
	s.unsat[pos] = last
	s.unsatPos[last] = pos
	s.unsat = s.unsat[:len(s.unsat)-1]
	s.unsatPos[c] = -1
}
