// Package cdcl is a conflict-driven clause-learning solver built to run inside a portfolio: it
// reports every learnt clause with its LBD, accepts clauses from other solvers while running and
// polls a stop function at a bounded cadence.
package cdcl

import (
	"math/rand/v2"
	"slices"
	"sync"
)

type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "SAT"
	case Unsat:
		return "UNSAT"
	}
	return "UNKNOWN"
}

type Phase int

const (
	PhaseNegative Phase = iota
	PhasePositive
	PhaseRandom
)

type Options struct {
	Seed int64
	// RandomFreq is the probability of a random decision instead of the most active variable.
	RandomFreq float64
	// RandomActivity perturbs the initial activities so equal-seeded runs still diverge by seed.
	RandomActivity bool
	InitialPhase   Phase
	Restart        RestartPolicy
	RestartBase    int
	VarDecay       float64
	ClauseDecay    float64
	// StopEvery is how many decisions may pass between two stop checks. Conflicts always check.
	StopEvery int
}

func DefaultOptions() Options {
	return Options{
		RestartBase: 100,
		VarDecay:    0.95,
		ClauseDecay: 0.999,
		StopEvery:   256,
	}
}

type Stats struct {
	Decisions    uint64
	Conflicts    uint64
	Propagations uint64
	Restarts     uint64
	Learnt       uint64
	Imported     uint64
	Reductions   uint64
}

type imported struct {
	lits []Lit
	lbd  int
}

type searchOutcome int

const (
	searchSat searchOutcome = iota
	searchUnsat
	searchRestart
	searchStopped
)

type Solver struct {
	opts  Options
	rng   *rand.Rand
	nVars int
	ok    bool

	clauses []*clause
	learnts []*clause
	watches [][]watcher

	assigns  []int8
	level    []int
	reason   []*clause
	trail    []Lit
	trailLim []int
	qhead    int

	activity []float64
	varInc   float64
	claInc   float64
	order    *varOrder
	polarity []bool

	seen       []bool
	levelStamp []uint64
	stamp      uint64

	maxLearnts float64
	model      []bool

	onLearnt func(literals []int64, lbd int)

	importMu sync.Mutex
	imports  []imported

	stats Stats
}

func New(variables int, opts Options) *Solver {
	defaults := DefaultOptions()
	if opts.RestartBase <= 0 {
		opts.RestartBase = defaults.RestartBase
	}
	if opts.VarDecay <= 0 || opts.VarDecay >= 1 {
		opts.VarDecay = defaults.VarDecay
	}
	if opts.ClauseDecay <= 0 || opts.ClauseDecay >= 1 {
		opts.ClauseDecay = defaults.ClauseDecay
	}
	if opts.StopEvery <= 0 {
		opts.StopEvery = defaults.StopEvery
	}

	s := &Solver{
		opts:       opts,
		rng:        rand.New(rand.NewPCG(uint64(opts.Seed), 0x9e3779b97f4a7c15)),
		nVars:      variables,
		ok:         true,
		watches:    make([][]watcher, 2*variables),
		assigns:    make([]int8, variables),
		level:      make([]int, variables),
		reason:     make([]*clause, variables),
		trail:      make([]Lit, 0, variables),
		activity:   make([]float64, variables),
		varInc:     1,
		claInc:     1,
		polarity:   make([]bool, variables),
		seen:       make([]bool, variables),
		levelStamp: make([]uint64, variables+1),
	}
	s.order = newVarOrder(s.activity)

	for v := range variables {
		if opts.RandomActivity {
			s.activity[v] = s.rng.Float64() * 0.00001
		}
		switch opts.InitialPhase {
		case PhasePositive:
			s.polarity[v] = false
		case PhaseRandom:
			s.polarity[v] = s.rng.IntN(2) == 0
		default:
			s.polarity[v] = true
		}
	}
	for v := range variables {
		s.order.insert(v)
	}
	return s
}

// OnLearnt registers a callback receiving every learnt clause in DIMACS literals. It runs on the
// solving goroutine.
func (s *Solver) OnLearnt(callback func(literals []int64, lbd int)) {
	s.onLearnt = callback
}

func (s *Solver) Variables() int { return s.nVars }

func (s *Solver) Stats() Stats { return s.stats }

// AddClause adds a problem clause before solving and reports false once the formula is known to be
// unsatisfiable.
func (s *Solver) AddClause(literals []int64) bool {
	if !s.ok {
		return false
	}
	s.cancelUntil(0)
	lits, valid := s.convert(literals)
	if !valid {
		return s.ok
	}
	if !s.addAtRoot(lits, false, 0) || s.propagate() != nil {
		s.ok = false
	}
	return s.ok
}

// Import queues a clause learnt elsewhere. Safe to call while Solve runs; the clause is added at
// decision level 0 at the next restart.
func (s *Solver) Import(literals []int64, lbd int) {
	lits, valid := s.convert(literals)
	if !valid {
		return
	}
	s.importMu.Lock()
	s.imports = append(s.imports, imported{lits: lits, lbd: lbd})
	s.importMu.Unlock()
}

// Model returns the satisfying assignment indexed by 0-based variable after Solve returned Sat.
func (s *Solver) Model() []bool {
	return s.model
}

// Solve searches until the formula is decided or stop returns true.
func (s *Solver) Solve(stop func() bool) Result {
	if !s.ok {
		return Unsat
	}
	s.cancelUntil(0)
	s.maxLearnts = max(float64(len(s.clauses))/3, 2000)

	for restart := 0; ; restart++ {
		if !s.integrateImports() {
			return Unsat
		}
		if stop() {
			return Unknown
		}

		switch s.search(conflictBudget(s.opts.Restart, s.opts.RestartBase, restart), stop) {
		case searchSat:
			s.model = make([]bool, s.nVars)
			for v := range s.nVars {
				s.model[v] = s.assigns[v] == lTrue
			}
			s.cancelUntil(0)
			return Sat
		case searchUnsat:
			s.ok = false
			return Unsat
		case searchStopped:
			s.cancelUntil(0)
			return Unknown
		}

		s.stats.Restarts++
		s.maxLearnts *= 1.05
	}
}

func (s *Solver) search(budget int, stop func() bool) searchOutcome {
	conflicts := 0
	for {
		if conflict := s.propagate(); conflict != nil {
			s.stats.Conflicts++
			conflicts++
			if s.decisionLevel() == 0 {
				return searchUnsat
			}
			if stop() {
				return searchStopped
			}

			learnt, backtrack := s.analyze(conflict)
			lbd := s.computeLBD(learnt)
			s.cancelUntil(backtrack)
			s.record(learnt, lbd)
			s.varInc /= s.opts.VarDecay
			s.claInc /= s.opts.ClauseDecay
			continue
		}

		if conflicts >= budget {
			s.cancelUntil(0)
			return searchRestart
		}
		if float64(len(s.learnts)-len(s.trail)) >= s.maxLearnts {
			s.reduceDB()
		}

		s.stats.Decisions++
		if s.stats.Decisions%uint64(s.opts.StopEvery) == 0 && stop() {
			return searchStopped
		}
		next := s.pickBranch()
		if next == litUndef {
			return searchSat
		}
		s.trailLim = append(s.trailLim, len(s.trail))
		s.enqueue(next, nil)
	}
}

func (s *Solver) convert(literals []int64) ([]Lit, bool) {
	lits := make([]Lit, 0, len(literals))
	for _, literal := range literals {
		if literal == 0 {
			continue
		}
		lit := FromDimacs(literal)
		if lit.Var() >= s.nVars {
			return nil, false
		}
		lits = append(lits, lit)
	}
	return lits, true
}

// addAtRoot simplifies lits against the level-0 assignment and attaches what remains. Reports false
// when the clause is falsified.
func (s *Solver) addAtRoot(lits []Lit, learnt bool, lbd int) bool {
	slices.Sort(lits)
	lits = slices.Compact(lits)

	kept := make([]Lit, 0, len(lits))
	for i, lit := range lits {
		if i > 0 && lit == lits[i-1].Not() {
			return true
		}
		switch s.value(lit) {
		case lTrue:
			return true
		case lUndef:
			kept = append(kept, lit)
		}
	}

	switch len(kept) {
	case 0:
		return false
	case 1:
		s.enqueue(kept[0], nil)
		return true
	}

	c := &clause{lits: kept, learnt: learnt, lbd: max(lbd, 1)}
	s.attach(c)
	if learnt {
		s.learnts = append(s.learnts, c)
	} else {
		s.clauses = append(s.clauses, c)
	}
	return true
}

func (s *Solver) integrateImports() bool {
	s.importMu.Lock()
	pending := s.imports
	s.imports = nil
	s.importMu.Unlock()

	for _, imp := range pending {
		s.stats.Imported++
		if !s.addAtRoot(imp.lits, true, imp.lbd) {
			s.ok = false
			return false
		}
	}
	if s.propagate() != nil {
		s.ok = false
	}
	return s.ok
}

func (s *Solver) attach(c *clause) {
	s.watches[c.lits[0]] = append(s.watches[c.lits[0]], watcher{c: c, blocker: c.lits[1]})
	s.watches[c.lits[1]] = append(s.watches[c.lits[1]], watcher{c: c, blocker: c.lits[0]})
}

func (s *Solver) value(lit Lit) int8 {
	value := s.assigns[lit.Var()]
	if lit.Negative() {
		return -value
	}
	return value
}

func (s *Solver) decisionLevel() int { return len(s.trailLim) }

func (s *Solver) enqueue(lit Lit, from *clause) {
	v := lit.Var()
	if lit.Negative() {
		s.assigns[v] = lFalse
	} else {
		s.assigns[v] = lTrue
	}
	s.level[v] = s.decisionLevel()
	s.reason[v] = from
	s.trail = append(s.trail, lit)
}

// propagate runs unit propagation over the trail and returns the conflicting clause, if any. The
// literal implied by a clause is always moved to position 0.
func (s *Solver) propagate() *clause {
	for s.qhead < len(s.trail) {
		falseLit := s.trail[s.qhead].Not()
		s.qhead++
		s.stats.Propagations++

		ws := s.watches[falseLit]
		i, j := 0, 0
		for i < len(ws) {
			w := ws[i]
			i++
			if w.c.deleted {
				continue
			}
			if s.value(w.blocker) == lTrue {
				ws[j] = w
				j++
				continue
			}

			c := w.c
			if c.lits[0] == falseLit {
				c.lits[0], c.lits[1] = c.lits[1], c.lits[0]
			}
			first := c.lits[0]
			kept := watcher{c: c, blocker: first}
			if first != w.blocker && s.value(first) == lTrue {
				ws[j] = kept
				j++
				continue
			}

			moved := false
			for k := 2; k < len(c.lits); k++ {
				if s.value(c.lits[k]) != lFalse {
					c.lits[1], c.lits[k] = c.lits[k], c.lits[1]
					s.watches[c.lits[1]] = append(s.watches[c.lits[1]], kept)
					moved = true
					break
				}
			}
			if moved {
				continue
			}

			ws[j] = kept
			j++
			if s.value(first) == lFalse {
				for i < len(ws) {
					ws[j] = ws[i]
					i++
					j++
				}
				s.watches[falseLit] = ws[:j]
				s.qhead = len(s.trail)
				return c
			}
			s.enqueue(first, c)
		}
		s.watches[falseLit] = ws[:j]
	}
	return nil
}

// analyze derives the first-UIP clause of a conflict. The asserting literal comes first and the
// literal of the backtrack level second.
func (s *Solver) analyze(conflict *clause) ([]Lit, int) {
	learnt := []Lit{litUndef}
	pending := 0
	p := litUndef
	index := len(s.trail) - 1

	for {
		if conflict.learnt {
			s.bumpClause(conflict)
		}
		start := 0
		if p != litUndef {
			start = 1
		}
		for _, q := range conflict.lits[start:] {
			v := q.Var()
			if s.seen[v] || s.level[v] == 0 {
				continue
			}
			s.bumpVar(v)
			s.seen[v] = true
			if s.level[v] >= s.decisionLevel() {
				pending++
			} else {
				learnt = append(learnt, q)
			}
		}

		for !s.seen[s.trail[index].Var()] {
			index--
		}
		p = s.trail[index]
		index--
		conflict = s.reason[p.Var()]
		s.seen[p.Var()] = false
		pending--
		if pending <= 0 {
			break
		}
	}
	learnt[0] = p.Not()

	toClear := slices.Clone(learnt[1:])
	learnt = s.minimize(learnt)
	for _, lit := range toClear {
		s.seen[lit.Var()] = false
	}

	backtrack := 0
	if len(learnt) > 1 {
		highest := 1
		for i := 2; i < len(learnt); i++ {
			if s.level[learnt[i].Var()] > s.level[learnt[highest].Var()] {
				highest = i
			}
		}
		learnt[1], learnt[highest] = learnt[highest], learnt[1]
		backtrack = s.level[learnt[1].Var()]
	}
	return learnt, backtrack
}

// minimize drops literals whose reason is subsumed by the rest of the clause.
func (s *Solver) minimize(learnt []Lit) []Lit {
	j := 1
	for i := 1; i < len(learnt); i++ {
		r := s.reason[learnt[i].Var()]
		if r == nil {
			learnt[j] = learnt[i]
			j++
			continue
		}
		for _, q := range r.lits[1:] {
			if !s.seen[q.Var()] && s.level[q.Var()] > 0 {
				learnt[j] = learnt[i]
				j++
				break
			}
		}
	}
	return learnt[:j]
}

func (s *Solver) computeLBD(lits []Lit) int {
	s.stamp++
	lbd := 0
	for _, lit := range lits {
		level := s.level[lit.Var()]
		if s.levelStamp[level] != s.stamp {
			s.levelStamp[level] = s.stamp
			lbd++
		}
	}
	return lbd
}

func (s *Solver) record(learnt []Lit, lbd int) {
	s.stats.Learnt++
	if s.onLearnt != nil {
		literals := make([]int64, len(learnt))
		for i, lit := range learnt {
			literals[i] = lit.Dimacs()
		}
		s.onLearnt(literals, lbd)
	}

	if len(learnt) == 1 {
		s.enqueue(learnt[0], nil)
		return
	}
	c := &clause{lits: learnt, learnt: true, lbd: lbd}
	s.attach(c)
	s.learnts = append(s.learnts, c)
	s.bumpClause(c)
	s.enqueue(learnt[0], c)
}

func (s *Solver) cancelUntil(level int) {
	if s.decisionLevel() <= level {
		return
	}
	for i := len(s.trail) - 1; i >= s.trailLim[level]; i-- {
		v := s.trail[i].Var()
		s.polarity[v] = s.trail[i].Negative()
		s.assigns[v] = lUndef
		s.reason[v] = nil
		s.order.insert(v)
	}
	s.trail = s.trail[:s.trailLim[level]]
	s.trailLim = s.trailLim[:level]
	s.qhead = len(s.trail)
}

func (s *Solver) pickBranch() Lit {
	if s.opts.RandomFreq > 0 && s.nVars > 0 && s.rng.Float64() < s.opts.RandomFreq {
		v := s.rng.IntN(s.nVars)
		if s.assigns[v] == lUndef {
			return mkLit(v, s.polarity[v])
		}
	}
	for !s.order.empty() {
		v := s.order.removeMax()
		if s.assigns[v] == lUndef {
			return mkLit(v, s.polarity[v])
		}
	}
	return litUndef
}

func (s *Solver) bumpVar(v int) {
	s.activity[v] += s.varInc
	if s.activity[v] > 1e100 {
		for i := range s.activity {
			s.activity[i] *= 1e-100
		}
		s.varInc *= 1e-100
	}
	s.order.increased(v)
}

func (s *Solver) bumpClause(c *clause) {
	c.activity += s.claInc
	if c.activity > 1e20 {
		for _, learnt := range s.learnts {
			learnt.activity *= 1e-20
		}
		s.claInc *= 1e-20
	}
}

func (s *Solver) locked(c *clause) bool {
	first := c.lits[0]
	return s.reason[first.Var()] == c && s.value(first) == lTrue
}

// reduceDB removes half of the learnt clauses, worst LBD and least active first. Glue clauses
// (LBD 2 or less) and reasons of current assignments stay.
func (s *Solver) reduceDB() {
	s.stats.Reductions++
	slices.SortFunc(s.learnts, func(a, b *clause) int {
		if a.lbd != b.lbd {
			return a.lbd - b.lbd
		}
		switch {
		case a.activity > b.activity:
			return -1
		case a.activity < b.activity:
			return 1
		}
		return 0
	})

	half := len(s.learnts) / 2
	kept := s.learnts[:0]
	for i, c := range s.learnts {
		if i >= half && c.lbd > 2 && !s.locked(c) {
			c.deleted = true
			continue
		}
		kept = append(kept, c)
	}
	clear(s.learnts[len(kept):])
	s.learnts = kept

	for lit, ws := range s.watches {
		s.watches[lit] = slices.DeleteFunc(ws, func(w watcher) bool { return w.c.deleted })
	}
}
