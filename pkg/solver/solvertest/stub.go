// Package solvertest provides a scripted solver.Adapter for exercising portfolio coordination
// without running a real engine.
package solvertest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/solver"
)

// Stub returns Verdict after Delay unless interrupted first. Configure it before Solve starts.
type Stub struct {
	Verdict solver.Verdict
	Delay   time.Duration
	// Block makes Solve wait for an interrupt whatever Delay says.
	Block bool
	// IgnoreInterrupt makes Solve sleep the whole Delay and then return Verdict.
	IgnoreInterrupt bool
	// Echo re-exports every imported clause unchanged.
	Echo bool

	id     int
	engine string

	mu       sync.Mutex
	formula  *sat.SAT
	seed     int64
	role     int
	exports  []*clause.Clause
	imported []*clause.Clause

	started     chan struct{}
	startOnce   sync.Once
	interrupted chan struct{}
	stopOnce    sync.Once
	interrupts  atomic.Int32
	finished    atomic.Bool
}

func NewStub(id int, verdict solver.Verdict) *Stub {
	return &Stub{
		Verdict:     verdict,
		id:          id,
		engine:      "stub",
		started:     make(chan struct{}),
		interrupted: make(chan struct{}),
	}
}

func (s *Stub) ID() int { return s.id }

func (s *Stub) Engine() string { return s.engine }

func (s *Stub) LoadFormula(formula sat.SAT) error {
	if err := formula.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formula = &formula
	return nil
}

func (s *Stub) Diversify(seed int64, role int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	s.role = role
}

func (s *Stub) Solve() solver.Verdict {
	s.startOnce.Do(func() { close(s.started) })
	defer s.finished.Store(true)

	switch {
	case s.IgnoreInterrupt:
		time.Sleep(s.Delay)
		return s.Verdict
	case s.Block:
		<-s.interrupted
		return solver.Verdict{Status: solver.Interrupted}
	}

	select {
	case <-s.interrupted:
		return solver.Verdict{Status: solver.Interrupted}
	default:
	}
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return s.Verdict
	case <-s.interrupted:
		return solver.Verdict{Status: solver.Interrupted}
	}
}

// Queue adds clauses to be returned by the next ExportLearned.
func (s *Stub) Queue(clauses ...*clause.Clause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports = append(s.exports, clauses...)
}

func (s *Stub) ExportLearned() []*clause.Clause {
	s.mu.Lock()
	defer s.mu.Unlock()
	exports := s.exports
	s.exports = nil
	return exports
}

func (s *Stub) PendingExports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exports)
}

func (s *Stub) ImportClauses(clauses []*clause.Clause) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imported = append(s.imported, clauses...)
	if s.Echo {
		for _, c := range clauses {
			s.exports = append(s.exports, clause.New(c.Literals(), c.LBD(), s.id))
		}
	}
}

func (s *Stub) Interrupt() {
	s.interrupts.Add(1)
	s.stopOnce.Do(func() { close(s.interrupted) })
}

// Imported returns every clause handed to the stub so far.
func (s *Stub) Imported() []*clause.Clause {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*clause.Clause(nil), s.imported...)
}

func (s *Stub) Interrupted() bool { return s.interrupts.Load() > 0 }

func (s *Stub) Interrupts() int { return int(s.interrupts.Load()) }

// Started is closed when Solve is first entered.
func (s *Stub) Started() <-chan struct{} { return s.started }

func (s *Stub) Finished() bool { return s.finished.Load() }

func (s *Stub) Formula() *sat.SAT {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formula
}

func (s *Stub) Diversification() (int64, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed, s.role
}
