package solver

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

// base carries what every adapter shares. Only the interrupt flag and the export buffer are
// touched from other goroutines.
type base struct {
	id      int
	engine  string
	opts    Options
	log     *synclog.Log
	seed    int64
	role    int
	formula *sat.SAT

	interrupted atomic.Bool
	exports     exportBuffer
}

func (b *base) setup(id int, engine string, opts Options) {
	opts = opts.withDefaults()
	b.id = id
	b.engine = engine
	b.opts = opts
	b.log = opts.Log.With(engine)
}

func (b *base) ID() int { return b.id }

func (b *base) Engine() string { return b.engine }

func (b *base) LoadFormula(formula sat.SAT) error {
	if err := formula.Validate(); err != nil {
		return err
	}
	b.formula = &formula
	return nil
}

func (b *base) Diversify(seed int64, role int) {
	b.seed = seed
	b.role = role
}

// Interrupt is permanent for the adapter's lifetime.
func (b *base) Interrupt() {
	if b.interrupted.CompareAndSwap(false, true) {
		b.log.AdapterInterrupted(b.id)
	}
}

func (b *base) stopped() bool {
	return b.interrupted.Load()
}

func (b *base) ExportLearned() []*clause.Clause {
	return b.exports.take()
}

func (b *base) PendingExports() int {
	return b.exports.len()
}

// offer buffers a learnt clause for export if it meets the export limits.
func (b *base) offer(literals []int64, lbd int) {
	limits := b.opts.Export
	if limits.MaxLBD > 0 && lbd > limits.MaxLBD {
		return
	}
	if limits.MaxSize > 0 && len(literals) > limits.MaxSize {
		return
	}
	b.exports.add(clause.New(literals, lbd, b.id))
}

func (b *base) fault(err error) Verdict {
	return Verdict{Status: Fault, Err: &FaultError{Adapter: b.id, Engine: b.engine, Err: err}}
}

// run guards an engine call: it refuses to start without a formula or after an interrupt and turns
// a panic into a Fault verdict.
func (b *base) run(solve func() Verdict) (verdict Verdict) {
	if b.formula == nil {
		return b.fault(ErrFormulaNotLoaded)
	}
	if b.stopped() {
		return Verdict{Status: Interrupted}
	}
	defer func() {
		if r := recover(); r != nil {
			verdict = b.fault(errors.Errorf("panic: %v", r))
		}
	}()
	return solve()
}

// undecided is the verdict of an engine that gave up.
func (b *base) undecided() Verdict {
	if b.stopped() {
		return Verdict{Status: Interrupted}
	}
	return Verdict{Status: Unknown}
}

type exportBuffer struct {
	mu      sync.Mutex
	clauses []*clause.Clause
}

func (e *exportBuffer) add(c *clause.Clause) {
	e.mu.Lock()
	e.clauses = append(e.clauses, c)
	e.mu.Unlock()
}

func (e *exportBuffer) take() []*clause.Clause {
	e.mu.Lock()
	defer e.mu.Unlock()
	taken := e.clauses
	e.clauses = nil
	return taken
}

func (e *exportBuffer) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clauses)
}

func modelFromAssignment(assignment []bool) sat.Model {
	model := make(sat.Model, len(assignment))
	for v, value := range assignment {
		model[int64(v+1)] = value
	}
	return model
}
