// Package solver defines the contract every portfolio member satisfies and the engines behind it.
package solver

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

var (
	ErrUnknownEngine     = errors.New("unknown engine")
	ErrFormulaNotLoaded  = errors.New("formula not loaded")
	ErrExecutableMissing = errors.New("solver executable not found")
)

type Status int

const (
	Unknown Status = iota
	Sat
	Unsat
	Interrupted
	Fault
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "SAT"
	case Unsat:
		return "UNSAT"
	case Interrupted:
		return "INTERRUPTED"
	case Fault:
		return "FAULT"
	}
	return "UNKNOWN"
}

// Decided reports whether the status settles the formula.
func (s Status) Decided() bool {
	return s == Sat || s == Unsat
}

// Verdict is what Solve returns. Model is set for Sat only, Err for Fault only.
type Verdict struct {
	Status Status
	Model  sat.Model
	Err    error
}

// Adapter wraps one sequential engine instance. Solve runs on the adapter's own goroutine;
// ExportLearned and ImportClauses may be called concurrently from a sharer and must not block for
// long; Interrupt may be called from anywhere, any number of times.
type Adapter interface {
	ID() int
	Engine() string
	LoadFormula(formula sat.SAT) error
	Diversify(seed int64, role int)
	Solve() Verdict
	ExportLearned() []*clause.Clause
	ImportClauses(clauses []*clause.Clause)
	Interrupt()
}

// ExportCounter is implemented by adapters that can tell how many exports are waiting.
type ExportCounter interface {
	PendingExports() int
}

// FaultError is the error carried by a Fault verdict.
type FaultError struct {
	Adapter int
	Engine  string
	Err     error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("adapter %d (%s) failed: %v", e.Adapter, e.Engine, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// ExportLimits is the export-quality threshold: clauses above either bound stay private. Zero
// disables a bound.
type ExportLimits struct {
	MaxLBD  int
	MaxSize int
}

type LocalSearch struct {
	MaxFlips int
	Noise    float64
}

type Options struct {
	Export      ExportLimits
	LocalSearch LocalSearch
	// InterruptPoll bounds the interrupt latency of engines that are polled rather than checking
	// the flag inside their search loop.
	InterruptPoll time.Duration
	// Executables maps an engine name to the binary to run. Missing entries use the engine's
	// default binary name.
	Executables map[string]string
	Log         *synclog.Log
}

const DefaultInterruptPoll = 10 * time.Millisecond

func (o Options) withDefaults() Options {
	if o.InterruptPoll <= 0 {
		o.InterruptPoll = DefaultInterruptPoll
	}
	if o.Log == nil {
		o.Log = synclog.Discard()
	}
	return o
}
