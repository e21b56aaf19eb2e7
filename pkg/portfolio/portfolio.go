// Package portfolio races diversified solver adapters over one formula while they share learnt
// clauses, and reports the first decided verdict.
package portfolio

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/limaJavier/satportfolio/pkg/clausedb"
	"github.com/limaJavier/satportfolio/pkg/metrics"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/sharing"
	"github.com/limaJavier/satportfolio/pkg/solver"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

const (
	// NoWinner is the Result.Winner of verdicts no adapter produced.
	NoWinner = -1

	DefaultInterruptTimeout = 5 * time.Second
)

var (
	ErrAlreadyStarted = errors.New("portfolio already started")
	ErrNoAdapters     = errors.New("portfolio has no adapters")
	ErrInvalidModel   = errors.New("model does not satisfy the formula")
)

type State int32

const (
	Idle State = iota
	Running
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Running:
		return "RUNNING"
	case Terminated:
		return "TERMINATED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// InterruptTimeoutError lists the adapters still running InterruptTimeout after termination began.
// Their goroutines are leaked.
type InterruptTimeoutError struct {
	Adapters []int
	Timeout  time.Duration
}

func (e *InterruptTimeoutError) Error() string {
	return fmt.Sprintf("adapters %v did not honor interrupt within %v", e.Adapters, e.Timeout)
}

type Options struct {
	// Timeout bounds the whole run. Zero waits for a verdict or the caller's context.
	Timeout          time.Duration
	InterruptTimeout time.Duration
	Sharing          sharing.Config
}

type Stats struct {
	Clauses clausedb.Stats
	// Adapters holds the final status of every adapter that returned.
	Adapters map[int]solver.Status
	Rounds   int
}

type Result struct {
	Status  solver.Status
	Model   sat.Model
	Winner  int
	Engine  string
	Elapsed time.Duration
	Stats   Stats
}

// claim is the content of the verdict slot.
type claim struct {
	adapter int
	engine  string
	verdict solver.Verdict
}

type Portfolio struct {
	formula  sat.SAT
	adapters []solver.Adapter
	opts     Options
	log      *synclog.Log
	metrics  *metrics.Metrics

	state    atomic.Int32
	verdict  atomic.Pointer[claim]
	decided  chan struct{}
	decide   sync.Once
	strategy sharing.Strategy

	mu       sync.Mutex
	statuses map[int]solver.Status
}

// New wraps adapters that already hold the formula and their diversification.
func New(formula sat.SAT, adapters []solver.Adapter, opts Options, log *synclog.Log, m *metrics.Metrics) *Portfolio {
	if log == nil {
		log = synclog.Discard()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if opts.InterruptTimeout <= 0 {
		opts.InterruptTimeout = DefaultInterruptTimeout
	}
	return &Portfolio{
		formula:  formula,
		adapters: adapters,
		opts:     opts,
		log:      log.With("portfolio"),
		metrics:  m,
		decided:  make(chan struct{}),
		statuses: make(map[int]solver.Status, len(adapters)),
	}
}

func (p *Portfolio) State() State { return State(p.state.Load()) }

func (p *Portfolio) Adapters() []solver.Adapter { return p.adapters }

// Solve runs the portfolio once. It returns after every adapter returned, or with an
// InterruptTimeoutError when some did not within the interrupt timeout.
func (p *Portfolio) Solve(ctx context.Context) (Result, error) {
	if !p.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return Result{}, ErrAlreadyStarted
	}
	defer p.state.Store(int32(Terminated))
	start := time.Now()

	if err := p.formula.Validate(); err != nil {
		return Result{}, err
	}
	if result, ok := p.trivial(); ok {
		result.Elapsed = time.Since(start)
		p.metrics.Verdicts.WithLabelValues(result.Status.String()).Inc()
		p.log.Infof("formula decided without search: %s", result.Status)
		return result, nil
	}
	if len(p.adapters) == 0 {
		return Result{}, ErrNoAdapters
	}

	peers := lo.Map(p.adapters, func(adapter solver.Adapter, _ int) sharing.Peer { return adapter })
	strategy, err := sharing.New(p.opts.Sharing, peers, p.log, p.metrics)
	if err != nil {
		return Result{}, errors.Wrap(err, "cannot build sharing strategy")
	}
	p.strategy = strategy

	var (
		runCtx    context.Context
		cancelRun context.CancelFunc
	)
	if p.opts.Timeout > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, p.opts.Timeout)
	} else {
		runCtx, cancelRun = context.WithCancel(ctx)
	}
	defer cancelRun()

	shareCtx, stopSharing := context.WithCancel(runCtx)
	defer stopSharing()
	shared := make(chan []*sharing.Sharer, 1)
	go func() {
		sharers, err := sharing.Run(shareCtx, strategy, p.opts.Sharing, p.log, p.metrics)
		if err != nil {
			p.log.Errorf("sharing stopped: %v", err)
		}
		shared <- sharers
	}()

	var group errgroup.Group
	for _, adapter := range p.adapters {
		group.Go(func() error {
			p.run(adapter)
			return nil
		})
	}
	joined := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(joined)
	}()

	select {
	case <-p.decided:
	case <-joined:
	case <-runCtx.Done():
		status := solver.Interrupted
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			status = solver.Unknown
		}
		if p.claim(&claim{adapter: NoWinner, verdict: solver.Verdict{Status: status}}) {
			p.log.Infof("run stopped before a verdict: %v", runCtx.Err())
		}
	}

	stopSharing()
	winner := p.verdict.Load()
	for _, adapter := range p.adapters {
		if winner == nil || adapter.ID() != winner.adapter {
			adapter.Interrupt()
		}
	}

	terminated := time.Now()
	timer := time.NewTimer(p.opts.InterruptTimeout)
	defer timer.Stop()
	result := p.result(winner)
	select {
	case <-joined:
	case <-timer.C:
		result.Elapsed = time.Since(start)
		return result, &InterruptTimeoutError{Adapters: p.running(), Timeout: p.opts.InterruptTimeout}
	}
	p.metrics.JoinSeconds.Observe(time.Since(terminated).Seconds())

	select {
	case sharers := <-shared:
		result.Stats.Rounds = lo.SumBy(sharers, func(s *sharing.Sharer) int { return s.Rounds() })
	case <-timer.C:
		p.log.Warnf("sharers still running after %v", p.opts.InterruptTimeout)
	}

	result = p.result(winner)
	result.Elapsed = time.Since(start)
	p.metrics.Verdicts.WithLabelValues(result.Status.String()).Inc()
	return result, nil
}

// run drives one adapter and tries to claim its verdict.
func (p *Portfolio) run(adapter solver.Adapter) {
	id, engine := adapter.ID(), adapter.Engine()
	start := time.Now()

	verdict := adapter.Solve()
	if verdict.Status == solver.Sat && !verdict.Model.Satisfies(p.formula) {
		verdict = solver.Verdict{
			Status: solver.Fault,
			Err:    &solver.FaultError{Adapter: id, Engine: engine, Err: ErrInvalidModel},
		}
	}

	p.mu.Lock()
	p.statuses[id] = verdict.Status
	p.mu.Unlock()
	p.log.AdapterFinished(id, engine, verdict.Status.String(), time.Since(start))

	switch verdict.Status {
	case solver.Sat, solver.Unsat:
		if p.claim(&claim{adapter: id, engine: engine, verdict: verdict}) {
			p.log.VerdictClaimed(id, engine, verdict.Status.String())
		}
	case solver.Fault:
		p.log.AdapterFault(id, engine, verdict.Err)
		p.strategy.Exclude(id)
	}
}

// claim sets the verdict slot once. Later claimants observe false and change nothing.
func (p *Portfolio) claim(c *claim) bool {
	if !p.verdict.CompareAndSwap(nil, c) {
		return false
	}
	p.decide.Do(func() { close(p.decided) })
	return true
}

func (p *Portfolio) trivial() (Result, bool) {
	result := Result{Winner: NoWinner, Stats: Stats{Adapters: map[int]solver.Status{}}}
	switch {
	case p.formula.HasEmptyClause():
		result.Status = solver.Unsat
	case len(p.formula.Clauses) == 0:
		result.Status = solver.Sat
		result.Model = sat.Model{}
	default:
		return Result{}, false
	}
	return result, true
}

func (p *Portfolio) result(winner *claim) Result {
	p.mu.Lock()
	statuses := make(map[int]solver.Status, len(p.statuses))
	for id, status := range p.statuses {
		statuses[id] = status
	}
	p.mu.Unlock()

	result := Result{
		Winner: NoWinner,
		Stats:  Stats{Clauses: p.strategy.Stats(), Adapters: statuses},
	}
	if winner != nil {
		result.Status = winner.verdict.Status
		result.Model = winner.verdict.Model
		result.Winner = winner.adapter
		result.Engine = winner.engine
		return result
	}

	// Every adapter gave up without a decision. A fault claims nothing but still ends the run
	// UNKNOWN unless every adapter was interrupted.
	result.Status = solver.Interrupted
	if lo.SomeBy(lo.Values(statuses), func(status solver.Status) bool { return status != solver.Interrupted }) {
		result.Status = solver.Unknown
	}
	return result
}

func (p *Portfolio) running() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	running := lo.FilterMap(p.adapters, func(adapter solver.Adapter, _ int) (int, bool) {
		_, done := p.statuses[adapter.ID()]
		return adapter.ID(), !done
	})
	slices.Sort(running)
	return running
}
