package sharing

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/limaJavier/satportfolio/pkg/metrics"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

// Sharer drives the rounds of one strategy group until its context is canceled. No round runs after
// cancellation: by then the verdict is decided.
type Sharer struct {
	group    int
	strategy Strategy
	cfg      Config
	log      *synclog.Log
	metrics  *metrics.Metrics
	rounds   atomic.Int64
}

func NewSharer(group int, strategy Strategy, cfg Config, log *synclog.Log, m *metrics.Metrics) *Sharer {
	if log == nil {
		log = synclog.Discard()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Sharer{
		group:    group,
		strategy: strategy,
		cfg:      cfg,
		log:      log.With("sharer"),
		metrics:  m,
	}
}

func (s *Sharer) Rounds() int { return int(s.rounds.Load()) }

func (s *Sharer) Run(ctx context.Context) error {
	if s.cfg.InitialDelay > 0 {
		timer := time.NewTimer(s.cfg.InitialDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}

	tick := s.cfg.Interval
	if s.cfg.Trigger == TriggerClauses {
		tick = s.cfg.PollInterval
	}
	if tick <= 0 {
		tick = DefaultConfig().Interval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return nil
		}
		if s.cfg.Trigger == TriggerClauses &&
			s.strategy.Pending(s.group) < s.cfg.TriggerClauses &&
			time.Since(last) < s.cfg.Interval {
			continue
		}
		s.round()
		last = time.Now()
	}
}

func (s *Sharer) round() {
	start := time.Now()
	stats := s.strategy.Round(s.group)
	round := s.rounds.Add(1)
	s.metrics.SharingRounds.Inc()
	s.log.SharingRound(s.group, int(round), stats.Published, stats.Duplicates, stats.Delivered, time.Since(start))
}

// Run starts one sharer per group of the strategy and blocks until ctx is canceled.
func Run(ctx context.Context, strategy Strategy, cfg Config, log *synclog.Log, m *metrics.Metrics) ([]*Sharer, error) {
	sharers := make([]*Sharer, strategy.Groups())
	group, ctx := errgroup.WithContext(ctx)
	for i := range sharers {
		sharers[i] = NewSharer(i, strategy, cfg, log, m)
		sharer := sharers[i]
		group.Go(func() error { return sharer.Run(ctx) })
	}
	return sharers, group.Wait()
}
