// Package sharing moves learnt clauses between portfolio members through clause databases.
package sharing

import (
	"slices"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/clausedb"
	"github.com/limaJavier/satportfolio/pkg/metrics"
	"github.com/limaJavier/satportfolio/pkg/solver"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

var ErrUnknownKind = errors.New("unknown sharing strategy")

// Peer is the part of an adapter a strategy needs.
type Peer interface {
	ID() int
	Engine() string
	ExportLearned() []*clause.Clause
	ImportClauses(clauses []*clause.Clause)
}

type RoundStats struct {
	Exported   int
	Filtered   int
	Published  int
	Duplicates int
	Forwarded  int
	Delivered  int
}

// Strategy decides which clauses flow from which producers to which consumers. Its members are
// split into groups, each driven by one Sharer; Round must not be called concurrently for the same
// group.
type Strategy interface {
	Name() Kind
	Groups() int
	Round(group int) RoundStats
	// Pending counts the clauses waiting for export at the producers of group.
	Pending(group int) int
	// Exclude stops exchanging clauses with a member.
	Exclude(id int)
	Stats() clausedb.Stats
}

// group is a set of members sharing one clause database.
type group struct {
	mu      sync.Mutex
	members []Peer
	db      *clausedb.DB
	filter  *lbdFilter
	// cursors hold the next fanout position of each producer.
	cursors map[int]int
	next    *group

	// inbound holds clauses forwarded from the previous group and accepted here, waiting to be
	// forwarded further.
	inboundMu sync.Mutex
	inbound   []*clause.Clause
}

func (g *group) receive(c *clause.Clause) {
	g.inboundMu.Lock()
	g.inbound = append(g.inbound, c)
	g.inboundMu.Unlock()
}

func (g *group) takeInbound() []*clause.Clause {
	g.inboundMu.Lock()
	defer g.inboundMu.Unlock()
	taken := g.inbound
	g.inbound = nil
	return taken
}

type strategy struct {
	kind    Kind
	cfg     Config
	groups  []*group
	log     *synclog.Log
	metrics *metrics.Metrics

	mu       sync.RWMutex
	excluded map[int]bool
}

// New builds the strategy selected by cfg.Kind over peers.
func New(cfg Config, peers []Peer, log *synclog.Log, m *metrics.Metrics) (Strategy, error) {
	if log == nil {
		log = synclog.Discard()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	s := &strategy{
		kind:     cfg.Kind,
		cfg:      cfg,
		log:      log.With("sharing"),
		metrics:  m,
		excluded: make(map[int]bool),
	}

	switch cfg.Kind {
	case KindNone:
	case KindBroadcast, KindFanout:
		s.groups = []*group{s.newGroup(peers)}
	case KindHierarchical:
		size := max(cfg.ClusterSize, 1)
		for start := 0; start < len(peers); start += size {
			s.groups = append(s.groups, s.newGroup(peers[start:min(start+size, len(peers))]))
		}
		if len(s.groups) > 1 {
			for i, g := range s.groups {
				g.next = s.groups[(i+1)%len(s.groups)]
			}
		}
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", cfg.Kind)
	}
	return s, nil
}

func (s *strategy) newGroup(members []Peer) *group {
	ids := make([]int, len(members))
	for i, member := range members {
		ids[i] = member.ID()
	}
	opts := clausedb.Options{
		InboxCapacity: s.cfg.InboxCapacity,
		DedupCapacity: s.cfg.DedupCapacity,
		Shards:        s.cfg.Shards,
	}
	return &group{
		members: slices.Clone(members),
		db:      clausedb.New(ids, opts, s.log, s.metrics),
		filter:  newLBDFilter(s.cfg),
		cursors: make(map[int]int),
	}
}

func (s *strategy) Name() Kind { return s.kind }

func (s *strategy) Groups() int { return len(s.groups) }

func (s *strategy) active(g *group) []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.DeleteFunc(slices.Clone(g.members), func(peer Peer) bool { return s.excluded[peer.ID()] })
}

func (s *strategy) Exclude(id int) {
	s.mu.Lock()
	s.excluded[id] = true
	s.mu.Unlock()
	for _, g := range s.groups {
		g.db.Remove(id)
	}
}

func (s *strategy) Pending(index int) int {
	total := 0
	for _, peer := range s.active(s.groups[index]) {
		if counter, ok := peer.(solver.ExportCounter); ok {
			total += counter.PendingExports()
		}
	}
	return total
}

// Round collects the exports of the group, publishes them, forwards a digest to the next group
// when clustered, then drains every inbox into its member.
func (s *strategy) Round(index int) RoundStats {
	g := s.groups[index]
	g.mu.Lock()
	defer g.mu.Unlock()

	var stats RoundStats
	members := s.active(g)
	consumers := make([]int, len(members))
	for i, member := range members {
		consumers[i] = member.ID()
	}

	var accepted []*clause.Clause
	for _, producer := range members {
		exported := producer.ExportLearned()
		stats.Exported += len(exported)
		kept, filtered := g.filter.admit(producer.ID(), exported)
		stats.Filtered += len(filtered)
		s.metrics.ClausesFiltered.Add(float64(len(filtered)))
		for _, c := range filtered {
			s.log.ClauseFiltered(producer.ID(), c.Len(), c.LBD(), g.filter.limit(producer.ID()))
		}

		literals := 0
		for _, c := range kept {
			outcome, err := s.publish(g, c, producer.ID(), consumers)
			if err != nil {
				s.log.Debugf("dropping clause from %d: %v", producer.ID(), err)
				continue
			}
			if outcome == clausedb.Duplicate {
				stats.Duplicates++
				continue
			}
			stats.Published++
			literals += c.Len()
			accepted = append(accepted, c)
		}
		g.filter.adjust(producer.ID(), literals)
	}

	if g.next != nil {
		stats.Forwarded = s.forward(g.next, append(accepted, g.takeInbound()...))
	}

	for _, consumer := range members {
		batch, err := g.db.Drain(consumer.ID(), s.cfg.RoundCap)
		if err != nil || len(batch) == 0 {
			continue
		}
		consumer.ImportClauses(batch)
		if s.log.Enabled(logrus.TraceLevel) {
			prefix := "imported by " + strconv.Itoa(consumer.ID())
			for _, c := range batch {
				s.log.Clause(prefix, c.String())
			}
		}
		stats.Delivered += len(batch)
		s.metrics.ClausesImported.WithLabelValues(strconv.Itoa(consumer.ID()), consumer.Engine()).Add(float64(len(batch)))
	}
	return stats
}

func (s *strategy) publish(g *group, c *clause.Clause, producer int, consumers []int) (clausedb.Outcome, error) {
	if s.kind != KindFanout || s.cfg.Fanout <= 0 {
		return g.db.Publish(c, producer)
	}
	return g.db.PublishTo(c, producer, g.fanoutTargets(producer, consumers, s.cfg.Fanout))
}

// fanoutTargets picks the next k consumers after the producer's cursor, round robin, never the
// producer itself.
func (g *group) fanoutTargets(producer int, consumers []int, k int) []int {
	candidates := slices.DeleteFunc(slices.Clone(consumers), func(id int) bool { return id == producer })
	if k >= len(candidates) {
		return candidates
	}
	start := g.cursors[producer] % len(candidates)
	targets := make([]int, 0, k)
	for i := range k {
		targets = append(targets, candidates[(start+i)%len(candidates)])
	}
	g.cursors[producer] = (start + k) % len(candidates)
	return targets
}

// forward publishes the best clauses accepted this round into the next group for all its members.
// A clause travels the ring until it reaches a group that already knows it.
func (s *strategy) forward(next *group, accepted []*clause.Clause) int {
	digest := slices.Clone(accepted)
	slices.SortStableFunc(digest, func(a, b *clause.Clause) int {
		switch {
		case clause.Worse(b, a):
			return -1
		case clause.Worse(a, b):
			return 1
		}
		return 0
	})
	if s.cfg.DigestSize > 0 && len(digest) > s.cfg.DigestSize {
		digest = digest[:s.cfg.DigestSize]
	}

	forwarded := 0
	for _, c := range digest {
		outcome, err := next.db.Publish(c.WithProducer(clause.NoProducer), clause.NoProducer)
		if err == nil && outcome == clausedb.Accepted {
			next.receive(c)
			forwarded++
		}
	}
	return forwarded
}

func (s *strategy) Stats() clausedb.Stats {
	var total clausedb.Stats
	for _, g := range s.groups {
		stats := g.db.Stats()
		total.Published += stats.Published
		total.Duplicates += stats.Duplicates
		total.Enqueued += stats.Enqueued
		total.Evicted += stats.Evicted
		total.Drained += stats.Drained
		total.Known += stats.Known
	}
	return total
}
