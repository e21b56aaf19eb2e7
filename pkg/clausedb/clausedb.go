// Package clausedb stores learnt clauses waiting to be delivered to portfolio members.
//
// A DB is one dedup scope. Deduplication is partitioned into shards by fingerprint and every
// consumer owns a bounded inbox with its own lock, so concurrent publishers only contend when they
// hit the same shard or deliver to the same consumer at the same time.
package clausedb

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/metrics"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

var (
	ErrEmptyClause     = errors.New("empty clause cannot be shared")
	ErrUnknownConsumer = errors.New("unknown consumer")
)

const (
	DefaultShards        = 16
	DefaultInboxCapacity = 10000
)

type Outcome int

const (
	Accepted Outcome = iota
	Duplicate
	// Rejected is returned together with an error; the clause was neither stored nor delivered.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	}
	return "accepted"
}

type Options struct {
	// InboxCapacity bounds every consumer's pending set. Zero or less means unbounded.
	InboxCapacity int
	// DedupCapacity bounds the clauses remembered per shard for dedup, oldest forgotten first.
	// Zero or less remembers every clause for the lifetime of the DB.
	DedupCapacity int
	Shards        int
}

type Stats struct {
	Published  uint64
	Duplicates uint64
	Enqueued   uint64
	Evicted    uint64
	Drained    uint64
	Known      int
}

type consumer struct {
	mu    sync.Mutex
	inbox *inbox
}

type DB struct {
	shards []*shard
	opts   Options

	mu        sync.RWMutex
	consumers map[int]*consumer
	ids       []int

	published  atomic.Uint64
	duplicates atomic.Uint64
	enqueued   atomic.Uint64
	evicted    atomic.Uint64
	drained    atomic.Uint64

	log     *synclog.Log
	metrics *metrics.Metrics

	// fingerprint keys shards and dedup buckets.
	fingerprint func(*clause.Clause) uint64
}

// New creates a DB delivering to consumers. A nil log or metrics gets a no-op replacement.
func New(consumers []int, opts Options, log *synclog.Log, m *metrics.Metrics) *DB {
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if log == nil {
		log = synclog.Discard()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	db := &DB{
		shards:    make([]*shard, opts.Shards),
		opts:      opts,
		consumers: make(map[int]*consumer, len(consumers)),
		log:       log.With("clausedb"),
		metrics:   m,

		fingerprint: (*clause.Clause).Fingerprint,
	}
	dedupPerShard := 0
	if opts.DedupCapacity > 0 {
		dedupPerShard = max(opts.DedupCapacity/opts.Shards, 1)
	}
	for i := range db.shards {
		db.shards[i] = newShard(dedupPerShard, db.fingerprint)
	}
	for _, id := range consumers {
		db.Register(id)
	}
	return db
}

// Register adds a consumer. Clauses published before registration are not delivered to it.
func (db *DB) Register(id int) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.consumers[id]; ok {
		return
	}
	db.consumers[id] = &consumer{inbox: newInbox(db.opts.InboxCapacity)}
	db.ids = append(db.ids, id)
	slices.Sort(db.ids)
}

// Remove drops a consumer together with its pending clauses.
func (db *DB) Remove(id int) {
	db.mu.Lock()
	defer db.mu.Unlock()

	delete(db.consumers, id)
	db.ids = slices.DeleteFunc(db.ids, func(other int) bool { return other == id })
}

func (db *DB) Consumers() []int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.ids)
}

// Publish offers c to every consumer except producer.
func (db *DB) Publish(c *clause.Clause, producer int) (Outcome, error) {
	return db.publish(c, producer, nil)
}

// PublishTo offers c to targets only. The producer and unknown targets are skipped.
func (db *DB) PublishTo(c *clause.Clause, producer int, targets []int) (Outcome, error) {
	if targets == nil {
		targets = []int{}
	}
	return db.publish(c, producer, targets)
}

func (db *DB) publish(c *clause.Clause, producer int, targets []int) (Outcome, error) {
	if c == nil || c.Len() == 0 {
		return Rejected, ErrEmptyClause
	}

	if !db.shardOf(c).insert(c) {
		db.duplicates.Add(1)
		db.metrics.ClausesDuplicate.Inc()
		db.log.ClauseDuplicate(producer, c.Fingerprint())
		return Duplicate, nil
	}
	db.published.Add(1)
	db.metrics.ClausesPublished.Inc()
	db.log.ClausePublished(producer, c.Len(), c.LBD(), c.Fingerprint())

	db.mu.RLock()
	defer db.mu.RUnlock()

	if targets == nil {
		targets = db.ids
	}
	for _, id := range targets {
		if id == producer {
			continue
		}
		if target, ok := db.consumers[id]; ok {
			db.deliver(id, target, c)
		}
	}
	return Accepted, nil
}

func (db *DB) deliver(id int, target *consumer, c *clause.Clause) {
	target.mu.Lock()
	evicted := target.inbox.push(c)
	target.mu.Unlock()

	db.enqueued.Add(1)
	if evicted != nil {
		db.evicted.Add(1)
		db.metrics.ClausesEvicted.Inc()
		db.log.ClauseEvicted(id, evicted.Len(), evicted.LBD())
	}
}

// Drain removes up to max clauses from the consumer's inbox in arrival order. A max of zero or
// less drains everything.
func (db *DB) Drain(id int, max int) ([]*clause.Clause, error) {
	db.mu.RLock()
	target, ok := db.consumers[id]
	db.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConsumer, "consumer %d", id)
	}

	target.mu.Lock()
	drained := target.inbox.drain(max)
	target.mu.Unlock()

	if len(drained) > 0 {
		db.drained.Add(uint64(len(drained)))
		db.metrics.ClausesDrained.Add(float64(len(drained)))
		db.log.ClausesDrained(id, len(drained))
	}
	return drained, nil
}

// Pending returns how many clauses wait for the consumer.
func (db *DB) Pending(id int) int {
	db.mu.RLock()
	target, ok := db.consumers[id]
	db.mu.RUnlock()
	if !ok {
		return 0
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	return target.inbox.len()
}

func (db *DB) Stats() Stats {
	known := 0
	for _, s := range db.shards {
		known += s.len()
	}
	return Stats{
		Published:  db.published.Load(),
		Duplicates: db.duplicates.Load(),
		Enqueued:   db.enqueued.Load(),
		Evicted:    db.evicted.Load(),
		Drained:    db.drained.Load(),
		Known:      known,
	}
}

func (db *DB) shardOf(c *clause.Clause) *shard {
	return db.shards[db.fingerprint(c)%uint64(len(db.shards))]
}
