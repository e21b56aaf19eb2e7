package clausedb

import (
	"sync"

	"github.com/limaJavier/satportfolio/pkg/clause"
)

// shard is one partition of the dedup table. Clauses sharing a fingerprint are chained and told
// apart by exact literal comparison.
type shard struct {
	mu          sync.Mutex
	buckets     map[uint64][]*clause.Clause
	order       []*clause.Clause
	capacity    int
	fingerprint func(*clause.Clause) uint64
}

func newShard(capacity int, fingerprint func(*clause.Clause) uint64) *shard {
	return &shard{
		buckets:     make(map[uint64][]*clause.Clause),
		capacity:    capacity,
		fingerprint: fingerprint,
	}
}

// insert records c unless an equal clause is known and reports whether it was new.
func (s *shard) insert(c *clause.Clause) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.fingerprint(c)
	chain := s.buckets[key]
	for _, known := range chain {
		if known.Equal(c) {
			return false
		}
	}
	s.buckets[key] = append(chain, c)

	if s.capacity > 0 {
		s.order = append(s.order, c)
		if len(s.order) > s.capacity {
			s.forget(s.order[0])
			s.order[0] = nil
			s.order = s.order[1:]
		}
	}
	return true
}

func (s *shard) forget(c *clause.Clause) {
	key := s.fingerprint(c)
	chain := s.buckets[key]
	for i, known := range chain {
		if known == c {
			chain = append(chain[:i], chain[i+1:]...)
			break
		}
	}
	if len(chain) == 0 {
		delete(s.buckets, key)
		return
	}
	s.buckets[key] = chain
}

func (s *shard) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, chain := range s.buckets {
		total += len(chain)
	}
	return total
}
