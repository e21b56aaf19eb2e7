package clausedb

import (
	"container/heap"

	"github.com/limaJavier/satportfolio/pkg/clause"
)

type pending struct {
	clause *clause.Clause
	seq    uint64
	index  int // position in the eviction heap, -1 once gone
}

// worstFirst keeps the pending clause to evict at its root: highest LBD, then largest, then oldest.
type worstFirst []*pending

func (h worstFirst) Len() int { return len(h) }

func (h worstFirst) Less(i, j int) bool {
	a, b := h[i], h[j]
	if clause.SameQuality(a.clause, b.clause) {
		return a.seq < b.seq
	}
	return clause.Worse(a.clause, b.clause)
}

func (h worstFirst) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *worstFirst) Push(x any) {
	p := x.(*pending)
	p.index = len(*h)
	*h = append(*h, p)
}

func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.index = -1
	*h = old[:n-1]
	return p
}

// inbox is the bounded pending set of one consumer. Arrival order lives in queue, eviction order in
// worst; evicted entries stay in queue as tombstones until drained or compacted.
type inbox struct {
	queue    []*pending
	worst    worstFirst
	capacity int
	seq      uint64
}

func newInbox(capacity int) *inbox {
	return &inbox{capacity: capacity}
}

// push enqueues c and returns the clause evicted to make room, if any. The evicted clause may be c
// itself when it is the worst of the lot.
func (in *inbox) push(c *clause.Clause) *clause.Clause {
	in.seq++
	p := &pending{clause: c, seq: in.seq}
	in.queue = append(in.queue, p)
	heap.Push(&in.worst, p)

	if in.capacity <= 0 || in.worst.Len() <= in.capacity {
		return nil
	}

	evicted := heap.Pop(&in.worst).(*pending)
	if len(in.queue) > 2*in.capacity {
		in.compact()
	}
	return evicted.clause
}

func (in *inbox) drain(max int) []*clause.Clause {
	size := in.worst.Len()
	if max > 0 && max < size {
		size = max
	}
	drained := make([]*clause.Clause, 0, size)

	consumed := 0
	for _, p := range in.queue {
		if len(drained) == size {
			break
		}
		consumed++
		if p.index < 0 {
			continue
		}
		heap.Remove(&in.worst, p.index)
		drained = append(drained, p.clause)
	}

	clear(in.queue[:consumed])
	in.queue = in.queue[consumed:]
	return drained
}

func (in *inbox) compact() {
	live := in.queue[:0]
	for _, p := range in.queue {
		if p.index >= 0 {
			live = append(live, p)
		}
	}
	clear(in.queue[len(live):])
	in.queue = live
}

func (in *inbox) len() int {
	return in.worst.Len()
}
