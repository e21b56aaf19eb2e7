package cdcl

// varOrder is a binary max-heap of variables keyed by activity.
type varOrder struct {
	heap     []int
	indices  []int
	activity []float64
}

func newVarOrder(activity []float64) *varOrder {
	order := &varOrder{
		heap:     make([]int, 0, len(activity)),
		indices:  make([]int, len(activity)),
		activity: activity,
	}
	for v := range order.indices {
		order.indices[v] = -1
	}
	return order
}

func (o *varOrder) less(a, b int) bool { return o.activity[a] > o.activity[b] }

func (o *varOrder) empty() bool { return len(o.heap) == 0 }

func (o *varOrder) contains(v int) bool { return o.indices[v] >= 0 }

func (o *varOrder) insert(v int) {
	if o.contains(v) {
		return
	}
	o.indices[v] = len(o.heap)
	o.heap = append(o.heap, v)
	o.up(o.indices[v])
}

// increased restores the heap after the activity of v grew.
func (o *varOrder) increased(v int) {
	if o.contains(v) {
		o.up(o.indices[v])
	}
}

func (o *varOrder) removeMax() int {
	v := o.heap[0]
	last := o.heap[len(o.heap)-1]
	o.heap[0] = last
	o.indices[last] = 0
	o.indices[v] = -1
	o.heap = o.heap[:len(o.heap)-1]
	if len(o.heap) > 1 {
		o.down(0)
	}
	return v
}

func (o *varOrder) rebuild(vars []int) {
	for _, v := range o.heap {
		o.indices[v] = -1
	}
	o.heap = o.heap[:0]
	for _, v := range vars {
		o.insert(v)
	}
}

func (o *varOrder) up(i int) {
	v := o.heap[i]
	for i > 0 {
		parent := (i - 1) / 2
		if !o.less(v, o.heap[parent]) {
			break
		}
		o.heap[i] = o.heap[parent]
		o.indices[o.heap[i]] = i
		i = parent
	}
	o.heap[i] = v
	o.indices[v] = i
}

func (o *varOrder) down(i int) {
	v := o.heap[i]
	n := len(o.heap)
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if child+1 < n && o.less(o.heap[child+1], o.heap[child]) {
			child++
		}
		if !o.less(o.heap[child], v) {
			break
		}
		o.heap[i] = o.heap[child]
		o.indices[o.heap[i]] = i
		i = child
	}
	o.heap[i] = v
	o.indices[v] = i
}
