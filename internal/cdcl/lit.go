package cdcl

// Lit encodes variable v (0-based) as 2v for the positive literal and 2v+1 for the negative one.
type Lit int32

const litUndef Lit = -1

func mkLit(v int, negative bool) Lit {
	if negative {
		return Lit(2*v + 1)
	}
	return Lit(2 * v)
}

// FromDimacs converts a signed DIMACS literal.
func FromDimacs(literal int64) Lit {
	if literal < 0 {
		return mkLit(int(-literal)-1, true)
	}
	return mkLit(int(literal)-1, false)
}

func (l Lit) Var() int { return int(l >> 1) }

func (l Lit) Negative() bool { return l&1 == 1 }

func (l Lit) Not() Lit { return l ^ 1 }

func (l Lit) Dimacs() int64 {
	v := int64(l.Var() + 1)
	if l.Negative() {
		return -v
	}
	return v
}

const (
	lFalse int8 = -1
	lUndef int8 = 0
	lTrue  int8 = 1
)

type clause struct {
	lits     []Lit
	learnt   bool
	lbd      int
	activity float64
	deleted  bool
}

// watcher sits in the list of one of the two watched literals; blocker is another literal of the
// clause whose truth lets propagation skip it.
type watcher struct {
	c       *clause
	blocker Lit
}
