// Package clause holds the unit of exchange between portfolio members: a normalized learnt clause
// with its quality score, its producer and a cached fingerprint.
package clause

import (
	"fmt"
	"slices"
	"strings"
)

// NoProducer marks clauses that do not come from an adapter, such as digests forwarded between
// clusters.
const NoProducer = -1

// Clause is immutable once built; share the pointer freely between goroutines.
type Clause struct {
	literals    []int64
	lbd         int
	from        int
	fingerprint uint64
}

// New copies and normalizes literals (sorted by variable then polarity, duplicates removed) and
// computes the fingerprint. An lbd below 1 is replaced by the clause size.
func New(literals []int64, lbd int, from int) *Clause {
	normalized := Normalize(literals)
	if lbd < 1 {
		lbd = max(len(normalized), 1)
	}
	return &Clause{
		literals:    normalized,
		lbd:         lbd,
		from:        from,
		fingerprint: fingerprintSorted(normalized),
	}
}

// WithProducer returns a copy attributed to another producer, sharing the literal slice.
func (c *Clause) WithProducer(from int) *Clause {
	copied := *c
	copied.from = from
	return &copied
}

// Literals returns the normalized literals. The slice must not be modified.
func (c *Clause) Literals() []int64 { return c.literals }

func (c *Clause) Len() int { return len(c.literals) }

// LBD is the literal block distance the producer computed when it learnt the clause.
func (c *Clause) LBD() int { return c.lbd }

func (c *Clause) From() int { return c.from }

func (c *Clause) Fingerprint() uint64 { return c.fingerprint }

// Equal compares literal sets exactly. Producer and LBD are ignored.
func (c *Clause) Equal(other *Clause) bool {
	return c.fingerprint == other.fingerprint && slices.Equal(c.literals, other.literals)
}

// Tautology reports whether the clause holds a literal and its negation.
func (c *Clause) Tautology() bool {
	for i := 1; i < len(c.literals); i++ {
		if c.literals[i] == -c.literals[i-1] {
			return true
		}
	}
	return false
}

// Worse orders clauses by quality: higher LBD first, then larger size.
func Worse(a, b *Clause) bool {
	if a.lbd != b.lbd {
		return a.lbd > b.lbd
	}
	return len(a.literals) > len(b.literals)
}

// SameQuality reports whether neither clause is worse than the other.
func SameQuality(a, b *Clause) bool {
	return a.lbd == b.lbd && len(a.literals) == len(b.literals)
}

// CountLiterals sums the sizes of clauses.
func CountLiterals(clauses []*Clause) int {
	total := 0
	for _, c := range clauses {
		total += len(c.literals)
	}
	return total
}

func (c *Clause) String() string {
	var builder strings.Builder
	for _, literal := range c.literals {
		fmt.Fprintf(&builder, "%d ", literal)
	}
	builder.WriteString("0")
	return builder.String()
}

// Normalize returns a sorted copy of literals without duplicates. Literals are ordered by
// variable, the negative literal first.
func Normalize(literals []int64) []int64 {
	normalized := slices.Clone(literals)
	slices.SortFunc(normalized, compareLiterals)
	return slices.Compact(normalized)
}

func compareLiterals(a, b int64) int {
	va, vb := abs(a), abs(b)
	switch {
	case va < vb:
		return -1
	case va > vb:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func abs(literal int64) int64 {
	if literal < 0 {
		return -literal
	}
	return literal
}
