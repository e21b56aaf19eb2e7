package sat

import (
	"fmt"
	"strings"
)

// SATSolution is the list of signed literals assigned true by a solver, in the format produced by
// the "v" lines of competition solvers (without the terminating zero).
type SATSolution []int64

// SAT is a CNF formula over the variables 1..Variables.
type SAT struct {
	Variables uint64
	Clauses   [][]int64
}

func (s SAT) ToDIMACS() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "p cnf %d %d\n", s.Variables, len(s.Clauses))
	for _, clause := range s.Clauses {
		for _, literal := range clause {
			fmt.Fprintf(&builder, "%d ", literal)
		}
		builder.WriteString("0\n")
	}
	return builder.String()
}

// Validate checks that every literal is non-zero and refers to a declared variable.
func (s SAT) Validate() error {
	for i, clause := range s.Clauses {
		for _, literal := range clause {
			if literal == 0 {
				return &FormulaError{Clause: i + 1, Reason: "literal 0 inside a clause"}
			}
			if uint64(abs(literal)) > s.Variables {
				return &FormulaError{Clause: i + 1, Reason: fmt.Sprintf("literal %d exceeds the %d declared variables", literal, s.Variables)}
			}
		}
	}
	return nil
}

// HasEmptyClause reports whether the formula is trivially unsatisfiable.
func (s SAT) HasEmptyClause() bool {
	for _, clause := range s.Clauses {
		if len(clause) == 0 {
			return true
		}
	}
	return false
}

// FormulaError reports malformed input. Clause is 1-based, 0 when the error is not tied to a clause.
type FormulaError struct {
	Clause int
	Reason string
}

func (e *FormulaError) Error() string {
	if e.Clause > 0 {
		return fmt.Sprintf("malformed formula at clause %d: %s", e.Clause, e.Reason)
	}
	return fmt.Sprintf("malformed formula: %s", e.Reason)
}

func abs(literal int64) int64 {
	if literal < 0 {
		return -literal
	}
	return literal
}
