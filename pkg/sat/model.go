package sat

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Model maps a variable index to its truth value.
type Model map[int64]bool

func ModelFromSolution(solution SATSolution) Model {
	model := make(Model, len(solution))
	for _, literal := range solution {
		model[abs(literal)] = literal > 0
	}
	return model
}

// Solution returns the model as signed literals sorted by variable.
func (m Model) Solution() SATSolution {
	variables := lo.Keys(m)
	slices.Sort(variables)
	return lo.Map(variables, func(variable int64, _ int) int64 {
		if m[variable] {
			return variable
		}
		return -variable
	})
}

// Satisfies reports whether every clause of the formula has a literal true under m. Unassigned
// variables count as false.
func (m Model) Satisfies(sat SAT) bool {
	return !lo.SomeBy(sat.Clauses, func(clause []int64) bool {
		return !lo.SomeBy(clause, func(literal int64) bool {
			return m[abs(literal)] == (literal > 0)
		})
	})
}

// String renders the model as competition "v" lines terminated by 0.
func (m Model) String() string {
	var builder strings.Builder
	line := "v"
	for _, literal := range m.Solution() {
		next := fmt.Sprintf(" %d", literal)
		if len(line)+len(next) > 78 {
			builder.WriteString(line + "\n")
			line = "v"
		}
		line += next
	}
	builder.WriteString(line + " 0")
	return builder.String()
}
