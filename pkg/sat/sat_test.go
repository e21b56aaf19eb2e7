package sat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDIMACS(t *testing.T) {
	t.Run("Header, comments and clauses", func(t *testing.T) {
		// Arrange
		input := "c a comment\np cnf 3 2\n1 -2 0\n2 3 -1 0\n"

		// Act
		formula, err := ReadDIMACS(strings.NewReader(input))

		// Assert
		require.NoError(t, err)
		assert.Equal(t, uint64(3), formula.Variables)
		assert.Equal(t, [][]int64{{1, -2}, {2, 3, -1}}, formula.Clauses)
	})

	t.Run("Clause spanning lines and missing final zero", func(t *testing.T) {
		formula, err := ReadDIMACS(strings.NewReader("p cnf 2 2\n1\n2 0\n-1 -2"))

		require.NoError(t, err)
		assert.Equal(t, [][]int64{{1, 2}, {-1, -2}}, formula.Clauses)
	})

	t.Run("Variables beyond the header extend the formula", func(t *testing.T) {
		formula, err := ReadDIMACS(strings.NewReader("p cnf 1 1\n1 -4 0\n"))

		require.NoError(t, err)
		assert.Equal(t, uint64(4), formula.Variables)
	})

	t.Run("Garbage is a formula error", func(t *testing.T) {
		_, err := ReadDIMACS(strings.NewReader("p cnf 2 1\n1 x 0\n"))

		var formulaErr *FormulaError
		assert.ErrorAs(t, err, &formulaErr)
	})
}

func TestToDIMACSIsReadable(t *testing.T) {
	formula := GenerateKSAT(20, 60, 3, 7)

	parsed, err := ReadDIMACS(strings.NewReader(formula.ToDIMACS()))

	require.NoError(t, err)
	assert.Equal(t, formula, parsed)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, SAT{Variables: 2, Clauses: [][]int64{{1, -2}}}.Validate())

	err := SAT{Variables: 2, Clauses: [][]int64{{1}, {0, 2}}}.Validate()
	var formulaErr *FormulaError
	require.ErrorAs(t, err, &formulaErr)
	assert.Equal(t, 2, formulaErr.Clause)

	err = SAT{Variables: 2, Clauses: [][]int64{{3}}}.Validate()
	assert.ErrorAs(t, err, &formulaErr)
}

func TestHasEmptyClause(t *testing.T) {
	assert.False(t, SAT{Variables: 1, Clauses: [][]int64{{1}}}.HasEmptyClause())
	assert.True(t, SAT{Variables: 1, Clauses: [][]int64{{1}, {}}}.HasEmptyClause())
}

func TestModel(t *testing.T) {
	// (x1 ∨ x2) ∧ (¬x1 ∨ x2)
	formula := SAT{Variables: 2, Clauses: [][]int64{{1, 2}, {-1, 2}}}

	model := ModelFromSolution(SATSolution{-1, 2})

	assert.Equal(t, Model{1: false, 2: true}, model)
	assert.Equal(t, SATSolution{-1, 2}, model.Solution())
	assert.True(t, model.Satisfies(formula))
	assert.False(t, Model{1: true, 2: false}.Satisfies(formula))
	assert.False(t, ModelFromSolution(SATSolution{1, -2}).Satisfies(formula))
	assert.Equal(t, "v -1 2 0", model.String())
}

func TestModelStringWrapsLongLines(t *testing.T) {
	model := Model{}
	for variable := int64(1); variable <= 100; variable++ {
		model[variable] = variable%2 == 0
	}

	lines := strings.Split(model.String(), "\n")

	assert.Greater(t, len(lines), 1)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "v"))
		assert.LessOrEqual(t, len(line), 80)
	}
	assert.True(t, strings.HasSuffix(lines[len(lines)-1], " 0"))
}

func TestGenerateKSAT(t *testing.T) {
	formula := GenerateKSAT(10, 30, 3, 1)

	assert.Len(t, formula.Clauses, 30)
	assert.NoError(t, formula.Validate())
	for _, clause := range formula.Clauses {
		assert.Len(t, clause, 3)
	}
	assert.Equal(t, formula, GenerateKSAT(10, 30, 3, 1))
}

func TestPigeonhole(t *testing.T) {
	formula := Pigeonhole(3, 2)

	assert.Equal(t, uint64(6), formula.Variables)
	assert.Len(t, formula.Clauses, 3+2*3)
	assert.NoError(t, formula.Validate())
	assert.Equal(t, []int64{1, 2}, formula.Clauses[0])
	assert.Equal(t, []int64{-1, -3}, formula.Clauses[3])
}
