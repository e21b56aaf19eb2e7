package solver

import (
	"os/exec"
	"testing"
	"time"

	"github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/sat"
)

var (
	unsatisfiable = sat.SAT{Variables: 2, Clauses: [][]int64{{1, 2}, {-1, 2}, {-2}}}
	nativeEngines = []string{"cdcl", "gini"}
)

func newLoaded(t *testing.T, engine string, formula sat.SAT, opts Options) Adapter {
	t.Helper()
	adapter, err := New(engine, 1, opts)
	require.NoError(t, err)
	require.NoError(t, adapter.LoadFormula(formula))
	adapter.Diversify(42, 1)
	return adapter
}

func TestNewUnknownEngine(t *testing.T) {
	_, err := New("lingeling", 0, Options{})

	assert.True(t, errors.Is(err, ErrUnknownEngine))
	assert.Contains(t, Engines(), "cdcl")
	assert.Contains(t, Engines(), "kissat")
}

func TestNativeEnginesDecide(t *testing.T) {
	for _, engine := range nativeEngines {
		t.Run(engine, func(t *testing.T) {
			t.Run("unsatisfiable", func(t *testing.T) {
				verdict := newLoaded(t, engine, unsatisfiable, Options{}).Solve()

				assert.Equal(t, Unsat, verdict.Status)
				assert.Nil(t, verdict.Model)
			})

			t.Run("satisfiable", func(t *testing.T) {
				formula := sat.GenerateKSAT(50, 150, 3, 3)

				verdict := newLoaded(t, engine, formula, Options{}).Solve()

				require.Equal(t, Sat, verdict.Status)
				assert.True(t, verdict.Model.Satisfies(formula))
			})

			t.Run("pigeonhole", func(t *testing.T) {
				verdict := newLoaded(t, engine, sat.Pigeonhole(5, 4), Options{}).Solve()

				assert.Equal(t, Unsat, verdict.Status)
			})
		})
	}
}

func TestWalkSAT(t *testing.T) {
	t.Run("satisfiable", func(t *testing.T) {
		formula := sat.GenerateKSAT(50, 150, 3, 5)

		verdict := newLoaded(t, "walksat", formula, Options{}).Solve()

		require.Equal(t, Sat, verdict.Status)
		assert.True(t, verdict.Model.Satisfies(formula))
	})

	t.Run("never proves unsatisfiability", func(t *testing.T) {
		opts := Options{LocalSearch: LocalSearch{MaxFlips: 1000}}

		verdict := newLoaded(t, "walksat", unsatisfiable, opts).Solve()

		assert.Equal(t, Unknown, verdict.Status)
	})

	t.Run("exports nothing", func(t *testing.T) {
		adapter := newLoaded(t, "walksat", unsatisfiable, Options{})

		assert.Empty(t, adapter.ExportLearned())
	})
}

func TestInterruptStopsSolve(t *testing.T) {
	for _, engine := range append(nativeEngines, "walksat") {
		t.Run(engine, func(t *testing.T) {
			g := gomega.NewWithT(t)
			opts := Options{LocalSearch: LocalSearch{MaxFlips: -1}}
			adapter := newLoaded(t, engine, sat.Pigeonhole(11, 10), opts)

			verdicts := make(chan Verdict, 1)
			go func() { verdicts <- adapter.Solve() }()
			g.Consistently(verdicts, 100*time.Millisecond).ShouldNot(gomega.Receive())

			adapter.Interrupt()
			adapter.Interrupt()

			var verdict Verdict
			g.Eventually(verdicts, 2*time.Second).Should(gomega.Receive(&verdict))
			g.Expect(verdict.Status).To(gomega.Equal(Interrupted))
		})
	}
}

func TestInterruptBeforeSolve(t *testing.T) {
	for _, engine := range Engines() {
		adapter := newLoaded(t, engine, unsatisfiable, Options{})

		adapter.Interrupt()

		assert.Equal(t, Interrupted, adapter.Solve().Status, engine)
	}
}

func TestSolveWithoutFormula(t *testing.T) {
	adapter, err := New("cdcl", 3, Options{})
	require.NoError(t, err)

	verdict := adapter.Solve()

	require.Equal(t, Fault, verdict.Status)
	var fault *FaultError
	require.True(t, errors.As(verdict.Err, &fault))
	assert.Equal(t, 3, fault.Adapter)
	assert.Equal(t, "cdcl", fault.Engine)
	assert.True(t, errors.Is(verdict.Err, ErrFormulaNotLoaded))
}

func TestLoadFormulaRejectsMalformed(t *testing.T) {
	adapter, err := New("gini", 0, Options{})
	require.NoError(t, err)

	err = adapter.LoadFormula(sat.SAT{Variables: 1, Clauses: [][]int64{{1, 2}}})

	var formulaErr *sat.FormulaError
	assert.True(t, errors.As(err, &formulaErr))
}

func TestPanicBecomesFault(t *testing.T) {
	var b base
	b.setup(7, "cdcl", Options{})
	b.formula = &sat.SAT{}

	verdict := b.run(func() Verdict { panic("index out of range") })

	assert.Equal(t, Fault, verdict.Status)
	assert.ErrorContains(t, verdict.Err, "index out of range")
}

func TestCDCLExportsWithinLimits(t *testing.T) {
	opts := Options{Export: ExportLimits{MaxLBD: 5, MaxSize: 10}}
	adapter := newLoaded(t, "cdcl", sat.Pigeonhole(6, 5), opts)

	verdict := adapter.Solve()
	exported := adapter.ExportLearned()

	require.Equal(t, Unsat, verdict.Status)
	require.NotEmpty(t, exported)
	for _, c := range exported {
		assert.Equal(t, 1, c.From())
		assert.LessOrEqual(t, c.LBD(), 5)
		assert.LessOrEqual(t, c.Len(), 10)
	}
	assert.Empty(t, adapter.ExportLearned())
	assert.Equal(t, 0, adapter.(ExportCounter).PendingExports())
}

func TestImportedClausesReachEngine(t *testing.T) {
	formula := sat.SAT{Variables: 3, Clauses: [][]int64{{1, 2}, {2, 3}}}
	imports := []*clause.Clause{
		clause.New([]int64{-1}, 1, 0),
		clause.New([]int64{-2}, 1, 0),
	}

	for _, engine := range nativeEngines {
		adapter := newLoaded(t, engine, formula, Options{})
		adapter.ImportClauses(imports)

		assert.Equal(t, Unsat, adapter.Solve().Status, engine)
	}
}

func TestParseSolution(t *testing.T) {
	output := "c comment\ns SATISFIABLE\nv 1 -2 3\nv -4 5 0\n"

	solution, err := parseSolution(output)

	require.NoError(t, err)
	assert.Equal(t, sat.SATSolution{1, -2, 3, -4, 5}, solution)

	_, err = parseSolution("v 1 x 0\n")
	assert.Error(t, err)
}

func TestParseModelFile(t *testing.T) {
	solution, err := parseModelFile("SAT\n-1 2 -3 0\n")

	require.NoError(t, err)
	assert.Equal(t, sat.SATSolution{-1, 2, -3}, solution)
}

func TestExternalEngines(t *testing.T) {
	for engine := range externalEngines {
		t.Run(engine, func(t *testing.T) {
			if _, err := exec.LookPath(externalEngines[engine].binary); err != nil {
				t.Skipf("%s not installed", externalEngines[engine].binary)
			}

			for seed := range uint64(5) {
				formula := sat.GenerateKSAT(30, 120, 3, seed)
				verdict := newLoaded(t, engine, formula, Options{}).Solve()

				require.Contains(t, []Status{Sat, Unsat}, verdict.Status)
				if verdict.Status == Sat {
					assert.True(t, verdict.Model.Satisfies(formula))
				}
			}
		})
	}
}

func TestExternalMissingExecutable(t *testing.T) {
	opts := Options{Executables: map[string]string{"kissat": "/nonexistent/kissat"}}
	adapter := newLoaded(t, "kissat", unsatisfiable, opts)

	verdict := adapter.Solve()

	assert.Equal(t, Fault, verdict.Status)
	assert.True(t, errors.Is(verdict.Err, ErrExecutableMissing))
}
