package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limaJavier/satportfolio/pkg/clause"
	"github.com/limaJavier/satportfolio/pkg/metrics"
	"github.com/limaJavier/satportfolio/pkg/sat"
	"github.com/limaJavier/satportfolio/pkg/sharing"
	"github.com/limaJavier/satportfolio/pkg/solver"
	"github.com/limaJavier/satportfolio/pkg/solver/solvertest"
	"github.com/limaJavier/satportfolio/pkg/synclog"
)

var (
	unsatFormula = sat.SAT{Variables: 2, Clauses: [][]int64{{1, 2}, {-1, 2}, {-2}}}
	unitFormula  = sat.SAT{Variables: 1, Clauses: [][]int64{{1}}}
)

func stubs(n int, verdict solver.Verdict) []*solvertest.Stub {
	return lo.Times(n, func(i int) *solvertest.Stub { return solvertest.NewStub(i, verdict) })
}

func adapters(stubs []*solvertest.Stub) []solver.Adapter {
	return lo.Map(stubs, func(stub *solvertest.Stub, _ int) solver.Adapter { return stub })
}

func defaultOptions() Options {
	return Options{InterruptTimeout: time.Second, Sharing: sharing.DefaultConfig()}
}

func recordingLog() (*synclog.Log, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return synclog.New(logger), hook
}

func countEvents(hook *test.Hook, event synclog.Event) int {
	return lo.CountBy(hook.AllEntries(), func(entry *logrus.Entry) bool {
		return entry.Data[synclog.EventKey] == event
	})
}

func TestUnsatScenario(t *testing.T) {
	// Arrange
	members := stubs(3, solver.Verdict{Status: solver.Unsat})
	portfolio := New(unsatFormula, adapters(members), defaultOptions(), nil, nil)

	// Act
	result, err := portfolio.Solve(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, solver.Unsat, result.Status)
	require.Contains(t, []int{0, 1, 2}, result.Winner)
	assert.Equal(t, "stub", result.Engine)
	for _, member := range members {
		assert.True(t, member.Finished())
		if member.ID() == result.Winner {
			assert.False(t, member.Interrupted())
		} else {
			assert.True(t, member.Interrupted())
		}
	}
	assert.Equal(t, Terminated, portfolio.State())
}

func TestSatScenario(t *testing.T) {
	member := solvertest.NewStub(0, solver.Verdict{Status: solver.Sat, Model: sat.Model{1: true}})
	portfolio := New(unitFormula, []solver.Adapter{member}, defaultOptions(), nil, nil)

	result, err := portfolio.Solve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, solver.Sat, result.Status)
	assert.Empty(t, cmp.Diff(sat.Model{1: true}, result.Model))
	assert.Equal(t, 0, result.Winner)
	assert.Equal(t, map[int]solver.Status{0: solver.Sat}, result.Stats.Adapters)
}

func TestFirstClaimWins(t *testing.T) {
	// Arrange
	members := stubs(5, solver.Verdict{Status: solver.Unsat})
	for i, member := range members {
		// Adapters started first finish last.
		member.Delay = time.Duration(len(members)-i) * 40 * time.Millisecond
	}
	members[4].Verdict = solver.Verdict{Status: solver.Sat, Model: sat.Model{1: true}}
	m := metrics.New(nil)
	log, hook := recordingLog()
	portfolio := New(unitFormula, adapters(members), defaultOptions(), log, m)

	// Act
	result, err := portfolio.Solve(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 4, result.Winner)
	assert.Equal(t, solver.Sat, result.Status)
	assert.Equal(t, 1, countEvents(hook, synclog.EventVerdictClaimed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verdicts.WithLabelValues(solver.Sat.String())))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Verdicts.WithLabelValues(solver.Unsat.String())))
	for _, member := range members[:4] {
		assert.True(t, member.Interrupted())
	}
}

func TestVerdictClaimedOnce(t *testing.T) {
	for range 20 {
		members := stubs(8, solver.Verdict{Status: solver.Unsat})
		log, hook := recordingLog()
		portfolio := New(unsatFormula, adapters(members), defaultOptions(), log, nil)

		result, err := portfolio.Solve(context.Background())

		require.NoError(t, err)
		assert.Equal(t, solver.Unsat, result.Status)
		assert.Equal(t, 1, countEvents(hook, synclog.EventVerdictClaimed))
	}
}

func TestInterruptReachesEveryAdapter(t *testing.T) {
	members := stubs(3, solver.Verdict{})
	members[0].Block = true
	members[1].Block = true
	members[2].Verdict = solver.Verdict{Status: solver.Unsat}
	members[2].Delay = 20 * time.Millisecond
	portfolio := New(unsatFormula, adapters(members), defaultOptions(), nil, nil)

	result, err := portfolio.Solve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Winner)
	for _, member := range members[:2] {
		assert.Equal(t, 1, member.Interrupts())
		assert.True(t, member.Finished())
		assert.Equal(t, solver.Interrupted, result.Stats.Adapters[member.ID()])
	}
}

func TestDeadlineReportsUnknown(t *testing.T) {
	// Arrange
	members := stubs(3, solver.Verdict{})
	for _, member := range members {
		member.Block = true
	}
	opts := defaultOptions()
	opts.Timeout = 30 * time.Millisecond
	portfolio := New(unsatFormula, adapters(members), opts, nil, nil)

	// Act
	result, err := portfolio.Solve(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, solver.Unknown, result.Status)
	assert.Equal(t, NoWinner, result.Winner)
	assert.Nil(t, result.Model)
	assert.GreaterOrEqual(t, result.Elapsed, opts.Timeout)
	for _, member := range members {
		assert.True(t, member.Finished())
		assert.Equal(t, solver.Interrupted, result.Stats.Adapters[member.ID()])
	}
}

func TestCallerCancelReportsInterrupted(t *testing.T) {
	members := stubs(2, solver.Verdict{})
	for _, member := range members {
		member.Block = true
	}
	portfolio := New(unsatFormula, adapters(members), defaultOptions(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-members[1].Started()
		cancel()
	}()

	result, err := portfolio.Solve(ctx)

	require.NoError(t, err)
	assert.Equal(t, solver.Interrupted, result.Status)
	assert.True(t, members[0].Interrupted())
	assert.True(t, members[1].Interrupted())
}

func TestAdaptersGivingUpReportUnknown(t *testing.T) {
	members := stubs(2, solver.Verdict{Status: solver.Unknown})

	result, err := New(unsatFormula, adapters(members), defaultOptions(), nil, nil).Solve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, solver.Unknown, result.Status)
	assert.Equal(t, NoWinner, result.Winner)
}

func TestAllFaultsReportUnknown(t *testing.T) {
	// Arrange
	members := stubs(3, solver.Verdict{})
	for i, member := range members {
		member.Verdict = solver.Verdict{Status: solver.Fault, Err: &solver.FaultError{Adapter: i, Engine: "stub", Err: errors.New("crashed")}}
	}
	log, hook := recordingLog()

	// Act
	result, err := New(unsatFormula, adapters(members), defaultOptions(), log, nil).Solve(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, solver.Unknown, result.Status)
	assert.Equal(t, NoWinner, result.Winner)
	assert.Nil(t, result.Model)
	assert.Equal(t, map[int]solver.Status{0: solver.Fault, 1: solver.Fault, 2: solver.Fault}, result.Stats.Adapters)
	assert.Equal(t, 3, countEvents(hook, synclog.EventAdapterFault))
	assert.Zero(t, countEvents(hook, synclog.EventVerdictClaimed))
}

func TestInterruptTimeout(t *testing.T) {
	// Arrange
	members := stubs(2, solver.Verdict{Status: solver.Unsat})
	members[1].IgnoreInterrupt = true
	members[1].Delay = 500 * time.Millisecond
	opts := defaultOptions()
	opts.InterruptTimeout = 30 * time.Millisecond
	portfolio := New(unsatFormula, adapters(members), opts, nil, nil)

	// Act
	result, err := portfolio.Solve(context.Background())

	// Assert
	var timeoutErr *InterruptTimeoutError
	require.True(t, errors.As(err, &timeoutErr), "got %v", err)
	assert.Equal(t, []int{1}, timeoutErr.Adapters)
	assert.Equal(t, solver.Unsat, result.Status)
	assert.Equal(t, 0, result.Winner)
	assert.True(t, members[1].Interrupted())
}

func TestFaultIsExcluded(t *testing.T) {
	// Arrange
	members := stubs(2, solver.Verdict{})
	members[0].Verdict = solver.Verdict{Status: solver.Fault, Err: &solver.FaultError{Adapter: 0, Engine: "stub", Err: errors.New("crashed")}}
	members[0].Queue(clause.New([]int64{1, 2}, 2, 0))
	members[1].Verdict = solver.Verdict{Status: solver.Unsat}
	members[1].Delay = 200 * time.Millisecond
	opts := defaultOptions()
	opts.Sharing.Interval = 50 * time.Millisecond
	log, hook := recordingLog()
	portfolio := New(unsatFormula, adapters(members), opts, log, nil)

	// Act
	result, err := portfolio.Solve(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, solver.Unsat, result.Status)
	assert.Equal(t, 1, result.Winner)
	assert.Equal(t, solver.Fault, result.Stats.Adapters[0])
	assert.Empty(t, members[1].Imported())
	assert.Equal(t, 1, countEvents(hook, synclog.EventAdapterFault))
}

func TestInvalidModelIsFault(t *testing.T) {
	members := stubs(2, solver.Verdict{})
	members[0].Verdict = solver.Verdict{Status: solver.Sat, Model: sat.Model{1: false}}
	members[1].Verdict = solver.Verdict{Status: solver.Sat, Model: sat.Model{1: true}}
	members[1].Delay = 50 * time.Millisecond
	portfolio := New(unitFormula, adapters(members), defaultOptions(), nil, nil)

	result, err := portfolio.Solve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, solver.Sat, result.Status)
	assert.Equal(t, 1, result.Winner)
	assert.Equal(t, solver.Fault, result.Stats.Adapters[0])
	assert.True(t, result.Model.Satisfies(unitFormula))
}

func TestTrivialFormulas(t *testing.T) {
	testCases := []struct {
		name    string
		formula sat.SAT
		status  solver.Status
		model   sat.Model
	}{
		{"empty formula", sat.SAT{Variables: 3}, solver.Sat, sat.Model{}},
		{"empty clause", sat.SAT{Variables: 2, Clauses: [][]int64{{1, 2}, {}}}, solver.Unsat, nil},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			member := solvertest.NewStub(0, solver.Verdict{Status: solver.Unknown})
			portfolio := New(testCase.formula, []solver.Adapter{member}, defaultOptions(), nil, nil)

			result, err := portfolio.Solve(context.Background())

			require.NoError(t, err)
			assert.Equal(t, testCase.status, result.Status)
			assert.Empty(t, cmp.Diff(testCase.model, result.Model))
			assert.Equal(t, NoWinner, result.Winner)
			select {
			case <-member.Started():
				t.Fatal("adapter started on a trivial formula")
			default:
			}
		})
	}
}

func TestMalformedFormula(t *testing.T) {
	member := solvertest.NewStub(0, solver.Verdict{Status: solver.Unsat})
	formula := sat.SAT{Variables: 2, Clauses: [][]int64{{1, 3}}}

	_, err := New(formula, []solver.Adapter{member}, defaultOptions(), nil, nil).Solve(context.Background())

	var formulaErr *sat.FormulaError
	assert.True(t, errors.As(err, &formulaErr))
	assert.False(t, member.Finished())
}

func TestSolveRunsOnce(t *testing.T) {
	portfolio := New(unsatFormula, adapters(stubs(1, solver.Verdict{Status: solver.Unsat})), defaultOptions(), nil, nil)
	assert.Equal(t, Idle, portfolio.State())

	_, err := portfolio.Solve(context.Background())
	require.NoError(t, err)
	_, err = portfolio.Solve(context.Background())

	assert.True(t, errors.Is(err, ErrAlreadyStarted))
}

func TestNoAdapters(t *testing.T) {
	_, err := New(unsatFormula, nil, defaultOptions(), nil, nil).Solve(context.Background())

	assert.True(t, errors.Is(err, ErrNoAdapters))
}

func TestClausesFlowDuringRun(t *testing.T) {
	// Arrange
	g := gomega.NewWithT(t)
	members := stubs(2, solver.Verdict{})
	members[0].Block = true
	members[0].Queue(clause.New([]int64{1, -2}, 2, 0))
	members[1].Block = true
	opts := defaultOptions()
	opts.Sharing.Interval = 5 * time.Millisecond
	portfolio := New(unsatFormula, adapters(members), opts, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)

	// Act
	go func() {
		result, _ := portfolio.Solve(ctx)
		done <- result
	}()
	g.Eventually(func() int { return len(members[1].Imported()) }).
		WithTimeout(time.Second).Should(gomega.Equal(1))
	cancel()

	// Assert
	var result Result
	g.Eventually(done).WithTimeout(time.Second).Should(gomega.Receive(&result))
	assert.Equal(t, solver.Interrupted, result.Status)
	assert.Equal(t, uint64(1), result.Stats.Clauses.Published)
	assert.Positive(t, result.Stats.Rounds)
	assert.Empty(t, members[0].Imported())
}

func TestNoneStrategySharesNothing(t *testing.T) {
	members := stubs(2, solver.Verdict{})
	members[0].Queue(clause.New([]int64{1, -2}, 2, 0))
	members[0].Block = true
	members[1].Verdict = solver.Verdict{Status: solver.Unsat}
	members[1].Delay = 50 * time.Millisecond
	opts := defaultOptions()
	opts.Sharing.Kind = sharing.KindNone

	result, err := New(unsatFormula, adapters(members), opts, nil, nil).Solve(context.Background())

	require.NoError(t, err)
	assert.Equal(t, solver.Unsat, result.Status)
	assert.Zero(t, result.Stats.Rounds)
	assert.Empty(t, members[1].Imported())
}
