package synclog

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsCarryTheirName(t *testing.T) {
	// Arrange
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	log := New(logger).With("clausedb")

	// Act
	log.ClausePublished(1, 3, 2, 42)
	log.ClauseEvicted(2, 5, 4)
	log.VerdictClaimed(0, "cdcl", "SAT")
	log.AdapterFault(3, "gini", errors.New("boom"))

	// Assert
	entries := hook.AllEntries()
	require.Len(t, entries, 4)
	assert.Equal(t, EventClausePublished, entries[0].Data[EventKey])
	assert.Equal(t, "clausedb", entries[0].Data["component"])
	assert.Equal(t, logrus.TraceLevel, entries[0].Level)
	assert.Equal(t, EventClauseEvicted, entries[1].Data[EventKey])
	assert.Equal(t, EventVerdictClaimed, entries[2].Data[EventKey])
	assert.Equal(t, logrus.InfoLevel, entries[2].Level)
	assert.Equal(t, logrus.WarnLevel, entries[3].Level)
}

func TestDisabledLevelsAreSkipped(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)
	log := New(logger)

	log.ClausePublished(1, 3, 2, 42)
	log.SharingRound(0, 1, 10, 2, 8, time.Millisecond)
	log.AdapterFinished(1, "cdcl", "UNSAT", time.Second)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, EventAdapterFinished, hook.LastEntry().Data[EventKey])
}

func TestConcurrentUse(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)
	log := New(logger)

	var wg sync.WaitGroup
	for producer := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				log.ClauseDuplicate(producer, 7)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, hook.AllEntries(), 400)
}

func TestDiscard(t *testing.T) {
	log := Discard()

	assert.False(t, log.Enabled(logrus.ErrorLevel))
	log.AdapterInterrupted(1)
}
