package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistersEveryCollector(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)
	m.ClausesPublished.Add(3)
	m.ClausesImported.WithLabelValues("1", "cdcl").Inc()
	m.Verdicts.WithLabelValues("SAT").Inc()
	m.JoinSeconds.Observe(0.01)

	count, err := testutil.GatherAndCount(registry)
	assert.NoError(t, err)
	assert.Equal(t, 9, count)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ClausesPublished))
}

func TestNewWithoutRegisterer(t *testing.T) {
	a := New(nil)
	b := New(nil)

	a.ClausesEvicted.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.ClausesEvicted))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.ClausesEvicted))
}
