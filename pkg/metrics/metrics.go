package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace    = "satportfolio"
	AdapterLabel = "adapter"
	EngineLabel  = "engine"
	StatusLabel  = "status"
)

// Metrics holds the collectors of one portfolio run.
type Metrics struct {
	ClausesPublished prometheus.Counter
	ClausesDuplicate prometheus.Counter
	ClausesEvicted   prometheus.Counter
	ClausesDrained   prometheus.Counter
	ClausesFiltered  prometheus.Counter
	ClausesImported  *prometheus.CounterVec
	SharingRounds    prometheus.Counter
	Verdicts         *prometheus.CounterVec
	JoinSeconds      prometheus.Histogram
}

// New creates and registers the collectors. A nil registerer gets a private registry.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	m := &Metrics{
		ClausesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clauses_published_total",
			Help:      "Learnt clauses accepted by a clause database",
		}),
		ClausesDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clauses_duplicates_total",
			Help:      "Published clauses discarded because an identical clause was already known",
		}),
		ClausesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clauses_evicted_total",
			Help:      "Pending clauses dropped from a full consumer inbox",
		}),
		ClausesDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clauses_drained_total",
			Help:      "Clauses removed from consumer inboxes for delivery",
		}),
		ClausesFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clauses_filtered_total",
			Help:      "Exported clauses rejected by the sharing filters before publish",
		}),
		ClausesImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clauses_imported_total",
			Help:      "Clauses handed to an adapter",
		}, []string{AdapterLabel, EngineLabel}),
		SharingRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sharing_rounds_total",
			Help:      "Completed sharing rounds over all sharers",
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Final verdicts reported by portfolio runs",
		}, []string{StatusLabel}),
		JoinSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "join_seconds",
			Help:      "Time between termination and the last adapter returning",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	registerer.MustRegister(
		m.ClausesPublished,
		m.ClausesDuplicate,
		m.ClausesEvicted,
		m.ClausesDrained,
		m.ClausesFiltered,
		m.ClausesImported,
		m.SharingRounds,
		m.Verdicts,
		m.JoinSeconds,
	)
	return m
}
