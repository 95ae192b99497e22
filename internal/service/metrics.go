package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "exchange"

// Metrics holds the Prometheus collectors of the exchange.
type Metrics struct {
	Pairings       prometheus.Counter
	PoolSize       prometheus.Gauge
	Proofs         prometheus.Counter
	Verdicts       *prometheus.CounterVec
	Complaints     prometheus.Counter
	Strikes        *prometheus.CounterVec
	Bans           prometheus.Counter
	AutoResolved   prometheus.Counter
	ProofsPurged   prometheus.Counter
	SweepErrors    prometheus.Counter
	SweepDurations prometheus.Histogram
}

// NewMetrics registers the collectors on reg. A nil reg keeps them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Pairings: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pairings_total",
			Help:      "Tasks created by the pairing engine.",
		}),
		PoolSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pool_size",
			Help:      "Users waiting in the readiness pool.",
		}),
		Proofs: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "proofs_submitted_total",
			Help:      "Accepted proof submissions.",
		}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verdicts_total",
			Help:      "Proof verdicts by decision.",
		}, []string{"decision"}),
		Complaints: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "complaints_total",
			Help:      "Complaints filed.",
		}),
		Strikes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "strikes_total",
			Help:      "Strikes issued by source.",
		}, []string{"source"}),
		Bans: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "bans_total",
			Help:      "Users banned, automatically or by an admin.",
		}),
		AutoResolved: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_auto_resolved_total",
			Help:      "Tasks closed by the sweeper.",
		}),
		ProofsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "proofs_purged_total",
			Help:      "Proof blobs deleted after the retention window.",
		}),
		SweepErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_errors_total",
			Help:      "Records skipped by a sweep pass because of an error.",
		}),
		SweepDurations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of sweep passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
