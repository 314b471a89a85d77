// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yodeco"

// Label values shared by callers
const (
	BackendRedis = "redis"
	BackendLocal = "local"

	SourceCache    = "cache"
	SourceStore    = "store"
	SourceDegraded = "degraded"

	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
	ResultSkipped = "skipped"
	ResultBusy    = "busy"
)

// Metrics holds every collector of the vote engine. Each instance owns its
// own registry so tests can create as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	VoteSubmissions  *prometheus.CounterVec // result = ok | error kind
	SubmitAttempts   prometheus.Counter
	CacheFallbacks   *prometheus.CounterVec // op
	LockAcquisitions *prometheus.CounterVec // backend, result
	TallyReads       *prometheus.CounterVec // source
	TallyUpdates     *prometheus.CounterVec // result
	BreakerState     *prometheus.GaugeVec   // name; 0 closed, 1 half-open, 2 open
	Sweeps           prometheus.Counter
	Inconsistencies  prometheus.Counter
	Repairs          prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		VoteSubmissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_submissions_total",
			Help:      "Vote submissions by outcome.",
		}, []string{"result"}),
		SubmitAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_submit_attempts_total",
			Help:      "Store attempts made by vote submissions, including retries.",
		}),
		CacheFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_fallbacks_total",
			Help:      "Cache operations served by the in-process store because Redis was unavailable.",
		}, []string{"op"}),
		LockAcquisitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_acquisitions_total",
			Help:      "Lock acquisition attempts by backend and result.",
		}, []string{"backend", "result"}),
		TallyReads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tally_reads_total",
			Help:      "Tally reads by the source that served them.",
		}, []string{"source"}),
		TallyUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tally_updates_total",
			Help:      "Asynchronous cached-tally increments by result.",
		}, []string{"result"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
		Sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_sweeps_total",
			Help:      "Completed consistency sweeps.",
		}),
		Inconsistencies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_inconsistent_awards_total",
			Help:      "Awards found with cached tallies diverging from the store.",
		}),
		Repairs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consistency_repairs_total",
			Help:      "Successful cached tally rebuilds.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
