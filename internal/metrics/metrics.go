// Package metrics holds the prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process-wide registry the API serves.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		CrankStageTotal,
		CrankTotal,
		StoreWriteTotal,
		PollCycleDuration,
		LocatorCacheTotal,
	)
}

// Stage outcomes.
const (
	OutcomeRan     = "ran"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// CrankStageTotal counts pipeline stage executions.
var CrankStageTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crank_stage_total",
		Help: "Crank pipeline stage executions by stage and outcome.",
	},
	[]string{"stage", "outcome"}, // ran | skipped | failed
)

// CrankTotal counts whole pipeline runs.
var CrankTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crank_total",
		Help: "Crank pipeline runs by result.",
	},
	[]string{"result"}, // ok | error
)

// StoreWriteTotal counts record writes, separating fresh inserts from
// idempotent re-saves.
var StoreWriteTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crank_store_write_total",
		Help: "Store writes by entity and outcome.",
	},
	[]string{"entity", "outcome"}, // created | duplicate | error
)

// PollCycleDuration observes monitor poll cycle durations in seconds.
var PollCycleDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "crank_poll_cycle_seconds",
		Help:    "Duration of monitor poll cycles.",
		Buckets: prometheus.DefBuckets,
	},
)

// LocatorCacheTotal counts location cache lookups.
var LocatorCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "crank_locator_cache_total",
		Help: "Locator cache lookups by kind and result.",
	},
	[]string{"kind", "result"}, // hit | miss
)

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
