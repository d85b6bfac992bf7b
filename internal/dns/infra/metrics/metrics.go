package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PolicyHits counts lookups that matched a trigger
	PolicyHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpz_policy_hits_total",
		Help: "Total number of policy lookups that matched a trigger",
	}, []string{"zone", "type", "kind"})

	// PolicyLookups counts every lookup by entry point
	PolicyLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpz_policy_lookups_total",
		Help: "Total number of policy lookups",
	}, []string{"stage"})

	// CacheOperations tracks decision cache hits and misses
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpz_cache_operations_total",
		Help: "Total number of decision cache hits and misses",
	}, []string{"result"})

	// ZoneTriggers reports loaded triggers per zone and trigger type
	ZoneTriggers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rpz_zone_triggers",
		Help: "Number of triggers loaded per zone and trigger type",
	}, []string{"zone", "type"})

	// Publishes counts engine snapshots made visible to readers
	Publishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rpz_engine_publishes_total",
		Help: "Total number of engine snapshots published",
	})
)
