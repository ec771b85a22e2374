package ratelimiter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_ratelimit_rejections_total",
		Help: "Requests rejected by the rate limiter.",
	},
	[]string{"class", "dimension"},
)

var memoryEvictions = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "authcore_ratelimit_memory_evictions_total",
		Help: "Refilled buckets evicted from the in-memory store to make room for new keys.",
	},
)

var memoryOverflowDenials = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "authcore_ratelimit_memory_overflow_denials_total",
		Help: "New keys denied because their in-memory shard held only depleted buckets.",
	},
)
