package password

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var hashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "authcore_password_hash_duration_seconds",
		Help:    "Time spent deriving argon2id keys.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	},
	[]string{"op"},
)
