package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_auth_attempts_total",
			Help: "Authentication attempts by method and result.",
		},
		[]string{"method", "result"},
	)

	oauthCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_oauth_callbacks_total",
			Help: "Provider callbacks by mode and result.",
		},
		[]string{"mode", "result"},
	)

	passkeyCeremonies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_passkey_ceremonies_total",
			Help: "Completed passkey ceremonies by kind and result.",
		},
		[]string{"ceremony", "result"},
	)

	gateLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_gate_user_lookups_total",
			Help: "Access gate user resolutions by cache outcome.",
		},
		[]string{"cache"},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
