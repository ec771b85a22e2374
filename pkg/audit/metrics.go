package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_audit_events_dropped_total",
		Help: "Audit events dropped because the buffer was full.",
	})
	eventsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_audit_events_written_total",
		Help: "Audit events persisted to storage.",
	})
	writeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_audit_write_errors_total",
		Help: "Audit batches that failed to persist.",
	})
)
