// Package metrics exposes Prometheus collectors for the trading core: a
// package-level Registry, collectors registered in init(), and small
// Record* helper functions per subsystem rather than a generic metrics
// facade.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the application-specific Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	componentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ict_core",
			Subsystem: "coordinator",
			Name:      "component_state",
			Help:      "Current lifecycle state of a component (one-hot by state label).",
		},
		[]string{"component", "state"},
	)

	componentHeartbeatAge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ict_core",
			Subsystem: "coordinator",
			Name:      "heartbeat_age_seconds",
			Help:      "Seconds since the component's last heartbeat.",
		},
		[]string{"component"},
	)

	recoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ict_core",
			Subsystem: "recovery",
			Name:      "attempts_total",
			Help:      "Total recovery action attempts by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	recoveryActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ict_core",
			Subsystem: "recovery",
			Name:      "active_recoveries",
			Help:      "Number of recovery actions currently in flight.",
		},
		[]string{},
	)

	persistenceWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ict_core",
			Subsystem: "persistence",
			Name:      "writes_total",
			Help:      "Total persistence writes by category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	persistenceWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ict_core",
			Subsystem: "persistence",
			Name:      "write_duration_seconds",
			Help:      "Duration of persistence write operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"category"},
	)

	persistenceReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ict_core",
			Subsystem: "persistence",
			Name:      "read_duration_seconds",
			Help:      "Duration of persistence read operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"category"},
	)

	persistenceStorageBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ict_core",
			Subsystem: "persistence",
			Name:      "storage_bytes",
			Help:      "Estimated on-disk storage used by the persistence layer.",
		},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ict_core",
			Subsystem: "analytics",
			Name:      "events_published_total",
			Help:      "Total analytics events published by event type.",
		},
		[]string{"event_type"},
	)

	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ict_core",
			Subsystem: "analytics",
			Name:      "events_dropped_total",
			Help:      "Total analytics events dropped due to a full queue.",
		},
		[]string{"event_type"},
	)

	signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ict_core",
			Subsystem: "analytics",
			Name:      "signals_generated_total",
			Help:      "Total trading signals generated by symbol.",
		},
		[]string{"symbol"},
	)

	riskRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ict_core",
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Total trades rejected by the risk gate, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	Registry.MustRegister(
		componentState,
		componentHeartbeatAge,
		recoveryAttempts,
		recoveryActive,
		persistenceWrites,
		persistenceWriteDuration,
		persistenceReadDuration,
		persistenceStorageBytes,
		eventsPublished,
		eventsDropped,
		signalsGenerated,
		riskRejections,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordComponentState sets the one-hot state gauge for a component, clearing
// other state labels for that component first.
func RecordComponentState(component, state string, allStates []string) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1.0
		}
		componentState.WithLabelValues(component, s).Set(v)
	}
}

// RecordHeartbeatAge records the age of a component's last heartbeat.
func RecordHeartbeatAge(component string, age time.Duration) {
	componentHeartbeatAge.WithLabelValues(component).Set(age.Seconds())
}

// RecordRecoveryAttempt records the outcome of a recovery action attempt.
func RecordRecoveryAttempt(action, outcome string) {
	recoveryAttempts.WithLabelValues(action, outcome).Inc()
}

// SetActiveRecoveries sets the current in-flight recovery count.
func SetActiveRecoveries(n int) {
	recoveryActive.WithLabelValues().Set(float64(n))
}

// RecordPersistenceWrite records a persistence write's duration and outcome.
func RecordPersistenceWrite(category string, dur time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	persistenceWrites.WithLabelValues(category, outcome).Inc()
	persistenceWriteDuration.WithLabelValues(category).Observe(dur.Seconds())
}

// RecordPersistenceRead records a persistence read's duration.
func RecordPersistenceRead(category string, dur time.Duration) {
	persistenceReadDuration.WithLabelValues(category).Observe(dur.Seconds())
}

// SetStorageBytes sets the estimated total storage used.
func SetStorageBytes(n int64) {
	persistenceStorageBytes.Set(float64(n))
}

// RecordEventPublished increments the published-event counter for eventType.
func RecordEventPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped increments the dropped-event counter for eventType.
func RecordEventDropped(eventType string) {
	eventsDropped.WithLabelValues(eventType).Inc()
}

// RecordSignalGenerated increments the signals-generated counter for symbol.
func RecordSignalGenerated(symbol string) {
	signalsGenerated.WithLabelValues(symbol).Inc()
}

// RecordRiskRejection increments the risk-rejection counter for reason.
func RecordRiskRejection(reason string) {
	riskRejections.WithLabelValues(reason).Inc()
}
