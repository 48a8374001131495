package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the store's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	persistOps      *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	activitiesTotal prometheus.Gauge
	activitiesDone  prometheus.Gauge
	streakDays      prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		persistOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bucketlist",
			Subsystem: "store",
			Name:      "persist_operations_total",
			Help:      "Write-through operations against the key-value medium by key, operation and result.",
		}, []string{"key", "op", "result"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bucketlist",
			Subsystem: "store",
			Name:      "decode_failures_total",
			Help:      "Stored payloads that could not be decoded and were replaced with empty state.",
		}, []string{"key"}),
		activitiesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bucketlist",
			Subsystem: "progress",
			Name:      "activities",
			Help:      "Activities in the latest observed snapshot.",
		}),
		activitiesDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bucketlist",
			Subsystem: "progress",
			Name:      "completed_activities",
			Help:      "Completed activities in the latest observed snapshot.",
		}),
		streakDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bucketlist",
			Subsystem: "progress",
			Name:      "streak_days",
			Help:      "Longest run of consecutive completion days in the latest observed snapshot.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.persistOps, m.decodeFailures, m.activitiesTotal, m.activitiesDone, m.streakDays)
	}
	return m
}

// RecordPersist counts one write-through operation.
func (m *Metrics) RecordPersist(key, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persistOps.WithLabelValues(key, op, result).Inc()
}

// RecordDecodeFailure counts a payload replaced by empty state.
func (m *Metrics) RecordDecodeFailure(key string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(key).Inc()
}

// RecordProgress publishes the derived progress of an observed snapshot.
func (m *Metrics) RecordProgress(total, completed, streak int) {
	if m == nil {
		return
	}
	m.activitiesTotal.Set(float64(total))
	m.activitiesDone.Set(float64(completed))
	m.streakDays.Set(float64(streak))
}
