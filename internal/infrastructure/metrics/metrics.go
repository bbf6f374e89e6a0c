// Package metrics exposes Prometheus collectors for engine calls,
// notification dispatch and exports.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/garyjia/approval-bridge/internal/application/dispatcher"
	"github.com/garyjia/approval-bridge/internal/domain/event"
)

const namespace = "approval_bridge"

// Metrics groups the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	engineRequests *prometheus.CounterVec
	engineLatency  *prometheus.HistogramVec
	recipients     *prometheus.CounterVec
	exports        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		engineRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Calls made to the process engine, by operation and outcome.",
		}, []string{"op", "outcome"}),
		engineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "Latency of process engine calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		recipients: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "recipients_total",
			Help:      "Notification recipients by transition and outcome.",
		}, []string{"transition", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "requests_total",
			Help:      "Export requests by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.engineRequests, m.engineLatency, m.recipients, m.exports)
	return m
}

// ObserveEngineCall records one engine round trip.
func (m *Metrics) ObserveEngineCall(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.engineRequests.WithLabelValues(op, outcome).Inc()
	m.engineLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveExport records the outcome of one export request.
func (m *Metrics) ObserveExport(outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome).Inc()
}

// DispatchHandler turns dispatch.completed events into recipient counters.
func (m *Metrics) DispatchHandler() dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if m == nil {
			return nil
		}
		transition := evt.GetPayloadString("transition")
		for _, outcome := range []string{"created", "updated", "skipped", "failed"} {
			if n := evt.GetPayloadInt(outcome); n > 0 {
				m.recipients.WithLabelValues(transition, outcome).Add(float64(n))
			}
		}
		return nil
	}
}
