package rosbridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts traffic on a rosbridge connection.
type Metrics struct {
	OpsSent      *prometheus.CounterVec
	ServiceCalls *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewMetrics registers the client collectors with reg. A nil registerer
// keeps the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OpsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenebridge",
			Subsystem: "rosbridge",
			Name:      "ops_sent_total",
			Help:      "Operations sent to the rosbridge server.",
		}, []string{"op"}),
		ServiceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenebridge",
			Subsystem: "rosbridge",
			Name:      "service_calls_total",
			Help:      "Service calls by service and outcome.",
		}, []string{"service", "outcome"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scenebridge",
			Subsystem: "rosbridge",
			Name:      "service_call_seconds",
			Help:      "Round trip time of service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
}

func (m *Metrics) opSent(op string) {
	if m == nil {
		return
	}
	m.OpsSent.WithLabelValues(op).Inc()
}

func (m *Metrics) callDone(service, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.ServiceCalls.WithLabelValues(service, outcome).Inc()
	m.CallDuration.WithLabelValues(service).Observe(time.Since(started).Seconds())
}
