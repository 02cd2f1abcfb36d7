package prometheus

import (
	"time"

	"github.com/marmos91/dittosmb/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type smbMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsRejected    *prometheus.CounterVec
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	requests               *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	handshakes             *prometheus.CounterVec
	handshakeDuration      *prometheus.HistogramVec
	bytes                  *prometheus.CounterVec
}

// NewSMBMetrics registers the SMB collectors on the global registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called), so the
// result can be handed straight to the adapter.
func NewSMBMetrics() metrics.SMBMetrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return newSMBMetrics(reg)
}

func newSMBMetrics(reg prometheus.Registerer) *smbMetrics {
	f := promauto.With(reg)
	return &smbMetrics{
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "dittosmb_connections_accepted_total",
			Help: "Total number of accepted TCP connections",
		}),
		connectionsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosmb_connections_rejected_total",
			Help: "Connections refused before any SMB traffic, by reason",
		}, []string{"reason"}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "dittosmb_connections_closed_total",
			Help: "Total number of closed connections",
		}),
		connectionsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "dittosmb_connections_force_closed_total",
			Help: "Connections force-closed after the shutdown timeout",
		}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "dittosmb_active_connections",
			Help: "Currently open connections",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosmb_requests_total",
			Help: "Decoded SMB requests by command and reply status",
		}, []string{"command", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittosmb_request_duration_seconds",
			Help:    "Time from request decode to reply write",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8), // 50us .. ~820ms
		}, []string{"command"}),
		handshakes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosmb_handshakes_total",
			Help: "Finished connections by handshake outcome",
		}, []string{"outcome"}),
		handshakeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittosmb_handshake_duration_seconds",
			Help:    "Connection lifetime by handshake outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosmb_bytes_total",
			Help: "Framed bytes by direction",
		}, []string{"direction"}),
	}
}

func (m *smbMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *smbMetrics) RecordConnectionRejected(reason string) {
	if m == nil {
		return
	}
	m.connectionsRejected.WithLabelValues(reason).Inc()
}

func (m *smbMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *smbMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *smbMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *smbMetrics) RecordRequest(command, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(command, status).Inc()
	m.requestDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func (m *smbMetrics) RecordHandshake(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(outcome).Inc()
	m.handshakeDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *smbMetrics) RecordBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}
