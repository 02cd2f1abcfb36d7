// Package metrics holds the process-wide Prometheus registry and the
// observability interfaces the SMB adapter reports through.
//
// Collection is opt-in: until InitRegistry is called IsEnabled reports false
// and constructors in the prometheus subpackage return nil, which every
// recorder treats as a no-op.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the registry with Go runtime and process collectors.
// Calling it again replaces the registry.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mu.Lock()
	registry = reg
	mu.Unlock()
	return reg
}

// Reset drops the registry and disables collection.
func Reset() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}

func IsEnabled() bool {
	return GetRegistry() != nil
}

func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler serves the registry in the exposition format. It answers 404
// while metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// SMBMetrics records connection lifecycle and handshake outcomes for the
// SMB adapter. A nil SMBMetrics is valid and disables collection.
type SMBMetrics interface {
	// RecordConnectionAccepted counts an accepted TCP connection.
	RecordConnectionAccepted()

	// RecordConnectionRejected counts a connection refused before any
	// SMB traffic, by reason ("max_connections", "rate_limited").
	RecordConnectionRejected(reason string)

	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections still open when the
	// shutdown timeout expired.
	RecordConnectionForceClosed()

	SetActiveConnections(count int32)

	// RecordRequest observes one decoded request. status is the reply
	// status name, or "dropped" when no reply was written.
	RecordRequest(command, status string, duration time.Duration)

	// RecordHandshake observes a finished connection by the state it
	// reached ("complete", "failed", "aborted").
	RecordHandshake(outcome string, duration time.Duration)

	// RecordBytes counts framed bytes in direction "rx" or "tx".
	RecordBytes(direction string, n int)
}
