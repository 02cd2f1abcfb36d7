package smb

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"

	"github.com/marmos91/dittosmb/internal/adapter/smb/handshake"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/adapter"
	"github.com/marmos91/dittosmb/pkg/history"
	"github.com/marmos91/dittosmb/pkg/metrics"
)

// Journal receives the record of every closed connection.
type Journal interface {
	Append(ctx context.Context, e history.Entry) error
}

var _ adapter.Adapter = (*Adapter)(nil)

// Adapter implements adapter.Adapter for the SMB1 handshake protocol.
//
// Adapter embeds BaseAdapter for the shared TCP lifecycle (listener,
// admission control, shutdown, connection tracking). Protocol-specific
// behavior stays here: each accepted socket gets a Connection driving its
// own handshake.Session.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections) [BaseAdapter]
//  3. ShutdownCtx cancelled, blocked reads interrupted [BaseAdapter]
//  4. Wait for active connections (up to Timeouts.Shutdown) [BaseAdapter]
//  5. Force-close the rest [BaseAdapter]
type Adapter struct {
	*adapter.BaseAdapter

	config  Config
	options handshake.Options

	metrics metrics.SMBMetrics
	journal Journal

	connsMu sync.RWMutex
	conns   map[string]*Connection
}

// New creates a stopped Adapter. Zero values in config are replaced with
// defaults; an invalid configuration panics since it indicates a
// programmer error (user input goes through pkg/config validation first).
func New(config Config) *Adapter {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("invalid SMB config: %v", err))
	}

	baseConfig := adapter.BaseConfig{
		BindAddress:        config.BindAddress,
		Port:               config.Port,
		MaxConnections:     config.MaxConnections,
		AcceptRate:         config.AcceptRate,
		AcceptBurst:        config.AcceptBurst,
		ShutdownTimeout:    config.Timeouts.Shutdown,
		MetricsLogInterval: config.MetricsLogInterval,
	}

	a := &Adapter{
		BaseAdapter: adapter.NewBaseAdapter(baseConfig, "SMB", nil),
		config:      config,
		options:     config.HandshakeOptions(),
		conns:       make(map[string]*Connection),
	}

	a.Logger().Debug("SMB1 handshake settings",
		logger.Dialect(a.options.Dialect),
		"native_os", a.options.NativeOS,
		"native_lan_manager", a.options.NativeLanMan,
		"report_errors", config.ReportHandshakeErrors,
		"max_message_size", config.MaxMessageSize.String())

	return a
}

// SetMetrics installs a metrics sink. Must be called before Serve. nil
// disables metrics.
func (s *Adapter) SetMetrics(m metrics.SMBMetrics) {
	s.metrics = m
	s.Metrics = m
}

// SetJournal installs a journal for closed connections. Must be called
// before Serve.
func (s *Adapter) SetJournal(j Journal) {
	s.journal = j
}

// SetClock overrides the clock used for NEGOTIATE system time. Intended
// for tests.
func (s *Adapter) SetClock(c handshake.Clock) {
	s.options.Clock = c
}

// Config returns the effective configuration (defaults applied).
func (s *Adapter) Config() Config {
	return s.config
}

// Serve starts the SMB server and blocks until ctx is cancelled or Stop is
// called. It returns nil on graceful shutdown.
func (s *Adapter) Serve(ctx context.Context) error {
	return s.ServeWithFactory(ctx, s, nil, s.untrack)
}

// NewConnection implements adapter.ConnectionFactory.
func (s *Adapter) NewConnection(id string, conn net.Conn) adapter.ConnectionHandler {
	c := NewConnection(s, id, conn)

	s.connsMu.Lock()
	s.conns[id] = c
	s.connsMu.Unlock()

	return c
}

func (s *Adapter) untrack(id string) {
	s.connsMu.Lock()
	delete(s.conns, id)
	s.connsMu.Unlock()
}

// Connections returns a snapshot of every open connection, oldest first.
func (s *Adapter) Connections() []ConnectionInfo {
	s.connsMu.RLock()
	out := make([]ConnectionInfo, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c.Info())
	}
	s.connsMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Connection returns the snapshot of one open connection.
func (s *Adapter) Connection(id string) (ConnectionInfo, bool) {
	s.connsMu.RLock()
	c, ok := s.conns[id]
	s.connsMu.RUnlock()
	if !ok {
		return ConnectionInfo{}, false
	}
	return c.Info(), true
}
