package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/marmos91/dittosmb/internal/logger"
)

// ConnectionHandler is a protocol-specific connection. Serve blocks until the
// connection is closed or ctx is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates a handler for each accepted TCP connection. id
// is the connection's unique identifier, also used as its tracking key.
type ConnectionFactory interface {
	NewConnection(id string, conn net.Conn) ConnectionHandler
}

// BaseConfig holds configuration common to protocol adapters.
type BaseConfig struct {
	// BindAddress is the IP address to bind to. Empty binds all interfaces.
	BindAddress string

	// Port is the TCP port to listen on. 0 picks an ephemeral port.
	Port int

	// MaxConnections limits concurrent connections; extra connections are
	// closed right after accept. 0 means unlimited.
	MaxConnections int

	// AcceptRate is the sustained number of new connections per second;
	// AcceptBurst is the bucket size. A rate of 0 disables limiting.
	AcceptRate  float64
	AcceptBurst int

	// ShutdownTimeout is how long Stop waits for active connections.
	ShutdownTimeout time.Duration

	// MetricsLogInterval enables periodic logging of connection counts.
	MetricsLogInterval time.Duration
}

// MetricsRecorder receives connection lifecycle events. Nil disables it.
type MetricsRecorder interface {
	RecordConnectionAccepted()
	RecordConnectionRejected(reason string)
	RecordConnectionClosed()
	RecordConnectionForceClosed()
	SetActiveConnections(count int32)
}

// Rejection reasons reported to MetricsRecorder.
const (
	RejectMaxConnections = "max_connections"
	RejectRateLimited    = "rate_limited"
)

// OnConnectionClose runs when a connection's goroutine finishes, before its
// slot is released.
type OnConnectionClose func(id string)

// BaseAdapter provides the shared TCP lifecycle: listening, admission
// control, connection tracking and graceful shutdown. Protocol adapters
// embed it and supply a ConnectionFactory.
//
// All exported methods are safe for concurrent use; shutdown is guarded by
// sync.Once so Stop may be called repeatedly.
type BaseAdapter struct {
	Config BaseConfig

	protocolName string

	// Metrics is optional.
	Metrics MetricsRecorder

	log *slog.Logger

	listener   net.Listener
	listenerMu sync.RWMutex

	activeConns  sync.WaitGroup
	shutdownOnce sync.Once

	// Shutdown is closed when shutdown starts.
	Shutdown chan struct{}

	// ConnCount is the number of tracked connections.
	ConnCount atomic.Int32

	connSemaphore chan struct{}
	acceptLimiter *rate.Limiter

	// ShutdownCtx is cancelled during shutdown and is the parent of every
	// connection context.
	ShutdownCtx    context.Context
	CancelRequests context.CancelFunc

	// ActiveConnections maps connection id to net.Conn for forced closure.
	ActiveConnections sync.Map

	// ListenerReady is closed once the listener accepts connections.
	ListenerReady chan struct{}
}

// NewBaseAdapter creates a stopped adapter. log may be nil, in which case
// the global logger is used.
func NewBaseAdapter(config BaseConfig, protocol string, log *slog.Logger) *BaseAdapter {
	if log == nil {
		log = logger.With(logger.Protocol(protocol))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}

	var limiter *rate.Limiter
	if config.AcceptRate > 0 {
		burst := config.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), burst)
	}

	log.Debug("admission control",
		"max_connections", config.MaxConnections,
		"accept_rate", config.AcceptRate,
		"accept_burst", config.AcceptBurst)

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &BaseAdapter{
		Config:         config,
		protocolName:   protocol,
		log:            log,
		Shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		acceptLimiter:  limiter,
		ShutdownCtx:    shutdownCtx,
		CancelRequests: cancelRequests,
		ListenerReady:  make(chan struct{}),
	}
}

// Logger returns the adapter's logger.
func (b *BaseAdapter) Logger() *slog.Logger {
	return b.log
}

// ServeWithFactory runs the accept loop until ctx is cancelled or Stop is
// called.
//
// preAccept, when set, may veto a connection after the built-in admission
// checks. onClose, when set, runs as each connection finishes.
//
// Returns nil on graceful shutdown, or an error if the listener cannot be
// created or connections had to be force-closed.
func (b *BaseAdapter) ServeWithFactory(
	ctx context.Context,
	factory ConnectionFactory,
	preAccept func(net.Conn) bool,
	onClose OnConnectionClose,
) error {
	listenAddr := net.JoinHostPort(b.Config.BindAddress, fmt.Sprint(b.Config.Port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to create %s listener on %s: %w", b.protocolName, listenAddr, err)
	}

	return b.serveListener(ctx, listener, factory, preAccept, onClose)
}

// Accept retry bounds for temporary listener errors such as EMFILE.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// acceptBackoff doubles the retry delay after each consecutive Accept
// failure, up to maxAcceptDelay.
type acceptBackoff struct {
	delay time.Duration
}

func (a *acceptBackoff) next() time.Duration {
	if a.delay == 0 {
		a.delay = minAcceptDelay
	} else {
		a.delay *= 2
	}
	if a.delay > maxAcceptDelay {
		a.delay = maxAcceptDelay
	}
	return a.delay
}

func (a *acceptBackoff) reset() {
	a.delay = 0
}

func (b *BaseAdapter) serveListener(
	ctx context.Context,
	listener net.Listener,
	factory ConnectionFactory,
	preAccept func(net.Conn) bool,
	onClose OnConnectionClose,
) error {
	b.listenerMu.Lock()
	b.listener = listener
	b.listenerMu.Unlock()
	close(b.ListenerReady)

	b.log.Info(b.protocolName+" server listening", logger.Address(listener.Addr().String()))

	go func() {
		select {
		case <-ctx.Done():
			b.log.Info(b.protocolName+" shutdown signal received", logger.Err(ctx.Err()))
			b.initiateShutdown()
		case <-b.Shutdown:
		}
	}()

	if b.Config.MetricsLogInterval > 0 {
		go b.logMetrics(ctx)
	}

	var backoff acceptBackoff
	for {
		tcpConn, err := listener.Accept()
		if err != nil {
			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			default:
			}

			delay := backoff.next()
			b.log.Debug("Error accepting "+b.protocolName+" connection",
				logger.Err(err), "retry_in", delay)

			select {
			case <-b.Shutdown:
				return b.gracefulShutdown()
			case <-time.After(delay):
			}
			continue
		}
		backoff.reset()

		if reason, ok := b.admit(); !ok {
			b.reject(tcpConn, reason)
			continue
		}

		if tcp, ok := tcpConn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				b.log.Debug("Failed to set TCP_NODELAY", logger.Err(err))
			}
		}

		if preAccept != nil && !preAccept(tcpConn) {
			_ = tcpConn.Close()
			b.release()
			continue
		}

		id := uuid.NewString()

		b.activeConns.Add(1)
		current := b.ConnCount.Add(1)
		b.ActiveConnections.Store(id, tcpConn)

		if b.Metrics != nil {
			b.Metrics.RecordConnectionAccepted()
			b.Metrics.SetActiveConnections(current)
		}

		b.log.Debug(b.protocolName+" connection accepted",
			logger.ConnectionID(id),
			logger.Address(tcpConn.RemoteAddr().String()),
			"active", current)

		conn := factory.NewConnection(id, tcpConn)

		go func(id string, tcp net.Conn) {
			defer func() {
				if onClose != nil {
					onClose(id)
				}

				b.ActiveConnections.Delete(id)
				remaining := b.ConnCount.Add(-1)
				b.release()

				if b.Metrics != nil {
					b.Metrics.RecordConnectionClosed()
					b.Metrics.SetActiveConnections(remaining)
				}

				b.log.Debug(b.protocolName+" connection closed",
					logger.ConnectionID(id),
					logger.Address(tcp.RemoteAddr().String()),
					"active", remaining)

				// Last, so a returning Stop sees the bookkeeping above.
				b.activeConns.Done()
			}()

			conn.Serve(b.ShutdownCtx)
		}(id, tcpConn)
	}
}

// admit applies the rate limit and connection cap. On success a semaphore
// slot is held until release.
func (b *BaseAdapter) admit() (string, bool) {
	if b.acceptLimiter != nil && !b.acceptLimiter.Allow() {
		return RejectRateLimited, false
	}
	if b.connSemaphore != nil {
		select {
		case b.connSemaphore <- struct{}{}:
		default:
			return RejectMaxConnections, false
		}
	}
	return "", true
}

func (b *BaseAdapter) release() {
	if b.connSemaphore != nil {
		<-b.connSemaphore
	}
}

func (b *BaseAdapter) reject(conn net.Conn, reason string) {
	b.log.Warn(b.protocolName+" connection rejected",
		logger.Address(conn.RemoteAddr().String()),
		"reason", reason)
	_ = conn.Close()
	if b.Metrics != nil {
		b.Metrics.RecordConnectionRejected(reason)
	}
}

// initiateShutdown closes the listener, interrupts blocked reads and
// cancels ShutdownCtx. Safe to call repeatedly.
func (b *BaseAdapter) initiateShutdown() {
	b.shutdownOnce.Do(func() {
		b.log.Debug(b.protocolName + " shutdown initiated")

		close(b.Shutdown)

		b.listenerMu.Lock()
		if b.listener != nil {
			if err := b.listener.Close(); err != nil {
				b.log.Debug("Error closing "+b.protocolName+" listener", logger.Err(err))
			}
		}
		b.listenerMu.Unlock()

		b.interruptBlockingReads()
		b.CancelRequests()
	})
}

// interruptBlockingReads sets a short read deadline on every connection so
// handlers blocked in a frame read notice the shutdown.
func (b *BaseAdapter) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)

	b.ActiveConnections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			if err := conn.SetReadDeadline(deadline); err != nil {
				b.log.Debug("Error setting shutdown deadline on connection",
					logger.ConnectionID(key.(string)), logger.Err(err))
			}
		}
		return true
	})
}

// gracefulShutdown waits for connections up to ShutdownTimeout, then
// force-closes the rest and reports how many were cut off.
func (b *BaseAdapter) gracefulShutdown() error {
	b.log.Info(b.protocolName+" graceful shutdown: waiting for active connections",
		"active", b.ConnCount.Load(), "timeout", b.Config.ShutdownTimeout)

	select {
	case <-b.waitIdle():
		b.log.Info(b.protocolName + " graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(b.Config.ShutdownTimeout):
		remaining := b.ConnCount.Load()
		b.log.Warn(b.protocolName+" shutdown timeout exceeded - forcing closure",
			"active", remaining, "timeout", b.Config.ShutdownTimeout)
		b.forceCloseConnections()
		return fmt.Errorf("%s shutdown timeout: %d connections force-closed", b.protocolName, remaining)
	}
}

func (b *BaseAdapter) waitIdle() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		b.activeConns.Wait()
		close(done)
	}()
	return done
}

func (b *BaseAdapter) forceCloseConnections() {
	closed := 0
	b.ActiveConnections.Range(func(key, value any) bool {
		conn := value.(net.Conn)
		if err := conn.Close(); err != nil {
			b.log.Debug("Error force-closing connection", logger.ConnectionID(key.(string)), logger.Err(err))
			return true
		}
		closed++
		if b.Metrics != nil {
			b.Metrics.RecordConnectionForceClosed()
		}
		return true
	})
	if closed > 0 {
		b.log.Info("Force-closed connections", "count", closed)
	}
}

// Stop initiates shutdown and waits for connections until ctx is done.
// A nil ctx waits up to ShutdownTimeout instead.
func (b *BaseAdapter) Stop(ctx context.Context) error {
	b.initiateShutdown()

	if ctx == nil {
		return b.gracefulShutdown()
	}

	select {
	case <-b.waitIdle():
		return nil
	case <-ctx.Done():
		b.log.Warn(b.protocolName+" shutdown context cancelled",
			"active", b.ConnCount.Load(), logger.Err(ctx.Err()))
		return ctx.Err()
	}
}

func (b *BaseAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(b.Config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.Shutdown:
			return
		case <-ticker.C:
			b.log.Info(b.protocolName+" metrics", "active_connections", b.ConnCount.Load())
		}
	}
}

// GetActiveConnections returns the number of tracked connections.
func (b *BaseAdapter) GetActiveConnections() int32 {
	return b.ConnCount.Load()
}

// GetListenerAddr blocks until the listener is ready and returns its
// address. Tests use it with Port 0.
func (b *BaseAdapter) GetListenerAddr() string {
	<-b.ListenerReady

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()

	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Ready returns nil while the listener accepts connections: after it is
// bound and before shutdown starts.
func (b *BaseAdapter) Ready() error {
	select {
	case <-b.Shutdown:
		return fmt.Errorf("%s adapter is shutting down", b.protocolName)
	default:
	}

	select {
	case <-b.ListenerReady:
	default:
		return fmt.Errorf("%s listener not started", b.protocolName)
	}

	b.listenerMu.RLock()
	defer b.listenerMu.RUnlock()
	if b.listener == nil {
		return fmt.Errorf("%s listener failed to start", b.protocolName)
	}
	return nil
}

func (b *BaseAdapter) Port() int {
	return b.Config.Port
}

func (b *BaseAdapter) Protocol() string {
	return b.protocolName
}
