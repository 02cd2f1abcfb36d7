package smb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	smb "github.com/marmos91/dittosmb/internal/adapter/smb"
	"github.com/marmos91/dittosmb/internal/adapter/smb/handshake"
	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/internal/telemetry"
	"github.com/marmos91/dittosmb/pkg/adapter"
	"github.com/marmos91/dittosmb/pkg/bufpool"
	"github.com/marmos91/dittosmb/pkg/history"
)

// Byte direction labels for metrics.
const (
	directionIn  = "in"
	directionOut = "out"
)

// statusNone labels requests that got no reply at all.
const statusNone = "none"

// Connection handles a single SMB1 client connection.
//
// One goroutine reads a frame, runs it through the handshake and writes the
// reply before reading the next, so requests are strictly serialized and
// the handshake.Session needs no locking. Only the snapshot exposed through
// Info is shared with other goroutines.
type Connection struct {
	server *Adapter
	id     string
	conn   net.Conn

	session *handshake.Session
	writeMu smb.LockedWriter
	log     *slog.Logger

	mu   sync.RWMutex
	info ConnectionInfo

	// outcome is set once, when the handshake completes or fails.
	outcome string
}

// NewConnection creates a handler for conn with a fresh handshake session.
func NewConnection(server *Adapter, id string, conn net.Conn) *Connection {
	addr := conn.RemoteAddr().String()
	return &Connection{
		server:  server,
		id:      id,
		conn:    conn,
		session: handshake.NewSession(server.options),
		log:     server.Logger().With(logger.ConnectionID(id), logger.Address(addr)),
		info: ConnectionInfo{
			ID:          id,
			RemoteAddr:  addr,
			ConnectedAt: time.Now(),
			State:       handshake.AwaitNegotiate.String(),
		},
	}
}

// Info returns a snapshot of the connection.
func (c *Connection) Info() ConnectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

func (c *Connection) connInfo() *smb.ConnInfo {
	return &smb.ConnInfo{
		Conn:         c.conn,
		Session:      c.session,
		WriteMu:      &c.writeMu,
		WriteTimeout: c.server.config.Timeouts.Write,
		ReportErrors: c.server.config.ReportHandshakeErrors,
	}
}

// Serve handles requests until the client disconnects, a request breaks
// the handshake, a timeout fires or ctx is cancelled.
func (c *Connection) Serve(ctx context.Context) {
	host, port := splitHostPort(c.info.RemoteAddr)

	ctx, span := telemetry.StartConnectionSpan(ctx, c.id, host)
	defer span.End()

	lc := logger.NewLogContext(c.id, host)
	if telemetry.IsEnabled() {
		lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	}
	ctx = logger.WithContext(ctx, lc)

	defer c.handleConnectionClose(ctx)

	c.log.Debug("New SMB connection", logger.ClientPort(port))
	ci := c.connInfo()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("SMB connection closed due to context cancellation")
			return
		case <-c.server.Shutdown:
			c.log.Debug("SMB connection closed due to server shutdown")
			return
		default:
		}

		body, err := smb.ReadRequest(ctx, c.conn, c.server.config.MaxMessageSize.Int(),
			c.server.config.Timeouts.Idle, c.server.config.Timeouts.Read)
		if err != nil {
			c.logReadError(err)
			return
		}
		c.addBytes(directionIn, message.FrameHeaderSize+len(body))

		keep := c.handleRequest(ctx, lc, body, ci)
		bufpool.Put(body)
		if !keep {
			return
		}
	}
}

// handleRequest processes one frame and reports whether the connection
// stays open.
func (c *Connection) handleRequest(ctx context.Context, lc *logger.LogContext, body []byte, ci *smb.ConnInfo) bool {
	start := time.Now()
	stateBefore := c.session.State()

	command := "UNKNOWN"
	var pid uint32
	var tid, uid, mid uint16
	if h, err := header.Parse(body); err == nil {
		command = h.Command.String()
		pid, tid, uid, mid = h.PID, h.TID, h.UID, h.MID
	}

	reqCtx, span := telemetry.StartRequestSpan(ctx, command, stateBefore.String(), pid, tid, uid, mid)
	defer span.End()
	reqCtx = logger.WithContext(reqCtx, lc.WithRequest(command, stateBefore.String(), pid, tid, uid, mid))

	res, err := smb.ProcessRequest(reqCtx, body, ci)

	status := statusNone
	if res.Replied {
		status = res.Status.String()
		span.SetAttributes(telemetry.SMBStatus(uint32(res.Status)))
		c.addBytes(directionOut, res.BytesWritten)
	}
	if m := c.server.metrics; m != nil {
		m.RecordRequest(command, status, time.Since(start))
	}
	c.update(res)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(reqCtx, err)
		return false
	}

	if res.Exchange != nil {
		logger.DebugCtx(reqCtx, "SMB1 exchange",
			"request", res.Exchange.Request.String(),
			"response", res.Exchange.Response.String())
	}

	if stateBefore != handshake.Complete && c.session.State() == handshake.Complete {
		info := c.session.Info()
		logger.InfoCtx(reqCtx, "SMB1 handshake complete",
			logger.Dialect(info.Dialect),
			logger.Account(info.Account),
			logger.Domain(info.Domain),
			logger.TreePath(info.TreePath),
			logger.Service(info.Service),
			logger.DurationMs(float64(time.Since(c.info.ConnectedAt).Microseconds())/1000))
		telemetry.AddEvent(ctx, "handshake.complete",
			telemetry.SMBDialect(info.Dialect),
			telemetry.SMBAccount(info.Account),
			telemetry.SMBTreePath(info.TreePath))
		c.recordHandshake(history.OutcomeCompleted)
	}
	return true
}

// fail logs why a request ended the connection. Negotiation failures are
// logged as warnings since they usually mean an incompatible client.
func (c *Connection) fail(ctx context.Context, err error) {
	c.setCloseErr(err)

	attrs := []any{logger.Err(err)}
	if smb.Reportable(err) {
		attrs = append(attrs, logger.Status(uint32(types.StatusOf(err))))
	}
	var pe adapter.ProtocolError
	if errors.As(err, &pe) {
		attrs = append(attrs, "reason", pe.Message())
	}
	switch {
	case errors.Is(err, types.ErrNegotiationFailed):
		attrs = append(attrs, "offered_dialects", c.session.Info().OfferedDialects)
		logger.WarnCtx(ctx, "SMB1 negotiation failed", attrs...)
	case errors.Is(err, types.ErrHandshakeSequence):
		logger.InfoCtx(ctx, "SMB1 handshake rejected", attrs...)
	case errors.Is(err, types.ErrProtocolDecode):
		logger.InfoCtx(ctx, "Malformed SMB1 request", attrs...)
	default:
		logger.DebugCtx(ctx, "SMB1 reply not delivered", attrs...)
	}

	c.recordHandshake(history.OutcomeFailed)
}

func (c *Connection) logReadError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		c.log.Debug("SMB connection closed by client")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.log.Debug("SMB connection cancelled", logger.Err(err))
		return
	case errors.As(err, &netErr) && netErr.Timeout():
		c.log.Debug("SMB connection timed out", logger.Err(err))
	case errors.Is(err, types.ErrFraming):
		c.log.Info("SMB framing error", logger.Err(err))
	default:
		c.log.Debug("Error reading SMB request", logger.Err(err))
	}
	c.setCloseErr(err)

	// A bad or truncated frame is a broken peer, not an idle one.
	if errors.Is(err, types.ErrFraming) {
		c.recordHandshake(history.OutcomeFailed)
	}
}

func (c *Connection) setCloseErr(err error) {
	c.mu.Lock()
	c.info.Error = err.Error()
	c.mu.Unlock()
}

// update refreshes the snapshot after a request.
func (c *Connection) update(res *smb.Result) {
	si := c.session.Info()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.info.Requests++
	c.info.LastActivity = time.Now()
	c.info.State = si.State.String()
	c.info.LastCommand = res.Command()
	c.info.Dialect = si.Dialect
	c.info.Account = si.Account
	c.info.Domain = si.Domain
	c.info.ClientOS = si.ClientOS
	c.info.ClientLanMan = si.ClientLanMan
	c.info.TreePath = si.TreePath
	c.info.Service = si.Service
	c.info.Echoes = si.Echoes
}

func (c *Connection) addBytes(direction string, n int) {
	if m := c.server.metrics; m != nil {
		m.RecordBytes(direction, n)
	}

	c.mu.Lock()
	if direction == directionIn {
		c.info.BytesIn += int64(n)
	} else {
		c.info.BytesOut += int64(n)
	}
	c.mu.Unlock()
}

func (c *Connection) recordHandshake(outcome string) {
	if c.outcome != "" {
		return
	}
	c.outcome = outcome
	if m := c.server.metrics; m != nil {
		m.RecordHandshake(outcome, time.Since(c.info.ConnectedAt))
	}
}

// handleConnectionClose recovers from panics, closes the socket and writes
// the journal entry.
func (c *Connection) handleConnectionClose(ctx context.Context) {
	if r := recover(); r != nil {
		c.log.Error("Panic in SMB connection handler",
			"error", r,
			"stack", string(debug.Stack()))
	}

	_ = c.conn.Close()

	c.recordHandshake(history.OutcomeAbandoned)
	outcome := c.outcome

	info := c.Info()
	c.log.Debug("SMB connection closed",
		logger.State(info.State),
		"outcome", outcome,
		"requests", info.Requests)

	if c.server.journal == nil {
		return
	}

	// ctx may already be cancelled by shutdown; the entry is still wanted.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.server.journal.Append(jctx, info.entry(time.Now(), outcome)); err != nil {
		c.log.Warn("Failed to record connection history", logger.Err(err))
	}
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
