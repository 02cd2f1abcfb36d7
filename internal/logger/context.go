package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries per-connection and per-request fields that the *Ctx
// logging helpers prepend to every record.
type LogContext struct {
	TraceID      string
	SpanID       string
	ConnectionID string
	ClientIP     string
	Command      string // SMB command name (NEGOTIATE, ECHO, ...)
	State        string // handshake state when the request arrived
	PID          uint32
	TID          uint16
	UID          uint16
	MID          uint16
	StartTime    time.Time
}

// WithContext returns a new context with the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if none is attached.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a freshly accepted connection.
func NewLogContext(connectionID, clientIP string) *LogContext {
	return &LogContext{
		ConnectionID: connectionID,
		ClientIP:     clientIP,
		StartTime:    time.Now(),
	}
}

// Clone returns a shallow copy.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithRequest returns a copy describing one decoded request.
func (lc *LogContext) WithRequest(command, state string, pid uint32, tid, uid, mid uint16) *LogContext {
	c := lc.Clone()
	if c == nil {
		return nil
	}
	c.Command = command
	c.State = state
	c.PID = pid
	c.TID = tid
	c.UID = uid
	c.MID = mid
	c.StartTime = time.Now()
	return c
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

// args renders the populated fields as slog key/value pairs.
func (lc *LogContext) args() []any {
	out := make([]any, 0, 20)
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	if lc.ConnectionID != "" {
		out = append(out, KeyConnectionID, lc.ConnectionID)
	}
	if lc.ClientIP != "" {
		out = append(out, KeyClientIP, lc.ClientIP)
	}
	if lc.Command != "" {
		out = append(out, KeyCommand, lc.Command)
	}
	if lc.State != "" {
		out = append(out, KeyState, lc.State)
	}
	if lc.Command != "" {
		out = append(out, KeyPID, lc.PID, KeyTID, lc.TID, KeyUID, lc.UID, KeyMID, lc.MID)
	}
	return out
}
