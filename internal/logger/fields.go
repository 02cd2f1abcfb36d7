package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys. Use them consistently so log lines can be queried
// across connections.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Connection
	KeyConnectionID = "connection_id"
	KeyClientIP     = "client_ip"
	KeyClientPort   = "client_port"
	KeyAddress      = "address"

	// SMB request
	KeyProtocol = "protocol"
	KeyCommand  = "command"
	KeyState    = "state"
	KeyStatus   = "status"
	KeyPID      = "pid"
	KeyTID      = "tid"
	KeyUID      = "uid"
	KeyMID      = "mid"
	KeyBytes    = "bytes"

	// Handshake outcome
	KeyDialect  = "dialect"
	KeyAccount  = "account"
	KeyDomain   = "domain"
	KeyTreePath = "tree_path"
	KeyService  = "service"
	KeyEchoes   = "echoes"

	// Generic
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyComponent  = "component"
)

// ConnectionID returns an attr for the per-connection identifier.
func ConnectionID(id string) slog.Attr {
	return slog.String(KeyConnectionID, id)
}

// ClientIP returns an attr for the client address without port.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

func Address(addr string) slog.Attr {
	return slog.String(KeyAddress, addr)
}

func Protocol(proto string) slog.Attr {
	return slog.String(KeyProtocol, proto)
}

// Command returns an attr for the SMB command name.
func Command(name string) slog.Attr {
	return slog.String(KeyCommand, name)
}

// State returns an attr for the handshake state.
func State(name string) slog.Attr {
	return slog.String(KeyState, name)
}

// Status renders a 32-bit SMB status in hex, the way packet captures show it.
func Status(code uint32) slog.Attr {
	return slog.String(KeyStatus, fmt.Sprintf("0x%08X", code))
}

func MID(mid uint16) slog.Attr {
	return slog.Any(KeyMID, mid)
}

func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

func Dialect(name string) slog.Attr {
	return slog.String(KeyDialect, name)
}

func Account(name string) slog.Attr {
	return slog.String(KeyAccount, name)
}

func Domain(name string) slog.Attr {
	return slog.String(KeyDomain, name)
}

func TreePath(p string) slog.Attr {
	return slog.String(KeyTreePath, p)
}

func Service(s string) slog.Attr {
	return slog.String(KeyService, s)
}

func Echoes(n int) slog.Attr {
	return slog.Int(KeyEchoes, n)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns an attr for err, or an empty attr (dropped by handlers) for nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
