package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Client keys follow OpenTelemetry semantic conventions;
// SMB keys use the "smb." prefix.
const (
	AttrClientIP     = "client.address"
	AttrClientPort   = "client.port"
	AttrConnectionID = "smb.connection_id"

	AttrSMBCommand = "smb.command"
	AttrSMBState   = "smb.state"
	AttrSMBStatus  = "smb.status"
	AttrSMBPID     = "smb.pid"
	AttrSMBTID     = "smb.tid"
	AttrSMBUID     = "smb.uid"
	AttrSMBMID     = "smb.mid"
	AttrSMBDialect = "smb.dialect"
	AttrSMBAccount = "smb.account"
	AttrSMBDomain  = "smb.domain"
	AttrSMBPath    = "smb.tree_path"
	AttrSMBService = "smb.service"
	AttrSMBEchoes  = "smb.echo_count"
)

// Span names.
const (
	SpanSMBConnection = "smb.connection"
	SpanProbe         = "smb.probe"
)

func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

func ClientPort(port int) attribute.KeyValue {
	return attribute.Int(AttrClientPort, port)
}

func ConnectionID(id string) attribute.KeyValue {
	return attribute.String(AttrConnectionID, id)
}

func SMBCommand(name string) attribute.KeyValue {
	return attribute.String(AttrSMBCommand, name)
}

func SMBState(name string) attribute.KeyValue {
	return attribute.String(AttrSMBState, name)
}

// SMBStatus renders a status as hex, matching the log field.
func SMBStatus(code uint32) attribute.KeyValue {
	return attribute.String(AttrSMBStatus, fmt.Sprintf("0x%08X", code))
}

func SMBDialect(name string) attribute.KeyValue {
	return attribute.String(AttrSMBDialect, name)
}

func SMBAccount(name string) attribute.KeyValue {
	return attribute.String(AttrSMBAccount, name)
}

func SMBDomain(name string) attribute.KeyValue {
	return attribute.String(AttrSMBDomain, name)
}

func SMBTreePath(p string) attribute.KeyValue {
	return attribute.String(AttrSMBPath, p)
}

func SMBService(s string) attribute.KeyValue {
	return attribute.String(AttrSMBService, s)
}

func SMBEchoCount(n int) attribute.KeyValue {
	return attribute.Int(AttrSMBEchoes, n)
}

// SMBIDs returns the four correlation ids carried in every SMB1 header.
func SMBIDs(pid uint32, tid, uid, mid uint16) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrSMBPID, int64(pid)),
		attribute.Int(AttrSMBTID, int(tid)),
		attribute.Int(AttrSMBUID, int(uid)),
		attribute.Int(AttrSMBMID, int(mid)),
	}
}

// StartConnectionSpan starts the root span covering one accepted connection.
func StartConnectionSpan(ctx context.Context, connectionID, clientIP string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSMBConnection,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(ConnectionID(connectionID), ClientIP(clientIP)),
	)
}

// StartRequestSpan starts a child span for one SMB request, named after the
// command ("smb.NEGOTIATE").
func StartRequestSpan(ctx context.Context, command, state string, pid uint32, tid, uid, mid uint16) (context.Context, trace.Span) {
	attrs := append([]attribute.KeyValue{SMBCommand(command), SMBState(state)}, SMBIDs(pid, tid, uid, mid)...)
	return StartSpan(ctx, "smb."+command, trace.WithAttributes(attrs...))
}
