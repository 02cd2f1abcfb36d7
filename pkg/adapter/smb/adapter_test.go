package smb

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/client"
	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/payload"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memJournal struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (j *memJournal) Append(_ context.Context, e history.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) all() []history.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]history.Entry(nil), j.entries...)
}

type recordingMetrics struct {
	mu         sync.Mutex
	handshakes map[string]int
	requests   map[string]int
	bytes      map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		handshakes: map[string]int{},
		requests:   map[string]int{},
		bytes:      map[string]int{},
	}
}

func (m *recordingMetrics) RecordConnectionAccepted()       {}
func (m *recordingMetrics) RecordConnectionRejected(string) {}
func (m *recordingMetrics) RecordConnectionClosed()         {}
func (m *recordingMetrics) RecordConnectionForceClosed()    {}
func (m *recordingMetrics) SetActiveConnections(int32)      {}

func (m *recordingMetrics) RecordRequest(command, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[command+"/"+status]++
}

func (m *recordingMetrics) RecordHandshake(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handshakes[outcome]++
}

func (m *recordingMetrics) RecordBytes(direction string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[direction] += n
}

func (m *recordingMetrics) handshake(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handshakes[outcome]
}

type testServer struct {
	adapter *Adapter
	journal *memJournal
	metrics *recordingMetrics
	addr    string
}

func startServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	cfg.BindAddress = "127.0.0.1"
	if cfg.Timeouts.Shutdown == 0 {
		cfg.Timeouts.Shutdown = time.Second
	}

	a := New(cfg)
	a.BaseAdapter.Config.Port = 0

	ts := &testServer{adapter: a, journal: &memJournal{}, metrics: newRecordingMetrics()}
	a.SetJournal(ts.journal)
	a.SetMetrics(ts.metrics)

	errc := make(chan error, 1)
	go func() { errc <- a.Serve(context.Background()) }()
	ts.addr = a.GetListenerAddr()

	t.Cleanup(func() {
		require.NoError(t, a.Stop(context.Background()))
		require.NoError(t, <-errc)
	})
	return ts
}

// waitEntry waits for the journal entry of the only connection.
func (ts *testServer) waitEntry(t *testing.T) history.Entry {
	t.Helper()
	require.Eventually(t, func() bool { return len(ts.journal.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	return ts.journal.all()[0]
}

func dialRaw(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestProbeEndToEnd(t *testing.T) {
	ts := startServer(t, Config{NativeOS: "TestOS", NativeLanManager: "TestLM"})
	ctx := context.Background()

	c, err := client.Dial(ctx, ts.addr, client.DefaultConfig())
	require.NoError(t, err)

	rep, err := client.Probe(ctx, c, client.ProbeOptions{EchoData: []byte("hello"), KeepAlives: 1})
	require.NoError(t, err)
	assert.True(t, rep.Completed())
	assert.Equal(t, types.DialectNTLM012, rep.Dialect)
	assert.Equal(t, "TestOS", rep.NativeOS)
	assert.Equal(t, "TestLM", rep.NativeLanMan)
	assert.Equal(t, []byte("hello"), rep.EchoData)

	// The snapshot is refreshed right after the reply is written.
	var info ConnectionInfo
	require.Eventually(t, func() bool {
		conns := ts.adapter.Connections()
		if len(conns) != 1 {
			return false
		}
		info = conns[0]
		return info.Requests == 5
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Complete", info.State)
	assert.Equal(t, types.DialectNTLM012, info.Dialect)
	assert.Equal(t, "guest", info.Account)
	assert.Equal(t, "WORKGROUP", info.Domain)
	assert.Equal(t, `\\localhost\share`, info.TreePath)
	assert.Equal(t, 2, info.Echoes)
	assert.Positive(t, info.BytesIn)
	assert.Positive(t, info.BytesOut)

	byID, ok := ts.adapter.Connection(info.ID)
	require.True(t, ok)
	assert.Equal(t, info.ID, byID.ID)

	require.NoError(t, c.Close())
	e := ts.waitEntry(t)
	assert.Equal(t, history.OutcomeCompleted, e.Outcome)
	assert.Equal(t, info.ID, e.ID)
	assert.Empty(t, e.Error)

	assert.Equal(t, 1, ts.metrics.handshake(history.OutcomeCompleted))
	assert.Empty(t, ts.adapter.Connections())
	_, ok = ts.adapter.Connection(info.ID)
	assert.False(t, ok)
}

func TestOutOfOrderRequestClosesSilently(t *testing.T) {
	ts := startServer(t, Config{})
	conn := dialRaw(t, ts.addr)

	req, err := payload.NewRequest(&payload.EchoRequest{EchoCount: 1, Data: []byte("x")},
		types.Flags2Unicode|types.Flags2NTStatus, 1, 0, 0, 1)
	require.NoError(t, err)
	require.NoError(t, message.Write(conn, req))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = message.Read(conn, 64*1024)
	assert.True(t, errors.Is(err, io.EOF), "expected close without reply, got %v", err)

	e := ts.waitEntry(t)
	assert.Equal(t, history.OutcomeFailed, e.Outcome)
	assert.Equal(t, "Failed", e.State)
	assert.Contains(t, e.Error, "handshake sequence error")
	assert.Equal(t, 1, ts.metrics.handshake(history.OutcomeFailed))
}

func TestReportedHandshakeError(t *testing.T) {
	ts := startServer(t, Config{ReportHandshakeErrors: true})
	conn := dialRaw(t, ts.addr)

	req, err := payload.NewRequest(&payload.TreeConnectRequest{Path: `\\h\s`, Service: types.ServiceAny},
		types.Flags2Unicode|types.Flags2NTStatus, 1, 0, 0, 7)
	require.NoError(t, err)
	require.NoError(t, message.Write(conn, req))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := message.Read(conn, 64*1024)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRequestNotAccepted, reply.Status)
	assert.Equal(t, uint16(7), reply.MID)

	_, err = message.Read(conn, 64*1024)
	assert.ErrorIs(t, err, io.EOF)

	e := ts.waitEntry(t)
	assert.Equal(t, history.OutcomeFailed, e.Outcome)
}

func TestNegotiationFailureRecorded(t *testing.T) {
	ts := startServer(t, Config{})
	cfg := client.DefaultConfig()
	cfg.Dialects = []string{"LANMAN2.1"}

	c, err := client.Dial(context.Background(), ts.addr, cfg)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Negotiate(context.Background())
	require.Error(t, err)

	e := ts.waitEntry(t)
	assert.Equal(t, history.OutcomeFailed, e.Outcome)
	assert.Contains(t, e.Error, "negotiation failed")
}

func TestIdleTimeoutAbandons(t *testing.T) {
	ts := startServer(t, Config{Timeouts: TimeoutsConfig{Idle: 50 * time.Millisecond}})
	conn := dialRaw(t, ts.addr)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	e := ts.waitEntry(t)
	assert.Equal(t, history.OutcomeAbandoned, e.Outcome)
	assert.Equal(t, "AwaitNegotiate", e.State)
	assert.NotEmpty(t, e.Error)
	assert.Equal(t, 1, ts.metrics.handshake(history.OutcomeAbandoned))
}

func TestOversizedFrameDropped(t *testing.T) {
	ts := startServer(t, Config{MaxMessageSize: 128})
	conn := dialRaw(t, ts.addr)

	_, err := conn.Write([]byte{0, 0, 1, 0})
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	e := ts.waitEntry(t)
	assert.Equal(t, history.OutcomeFailed, e.Outcome)
	assert.Contains(t, e.Error, "framing")
	assert.Equal(t, 1, ts.metrics.handshake(history.OutcomeFailed))
	assert.Zero(t, ts.metrics.handshake(history.OutcomeAbandoned))
}

func TestTruncatedFrameFails(t *testing.T) {
	ts := startServer(t, Config{})
	conn := dialRaw(t, ts.addr)

	// Announce 64 bytes, send 3, then hang up.
	_, err := conn.Write([]byte{0, 0, 0, 64, 0xFF, 'S', 'M'})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	e := ts.waitEntry(t)
	assert.Equal(t, history.OutcomeFailed, e.Outcome)
	assert.Equal(t, "AwaitNegotiate", e.State)
	assert.Contains(t, e.Error, "framing")
}

func TestShutdownClosesIdleClients(t *testing.T) {
	cfg := Config{BindAddress: "127.0.0.1", Timeouts: TimeoutsConfig{Shutdown: time.Second}}
	a := New(cfg)
	a.BaseAdapter.Config.Port = 0

	errc := make(chan error, 1)
	go func() { errc <- a.Serve(context.Background()) }()

	c, err := client.Dial(context.Background(), a.GetListenerAddr(), client.DefaultConfig())
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Negotiate(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, <-errc)
	assert.Empty(t, a.Connections())
}
