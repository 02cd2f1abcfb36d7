package adapter

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// holdFactory creates handlers that block until the peer closes or the
// shutdown context fires, optionally ignoring cancellation.
type holdFactory struct {
	ignoreCancel bool
	mu           sync.Mutex
	ids          []string
}

type holdConn struct {
	conn         net.Conn
	ignoreCancel bool
}

func (f *holdFactory) NewConnection(id string, conn net.Conn) ConnectionHandler {
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()
	return &holdConn{conn: conn, ignoreCancel: f.ignoreCancel}
}

func (c *holdConn) Serve(ctx context.Context) {
	defer c.conn.Close()
	buf := make([]byte, 1)
	for c.ignoreCancel || ctx.Err() == nil {
		if _, err := c.conn.Read(buf); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return
		}
	}
}

type countingMetrics struct {
	mu       sync.Mutex
	accepted int
	rejected map[string]int
	closed   int
	forced   int
}

func (m *countingMetrics) RecordConnectionAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted++
}

func (m *countingMetrics) RecordConnectionRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = map[string]int{}
	}
	m.rejected[reason]++
}

func (m *countingMetrics) RecordConnectionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *countingMetrics) RecordConnectionForceClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced++
}

func (m *countingMetrics) SetActiveConnections(int32) {}

func (m *countingMetrics) rejectedFor(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

func start(t *testing.T, cfg BaseConfig, f ConnectionFactory) (*BaseAdapter, *countingMetrics, chan error) {
	t.Helper()
	cfg.BindAddress = "127.0.0.1"
	b := NewBaseAdapter(cfg, "TEST", nil)
	m := &countingMetrics{}
	b.Metrics = m

	errc := make(chan error, 1)
	go func() { errc <- b.ServeWithFactory(context.Background(), f, nil, nil) }()
	_ = b.GetListenerAddr()
	return b, m, errc
}

// expectClosed waits for the server to close conn.
func expectClosed(t *testing.T, conn net.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestMaxConnectionsRejectsExtra(t *testing.T) {
	b, m, errc := start(t, BaseConfig{MaxConnections: 1, ShutdownTimeout: time.Second}, &holdFactory{})

	first, err := net.Dial("tcp", b.GetListenerAddr())
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return b.GetActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	second, err := net.Dial("tcp", b.GetListenerAddr())
	require.NoError(t, err)
	defer second.Close()
	expectClosed(t, second)

	assert.Equal(t, 1, m.rejectedFor(RejectMaxConnections))
	assert.EqualValues(t, 1, b.GetActiveConnections())

	require.NoError(t, b.Stop(context.Background()))
	require.NoError(t, <-errc)
}

func TestAcceptRateLimit(t *testing.T) {
	b, m, errc := start(t, BaseConfig{AcceptRate: 0.001, AcceptBurst: 1, ShutdownTimeout: time.Second}, &holdFactory{})

	first, err := net.Dial("tcp", b.GetListenerAddr())
	require.NoError(t, err)
	defer first.Close()

	second, err := net.Dial("tcp", b.GetListenerAddr())
	require.NoError(t, err)
	defer second.Close()
	expectClosed(t, second)

	assert.Equal(t, 1, m.rejectedFor(RejectRateLimited))

	require.NoError(t, b.Stop(context.Background()))
	require.NoError(t, <-errc)
}

func TestGracefulShutdownWaitsForConnections(t *testing.T) {
	f := &holdFactory{}
	b, m, errc := start(t, BaseConfig{ShutdownTimeout: time.Second}, f)

	conn, err := net.Dial("tcp", b.GetListenerAddr())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return b.GetActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Stop(context.Background()))
	require.NoError(t, <-errc)

	assert.EqualValues(t, 0, b.GetActiveConnections())
	m.mu.Lock()
	assert.Equal(t, 1, m.accepted)
	assert.Equal(t, 1, m.closed)
	m.mu.Unlock()

	f.mu.Lock()
	require.Len(t, f.ids, 1)
	assert.Len(t, f.ids[0], 36, "connection ids are UUIDs")
	f.mu.Unlock()
}

func TestReady(t *testing.T) {
	b := NewBaseAdapter(BaseConfig{BindAddress: "127.0.0.1", ShutdownTimeout: time.Second}, "TEST", nil)
	assert.EqualError(t, b.Ready(), "TEST listener not started")

	errc := make(chan error, 1)
	go func() { errc <- b.ServeWithFactory(context.Background(), &holdFactory{}, nil, nil) }()
	_ = b.GetListenerAddr()
	assert.NoError(t, b.Ready())

	require.NoError(t, b.Stop(context.Background()))
	require.NoError(t, <-errc)
	assert.EqualError(t, b.Ready(), "TEST adapter is shutting down")
}

func TestShutdownTimeoutForceCloses(t *testing.T) {
	b, m, errc := start(t, BaseConfig{ShutdownTimeout: 50 * time.Millisecond}, &holdFactory{ignoreCancel: true})

	conn, err := net.Dial("tcp", b.GetListenerAddr())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return b.GetActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	b.initiateShutdown()
	err = <-errc
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 connections force-closed")

	m.mu.Lock()
	assert.Equal(t, 1, m.forced)
	m.mu.Unlock()
}

func TestListenFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	b := NewBaseAdapter(BaseConfig{BindAddress: "127.0.0.1", Port: port}, "TEST", nil)
	err = b.ServeWithFactory(context.Background(), &holdFactory{}, nil, nil)
	assert.Error(t, err)
}

// brokenListener fails every Accept, like a listener out of file
// descriptors, until it is closed.
type brokenListener struct {
	mu     sync.Mutex
	calls  int
	closed chan struct{}
	once   sync.Once
}

func newBrokenListener() *brokenListener {
	return &brokenListener{closed: make(chan struct{})}
}

func (l *brokenListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()

	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, errors.New("accept: too many open files")
	}
}

func (l *brokenListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *brokenListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func (l *brokenListener) acceptCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestAcceptErrorsBackOff(t *testing.T) {
	b := NewBaseAdapter(BaseConfig{ShutdownTimeout: time.Second}, "TEST", nil)
	l := newBrokenListener()

	errc := make(chan error, 1)
	go func() { errc <- b.serveListener(context.Background(), l, &holdFactory{}, nil, nil) }()

	time.Sleep(100 * time.Millisecond)
	calls := l.acceptCalls()

	// 5ms, 10ms, 20ms, 40ms: a handful of retries, not a busy loop.
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 8)

	require.NoError(t, b.Stop(context.Background()))
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("accept loop did not stop")
	}
}

func TestAcceptBackoffDoublesAndCaps(t *testing.T) {
	var a acceptBackoff
	assert.Equal(t, 5*time.Millisecond, a.next())
	assert.Equal(t, 10*time.Millisecond, a.next())
	assert.Equal(t, 20*time.Millisecond, a.next())

	for i := 0; i < 10; i++ {
		a.next()
	}
	assert.Equal(t, time.Second, a.next())

	a.reset()
	assert.Equal(t, 5*time.Millisecond, a.next())
}
