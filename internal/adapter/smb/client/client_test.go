package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	smb "github.com/marmos91/dittosmb/internal/adapter/smb"
	"github.com/marmos91/dittosmb/internal/adapter/smb/handshake"
	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/payload"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve answers requests on conn with a real handshake session until the
// session fails or the peer goes away.
func serve(t *testing.T, conn net.Conn, report bool) {
	t.Helper()
	info := &smb.ConnInfo{
		Conn:         conn,
		Session:      handshake.NewSession(handshake.DefaultOptions()),
		WriteMu:      &smb.LockedWriter{},
		WriteTimeout: time.Second,
		ReportErrors: report,
	}
	go func() {
		defer conn.Close()
		for {
			body, err := smb.ReadRequest(context.Background(), conn, 64*1024, 0, 0)
			if err != nil {
				return
			}
			if _, err := smb.ProcessRequest(context.Background(), body, info); err != nil {
				return
			}
		}
	}()
}

func newPair(t *testing.T, report bool, cfg Config) *Client {
	t.Helper()
	srv, cli := net.Pipe()
	serve(t, srv, report)
	c := New(cli, cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestProbeCompletesHandshake(t *testing.T) {
	c := newPair(t, false, DefaultConfig())

	rep, err := Probe(context.Background(), c, ProbeOptions{EchoData: []byte("ping"), KeepAlives: 2})
	require.NoError(t, err)

	assert.True(t, rep.Completed())
	require.Len(t, rep.Steps, 6)
	assert.Equal(t, types.CommandNegotiate, rep.Steps[0].Command)
	assert.Equal(t, types.CommandEcho, rep.Steps[5].Command)

	assert.Equal(t, types.DialectNTLM012, rep.Dialect)
	assert.True(t, rep.ServerCapabilities.Has(types.CapUnicode))
	assert.Equal(t, "Unix", rep.NativeOS)
	assert.Equal(t, "DittoSMB", rep.NativeLanMan)
	assert.Equal(t, types.ServiceDisk, rep.Service)
	assert.Equal(t, []byte("ping"), rep.EchoData)
	assert.Equal(t, 2, rep.KeepAlives)
	assert.WithinDuration(t, time.Now(), rep.ServerTime, time.Minute)
}

func TestProbeASCIIClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Unicode = false
	c := newPair(t, false, cfg)

	rep, err := Probe(context.Background(), c, ProbeOptions{})
	require.NoError(t, err)
	assert.True(t, rep.Completed())
}

func TestProbeReportedRejection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service = "LPT1:"
	c := newPair(t, true, cfg)

	rep, err := Probe(context.Background(), c, ProbeOptions{})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.CommandTreeConnectAndX, se.Command)
	assert.Equal(t, types.StatusBadNetworkName, se.Status)
	assert.False(t, rep.Completed())
	assert.Len(t, rep.Steps, 3)
}

func TestProbeSilentRejection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialects = []string{"LANMAN2.1"}
	c := newPair(t, false, cfg)

	rep, err := Probe(context.Background(), c, ProbeOptions{})
	require.Error(t, err)
	assert.Len(t, rep.Steps, 1)
	assert.Empty(t, rep.Dialect)
}

func TestEchoCountTooHigh(t *testing.T) {
	c := newPair(t, true, DefaultConfig())
	ctx := context.Background()

	neg, err := c.Negotiate(ctx)
	require.NoError(t, err)
	_, err = c.SessionSetup(ctx, neg.Capabilities)
	require.NoError(t, err)
	_, err = c.TreeConnect(ctx)
	require.NoError(t, err)

	_, err = c.EchoN(ctx, 2, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.StatusInvalidParameter, se.Status)
}

func TestRoundTripRejectsWrongMID(t *testing.T) {
	srv, cli := net.Pipe()
	t.Cleanup(func() { _ = srv.Close() })

	go func() {
		req, err := message.Read(srv, 64*1024)
		if err != nil {
			return
		}
		req.MID++
		reply := payload.ErrorReply(req, types.StatusSuccess)
		_ = message.Write(srv, reply)
	}()

	c := New(cli, DefaultConfig())
	defer c.Close()

	_, err := c.Negotiate(context.Background())
	assert.True(t, errors.Is(err, ErrUnexpectedReply))
}

func TestDeadlineFromContext(t *testing.T) {
	srv, cli := net.Pipe()
	t.Cleanup(func() { _ = srv.Close() })
	go func() { _, _ = message.ReadFrame(srv, 64*1024) }()

	cfg := DefaultConfig()
	cfg.IOTimeout = 0
	c := New(cli, cfg)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Negotiate(ctx)
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}
