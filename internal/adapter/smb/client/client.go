// Package client drives the SMB1 handshake from the client side. It backs
// the probe command and the end-to-end tests of the server adapter.
//
// A Client is a lock-step requester: one request is in flight at a time and
// every reply must echo the request's MID.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/payload"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// ErrUnexpectedReply is returned when a reply does not match the request it
// should answer.
var ErrUnexpectedReply = errors.New("smb client: unexpected reply")

// StatusError is a reply that carried an error status.
type StatusError struct {
	Command types.Command
	Status  types.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("smb client: %s failed with %s", e.Command, e.Status)
}

// Config holds the values a Client sends.
type Config struct {
	// Unicode selects UTF-16 strings in requests.
	Unicode bool

	Dialects     []string
	Capabilities types.Capabilities

	Account      string
	Domain       string
	NativeOS     string
	NativeLanMan string

	Path    string
	Service string

	// IOTimeout bounds each request/reply exchange when the context has
	// no earlier deadline. Zero disables it.
	IOTimeout time.Duration

	MaxMessageSize int

	PID uint32
}

// DefaultConfig returns the settings of a Unicode NT LM 0.12 client that
// connects to any service on \\localhost\share.
func DefaultConfig() Config {
	return Config{
		Unicode:        true,
		Dialects:       []string{"PC NETWORK PROGRAM 1.0", "LANMAN1.0", types.DialectNTLM012},
		Capabilities:   types.CapUnicode | types.CapLargeFiles | types.CapStatus32,
		Account:        "guest",
		Domain:         "WORKGROUP",
		NativeOS:       "Unix",
		NativeLanMan:   "dittosmb-probe",
		Path:           `\\localhost\share`,
		Service:        types.ServiceAny,
		IOTimeout:      5 * time.Second,
		MaxMessageSize: 64 * 1024,
		PID:            0x0000FEFF,
	}
}

// Client speaks SMB1 over one connection. It is not safe for concurrent use.
type Client struct {
	conn net.Conn
	cfg  Config
	mid  uint16
	uid  uint16
	tid  uint16
}

// New wraps an established connection.
func New(conn net.Conn, cfg Config) *Client {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultConfig().MaxMessageSize
	}
	return &Client{conn: conn, cfg: cfg}
}

// Dial connects to address and wraps the connection.
func Dial(ctx context.Context, address string, cfg Config) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return New(conn, cfg), nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) flags2() types.Flags2 {
	f := types.Flags2LongNames | types.Flags2NTStatus
	if c.cfg.Unicode {
		f |= types.Flags2Unicode
	}
	return f
}

// Negotiate offers the configured dialects.
func (c *Client) Negotiate(ctx context.Context) (*payload.NegotiateResponse, error) {
	p, err := c.roundTrip(ctx, &payload.NegotiateRequest{Dialects: c.cfg.Dialects})
	if err != nil {
		return nil, err
	}
	return p.(*payload.NegotiateResponse), nil
}

// SessionSetup logs in anonymously with caps, which should be a subset of
// what the server advertised.
func (c *Client) SessionSetup(ctx context.Context, caps types.Capabilities) (*payload.SessionSetupResponse, error) {
	p, err := c.roundTrip(ctx, &payload.SessionSetupRequest{
		MaxBufferSize: 0xFFFF,
		MaxMpxCount:   1,
		Capabilities:  caps,
		AccountName:   c.cfg.Account,
		PrimaryDomain: c.cfg.Domain,
		NativeOS:      c.cfg.NativeOS,
		NativeLanMan:  c.cfg.NativeLanMan,
	})
	if err != nil {
		return nil, err
	}
	return p.(*payload.SessionSetupResponse), nil
}

func (c *Client) TreeConnect(ctx context.Context) (*payload.TreeConnectResponse, error) {
	p, err := c.roundTrip(ctx, &payload.TreeConnectRequest{Path: c.cfg.Path, Service: c.cfg.Service})
	if err != nil {
		return nil, err
	}
	return p.(*payload.TreeConnectResponse), nil
}

// Echo sends data with an echo count of one.
func (c *Client) Echo(ctx context.Context, data []byte) (*payload.EchoResponse, error) {
	return c.EchoN(ctx, 1, data)
}

// EchoN sends an ECHO with an arbitrary count. The server only honours
// counts of zero or one.
func (c *Client) EchoN(ctx context.Context, count uint16, data []byte) (*payload.EchoResponse, error) {
	p, err := c.roundTrip(ctx, &payload.EchoRequest{EchoCount: count, Data: data})
	if err != nil {
		return nil, err
	}
	return p.(*payload.EchoResponse), nil
}

// Send writes p without waiting for a reply and returns the MID used.
func (c *Client) Send(ctx context.Context, p payload.Payload) (uint16, error) {
	c.mid++
	req, err := payload.NewRequest(p, c.flags2(), c.cfg.PID, c.tid, c.uid, c.mid)
	if err != nil {
		return 0, err
	}
	if err := c.deadline(ctx); err != nil {
		return 0, err
	}
	if err := message.Write(c.conn, req); err != nil {
		return 0, err
	}
	return c.mid, nil
}

// Receive reads the next reply.
func (c *Client) Receive(ctx context.Context) (*message.Message, error) {
	if err := c.deadline(ctx); err != nil {
		return nil, err
	}
	return message.Read(c.conn, c.cfg.MaxMessageSize)
}

func (c *Client) roundTrip(ctx context.Context, p payload.Payload) (payload.Payload, error) {
	mid, err := c.Send(ctx, p)
	if err != nil {
		return nil, err
	}
	reply, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case !reply.IsReply():
		return nil, fmt.Errorf("%w: REPLY flag not set", ErrUnexpectedReply)
	case reply.Command != p.Command():
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedReply, reply.Command, p.Command())
	case reply.MID != mid:
		return nil, fmt.Errorf("%w: MID %d, want %d", ErrUnexpectedReply, reply.MID, mid)
	case reply.PID != c.cfg.PID:
		return nil, fmt.Errorf("%w: PID 0x%08X, want 0x%08X", ErrUnexpectedReply, reply.PID, c.cfg.PID)
	case reply.IsError():
		return nil, &StatusError{Command: reply.Command, Status: reply.Status}
	}

	// Adopt whatever ids the server assigned.
	c.uid = reply.UID
	c.tid = reply.TID

	return payload.DecodeResponse(reply)
}

func (c *Client) deadline(ctx context.Context) error {
	var t time.Time
	if c.cfg.IOTimeout > 0 {
		t = time.Now().Add(c.cfg.IOTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (t.IsZero() || d.Before(t)) {
		t = d
	}
	return c.conn.SetDeadline(t)
}
