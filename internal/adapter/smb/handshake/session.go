package handshake

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/payload"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// Exchange is the outcome of one successful step.
type Exchange struct {
	Request  payload.Payload
	Response payload.Payload
	Reply    *message.Message
}

// Info is a snapshot of what the handshake has learned about the client.
type Info struct {
	State              State
	Dialect            string
	DialectIndex       int
	OfferedDialects    []string
	ClientCapabilities types.Capabilities
	Account            string
	Domain             string
	ClientOS           string
	ClientLanMan       string
	TreePath           string
	Service            string
	Echoes             int
}

// Session is the per-connection handshake state. It is not safe for
// concurrent use; a connection drives it from a single goroutine.
type Session struct {
	opts  Options
	state State
	info  Info
}

// NewSession returns a session waiting for NEGOTIATE. Zero-valued fields of
// opts take their DefaultOptions value.
func NewSession(opts Options) *Session {
	def := DefaultOptions()
	if opts.Dialect == "" {
		opts.Dialect = def.Dialect
	}
	if opts.Capabilities == 0 {
		opts.Capabilities = def.Capabilities
	}
	if opts.NativeOS == "" {
		opts.NativeOS = def.NativeOS
	}
	if opts.NativeLanMan == "" {
		opts.NativeLanMan = def.NativeLanMan
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return &Session{opts: opts, state: AwaitNegotiate}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Info returns a copy of the session details.
func (s *Session) Info() Info {
	info := s.info
	info.State = s.state
	info.OfferedDialects = append([]string(nil), s.info.OfferedDialects...)
	return info
}

// Handle validates req against the current state and returns the reply.
// On error the session moves to Failed and no reply is produced; the
// caller decides whether to send payload.ErrorReply.
func (s *Session) Handle(req *message.Message) (*Exchange, error) {
	ex, err := s.handle(req)
	if err != nil {
		s.state = Failed
		return nil, err
	}
	return ex, nil
}

func (s *Session) handle(req *message.Message) (*Exchange, error) {
	expected, ok := s.state.expected()
	if !ok {
		return nil, s.sequenceError(req.Command, types.StatusRequestNotAccepted, "session already failed")
	}
	if req.IsReply() {
		return nil, s.sequenceError(req.Command, types.StatusInvalidParameter, "request carries the REPLY flag")
	}
	if req.Command != expected {
		return nil, s.sequenceError(req.Command, types.StatusRequestNotAccepted,
			fmt.Sprintf("expected %s", expected))
	}

	p, err := payload.DecodeRequest(req)
	if err != nil {
		return nil, err
	}

	var resp payload.Payload
	switch r := p.(type) {
	case *payload.NegotiateRequest:
		resp, err = s.negotiate(r)
	case *payload.SessionSetupRequest:
		resp, err = s.sessionSetup(r)
	case *payload.TreeConnectRequest:
		resp, err = s.treeConnect(r)
	case *payload.EchoRequest:
		resp, err = s.echo(r)
	default:
		err = fmt.Errorf("%w: %s", types.ErrUnsupportedCommand, req.Command)
	}
	if err != nil {
		return nil, err
	}

	reply, err := payload.NewReply(req, resp)
	if err != nil {
		return nil, err
	}

	s.advance()
	return &Exchange{Request: p, Response: resp, Reply: reply}, nil
}

func (s *Session) advance() {
	switch s.state {
	case AwaitNegotiate:
		s.state = AwaitSessionSetup
	case AwaitSessionSetup:
		s.state = AwaitTreeConnect
	case AwaitTreeConnect:
		s.state = AwaitEcho
	case AwaitEcho:
		s.state = Complete
	}
}

func (s *Session) negotiate(req *payload.NegotiateRequest) (payload.Payload, error) {
	s.info.OfferedDialects = req.Dialects
	idx, err := payload.SelectDialect(req.Dialects, s.opts.Dialect)
	if err != nil {
		return nil, err
	}
	s.info.Dialect = s.opts.Dialect
	s.info.DialectIndex = idx

	now := s.opts.Clock.Now()
	return &payload.NegotiateResponse{
		DialectIndex:   uint16(idx),
		SecurityMode:   0,
		MaxMpxCount:    s.opts.MaxMpxCount,
		MaxNumberVcs:   s.opts.MaxNumberVcs,
		MaxBufferSize:  s.opts.MaxBufferSize,
		MaxRawSize:     s.opts.MaxRawSize,
		SessionKey:     s.opts.SessionKey,
		Capabilities:   s.opts.Capabilities,
		SystemTime:     types.TimeToFiletime(now),
		ServerTimeZone: types.TimeZoneMinutes(now),
	}, nil
}

func (s *Session) sessionSetup(req *payload.SessionSetupRequest) (payload.Payload, error) {
	if !req.Capabilities.SubsetOf(s.opts.Capabilities) {
		return nil, s.sequenceError(types.CommandSessionSetupAndX, types.StatusInvalidParameter,
			fmt.Sprintf("client capabilities 0x%08X exceed server capabilities 0x%08X",
				uint32(req.Capabilities), uint32(s.opts.Capabilities)))
	}
	s.info.ClientCapabilities = req.Capabilities
	s.info.Account = req.AccountName
	s.info.Domain = req.PrimaryDomain
	s.info.ClientOS = req.NativeOS
	s.info.ClientLanMan = req.NativeLanMan

	return &payload.SessionSetupResponse{
		Action:        payload.ActionLoggedIn,
		NativeOS:      s.opts.NativeOS,
		NativeLanMan:  s.opts.NativeLanMan,
		PrimaryDomain: req.PrimaryDomain,
	}, nil
}

func (s *Session) treeConnect(req *payload.TreeConnectRequest) (payload.Payload, error) {
	if req.Service != types.ServiceAny && req.Service != types.ServiceDisk {
		return nil, s.sequenceError(types.CommandTreeConnectAndX, types.StatusBadNetworkName,
			fmt.Sprintf("service %q is not provided", req.Service))
	}
	s.info.TreePath = req.Path
	s.info.Service = req.Service

	return &payload.TreeConnectResponse{
		OptionalSupport: types.SupportSearchBits,
		Service:         types.ServiceDisk,
	}, nil
}

func (s *Session) echo(req *payload.EchoRequest) (payload.Payload, error) {
	if req.EchoCount > 1 {
		return nil, s.sequenceError(types.CommandEcho, types.StatusInvalidParameter,
			fmt.Sprintf("echo count %d is too high", req.EchoCount))
	}
	s.info.Echoes++
	return &payload.EchoResponse{SequenceNumber: 0, Data: req.Data}, nil
}

func (s *Session) sequenceError(cmd types.Command, status types.Status, reason string) error {
	return &types.HandshakeError{
		State:   s.state.String(),
		Command: cmd,
		Status:  status,
		Reason:  reason,
	}
}

// IsNegotiationFailure reports whether err means the client offered no
// supported dialect.
func IsNegotiationFailure(err error) bool {
	return errors.Is(err, types.ErrNegotiationFailed)
}
