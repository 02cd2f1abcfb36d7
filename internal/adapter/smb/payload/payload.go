package payload

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// Payload is a typed view of an SMB1 message body.
type Payload interface {
	// Command returns the command code the payload belongs to.
	Command() types.Command

	// Encode writes the parameter and data blocks into m. The header of m,
	// in particular Flags2, must already be set because string encoding
	// and alignment depend on it.
	Encode(m *message.Message) error

	// String renders the payload for logs.
	String() string

	sealed()
}

// ReplyFlags and ReplyFlags2 are the header flags set on every reply.
const (
	ReplyFlags  = types.FlagsReply | types.FlagsCaseInsensitive | types.FlagsCanonicalizedPaths
	ReplyFlags2 = types.Flags2LongNames | types.Flags2NTStatus | types.Flags2Unicode
)

// DecodeRequest decodes the payload of a client request.
func DecodeRequest(m *message.Message) (Payload, error) {
	switch m.Command {
	case types.CommandNegotiate:
		return DecodeNegotiateRequest(m)
	case types.CommandSessionSetupAndX:
		return DecodeSessionSetupRequest(m)
	case types.CommandTreeConnectAndX:
		return DecodeTreeConnectRequest(m)
	case types.CommandEcho:
		return DecodeEchoRequest(m)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedCommand, m.Command)
	}
}

// DecodeResponse decodes the payload of a server reply. Replies carrying an
// error status decode to a NullPayload.
func DecodeResponse(m *message.Message) (Payload, error) {
	if m.IsError() {
		return DecodeNullPayload(m)
	}
	switch m.Command {
	case types.CommandNegotiate:
		return DecodeNegotiateResponse(m)
	case types.CommandSessionSetupAndX:
		return DecodeSessionSetupResponse(m)
	case types.CommandTreeConnectAndX:
		return DecodeTreeConnectResponse(m)
	case types.CommandEcho:
		return DecodeEchoResponse(m)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedCommand, m.Command)
	}
}

// NewReply builds the reply to req carrying p. The correlation ids are
// copied from req, REPLY is set, and extended security is left clear.
func NewReply(req *message.Message, p Payload) (*message.Message, error) {
	m := &message.Message{Header: replyHeader(req, p.Command())}
	if err := p.Encode(m); err != nil {
		return nil, fmt.Errorf("encode %s reply: %w", p.Command(), err)
	}
	return m, nil
}

// ErrorReply builds an empty reply to req carrying an NT status.
func ErrorReply(req *message.Message, status types.Status) *message.Message {
	m := &message.Message{Header: replyHeader(req, req.Command)}
	m.Status = status
	return m
}

func replyHeader(req *message.Message, cmd types.Command) header.Header {
	h := req.Header.Reply(types.StatusSuccess)
	h.Command = cmd
	h.Flags = ReplyFlags
	h.Flags2 = ReplyFlags2
	return h
}

// NewRequest builds a client request carrying p. flags2 selects the string
// charset for payloads that carry strings.
func NewRequest(p Payload, flags2 types.Flags2, pid uint32, tid, uid, mid uint16) (*message.Message, error) {
	m := &message.Message{
		Header: header.Header{
			Command: p.Command(),
			Flags:   types.FlagsCaseInsensitive | types.FlagsCanonicalizedPaths,
			Flags2:  flags2,
			PID:     pid,
			TID:     tid,
			UID:     uid,
			MID:     mid,
		},
	}
	if err := p.Encode(m); err != nil {
		return nil, fmt.Errorf("encode %s request: %w", p.Command(), err)
	}
	return m, nil
}

func decodeError(cmd types.Command, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrProtocolDecode, cmd, err)
}

func stringError(cmd types.Command, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrMalformedString, cmd, err)
}

func wordCountError(cmd types.Command, got, want int) error {
	return fmt.Errorf("%w: %s: WordCount %d, expected %d", types.ErrProtocolDecode, cmd, got, want)
}
