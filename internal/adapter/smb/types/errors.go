package types

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error surfaced by the codec or the handshake state
// machine wraps exactly one of these sentinels.
var (
	// ErrFraming covers a bad length prefix, a truncated read, or a peer
	// closing the stream mid-frame.
	ErrFraming = errors.New("smb: framing error")

	// ErrProtocolDecode covers signature mismatches, invalid reserved fields,
	// block lengths exceeding the buffer, chained ANDX requests, and
	// malformed strings.
	ErrProtocolDecode = errors.New("smb: protocol decode error")

	// ErrHandshakeSequence covers unexpected commands and violated handshake
	// constraints. Concrete errors are *HandshakeError values.
	ErrHandshakeSequence = errors.New("smb: handshake sequence error")

	// ErrNegotiationFailed is returned when the client offers no dialect the
	// server supports.
	ErrNegotiationFailed = errors.New("smb: negotiation failed")
)

// Protocol decode refinements.
var (
	ErrUnsupportedChaining = fmt.Errorf("%w: chained ANDX requests are not supported", ErrProtocolDecode)
	ErrUnsupportedCommand  = fmt.Errorf("%w: unsupported command", ErrProtocolDecode)
	ErrMalformedString     = fmt.Errorf("%w: malformed string", ErrProtocolDecode)
)

// HandshakeError describes a violation of the handshake sequence or of one
// of its per-step constraints. Status is the NT status an error reply would
// carry.
type HandshakeError struct {
	State   string
	Command Command
	Status  Status
	Reason  string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("smb: handshake sequence error in state %s on %s: %s", e.State, e.Command, e.Reason)
}

func (e *HandshakeError) Unwrap() error { return ErrHandshakeSequence }

// Code returns the status as a raw NTSTATUS.
func (e *HandshakeError) Code() uint32 { return uint32(e.Status) }

// Message returns the violated constraint.
func (e *HandshakeError) Message() string { return e.Reason }

// StatusOf returns the status an error reply for err should carry. Only
// handshake sequence errors and negotiation failures are ever answered;
// anything else maps to StatusInternalError.
func StatusOf(err error) Status {
	var he *HandshakeError
	switch {
	case errors.As(err, &he):
		return he.Status
	case errors.Is(err, ErrNegotiationFailed):
		return StatusNotSupported
	default:
		return StatusInternalError
	}
}
