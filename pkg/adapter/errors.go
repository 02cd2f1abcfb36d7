package adapter

// ProtocolError is an error that maps to a wire-level status code.
//
// Handshake violations implement it so callers outside the protocol
// packages can log the status a client would see without importing the
// protocol's status table. It supports errors.As and, through Unwrap,
// errors.Is against the underlying sentinel.
type ProtocolError interface {
	error

	// Code returns the numeric protocol status (an NTSTATUS for SMB).
	Code() uint32

	// Message returns the violated constraint without protocol prefixes.
	Message() string

	Unwrap() error
}
