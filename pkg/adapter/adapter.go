package adapter

import (
	"context"
)

// Adapter is a protocol server managed by the dittosmb process.
//
// Lifecycle:
//  1. Creation with protocol-specific configuration
//  2. Serve() starts the listener and blocks until shutdown
//  3. Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must stop accepting connections,
	// wait for active ones (up to the shutdown timeout) and return nil, or
	// an error if connections had to be force-closed.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. It is idempotent and bounded by ctx.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name used in logs and metrics.
	Protocol() string

	// Port returns the configured TCP port.
	Port() int
}
