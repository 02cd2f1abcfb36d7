package smb

import (
	"net"
	"sync"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/handshake"
)

// LockedWriter serializes writes to a connection.
type LockedWriter struct {
	sync.Mutex
}

// ConnInfo is the slice of connection state request processing needs. It
// keeps this package independent of the Connection type in pkg/adapter/smb.
type ConnInfo struct {
	Conn    net.Conn
	Session *handshake.Session

	WriteMu      *LockedWriter
	WriteTimeout time.Duration

	// ReportErrors sends an error reply carrying the mapped status before
	// the connection is dropped. When false a failing request gets no
	// reply at all.
	ReportErrors bool
}
