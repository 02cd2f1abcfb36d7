package smb

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/logger"
	"github.com/marmos91/dittosmb/pkg/bufpool"
)

// ReadRequest reads one length-prefixed SMB1 message body from conn.
//
// idleTimeout bounds the wait for the first byte of the frame and
// readTimeout the rest of it, counted from that byte (0 = no deadline for
// either). An orderly close before any prefix byte is returned as io.EOF;
// every other short read or bad length wraps types.ErrFraming. The body is
// returned undecoded so the caller can still build an error reply from its
// header when the blocks fail to parse. The body comes from bufpool; the
// caller returns it with bufpool.Put once the reply has been written.
func ReadRequest(ctx context.Context, conn net.Conn, maxMsgSize int, idleTimeout, readTimeout time.Duration) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var deadline time.Time
	if idleTimeout > 0 {
		deadline = time.Now().Add(idleTimeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	body, err := message.ReadFrameInto(&frameReader{conn: conn, readTimeout: readTimeout}, maxMsgSize, bufpool.Get, bufpool.Put)
	if err != nil {
		return nil, err
	}

	if h, perr := header.Parse(body); perr == nil {
		logger.Debug("SMB1 request",
			logger.Command(h.Command.String()),
			logger.MID(h.MID),
			logger.Bytes(len(body)),
			logger.Address(conn.RemoteAddr().String()))
	}
	return body, nil
}

// frameReader moves the read deadline from the idle budget to the frame
// budget once the first byte arrives.
type frameReader struct {
	conn        net.Conn
	readTimeout time.Duration
	started     bool
}

func (r *frameReader) Read(p []byte) (int, error) {
	n, err := r.conn.Read(p)
	if n > 0 && !r.started {
		r.started = true
		if r.readTimeout > 0 {
			if derr := r.conn.SetReadDeadline(time.Now().Add(r.readTimeout)); derr != nil && err == nil {
				err = derr
			}
		}
	}
	return n, err
}

// WriteMessage encodes m and writes it as one frame. writeMu serializes
// writers on the same connection. It returns the number of bytes put on
// the wire, prefix included.
func WriteMessage(conn net.Conn, writeMu *LockedWriter, writeTimeout time.Duration, m *message.Message) (int, error) {
	body, err := m.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode %s reply: %w", m.Command, err)
	}

	writeMu.Lock()
	defer writeMu.Unlock()

	if writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			return 0, fmt.Errorf("set write deadline: %w", err)
		}
	}

	if err := message.WriteFrame(conn, body); err != nil {
		return 0, err
	}
	return message.FrameHeaderSize + len(body), nil
}
