package smb

import (
	"context"
	"errors"

	"github.com/marmos91/dittosmb/internal/adapter/smb/handshake"
	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/payload"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/marmos91/dittosmb/internal/logger"
)

// Result describes what ProcessRequest did with one frame.
type Result struct {
	// Header is the request header, nil when even that failed to parse.
	Header *header.Header

	// StateBefore is the handshake state the request was validated against.
	StateBefore handshake.State

	// Exchange is set when the request advanced the handshake.
	Exchange *handshake.Exchange

	// Status is the status of the reply written, meaningful when Replied.
	Status  types.Status
	Replied bool

	// BytesWritten counts reply bytes including the frame prefix.
	BytesWritten int
}

// Command returns the request command name, or "UNKNOWN" without a header.
func (r *Result) Command() string {
	if r.Header == nil {
		return "UNKNOWN"
	}
	return r.Header.Command.String()
}

// ProcessRequest decodes body, runs it through the handshake and writes the
// reply.
//
// A non-nil error means the connection must be closed: either the request
// violated the handshake (the session is now Failed) or the reply could not
// be written. When ReportErrors is set, handshake sequence errors and
// negotiation failures get an error reply before the error is returned.
// Protocol decode errors are never answered.
func ProcessRequest(ctx context.Context, body []byte, connInfo *ConnInfo) (*Result, error) {
	res := &Result{StateBefore: connInfo.Session.State()}

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	default:
	}

	req, err := message.Decode(body)
	if err != nil {
		// Kept for logging and metrics only: decode errors are never
		// answered.
		if h, herr := header.Parse(body); herr == nil {
			res.Header = h
		}
		return res, err
	}
	res.Header = &req.Header

	ex, err := connInfo.Session.Handle(req)
	if err != nil {
		return res, failRequest(ctx, req, err, res, connInfo)
	}
	res.Exchange = ex

	n, err := WriteMessage(connInfo.Conn, connInfo.WriteMu, connInfo.WriteTimeout, ex.Reply)
	if err != nil {
		return res, err
	}
	res.Replied = true
	res.Status = ex.Reply.Status
	res.BytesWritten = n

	logger.DebugCtx(ctx, "Sent SMB1 reply",
		logger.Command(ex.Reply.Command.String()),
		logger.State(connInfo.Session.State().String()),
		logger.Bytes(n))
	return res, nil
}

// Reportable reports whether err may be answered with an error reply.
func Reportable(err error) bool {
	if errors.Is(err, types.ErrProtocolDecode) {
		return false
	}
	return errors.Is(err, types.ErrHandshakeSequence) || errors.Is(err, types.ErrNegotiationFailed)
}

// failRequest optionally reports cause to the client and returns it. A
// failed error-reply write is logged but the handshake error still wins,
// since it is what closes the connection.
func failRequest(ctx context.Context, req *message.Message, cause error, res *Result, connInfo *ConnInfo) error {
	if !connInfo.ReportErrors || req.IsReply() || !Reportable(cause) {
		return cause
	}

	status := types.StatusOf(cause)
	n, err := SendErrorReply(req, status, connInfo)
	if err != nil {
		logger.DebugCtx(ctx, "Error reply not delivered", logger.Err(err))
		return errors.Join(cause, err)
	}
	res.Replied = true
	res.Status = status
	res.BytesWritten = n
	return cause
}

// SendErrorReply writes a reply to req carrying status and empty blocks.
func SendErrorReply(req *message.Message, status types.Status, connInfo *ConnInfo) (int, error) {
	return WriteMessage(connInfo.Conn, connInfo.WriteMu, connInfo.WriteTimeout, payload.ErrorReply(req, status))
}
