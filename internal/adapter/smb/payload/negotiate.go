package payload

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// dialectMarker is the BufferFormat byte preceding each dialect string.
const dialectMarker = 0x02

// negotiateResponseWords is the WordCount of an NT LM 0.12 negotiate reply.
const negotiateResponseWords = 17

// NegotiateRequest lists the dialects offered by the client, in order.
//
// **Wire format:**
//
//	WordCount = 0
//	Data: { 0x02 <dialect> 0x00 } ...
type NegotiateRequest struct {
	Dialects []string
}

// DecodeNegotiateRequest parses the dialect list. The data block must end
// with a null byte; the 0x02 format marker is stripped from each entry.
func DecodeNegotiateRequest(m *message.Message) (*NegotiateRequest, error) {
	if m.WordCount() != 0 {
		return nil, wordCountError(types.CommandNegotiate, m.WordCount(), 0)
	}

	parts := bytes.Split(m.Data, []byte{0})
	if trailing := parts[len(parts)-1]; len(trailing) != 0 {
		return nil, decodeError(types.CommandNegotiate, fmt.Errorf("%d bytes after the last null terminator", len(trailing)))
	}
	parts = parts[:len(parts)-1]

	dialects := make([]string, 0, len(parts))
	for _, part := range parts {
		part = bytes.TrimLeft(part, string([]byte{dialectMarker}))
		for _, c := range part {
			if c >= 0x80 {
				return nil, stringError(types.CommandNegotiate, fmt.Errorf("non-ASCII dialect %q", part))
			}
		}
		dialects = append(dialects, string(part))
	}
	return &NegotiateRequest{Dialects: dialects}, nil
}

func (p *NegotiateRequest) Command() types.Command { return types.CommandNegotiate }

func (p *NegotiateRequest) Encode(m *message.Message) error {
	w := smbenc.NewWriter(16 * len(p.Dialects))
	for _, d := range p.Dialects {
		w.WriteUint8(dialectMarker)
		w.WriteString(d, false)
	}
	if err := w.Err(); err != nil {
		return err
	}
	m.Command = types.CommandNegotiate
	m.Parameters = nil
	m.Data = w.Bytes()
	return nil
}

func (p *NegotiateRequest) String() string {
	var b strings.Builder
	b.WriteString("SMB_COM_NEGOTIATE (request) dialects:")
	for _, d := range p.Dialects {
		fmt.Fprintf(&b, " %q", d)
	}
	return b.String()
}

func (*NegotiateRequest) sealed() {}

// SelectDialect returns the index of supported within offered, or
// types.ErrNegotiationFailed when the client does not offer it.
func SelectDialect(offered []string, supported string) (int, error) {
	for i, d := range offered {
		if d == supported {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: client offered %q, server requires %q", types.ErrNegotiationFailed, offered, supported)
}

// NegotiateResponse is the NT LM 0.12 negotiate reply.
//
// **Wire format (WordCount = 17):**
//
//	Offset  Size  Field
//	------  ----  ----------------
//	0       2     DialectIndex
//	2       1     SecurityMode
//	3       2     MaxMpxCount
//	5       2     MaxNumberVcs
//	7       4     MaxBufferSize
//	11      4     MaxRawSize
//	15      4     SessionKey
//	19      4     Capabilities
//	23      8     SystemTime (FILETIME)
//	31      2     ServerTimeZone (minutes west of UTC)
//	33      1     ChallengeLength
//
// The data block is empty: the server sends no challenge.
type NegotiateResponse struct {
	DialectIndex    uint16
	SecurityMode    types.SecurityMode
	MaxMpxCount     uint16
	MaxNumberVcs    uint16
	MaxBufferSize   uint32
	MaxRawSize      uint32
	SessionKey      uint32
	Capabilities    types.Capabilities
	SystemTime      uint64
	ServerTimeZone  int16
	ChallengeLength uint8
}

func (p *NegotiateResponse) Command() types.Command { return types.CommandNegotiate }

func (p *NegotiateResponse) Encode(m *message.Message) error {
	w := smbenc.NewWriter(negotiateResponseWords * 2)
	w.WriteUint16(p.DialectIndex)
	w.WriteUint8(uint8(p.SecurityMode))
	w.WriteUint16(p.MaxMpxCount)
	w.WriteUint16(p.MaxNumberVcs)
	w.WriteUint32(p.MaxBufferSize)
	w.WriteUint32(p.MaxRawSize)
	w.WriteUint32(p.SessionKey)
	w.WriteUint32(uint32(p.Capabilities))
	w.WriteUint64(p.SystemTime)
	w.WriteUint16(uint16(p.ServerTimeZone))
	w.WriteUint8(p.ChallengeLength)
	m.Command = types.CommandNegotiate
	m.Parameters = w.Bytes()
	m.Data = nil
	return w.Err()
}

func (p *NegotiateResponse) String() string {
	return fmt.Sprintf("SMB_COM_NEGOTIATE (response) dialect=%d security=0x%02X caps=0x%08X max_buffer=%d system_time=%s tz=%d",
		p.DialectIndex, uint8(p.SecurityMode), uint32(p.Capabilities), p.MaxBufferSize,
		types.FiletimeToTime(p.SystemTime).Format(time.RFC3339), p.ServerTimeZone)
}

func (*NegotiateResponse) sealed() {}

// DecodeNegotiateResponse parses a negotiate reply.
func DecodeNegotiateResponse(m *message.Message) (*NegotiateResponse, error) {
	if m.WordCount() != negotiateResponseWords {
		return nil, wordCountError(types.CommandNegotiate, m.WordCount(), negotiateResponseWords)
	}
	r := smbenc.NewReader(m.Parameters)
	p := &NegotiateResponse{
		DialectIndex:  r.ReadUint16(),
		SecurityMode:  types.SecurityMode(r.ReadUint8()),
		MaxMpxCount:   r.ReadUint16(),
		MaxNumberVcs:  r.ReadUint16(),
		MaxBufferSize: r.ReadUint32(),
		MaxRawSize:    r.ReadUint32(),
		SessionKey:    r.ReadUint32(),
		Capabilities:  types.Capabilities(r.ReadUint32()),
		SystemTime:    r.ReadUint64(),
	}
	p.ServerTimeZone = int16(r.ReadUint16())
	p.ChallengeLength = r.ReadUint8()
	if err := r.Err(); err != nil {
		return nil, decodeError(types.CommandNegotiate, err)
	}
	return p, nil
}
