package payload

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// EchoRequest represents an SMB_COM_ECHO request [MS-CIFS] 2.2.4.39.1.
//
// **Wire format (WordCount = 1):**
//
//	EchoCount u16
//
//	Data: arbitrary bytes, returned verbatim
type EchoRequest struct {
	EchoCount uint16
	Data      []byte
}

// DecodeEchoRequest parses an ECHO request.
func DecodeEchoRequest(m *message.Message) (*EchoRequest, error) {
	if m.WordCount() != 1 {
		return nil, wordCountError(types.CommandEcho, m.WordCount(), 1)
	}
	r := smbenc.NewReader(m.Parameters)
	count := r.ReadUint16()
	if err := r.Err(); err != nil {
		return nil, decodeError(types.CommandEcho, err)
	}
	return &EchoRequest{EchoCount: count, Data: cloneBytes(m.Data)}, nil
}

func (p *EchoRequest) Command() types.Command { return types.CommandEcho }

func (p *EchoRequest) Encode(m *message.Message) error {
	w := smbenc.NewWriter(2)
	w.WriteUint16(p.EchoCount)
	m.Command = types.CommandEcho
	m.Parameters = w.Bytes()
	m.Data = p.Data
	return nil
}

func (p *EchoRequest) String() string {
	return fmt.Sprintf("SMB_COM_ECHO (request) count=%d data=%d bytes", p.EchoCount, len(p.Data))
}

func (*EchoRequest) sealed() {}

// EchoResponse represents an SMB_COM_ECHO response [MS-CIFS] 2.2.4.39.2.
//
// **Wire format (WordCount = 1):**
//
//	SequenceNumber u16
//
//	Data: the request data
type EchoResponse struct {
	SequenceNumber uint16
	Data           []byte
}

func (p *EchoResponse) Command() types.Command { return types.CommandEcho }

func (p *EchoResponse) Encode(m *message.Message) error {
	w := smbenc.NewWriter(2)
	w.WriteUint16(p.SequenceNumber)
	m.Command = types.CommandEcho
	m.Parameters = w.Bytes()
	m.Data = p.Data
	return nil
}

func (p *EchoResponse) String() string {
	return fmt.Sprintf("SMB_COM_ECHO (response) sequence=%d data=%d bytes", p.SequenceNumber, len(p.Data))
}

func (*EchoResponse) sealed() {}

// DecodeEchoResponse parses an ECHO reply.
func DecodeEchoResponse(m *message.Message) (*EchoResponse, error) {
	if m.WordCount() != 1 {
		return nil, wordCountError(types.CommandEcho, m.WordCount(), 1)
	}
	r := smbenc.NewReader(m.Parameters)
	seq := r.ReadUint16()
	if err := r.Err(); err != nil {
		return nil, decodeError(types.CommandEcho, err)
	}
	return &EchoResponse{SequenceNumber: seq, Data: cloneBytes(m.Data)}, nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
