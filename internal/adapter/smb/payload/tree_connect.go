package payload

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

const (
	treeConnectRequestWords  = 4
	treeConnectResponseWords = 3
)

// TreeConnectRequest is a TREE_CONNECT_ANDX request.
//
// **Wire format (WordCount = 4):**
//
//	AndX block (4), Flags u16, PasswordLength u16
//
//	Data: Password, [pad], Path (UTF-16LE), Service (ASCII)
//
// The path is decoded as UTF-16LE regardless of the UNICODE flag, and the
// service string is always ASCII.
type TreeConnectRequest struct {
	Flags    uint16
	Password []byte
	Path     string
	Service  string
}

// DecodeTreeConnectRequest parses a TREE_CONNECT_ANDX request.
func DecodeTreeConnectRequest(m *message.Message) (*TreeConnectRequest, error) {
	const cmd = types.CommandTreeConnectAndX
	if m.WordCount() != treeConnectRequestWords {
		return nil, wordCountError(cmd, m.WordCount(), treeConnectRequestWords)
	}

	r := smbenc.NewReader(m.Parameters)
	if err := readTerminalAndX(r); err != nil {
		return nil, err
	}
	p := &TreeConnectRequest{Flags: r.ReadUint16()}
	pwLen := int(r.ReadUint16())
	if err := r.Err(); err != nil {
		return nil, decodeError(cmd, err)
	}

	d := smbenc.NewReader(m.Data)
	p.Password = d.ReadBytes(pwLen)
	if err := d.Err(); err != nil {
		return nil, decodeError(cmd, fmt.Errorf("password: %w", err))
	}

	raw := m.Raw()
	path, next, err := smbenc.DecodeStrings(raw, m.DataOffset()+pwLen, 1, true)
	if err != nil {
		return nil, stringError(cmd, fmt.Errorf("path: %w", err))
	}
	service, _, err := smbenc.DecodeStrings(raw, next, 1, false)
	if err != nil {
		return nil, stringError(cmd, fmt.Errorf("service: %w", err))
	}
	p.Path, p.Service = path[0], service[0]
	return p, nil
}

func (p *TreeConnectRequest) Command() types.Command { return types.CommandTreeConnectAndX }

func (p *TreeConnectRequest) Encode(m *message.Message) error {
	pw := smbenc.NewWriter(treeConnectRequestWords * 2)
	writeTerminalAndX(pw)
	pw.WriteUint16(p.Flags)
	pw.WriteUint16(uint16(len(p.Password)))
	m.Command = types.CommandTreeConnectAndX
	m.Parameters = pw.Bytes()

	dw := smbenc.NewWriterAt(m.DataOffset(), 64)
	dw.WriteBytes(p.Password)
	dw.AlignFrom()
	dw.WriteString(p.Path, true)
	dw.WriteString(p.Service, false)
	if err := dw.Err(); err != nil {
		return err
	}
	m.Data = dw.Bytes()
	return nil
}

func (p *TreeConnectRequest) String() string {
	return fmt.Sprintf("SMB_COM_TREE_CONNECT_ANDX (request) path=%q service=%q flags=0x%04X", p.Path, p.Service, p.Flags)
}

func (*TreeConnectRequest) sealed() {}

// TreeConnectResponse is the TREE_CONNECT_ANDX reply.
//
// **Wire format (WordCount = 3):**
//
//	AndX block (4), OptionalSupport u16
//
//	Data: Service (ASCII)
type TreeConnectResponse struct {
	OptionalSupport types.OptionalSupport
	Service         string
}

func (p *TreeConnectResponse) Command() types.Command { return types.CommandTreeConnectAndX }

func (p *TreeConnectResponse) Encode(m *message.Message) error {
	pw := smbenc.NewWriter(treeConnectResponseWords * 2)
	writeTerminalAndX(pw)
	pw.WriteUint16(uint16(p.OptionalSupport))

	dw := smbenc.NewWriter(len(p.Service) + 1)
	dw.WriteString(p.Service, false)
	if err := dw.Err(); err != nil {
		return err
	}
	m.Command = types.CommandTreeConnectAndX
	m.Parameters = pw.Bytes()
	m.Data = dw.Bytes()
	return nil
}

func (p *TreeConnectResponse) String() string {
	return fmt.Sprintf("SMB_COM_TREE_CONNECT_ANDX (response) service=%q optional_support=0x%04X", p.Service, uint16(p.OptionalSupport))
}

func (*TreeConnectResponse) sealed() {}

// DecodeTreeConnectResponse parses a TREE_CONNECT_ANDX reply.
func DecodeTreeConnectResponse(m *message.Message) (*TreeConnectResponse, error) {
	const cmd = types.CommandTreeConnectAndX
	if m.WordCount() != treeConnectResponseWords {
		return nil, wordCountError(cmd, m.WordCount(), treeConnectResponseWords)
	}
	r := smbenc.NewReader(m.Parameters)
	if err := readTerminalAndX(r); err != nil {
		return nil, err
	}
	p := &TreeConnectResponse{OptionalSupport: types.OptionalSupport(r.ReadUint16())}
	if err := r.Err(); err != nil {
		return nil, decodeError(cmd, err)
	}
	service, _, err := smbenc.DecodeStrings(m.Data, 0, 1, false)
	if err != nil {
		return nil, stringError(cmd, err)
	}
	p.Service = service[0]
	return p, nil
}
