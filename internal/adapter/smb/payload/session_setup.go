package payload

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/smbenc"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

const (
	sessionSetupRequestWords  = 13
	sessionSetupResponseWords = 4
)

// ActionLoggedIn is the Action value of a successful, non-guest session.
const ActionLoggedIn uint16 = 0x0001

// SessionSetupRequest is a SESSION_SETUP_ANDX request without extended
// security.
//
// **Wire format (WordCount = 13):**
//
//	AndX block (4), MaxBufferSize u16, MaxMpxCount u16, VcNumber u16,
//	SessionKey u32, OEMPasswordLength u16, UnicodePasswordLength u16,
//	Reserved u32, Capabilities u32
//
//	Data: OEMPassword, UnicodePassword, [pad], AccountName, PrimaryDomain,
//	      NativeOS, NativeLanMan
//
// Strings are UTF-16LE when Flags2 has UNICODE, ASCII otherwise. The server
// performs no authentication; passwords are kept only as opaque blobs.
type SessionSetupRequest struct {
	MaxBufferSize   uint16
	MaxMpxCount     uint16
	VcNumber        uint16
	SessionKey      uint32
	OEMPassword     []byte
	UnicodePassword []byte
	Capabilities    types.Capabilities
	AccountName     string
	PrimaryDomain   string
	NativeOS        string
	NativeLanMan    string
}

// DecodeSessionSetupRequest parses a SESSION_SETUP_ANDX request.
func DecodeSessionSetupRequest(m *message.Message) (*SessionSetupRequest, error) {
	const cmd = types.CommandSessionSetupAndX
	if m.WordCount() != sessionSetupRequestWords {
		return nil, wordCountError(cmd, m.WordCount(), sessionSetupRequestWords)
	}

	r := smbenc.NewReader(m.Parameters)
	if err := readTerminalAndX(r); err != nil {
		return nil, err
	}
	p := &SessionSetupRequest{
		MaxBufferSize: r.ReadUint16(),
		MaxMpxCount:   r.ReadUint16(),
		VcNumber:      r.ReadUint16(),
		SessionKey:    r.ReadUint32(),
	}
	oemLen := int(r.ReadUint16())
	uniLen := int(r.ReadUint16())
	r.Skip(4)
	p.Capabilities = types.Capabilities(r.ReadUint32())
	if err := r.Err(); err != nil {
		return nil, decodeError(cmd, err)
	}

	d := smbenc.NewReader(m.Data)
	p.OEMPassword = d.ReadBytes(oemLen)
	p.UnicodePassword = d.ReadBytes(uniLen)
	if err := d.Err(); err != nil {
		return nil, decodeError(cmd, fmt.Errorf("password blobs: %w", err))
	}

	strs, _, err := smbenc.DecodeStrings(m.Raw(), m.DataOffset()+d.Position(), 4, m.IsUnicode())
	if err != nil {
		return nil, stringError(cmd, err)
	}
	p.AccountName, p.PrimaryDomain, p.NativeOS, p.NativeLanMan = strs[0], strs[1], strs[2], strs[3]
	return p, nil
}

func (p *SessionSetupRequest) Command() types.Command { return types.CommandSessionSetupAndX }

func (p *SessionSetupRequest) Encode(m *message.Message) error {
	pw := smbenc.NewWriter(sessionSetupRequestWords * 2)
	writeTerminalAndX(pw)
	pw.WriteUint16(p.MaxBufferSize)
	pw.WriteUint16(p.MaxMpxCount)
	pw.WriteUint16(p.VcNumber)
	pw.WriteUint32(p.SessionKey)
	pw.WriteUint16(uint16(len(p.OEMPassword)))
	pw.WriteUint16(uint16(len(p.UnicodePassword)))
	pw.WriteUint32(0)
	pw.WriteUint32(uint32(p.Capabilities))
	if err := pw.Err(); err != nil {
		return err
	}
	m.Command = types.CommandSessionSetupAndX
	m.Parameters = pw.Bytes()

	unicode := m.IsUnicode()
	dw := smbenc.NewWriterAt(m.DataOffset(), 128)
	dw.WriteBytes(p.OEMPassword)
	dw.WriteBytes(p.UnicodePassword)
	if unicode {
		dw.AlignFrom()
	}
	for _, s := range []string{p.AccountName, p.PrimaryDomain, p.NativeOS, p.NativeLanMan} {
		dw.WriteString(s, unicode)
	}
	if err := dw.Err(); err != nil {
		return err
	}
	m.Data = dw.Bytes()
	return nil
}

func (p *SessionSetupRequest) String() string {
	return fmt.Sprintf("SMB_COM_SESSION_SETUP_ANDX (request) account=%q domain=%q native_os=%q native_lanman=%q caps=0x%08X max_buffer=%d vc=%d",
		p.AccountName, p.PrimaryDomain, p.NativeOS, p.NativeLanMan, uint32(p.Capabilities), p.MaxBufferSize, p.VcNumber)
}

func (*SessionSetupRequest) sealed() {}

// SessionSetupResponse is the SESSION_SETUP_ANDX reply.
//
// **Wire format (WordCount = 4):**
//
//	AndX block (4), Action u16, SecurityBlobLength u16
//
//	Data: SecurityBlob, [pad], NativeOS, NativeLanMan, PrimaryDomain
//
// Strings are always UTF-16LE.
type SessionSetupResponse struct {
	Action        uint16
	SecurityBlob  []byte
	NativeOS      string
	NativeLanMan  string
	PrimaryDomain string
}

func (p *SessionSetupResponse) Command() types.Command { return types.CommandSessionSetupAndX }

func (p *SessionSetupResponse) Encode(m *message.Message) error {
	pw := smbenc.NewWriter(sessionSetupResponseWords * 2)
	writeTerminalAndX(pw)
	pw.WriteUint16(p.Action)
	pw.WriteUint16(uint16(len(p.SecurityBlob)))
	m.Command = types.CommandSessionSetupAndX
	m.Parameters = pw.Bytes()

	dw := smbenc.NewWriterAt(m.DataOffset(), 64)
	dw.WriteBytes(p.SecurityBlob)
	dw.AlignFrom()
	for _, s := range []string{p.NativeOS, p.NativeLanMan, p.PrimaryDomain} {
		dw.WriteString(s, true)
	}
	if err := dw.Err(); err != nil {
		return err
	}
	m.Data = dw.Bytes()
	return nil
}

func (p *SessionSetupResponse) String() string {
	return fmt.Sprintf("SMB_COM_SESSION_SETUP_ANDX (response) action=%d native_os=%q native_lanman=%q domain=%q",
		p.Action, p.NativeOS, p.NativeLanMan, p.PrimaryDomain)
}

func (*SessionSetupResponse) sealed() {}

// DecodeSessionSetupResponse parses a SESSION_SETUP_ANDX reply.
func DecodeSessionSetupResponse(m *message.Message) (*SessionSetupResponse, error) {
	const cmd = types.CommandSessionSetupAndX
	if m.WordCount() != sessionSetupResponseWords {
		return nil, wordCountError(cmd, m.WordCount(), sessionSetupResponseWords)
	}
	r := smbenc.NewReader(m.Parameters)
	if err := readTerminalAndX(r); err != nil {
		return nil, err
	}
	p := &SessionSetupResponse{Action: r.ReadUint16()}
	blobLen := int(r.ReadUint16())
	if err := r.Err(); err != nil {
		return nil, decodeError(cmd, err)
	}

	d := smbenc.NewReader(m.Data)
	p.SecurityBlob = d.ReadBytes(blobLen)
	if err := d.Err(); err != nil {
		return nil, decodeError(cmd, fmt.Errorf("security blob: %w", err))
	}

	strs, _, err := smbenc.DecodeStrings(m.Raw(), m.DataOffset()+blobLen, 3, true)
	if err != nil {
		return nil, stringError(cmd, err)
	}
	p.NativeOS, p.NativeLanMan, p.PrimaryDomain = strs[0], strs[1], strs[2]
	return p, nil
}
