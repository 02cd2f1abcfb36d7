package payload

import (
	"testing"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wire encodes m and decodes it again so that payload decoders see a message
// exactly as it arrives from the network.
func wire(t *testing.T, m *message.Message) *message.Message {
	t.Helper()
	buf, err := m.Encode()
	require.NoError(t, err)
	decoded, err := message.Decode(buf)
	require.NoError(t, err)
	return decoded
}

func request(t *testing.T, p Payload, flags2 types.Flags2) *message.Message {
	t.Helper()
	m, err := NewRequest(p, flags2, 0x00010203, 0xFFFF, 0, 9)
	require.NoError(t, err)
	return wire(t, m)
}

func TestNegotiateRequestDecode(t *testing.T) {
	m := message.New(types.CommandNegotiate)
	m.Data = []byte("\x02LANMAN1.0\x00\x02NT LM 0.12\x00")

	req, err := DecodeNegotiateRequest(wire(t, m))
	require.NoError(t, err)
	assert.Equal(t, []string{"LANMAN1.0", "NT LM 0.12"}, req.Dialects)

	idx, err := SelectDialect(req.Dialects, types.DialectNTLM012)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestNegotiateRequestRejectsTrailingBytes(t *testing.T) {
	m := message.New(types.CommandNegotiate)
	m.Data = []byte("\x02NT LM 0.12\x00\x02PC NET")

	_, err := DecodeNegotiateRequest(wire(t, m))
	assert.ErrorIs(t, err, types.ErrProtocolDecode)
}

func TestNegotiateRequestEmpty(t *testing.T) {
	req, err := DecodeNegotiateRequest(wire(t, message.New(types.CommandNegotiate)))
	require.NoError(t, err)
	assert.Empty(t, req.Dialects)
}

func TestNegotiateRequestRoundTrip(t *testing.T) {
	orig := &NegotiateRequest{Dialects: []string{"PC NETWORK PROGRAM 1.0", "NT LM 0.12"}}
	got, err := DecodeNegotiateRequest(request(t, orig, 0))
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestSelectDialectFailure(t *testing.T) {
	_, err := SelectDialect([]string{"LANMAN1.0"}, types.DialectNTLM012)
	assert.ErrorIs(t, err, types.ErrNegotiationFailed)
}

func TestNegotiateResponseLayout(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	resp := &NegotiateResponse{
		DialectIndex:   1,
		MaxMpxCount:    0xFFFF,
		MaxNumberVcs:   0xFFFF,
		MaxBufferSize:  0xFFFF,
		MaxRawSize:     0xFFFF,
		Capabilities:   types.CapUnicode | types.CapLargeFiles | types.CapStatus32,
		SystemTime:     types.TimeToFiletime(now),
		ServerTimeZone: -60,
	}

	req := request(t, &NegotiateRequest{Dialects: []string{"NT LM 0.12"}}, 0)
	reply, err := NewReply(req, resp)
	require.NoError(t, err)

	assert.Equal(t, 17, reply.WordCount())
	assert.Empty(t, reply.Data)
	assert.Equal(t, []byte{0x01, 0x00}, reply.Parameters[0:2])
	assert.Equal(t, byte(0), reply.Parameters[2], "SecurityMode")
	assert.Equal(t, []byte{0x4C, 0x00, 0x00, 0x00}, reply.Parameters[19:23], "Capabilities")
	assert.Equal(t, []byte{0xC4, 0xFF}, reply.Parameters[31:33], "ServerTimeZone")

	got, err := DecodeNegotiateResponse(wire(t, reply))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
	assert.Contains(t, got.String(), "2024-05-01T10:00:00Z")
}

func TestSessionSetupRequestRoundTrip(t *testing.T) {
	orig := &SessionSetupRequest{
		MaxBufferSize:   16644,
		MaxMpxCount:     50,
		VcNumber:        1,
		SessionKey:      0xDEADBEEF,
		OEMPassword:     []byte{0x00},
		UnicodePassword: nil,
		Capabilities:    types.CapUnicode | types.CapStatus32,
		AccountName:     "guest",
		PrimaryDomain:   "WORKGROUP",
		NativeOS:        "Unix",
		NativeLanMan:    "Samba",
	}

	for _, flags2 := range []types.Flags2{types.Flags2Unicode, 0} {
		got, err := DecodeSessionSetupRequest(request(t, orig, flags2))
		require.NoError(t, err)
		assert.Equal(t, orig, got)
	}
}

func TestSessionSetupRequestUnicodePadding(t *testing.T) {
	// With empty password blobs the strings start at absolute offset 61,
	// so a pad byte must precede them.
	orig := &SessionSetupRequest{AccountName: "u", PrimaryDomain: "d"}
	m := request(t, orig, types.Flags2Unicode)
	require.Equal(t, 61, m.DataOffset())
	assert.Equal(t, byte(0), m.Data[0])
	assert.Equal(t, []byte{'u', 0, 0, 0}, m.Data[1:5])

	got, err := DecodeSessionSetupRequest(m)
	require.NoError(t, err)
	assert.Equal(t, "u", got.AccountName)
	assert.Equal(t, "d", got.PrimaryDomain)
	assert.Equal(t, "", got.NativeOS)
}

func TestSessionSetupRequestRejectsChaining(t *testing.T) {
	m := request(t, &SessionSetupRequest{}, types.Flags2Unicode)
	m.Parameters[0] = byte(types.CommandTreeConnectAndX)

	_, err := DecodeSessionSetupRequest(m)
	assert.ErrorIs(t, err, types.ErrUnsupportedChaining)
	assert.ErrorIs(t, err, types.ErrProtocolDecode)
}

func TestSessionSetupRequestWordCount(t *testing.T) {
	m := message.New(types.CommandSessionSetupAndX)
	m.Parameters = make([]byte, 24)
	_, err := DecodeSessionSetupRequest(wire(t, m))
	assert.ErrorIs(t, err, types.ErrProtocolDecode)
}

func TestSessionSetupRequestUnterminatedString(t *testing.T) {
	m := request(t, &SessionSetupRequest{AccountName: "guest"}, 0)
	m.Data = m.Data[:3]
	buf, err := m.Encode()
	require.NoError(t, err)
	m, err = message.Decode(buf)
	require.NoError(t, err)

	_, err = DecodeSessionSetupRequest(m)
	assert.ErrorIs(t, err, types.ErrMalformedString)
}

func TestSessionSetupResponseLayout(t *testing.T) {
	req := request(t, &SessionSetupRequest{PrimaryDomain: "WORKGROUP"}, types.Flags2Unicode)
	resp := &SessionSetupResponse{
		Action:        ActionLoggedIn,
		NativeOS:      "Unix",
		NativeLanMan:  "DittoSMB",
		PrimaryDomain: "WORKGROUP",
	}
	reply, err := NewReply(req, resp)
	require.NoError(t, err)

	assert.Equal(t, 4, reply.WordCount())
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}, reply.Parameters)
	// Data starts at odd offset 43: one pad byte, then UTF-16 strings.
	require.Equal(t, 43, reply.DataOffset())
	assert.Equal(t, byte(0), reply.Data[0])
	assert.Equal(t, []byte{'U', 0, 'n', 0, 'i', 0, 'x', 0, 0, 0}, reply.Data[1:11])
	assert.Len(t, reply.Data, 1+10+18+20)

	got, err := DecodeSessionSetupResponse(wire(t, reply))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestTreeConnectRequestRoundTrip(t *testing.T) {
	for _, pw := range [][]byte{nil, {0x00}, {'s', 'e'}} {
		orig := &TreeConnectRequest{
			Flags:    0x0008,
			Password: pw,
			Path:     `\\SERVER\SHARE`,
			Service:  types.ServiceAny,
		}
		got, err := DecodeTreeConnectRequest(request(t, orig, types.Flags2Unicode))
		require.NoError(t, err)
		assert.Equal(t, orig, got)
	}
}

func TestTreeConnectRequestPathIsAlwaysUnicode(t *testing.T) {
	orig := &TreeConnectRequest{Password: []byte{0}, Path: `\\H\S`, Service: types.ServiceDisk}
	m := request(t, orig, 0)
	assert.False(t, m.IsUnicode())

	got, err := DecodeTreeConnectRequest(m)
	require.NoError(t, err)
	assert.Equal(t, `\\H\S`, got.Path)
	assert.Equal(t, "A:", got.Service)
}

func TestTreeConnectResponseLayout(t *testing.T) {
	req := request(t, &TreeConnectRequest{Path: `\\H\S`, Service: "A:"}, types.Flags2Unicode)
	reply, err := NewReply(req, &TreeConnectResponse{OptionalSupport: types.SupportSearchBits, Service: types.ServiceDisk})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x00, 0x01, 0x00}, reply.Parameters)
	assert.Equal(t, []byte("A:\x00"), reply.Data)

	got, err := DecodeTreeConnectResponse(wire(t, reply))
	require.NoError(t, err)
	assert.Equal(t, "A:", got.Service)
	assert.Equal(t, types.SupportSearchBits, got.OptionalSupport)
}

func TestEchoRoundTrip(t *testing.T) {
	req := request(t, &EchoRequest{EchoCount: 1, Data: []byte("ping")}, types.Flags2Unicode)
	decoded, err := DecodeEchoRequest(req)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), decoded.EchoCount)
	assert.Equal(t, []byte("ping"), decoded.Data)

	reply, err := NewReply(req, &EchoResponse{SequenceNumber: 0, Data: decoded.Data})
	require.NoError(t, err)
	got, err := DecodeEchoResponse(wire(t, reply))
	require.NoError(t, err)
	assert.Equal(t, &EchoResponse{Data: []byte("ping")}, got)
}

func TestNewReplyMirrorsRequest(t *testing.T) {
	req := request(t, &EchoRequest{EchoCount: 1}, types.Flags2Unicode|types.Flags2ExtendedSecurity)
	reply, err := NewReply(req, &EchoResponse{})
	require.NoError(t, err)

	assert.True(t, reply.IsReply())
	assert.False(t, reply.Flags2.Has(types.Flags2ExtendedSecurity))
	assert.True(t, reply.Flags2.Has(ReplyFlags2))
	assert.Equal(t, req.PID, reply.PID)
	assert.Equal(t, req.TID, reply.TID)
	assert.Equal(t, req.UID, reply.UID)
	assert.Equal(t, req.MID, reply.MID)
	assert.Equal(t, types.StatusSuccess, reply.Status)
}

func TestErrorReply(t *testing.T) {
	req := request(t, &EchoRequest{EchoCount: 2}, types.Flags2Unicode)
	reply := ErrorReply(req, types.StatusInvalidParameter)

	assert.True(t, reply.IsReply())
	assert.True(t, reply.IsError())
	assert.Equal(t, types.CommandEcho, reply.Command)
	assert.Zero(t, reply.WordCount())
	assert.Empty(t, reply.Data)

	p, err := DecodeResponse(wire(t, reply))
	require.NoError(t, err)
	assert.Equal(t, &NullPayload{Cmd: types.CommandEcho}, p)
}

func TestDecodeRequestDispatch(t *testing.T) {
	p, err := DecodeRequest(request(t, &EchoRequest{EchoCount: 1}, 0))
	require.NoError(t, err)
	assert.IsType(t, &EchoRequest{}, p)

	p, err = DecodeRequest(request(t, &NegotiateRequest{Dialects: []string{"NT LM 0.12"}}, 0))
	require.NoError(t, err)
	assert.IsType(t, &NegotiateRequest{}, p)

	_, err = DecodeRequest(wire(t, message.New(types.Command(0x2E))))
	assert.ErrorIs(t, err, types.ErrUnsupportedCommand)
}

func TestPayloadStrings(t *testing.T) {
	tests := []struct {
		p    Payload
		want string
	}{
		{&NegotiateRequest{Dialects: []string{"NT LM 0.12"}}, `"NT LM 0.12"`},
		{&SessionSetupRequest{AccountName: "alice"}, `account="alice"`},
		{&TreeConnectRequest{Path: `\\H\S`}, "SMB_COM_TREE_CONNECT_ANDX"},
		{&EchoRequest{Data: []byte("ping")}, "4 bytes"},
		{&NullPayload{Cmd: types.CommandEcho}, "ECHO"},
	}
	for _, tt := range tests {
		assert.Contains(t, tt.p.String(), tt.want)
	}
}
