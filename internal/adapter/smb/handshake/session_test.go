package handshake

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/message"
	"github.com/marmos91/dittosmb/internal/adapter/smb/payload"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))

func newTestSession() *Session {
	opts := DefaultOptions()
	opts.Clock = fixedClock{t: testTime}
	return NewSession(opts)
}

func req(t *testing.T, p payload.Payload, mid uint16) *message.Message {
	t.Helper()
	m, err := payload.NewRequest(p, types.Flags2Unicode|types.Flags2NTStatus, 0x00042A2A, 0xFFFF, 0x0800, mid)
	require.NoError(t, err)
	buf, err := m.Encode()
	require.NoError(t, err)
	decoded, err := message.Decode(buf)
	require.NoError(t, err)
	return decoded
}

func negotiateReq(t *testing.T, dialects ...string) *message.Message {
	return req(t, &payload.NegotiateRequest{Dialects: dialects}, 1)
}

func sessionSetupReq(t *testing.T, caps types.Capabilities) *message.Message {
	return req(t, &payload.SessionSetupRequest{
		MaxBufferSize: 16644,
		Capabilities:  caps,
		AccountName:   "guest",
		PrimaryDomain: "WORKGROUP",
		NativeOS:      "Linux",
		NativeLanMan:  "smbclient",
	}, 2)
}

func treeConnectReq(t *testing.T, service string) *message.Message {
	return req(t, &payload.TreeConnectRequest{Path: `\\localhost\share`, Service: service}, 3)
}

func echoReq(t *testing.T, count uint16, data string) *message.Message {
	return req(t, &payload.EchoRequest{EchoCount: count, Data: []byte(data)}, 4)
}

func assertCorrelated(t *testing.T, request, reply *message.Message) {
	t.Helper()
	assert.True(t, reply.IsReply())
	assert.Equal(t, request.PID, reply.PID)
	assert.Equal(t, request.TID, reply.TID)
	assert.Equal(t, request.UID, reply.UID)
	assert.Equal(t, request.MID, reply.MID)
	assert.Equal(t, request.Command, reply.Command)
}

func TestFullHandshake(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, AwaitNegotiate, s.State())

	r := negotiateReq(t, "PC NETWORK PROGRAM 1.0", "LANMAN1.0", "NT LM 0.12")
	ex, err := s.Handle(r)
	require.NoError(t, err)
	assertCorrelated(t, r, ex.Reply)
	neg := ex.Response.(*payload.NegotiateResponse)
	assert.Equal(t, uint16(2), neg.DialectIndex)
	assert.Equal(t, types.CapUnicode|types.CapLargeFiles|types.CapStatus32, neg.Capabilities)
	assert.Equal(t, types.TimeToFiletime(testTime), neg.SystemTime)
	assert.Equal(t, int16(-120), neg.ServerTimeZone)
	assert.Zero(t, neg.ChallengeLength)
	assert.Equal(t, AwaitSessionSetup, s.State())

	r = sessionSetupReq(t, types.CapUnicode|types.CapStatus32)
	ex, err = s.Handle(r)
	require.NoError(t, err)
	assertCorrelated(t, r, ex.Reply)
	ss := ex.Response.(*payload.SessionSetupResponse)
	assert.Equal(t, payload.ActionLoggedIn, ss.Action)
	assert.Equal(t, "Unix", ss.NativeOS)
	assert.Equal(t, "DittoSMB", ss.NativeLanMan)
	assert.Equal(t, "WORKGROUP", ss.PrimaryDomain)
	assert.Equal(t, AwaitTreeConnect, s.State())

	r = treeConnectReq(t, types.ServiceAny)
	ex, err = s.Handle(r)
	require.NoError(t, err)
	assertCorrelated(t, r, ex.Reply)
	assert.Equal(t, []byte("A:\x00"), ex.Reply.Data)
	assert.Equal(t, AwaitEcho, s.State())

	r = echoReq(t, 1, "ping")
	ex, err = s.Handle(r)
	require.NoError(t, err)
	assertCorrelated(t, r, ex.Reply)
	assert.Equal(t, []byte("ping"), ex.Reply.Data)
	assert.Equal(t, []byte{0, 0}, ex.Reply.Parameters)
	assert.Equal(t, Complete, s.State())

	info := s.Info()
	assert.Equal(t, Complete, info.State)
	assert.Equal(t, "NT LM 0.12", info.Dialect)
	assert.Equal(t, 2, info.DialectIndex)
	assert.Equal(t, "guest", info.Account)
	assert.Equal(t, "smbclient", info.ClientLanMan)
	assert.Equal(t, `\\localhost\share`, info.TreePath)
	assert.Equal(t, 1, info.Echoes)
}

func TestKeepAliveEchoAfterComplete(t *testing.T) {
	s := completeSession(t)

	ex, err := s.Handle(echoReq(t, 0, "again"))
	require.NoError(t, err)
	assert.Equal(t, []byte("again"), ex.Reply.Data)
	assert.Equal(t, Complete, s.State())
	assert.Equal(t, 2, s.Info().Echoes)

	_, err = s.Handle(treeConnectReq(t, types.ServiceDisk))
	assert.ErrorIs(t, err, types.ErrHandshakeSequence)
	assert.Equal(t, Failed, s.State())
}

func completeSession(t *testing.T) *Session {
	t.Helper()
	s := newTestSession()
	for _, r := range []*message.Message{
		negotiateReq(t, "NT LM 0.12"),
		sessionSetupReq(t, 0),
		treeConnectReq(t, types.ServiceDisk),
		echoReq(t, 1, ""),
	} {
		_, err := s.Handle(r)
		require.NoError(t, err)
	}
	require.Equal(t, Complete, s.State())
	return s
}

func TestOutOfOrderCommandFails(t *testing.T) {
	s := newTestSession()

	_, err := s.Handle(sessionSetupReq(t, 0))
	require.ErrorIs(t, err, types.ErrHandshakeSequence)

	var he *types.HandshakeError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, "AwaitNegotiate", he.State)
	assert.Equal(t, types.CommandSessionSetupAndX, he.Command)
	assert.Equal(t, types.StatusRequestNotAccepted, he.Status)

	// A failed session never recovers, even for the right command.
	_, err = s.Handle(negotiateReq(t, "NT LM 0.12"))
	assert.ErrorIs(t, err, types.ErrHandshakeSequence)
	assert.Equal(t, Failed, s.State())
}

func TestEchoBeforeHandshakeFails(t *testing.T) {
	s := newTestSession()
	_, err := s.Handle(echoReq(t, 1, "ping"))
	assert.ErrorIs(t, err, types.ErrHandshakeSequence)
}

func TestNegotiationFailure(t *testing.T) {
	s := newTestSession()
	_, err := s.Handle(negotiateReq(t, "LANMAN1.0"))
	require.Error(t, err)
	assert.True(t, IsNegotiationFailure(err))
	assert.Equal(t, Failed, s.State())
	assert.Equal(t, []string{"LANMAN1.0"}, s.Info().OfferedDialects)
}

func TestCapabilityRejection(t *testing.T) {
	s := newTestSession()
	_, err := s.Handle(negotiateReq(t, "NT LM 0.12"))
	require.NoError(t, err)

	_, err = s.Handle(sessionSetupReq(t, types.CapUnicode|types.CapExtendedSecurity))
	require.ErrorIs(t, err, types.ErrHandshakeSequence)
	assert.Equal(t, types.StatusInvalidParameter, types.StatusOf(err))
	assert.Equal(t, Failed, s.State())
}

func TestUnsupportedServiceRejected(t *testing.T) {
	s := newTestSession()
	for _, r := range []*message.Message{negotiateReq(t, "NT LM 0.12"), sessionSetupReq(t, 0)} {
		_, err := s.Handle(r)
		require.NoError(t, err)
	}

	_, err := s.Handle(treeConnectReq(t, "IPC"))
	require.ErrorIs(t, err, types.ErrHandshakeSequence)
	assert.Equal(t, types.StatusBadNetworkName, types.StatusOf(err))
}

func TestEchoCountTooHigh(t *testing.T) {
	s := newTestSession()
	for _, r := range []*message.Message{
		negotiateReq(t, "NT LM 0.12"),
		sessionSetupReq(t, 0),
		treeConnectReq(t, types.ServiceAny),
	} {
		_, err := s.Handle(r)
		require.NoError(t, err)
	}

	ex, err := s.Handle(echoReq(t, 2, "ping"))
	assert.Nil(t, ex)
	assert.ErrorIs(t, err, types.ErrHandshakeSequence)
	assert.Equal(t, Failed, s.State())
}

func TestRequestWithReplyFlagRejected(t *testing.T) {
	s := newTestSession()
	r := negotiateReq(t, "NT LM 0.12")
	r.Flags |= types.FlagsReply

	_, err := s.Handle(r)
	assert.ErrorIs(t, err, types.ErrHandshakeSequence)
}

func TestDecodeErrorFailsSession(t *testing.T) {
	s := newTestSession()
	m := message.New(types.CommandNegotiate)
	m.Data = []byte("\x02NT LM 0.12")
	buf, err := m.Encode()
	require.NoError(t, err)
	r, err := message.Decode(buf)
	require.NoError(t, err)

	_, err = s.Handle(r)
	assert.ErrorIs(t, err, types.ErrProtocolDecode)
	assert.Equal(t, Failed, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AwaitTreeConnect", AwaitTreeConnect.String())
	assert.Equal(t, "Unknown", State(42).String())
}
