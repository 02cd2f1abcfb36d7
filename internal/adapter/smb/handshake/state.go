package handshake

import (
	"time"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// State is the position of a connection in the handshake.
type State int

const (
	AwaitNegotiate State = iota
	AwaitSessionSetup
	AwaitTreeConnect
	AwaitEcho
	Complete
	Failed
)

var stateNames = [...]string{
	AwaitNegotiate:    "AwaitNegotiate",
	AwaitSessionSetup: "AwaitSessionSetup",
	AwaitTreeConnect:  "AwaitTreeConnect",
	AwaitEcho:         "AwaitEcho",
	Complete:          "Complete",
	Failed:            "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// expected returns the command accepted in state s.
func (s State) expected() (types.Command, bool) {
	switch s {
	case AwaitNegotiate:
		return types.CommandNegotiate, true
	case AwaitSessionSetup:
		return types.CommandSessionSetupAndX, true
	case AwaitTreeConnect:
		return types.CommandTreeConnectAndX, true
	case AwaitEcho, Complete:
		return types.CommandEcho, true
	default:
		return 0, false
	}
}

// Clock supplies the time advertised in NEGOTIATE replies.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the local time zone.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Options configures the values a Session advertises.
type Options struct {
	// Dialect is the only dialect accepted during negotiation.
	Dialect string

	// Capabilities advertised in NEGOTIATE. Clients may not request any
	// capability outside this set.
	Capabilities types.Capabilities

	MaxMpxCount   uint16
	MaxNumberVcs  uint16
	MaxBufferSize uint32
	MaxRawSize    uint32
	SessionKey    uint32

	// NativeOS and NativeLanMan are returned in SESSION_SETUP_ANDX replies.
	NativeOS     string
	NativeLanMan string

	Clock Clock
}

// DefaultOptions returns the settings of a server that advertises no
// security features and unlimited limits.
func DefaultOptions() Options {
	return Options{
		Dialect:       types.DialectNTLM012,
		Capabilities:  types.CapUnicode | types.CapLargeFiles | types.CapStatus32,
		MaxMpxCount:   0xFFFF,
		MaxNumberVcs:  0xFFFF,
		MaxBufferSize: 0xFFFF,
		MaxRawSize:    0xFFFF,
		NativeOS:      "Unix",
		NativeLanMan:  "DittoSMB",
		Clock:         SystemClock{},
	}
}
