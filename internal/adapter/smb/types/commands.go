package types

import "fmt"

// Command identifies an SMB1 command in the header.
//
// [MS-CIFS] Section 2.2.2.1
type Command uint8

const (
	// CommandEcho is the liveness probe (SMB_COM_ECHO).
	CommandEcho Command = 0x2B

	// CommandNegotiate selects the dialect (SMB_COM_NEGOTIATE).
	CommandNegotiate Command = 0x72

	// CommandSessionSetupAndX establishes a session (SMB_COM_SESSION_SETUP_ANDX).
	CommandSessionSetupAndX Command = 0x73

	// CommandTreeConnectAndX attaches to a share (SMB_COM_TREE_CONNECT_ANDX).
	CommandTreeConnectAndX Command = 0x75

	// CommandNoAndX terminates an ANDX chain.
	CommandNoAndX Command = 0xFF
)

var commandNames = map[Command]string{
	CommandEcho:             "ECHO",
	CommandNegotiate:        "NEGOTIATE",
	CommandSessionSetupAndX: "SESSION_SETUP_ANDX",
	CommandTreeConnectAndX:  "TREE_CONNECT_ANDX",
	CommandNoAndX:           "NO_ANDX_COMMAND",
}

// String returns the protocol name of the command.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
}
