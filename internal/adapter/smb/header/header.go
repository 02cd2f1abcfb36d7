package header

import (
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// Size is the fixed length of an SMB1 header in bytes.
const Size = 32

// ProtocolID is the 4-byte signature that opens every SMB1 message.
var ProtocolID = [4]byte{0xFF, 'S', 'M', 'B'}

// Header is the decoded SMB1 message header.
//
// PID is the full 32-bit process id; on the wire it is split into PIDHigh
// (offset 12) and PIDLow (offset 26).
type Header struct {
	Command          types.Command
	Status           types.Status
	Flags            types.HeaderFlags
	Flags2           types.Flags2
	PID              uint32
	SecurityFeatures [8]byte
	TID              uint16
	UID              uint16
	MID              uint16
}

// IsReply reports whether the REPLY flag is set.
func (h *Header) IsReply() bool {
	return h.Flags.Has(types.FlagsReply)
}

// IsUnicode reports whether strings in the message are UTF-16LE.
func (h *Header) IsUnicode() bool {
	return h.Flags2.Has(types.Flags2Unicode)
}

// IsError reports whether the status describes a failure, interpreting it
// according to the NT_STATUS bit of Flags2.
func (h *Header) IsError() bool {
	return h.Status.IsError(h.Flags2.Has(types.Flags2NTStatus))
}

// Reply returns a header for a response to h. The correlation ids and the
// command are copied, the REPLY flag is set, and status is installed.
func (h *Header) Reply(status types.Status) Header {
	return Header{
		Command: h.Command,
		Status:  status,
		Flags:   h.Flags | types.FlagsReply,
		Flags2:  h.Flags2,
		PID:     h.PID,
		TID:     h.TID,
		UID:     h.UID,
		MID:     h.MID,
	}
}

// String renders the header for debug logging.
func (h *Header) String() string {
	return fmt.Sprintf("%s status=%s flags=0x%02X flags2=0x%04X pid=%d tid=%d uid=%d mid=%d",
		h.Command, h.Status, uint8(h.Flags), uint16(h.Flags2), h.PID, h.TID, h.UID, h.MID)
}
