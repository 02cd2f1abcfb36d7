package header

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// Parsing errors
var (
	// ErrMessageTooShort indicates the buffer cannot hold a 32-byte header.
	ErrMessageTooShort = fmt.Errorf("%w: message too short for SMB1 header", types.ErrProtocolDecode)

	// ErrInvalidProtocolID indicates the message does not start with 0xFF 'S' 'M' 'B'.
	ErrInvalidProtocolID = fmt.Errorf("%w: invalid SMB1 protocol ID", types.ErrProtocolDecode)

	// ErrReservedNotZero indicates the reserved header field carries data.
	ErrReservedNotZero = fmt.Errorf("%w: reserved header field is not zero", types.ErrProtocolDecode)
)

// Parse extracts a Header from wire format (little-endian).
//
// Bytes beyond the first 32 are ignored.
func Parse(data []byte) (*Header, error) {
	if len(data) < Size {
		return nil, ErrMessageTooShort
	}
	if !IsSMB1Message(data) {
		return nil, ErrInvalidProtocolID
	}
	if binary.LittleEndian.Uint16(data[22:24]) != 0 {
		return nil, ErrReservedNotZero
	}

	h := &Header{
		Command: types.Command(data[4]),
		Status:  types.Status(binary.LittleEndian.Uint32(data[5:9])),
		Flags:   types.HeaderFlags(data[9]),
		Flags2:  types.Flags2(binary.LittleEndian.Uint16(data[10:12])),
		PID:     uint32(binary.LittleEndian.Uint16(data[12:14]))<<16 | uint32(binary.LittleEndian.Uint16(data[26:28])),
		TID:     binary.LittleEndian.Uint16(data[24:26]),
		UID:     binary.LittleEndian.Uint16(data[28:30]),
		MID:     binary.LittleEndian.Uint16(data[30:32]),
	}
	copy(h.SecurityFeatures[:], data[14:22])

	return h, nil
}

// IsSMB1Message checks if data starts with the SMB1 protocol ID.
func IsSMB1Message(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[0:4], ProtocolID[:])
}
