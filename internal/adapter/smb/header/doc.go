// Package header provides SMB1 message header parsing and encoding.
//
// # Overview
//
// Every SMB1 message starts with a fixed 32-byte header carrying the command,
// the status, the flag words, and the correlation identifiers that a reply
// must mirror back to the client.
//
// # Header Structure
//
//	Offset  Size  Field             Description
//	------  ----  ----------------  ----------------------------------
//	0       4     Protocol          Magic: 0xFF 'S' 'M' 'B'
//	4       1     Command           SMB1 command code
//	5       4     Status            NT_STATUS or DOS error
//	9       1     Flags             Header flags (REPLY = 0x80)
//	10      2     Flags2            Extended flags (UNICODE, NT_STATUS, ...)
//	12      2     PIDHigh           High 16 bits of the process id
//	14      8     SecurityFeatures  Signature or connectionless fields
//	22      2     Reserved          Must be zero
//	24      2     TID               Tree identifier
//	26      2     PIDLow            Low 16 bits of the process id
//	28      2     UID               User identifier
//	30      2     MID               Multiplex identifier
//
// # Byte Order
//
// All fields are little-endian. The 4-byte length prefix that frames each
// message on the stream is big-endian and is handled by package message.
//
// # Usage
//
//	h, err := header.Parse(buf)
//	if err != nil {
//	    return fmt.Errorf("parse header: %w", err)
//	}
//	reply := h.Reply(types.StatusSuccess)
//	wire := reply.Encode()
package header
