// Package message implements the SMB1 message codec and its stream framing.
//
// # Message Layout
//
//	+-----------------+-----------+---------------------+-----------+------+
//	| Header (32)     | WordCount | Parameters (2*WC)   | ByteCount | Data |
//	|                 | (1)       |                     | (2)       |      |
//	+-----------------+-----------+---------------------+-----------+------+
//
// Parameters always start at offset 33. Data starts at 35 plus the length of
// the parameter block, which matters because SMB1 string alignment is
// computed against offsets from the start of the header.
//
// # Framing
//
// On the stream each message is preceded by a 4-byte big-endian length that
// covers the message only:
//
//	[u32 length][SMB1 message]
package message
