// Package smbenc provides binary encoding and decoding utilities for the SMB1
// wire protocol.
//
// The package uses an error-accumulation pattern inspired by bufio.Scanner:
// callers perform multiple read/write operations and check for errors once at
// the end, rather than after every individual operation.
//
//	r := smbenc.NewReader(params)
//	maxBuf := r.ReadUint16()
//	caps := r.ReadUint32()
//	if r.Err() != nil {
//	    return r.Err()
//	}
//
// SMB1 aligns UTF-16 strings against their offset from the start of the
// message header, not against the start of the block that contains them.
// Readers and writers therefore carry a base offset so that alignment and
// string decoding operate on absolute positions:
//
//	w := smbenc.NewWriterAt(msg.DataOffset(), 64)
//	w.WriteBytes(blob)
//	w.AlignFrom()
//	w.WriteString("Unix", true)
//
// All integer operations use little-endian byte order ([MS-CIFS] 2.1).
package smbenc
