package smbenc

import (
	"encoding/binary"
)

// Writer appends little-endian SMB1 fields to a growing buffer.
//
// base is the absolute offset, from the start of the SMB1 header, at which
// the buffer will be placed in the final message. It only affects AlignFrom.
type Writer struct {
	buf  []byte
	base int
	err  error
}

// NewWriter creates a new Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// NewWriterAt creates a Writer whose output will start at absolute offset
// base inside the message.
func NewWriterAt(base, capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity), base: base}
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

// WriteUint16 appends a little-endian uint16.
func (w *Writer) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// WriteUint64 appends a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	if w.err != nil {
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(data []byte) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, data...)
}

// WriteZeros appends n zero bytes.
func (w *Writer) WriteZeros(n int) {
	if w.err != nil || n <= 0 {
		return
	}
	w.buf = append(w.buf, make([]byte, n)...)
}

// AlignFrom appends one zero byte when the next write would land on an odd
// absolute offset. It returns the number of pad bytes written.
func (w *Writer) AlignFrom() int {
	if w.err != nil || (w.base+len(w.buf))%2 == 0 {
		return 0
	}
	w.buf = append(w.buf, 0)
	return 1
}

// WriteString appends s with its terminator: UTF-16LE followed by two zero
// bytes when unicode is set, OEM bytes followed by one zero byte otherwise.
// Alignment is the caller's responsibility.
func (w *Writer) WriteString(s string, unicode bool) {
	if w.err != nil {
		return
	}
	b, err := EncodeString(s, unicode)
	if err != nil {
		w.err = err
		return
	}
	w.buf = append(w.buf, b...)
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length of the buffer.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first error encountered, or nil.
func (w *Writer) Err() error {
	return w.err
}
