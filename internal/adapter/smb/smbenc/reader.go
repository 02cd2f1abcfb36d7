package smbenc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortRead is returned when there are insufficient bytes to complete a read.
var ErrShortRead = errors.New("smbenc: short read")

// Reader reads little-endian SMB1 fields from a byte slice. The first error
// is sticky: once set, every later read returns a zero value.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader creates a new Reader wrapping the given byte slice with position at 0.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) require(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortRead, n, r.pos, len(r.data)-r.pos)
		return false
	}
	return true
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() uint8 {
	if !r.require(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

// ReadUint16 reads a little-endian uint16.
func (r *Reader) ReadUint16() uint16 {
	if !r.require(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() uint32 {
	if !r.require(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() uint64 {
	if !r.require(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// ReadBytes returns a copy of the next n bytes, or nil when n is zero.
func (r *Reader) ReadBytes(n int) []byte {
	if !r.require(n) || n == 0 {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}

// Skip advances the position by n bytes without reading.
func (r *Reader) Skip(n int) {
	if r.require(n) {
		r.pos += n
	}
}

// Err returns the first error encountered, or nil.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return max(len(r.data)-r.pos, 0)
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}
