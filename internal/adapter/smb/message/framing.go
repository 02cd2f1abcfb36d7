package message

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

// FrameHeaderSize is the length of the big-endian length prefix.
const FrameHeaderSize = 4

// ReadFrame reads one length-prefixed message body from r. A zero length, a
// length above maxSize, or a stream ending before the body is complete are
// framing errors. A clean io.EOF before any prefix byte is returned as is so
// callers can tell an orderly close from a truncated frame.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	return ReadFrameInto(r, maxSize, func(n int) []byte { return make([]byte, n) }, nil)
}

// ReadFrameInto is ReadFrame with the body allocated by alloc. release,
// when not nil, gets the body back if the frame turns out truncated.
func ReadFrameInto(r io.Reader, maxSize int, alloc func(int) []byte, release func([]byte)) ([]byte, error) {
	var prefix [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: read length prefix: %w", types.ErrFraming, err)
	}

	length := binary.BigEndian.Uint32(prefix[:])
	if length == 0 {
		return nil, fmt.Errorf("%w: zero-length frame", types.ErrFraming)
	}
	if maxSize > 0 && uint64(length) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds maximum %d", types.ErrFraming, length, maxSize)
	}

	body := alloc(int(length))
	if _, err := io.ReadFull(r, body); err != nil {
		if release != nil {
			release(body)
		}
		return nil, fmt.Errorf("%w: read %d-byte body: %w", types.ErrFraming, length, err)
	}
	return body, nil
}

// WriteFrame writes body to w preceded by its length, in a single Write.
func WriteFrame(w io.Writer, body []byte) error {
	if uint64(len(body)) > 0xFFFFFFFF {
		return fmt.Errorf("%w: frame of %d bytes does not fit the length prefix", types.ErrFraming, len(body))
	}
	frame := make([]byte, FrameHeaderSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[FrameHeaderSize:], body)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("%w: write frame: %w", types.ErrFraming, err)
	}
	return nil
}

// Read reads and decodes one framed message.
func Read(r io.Reader, maxSize int) (*Message, error) {
	body, err := ReadFrame(r, maxSize)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// Write encodes and frames m.
func Write(w io.Writer, m *Message) error {
	body, err := m.Encode()
	if err != nil {
		return err
	}
	return WriteFrame(w, body)
}
