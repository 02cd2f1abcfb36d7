package message

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/dittosmb/internal/adapter/smb/header"
	"github.com/marmos91/dittosmb/internal/adapter/smb/types"
)

const (
	// ParametersOffset is the absolute offset of the parameter block.
	ParametersOffset = header.Size + 1

	// MaxParameterWords is the largest WordCount the one-byte field can carry.
	MaxParameterWords = 0xFF

	// MaxDataLength is the largest ByteCount the two-byte field can carry.
	MaxDataLength = 0xFFFF
)

// Message is a decoded SMB1 message: the header plus its parameter and data
// blocks. Messages built for sending leave raw empty.
type Message struct {
	header.Header

	Parameters []byte
	Data       []byte

	raw []byte
}

// New returns an empty message for the given command.
func New(cmd types.Command) *Message {
	return &Message{Header: header.Header{Command: cmd}}
}

// Decode parses buf into a Message. Bytes following the data block are
// ignored.
func Decode(buf []byte) (*Message, error) {
	h, err := header.Parse(buf)
	if err != nil {
		return nil, err
	}

	if len(buf) < ParametersOffset {
		return nil, fmt.Errorf("%w: missing WordCount", types.ErrProtocolDecode)
	}
	wordCount := int(buf[header.Size])
	paramsEnd := ParametersOffset + wordCount*2
	if paramsEnd+2 > len(buf) {
		return nil, fmt.Errorf("%w: WordCount %d exceeds message of %d bytes", types.ErrProtocolDecode, wordCount, len(buf))
	}

	byteCount := int(binary.LittleEndian.Uint16(buf[paramsEnd:]))
	dataStart := paramsEnd + 2
	dataEnd := dataStart + byteCount
	if dataEnd > len(buf) {
		return nil, fmt.Errorf("%w: ByteCount %d exceeds message of %d bytes", types.ErrProtocolDecode, byteCount, len(buf))
	}

	return &Message{
		Header:     *h,
		Parameters: buf[ParametersOffset:paramsEnd],
		Data:       buf[dataStart:dataEnd],
		raw:        buf[:dataEnd],
	}, nil
}

// DataOffset returns the absolute offset of the data block.
func (m *Message) DataOffset() int {
	return ParametersOffset + len(m.Parameters) + 2
}

// WordCount returns the number of 16-bit words in the parameter block.
func (m *Message) WordCount() int {
	return len(m.Parameters) / 2
}

// Raw returns the message bytes from the header through the end of the data
// block. For messages that were not decoded it encodes the message; an
// encoding error yields nil.
func (m *Message) Raw() []byte {
	if m.raw != nil {
		return m.raw
	}
	b, err := m.Encode()
	if err != nil {
		return nil
	}
	return b
}

// Size returns the encoded length of the message.
func (m *Message) Size() int {
	return m.DataOffset() + len(m.Data)
}

// Encode serializes the message. It fails when the parameter block is not
// word aligned or a block exceeds its length field.
func (m *Message) Encode() ([]byte, error) {
	if len(m.Parameters)%2 != 0 {
		return nil, fmt.Errorf("%w: parameter block of %d bytes is not word aligned", types.ErrProtocolDecode, len(m.Parameters))
	}
	if m.WordCount() > MaxParameterWords {
		return nil, fmt.Errorf("%w: %d parameter words exceed %d", types.ErrProtocolDecode, m.WordCount(), MaxParameterWords)
	}
	if len(m.Data) > MaxDataLength {
		return nil, fmt.Errorf("%w: data block of %d bytes exceeds %d", types.ErrProtocolDecode, len(m.Data), MaxDataLength)
	}

	buf := make([]byte, m.Size())
	m.Header.EncodeTo(buf)
	buf[header.Size] = byte(m.WordCount())
	copy(buf[ParametersOffset:], m.Parameters)
	off := ParametersOffset + len(m.Parameters)
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(m.Data)))
	copy(buf[off+2:], m.Data)
	return buf, nil
}

// String renders the header and block sizes for debug logging.
func (m *Message) String() string {
	return fmt.Sprintf("%s words=%d bytes=%d", m.Header.String(), m.WordCount(), len(m.Data))
}
