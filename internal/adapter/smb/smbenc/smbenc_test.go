package smbenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderSequence(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	assert.Equal(t, uint8(0x01), r.ReadUint8())
	assert.Equal(t, uint16(0x0302), r.ReadUint16())
	assert.Equal(t, uint32(0x07060504), r.ReadUint32())
	require.NoError(t, r.Err())
	assert.Equal(t, 7, r.Position())
	assert.Zero(t, r.Remaining())
}

func TestReaderStickyError(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	_ = r.ReadUint32()
	require.ErrorIs(t, r.Err(), ErrShortRead)

	// Later reads are no-ops even when enough data would remain.
	assert.Zero(t, r.ReadUint8())
	assert.Nil(t, r.ReadBytes(1))
	assert.Equal(t, 0, r.Position())
}

func TestReaderReadBytesCopies(t *testing.T) {
	src := []byte{0xAA, 0xBB}
	r := NewReader(src)
	b := r.ReadBytes(2)
	b[0] = 0
	assert.Equal(t, byte(0xAA), src[0])
}

func TestReaderNegativeLength(t *testing.T) {
	r := NewReader([]byte{1, 2})
	r.Skip(-1)
	assert.ErrorIs(t, r.Err(), ErrShortRead)
}

func TestWriterFields(t *testing.T) {
	w := NewWriter(16)
	w.WriteUint8(0xFF)
	w.WriteUint16(0x0201)
	w.WriteUint32(0x06050403)
	w.WriteZeros(2)
	require.NoError(t, w.Err())
	assert.Equal(t, []byte{0xFF, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x00, 0x00}, w.Bytes())
}

func TestWriterAlignFrom(t *testing.T) {
	// Data blocks of a 4-word response start at offset 43 (odd).
	w := NewWriterAt(43, 16)
	assert.Equal(t, 1, w.AlignFrom())
	assert.Equal(t, 0, w.AlignFrom())
	w.WriteUint8(1)
	assert.Equal(t, 1, w.AlignFrom())
	assert.Equal(t, 3, w.Len())

	even := NewWriterAt(36, 4)
	assert.Equal(t, 0, even.AlignFrom())
}

func TestEncodeString(t *testing.T) {
	b, err := EncodeString("Unix", true)
	require.NoError(t, err)
	assert.Equal(t, []byte{'U', 0, 'n', 0, 'i', 0, 'x', 0, 0, 0}, b)

	b, err = EncodeString("A:", false)
	require.NoError(t, err)
	assert.Equal(t, []byte{'A', ':', 0}, b)

	_, err = EncodeString("café", false)
	assert.ErrorIs(t, err, ErrNonASCII)

	w := NewWriter(4)
	w.WriteString("é", false)
	assert.ErrorIs(t, w.Err(), ErrNonASCII)
}

func TestDecodeStringsASCII(t *testing.T) {
	buf := []byte("xxGUEST\x00\x00Windows\x00")
	out, next, err := DecodeStrings(buf, 2, 3, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"GUEST", "", "Windows"}, out)
	assert.Equal(t, len(buf), next)
}

func TestDecodeStringsUnicodeAlignment(t *testing.T) {
	// Offset 3 is odd: one zero pad byte precedes the first string.
	buf := []byte{0xAA, 0xBB, 0xCC, 0x00, 'a', 0, 'b', 0, 0, 0, 0, 0}
	out, next, err := DecodeStrings(buf, 3, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", ""}, out)
	assert.Equal(t, 12, next)
}

func TestDecodeStringsUnicodeBadPadding(t *testing.T) {
	buf := []byte{0xAA, 0x01, 'a', 0, 0, 0}
	_, _, err := DecodeStrings(buf, 1, 1, true)
	assert.ErrorIs(t, err, ErrBadPadding)
}

func TestDecodeStringsOddTerminatorIsSkipped(t *testing.T) {
	// 'A' then U+0100 puts a 00 00 pair at odd offset 1, inside the
	// string. Only the pair at offset 4 terminates it.
	buf := []byte{
		0x41, 0x00, // 'A'
		0x00, 0x01, // U+0100
		0x00, 0x00,
	}
	out, next, err := DecodeStrings(buf, 0, 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"AĀ"}, out)
	assert.Equal(t, 6, next)
}

func TestDecodeStringsMissingTerminator(t *testing.T) {
	_, _, err := DecodeStrings([]byte{'a', 0, 'b', 0}, 0, 1, true)
	assert.ErrorIs(t, err, ErrUnterminatedString)

	_, _, err = DecodeStrings([]byte("abc"), 0, 1, false)
	assert.ErrorIs(t, err, ErrUnterminatedString)

	_, _, err = DecodeStrings([]byte("abc"), 9, 1, false)
	assert.ErrorIs(t, err, ErrUnterminatedString)
}

func TestEncodeDecodeUnicodeRoundTrip(t *testing.T) {
	w := NewWriterAt(1, 32)
	w.AlignFrom()
	w.WriteString("\\\\SERVER\\share", true)
	w.WriteString("", true)
	require.NoError(t, w.Err())

	buf := append([]byte{0xEE}, w.Bytes()...)
	out, next, err := DecodeStrings(buf, 1, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"\\\\SERVER\\share", ""}, out)
	assert.Equal(t, len(buf), next)
}
