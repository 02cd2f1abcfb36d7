package smbenc

import (
	"bytes"
	"errors"
	"fmt"

	xunicode "golang.org/x/text/encoding/unicode"
)

// ErrUnterminatedString is returned when a string field has no terminator
// before the end of the buffer.
var ErrUnterminatedString = errors.New("smbenc: unterminated string")

// ErrBadPadding is returned when the alignment byte preceding a UTF-16
// string is not zero.
var ErrBadPadding = errors.New("smbenc: non-zero alignment padding")

// ErrNonASCII is returned when an OEM string contains bytes outside ASCII.
var ErrNonASCII = errors.New("smbenc: non-ASCII OEM string")

var utf16le = xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)

// EncodeString returns s followed by its terminator. With unicode set the
// text is UTF-16LE with a two-byte terminator; otherwise it must be ASCII and
// gets a single zero byte.
func EncodeString(s string, unicode bool) ([]byte, error) {
	if unicode {
		b, err := utf16le.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("smbenc: encode UTF-16LE: %w", err)
		}
		return append(b, 0, 0), nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] >= 0x80 {
			return nil, fmt.Errorf("%w: byte 0x%02X at %d", ErrNonASCII, s[i], i)
		}
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, nil
}

// DecodeStrings decodes count consecutive null-terminated strings starting at
// the absolute offset within buf, which must be the whole SMB1 message
// starting at the header. It returns the strings and the offset following
// the last terminator.
//
// In UTF-16 mode the first string is aligned to an even offset by consuming
// one zero pad byte, and a 00 00 pair found at an odd offset straddles two
// code units, so the scan resumes one byte later. In ASCII mode a single zero
// byte terminates each string. Empty fields decode to "".
func DecodeStrings(buf []byte, offset, count int, unicode bool) ([]string, int, error) {
	if offset < 0 || offset > len(buf) {
		return nil, offset, fmt.Errorf("%w: offset %d outside buffer of %d bytes", ErrUnterminatedString, offset, len(buf))
	}

	if unicode && offset%2 == 1 && count > 0 {
		if offset >= len(buf) {
			return nil, offset, fmt.Errorf("%w: missing alignment byte at offset %d", ErrUnterminatedString, offset)
		}
		if buf[offset] != 0 {
			return nil, offset, fmt.Errorf("%w: 0x%02X at offset %d", ErrBadPadding, buf[offset], offset)
		}
		offset++
	}

	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var (
			s    string
			next int
			err  error
		)
		if unicode {
			s, next, err = decodeUTF16At(buf, offset)
		} else {
			s, next, err = decodeASCIIAt(buf, offset)
		}
		if err != nil {
			return nil, offset, fmt.Errorf("string %d: %w", i, err)
		}
		out = append(out, s)
		offset = next
	}
	return out, offset, nil
}

func decodeUTF16At(buf []byte, start int) (string, int, error) {
	scan := start
	for {
		idx := bytes.Index(buf[scan:], []byte{0, 0})
		if idx < 0 {
			return "", start, fmt.Errorf("%w: UTF-16 string at offset %d", ErrUnterminatedString, start)
		}
		end := scan + idx
		if end%2 == 1 {
			scan = end + 1
			continue
		}
		text, err := utf16le.NewDecoder().Bytes(buf[start:end])
		if err != nil {
			return "", start, fmt.Errorf("smbenc: decode UTF-16LE at offset %d: %w", start, err)
		}
		return string(text), end + 2, nil
	}
}

func decodeASCIIAt(buf []byte, start int) (string, int, error) {
	idx := bytes.IndexByte(buf[start:], 0)
	if idx < 0 {
		return "", start, fmt.Errorf("%w: ASCII string at offset %d", ErrUnterminatedString, start)
	}
	raw := buf[start : start+idx]
	for i, c := range raw {
		if c >= 0x80 {
			return "", start, fmt.Errorf("%w: byte 0x%02X at offset %d", ErrNonASCII, c, start+i)
		}
	}
	return string(raw), start + idx + 1, nil
}
