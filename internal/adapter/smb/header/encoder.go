package header

import "encoding/binary"

// Encode serializes the header to its 32-byte wire form.
func (h *Header) Encode() []byte {
	buf := make([]byte, Size)
	h.EncodeTo(buf)
	return buf
}

// EncodeTo writes the header into the first 32 bytes of buf. buf must be at
// least Size bytes long.
func (h *Header) EncodeTo(buf []byte) {
	copy(buf[0:4], ProtocolID[:])
	buf[4] = byte(h.Command)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(h.Status))
	buf[9] = byte(h.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(h.Flags2))
	binary.LittleEndian.PutUint16(buf[12:14], uint16(h.PID>>16))
	copy(buf[14:22], h.SecurityFeatures[:])
	binary.LittleEndian.PutUint16(buf[22:24], 0)
	binary.LittleEndian.PutUint16(buf[24:26], h.TID)
	binary.LittleEndian.PutUint16(buf[26:28], uint16(h.PID))
	binary.LittleEndian.PutUint16(buf[28:30], h.UID)
	binary.LittleEndian.PutUint16(buf[30:32], h.MID)
}
