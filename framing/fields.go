package framing

// Integer field helpers for the little-endian device values used
// throughout both driver families, plus the one big-endian field (the
// envelope CRC) per spec §4.2.

// U16LE reads a little-endian 16-bit value starting at b[0].
func U16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

// U24LE reads a little-endian 24-bit value starting at b[0].
func U24LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// U32LE reads a little-endian 32-bit value starting at b[0].
func U32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// U16BE reads a big-endian 16-bit value starting at b[0].
func U16BE(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// PutU16LE writes v little-endian into b[0:2].
func PutU16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutU32LE writes v little-endian into b[0:4].
func PutU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
