package smf

// ReadVarLen decodes a MIDI variable-length quantity from the start of
// data: a big-endian sequence of 7-bit groups, each byte's high bit
// signaling "more bytes follow". It returns the decoded value, the
// number of bytes consumed, and ErrBadVarlen if the sequence exceeds
// four bytes without terminating, or ErrTruncatedChunk if data is
// exhausted first.
func ReadVarLen(data []byte) (value uint32, n int, err error) {
	for i := 0; i < 4; i++ {
		if n >= len(data) {
			err = ErrTruncatedChunk
			return
		}
		b := data[n]
		n++
		value = (value << 7) | uint32(b&0x7f)
		if b&0x80 == 0 {
			return value, n, nil
		}
	}
	err = ErrBadVarlen
	return
}

// WriteVarLen encodes value as a minimal-length MIDI variable-length
// quantity. Values outside [0, 2^28) are truncated to their low 28 bits,
// matching the format's maximum representable range.
func WriteVarLen(value uint32) []byte {
	value &= 0x0fffffff
	buf := []byte{byte(value & 0x7f)}
	value >>= 7
	for value > 0 {
		buf = append([]byte{byte(value&0x7f) | 0x80}, buf...)
		value >>= 7
	}
	return buf
}
