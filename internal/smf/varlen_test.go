package smf

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// TestVarLenRoundTrip checks that varlen encode then decode is
// the identity over [0, 2^28).
func TestVarLenRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(n)) == n", prop.ForAll(
		func(n uint32) bool {
			n &= 0x0fffffff
			encoded := WriteVarLen(n)
			decoded, consumed, err := ReadVarLen(encoded)
			return err == nil && decoded == n && consumed == len(encoded)
		},
		gen.UInt32(),
	))

	properties.Property("encoding is minimal length", prop.ForAll(
		func(n uint32) bool {
			n &= 0x0fffffff
			encoded := WriteVarLen(n)
			// Minimal: at most four bytes, and no leading empty 7-bit group.
			return len(encoded) >= 1 && len(encoded) <= 4 && (len(encoded) == 1 || encoded[0] != 0x80)
		},
		gen.UInt32(),
	))

	properties.TestingRun(t)
}

func TestVarLenLiterals(t *testing.T) {
	cases := []struct {
		value uint32
		want  []byte
	}{
		{0x00, []byte{0x00}},
		{0x40, []byte{0x40}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x81, 0x00}},
		{0x2000, []byte{0xc0, 0x00}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0x1fffff, []byte{0xff, 0xff, 0x7f}},
		{0x200000, []byte{0x81, 0x80, 0x80, 0x00}},
		{0x0fffffff, []byte{0xff, 0xff, 0xff, 0x7f}},
	}
	for _, c := range cases {
		got := WriteVarLen(c.value)
		assert.Equal(t, c.want, got)
		decoded, n, err := ReadVarLen(got)
		assert.NoError(t, err)
		assert.Equal(t, c.value, decoded)
		assert.Equal(t, len(got), n)
	}
}

func TestReadVarLenTooLong(t *testing.T) {
	_, _, err := ReadVarLen([]byte{0x81, 0x81, 0x81, 0x81, 0x00})
	assert.ErrorIs(t, err, ErrBadVarlen)
}

func TestReadVarLenTruncated(t *testing.T) {
	_, _, err := ReadVarLen([]byte{0x81})
	assert.ErrorIs(t, err, ErrTruncatedChunk)
}
