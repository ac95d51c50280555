package smf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canonicalSingleTempoFile builds a format-1, 1-track, division-96 file
// with one tempo meta event (500,000 µs/quarter = 120 BPM) and two note
// events at deltas 0 and 96.
func canonicalSingleTempoFile() []byte {
	header := []byte{
		'M', 'T', 'h', 'd', 0x00, 0x00, 0x00, 0x06,
		0x00, 0x01, // format 1
		0x00, 0x01, // 1 track
		0x00, 0x60, // division 96
	}
	track := []byte{}
	track = append(track, 0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20) // tempo, delta 0
	track = append(track, 0x00, 0x90, 0x3C, 0x40)                   // note on, delta 0
	track = append(track, 0x60, 0x80, 0x3C, 0x40)                   // note off, delta 96
	track = append(track, 0x00, 0xFF, 0x2F, 0x00)                   // end of track, delta 0

	trackChunk := []byte{'M', 'T', 'r', 'k', 0x00, 0x00, 0x00, byte(len(track))}
	trackChunk = append(trackChunk, track...)

	return append(header, trackChunk...)
}

func TestParseCanonicalSingleTempoFile(t *testing.T) {
	data := canonicalSingleTempoFile()
	f, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, Format1, f.Format)
	require.Equal(t, int16(96), f.Division)
	require.Equal(t, 96, f.TicksPerQuarterNote())
	require.Len(t, f.Tracks, 1)

	events := f.Tracks[0].Events
	require.Len(t, events, 4)

	assert.Equal(t, MetaTempo, events[0].Type)
	assert.Equal(t, uint32(500000), events[0].TempoMicrosPerQtr)
	assert.Equal(t, uint64(0), events[0].Tick)

	assert.True(t, events[1].IsNoteOn())
	assert.Equal(t, uint64(0), events[1].Tick)
	assert.Equal(t, 0x3C, events[1].Data1)

	assert.True(t, events[2].IsNoteOff())
	assert.Equal(t, uint64(96), events[2].Tick)

	assert.Equal(t, MetaEndOfTrack, events[3].Type)
}

func TestParseRunningStatus(t *testing.T) {
	header := []byte{
		'M', 'T', 'h', 'd', 0x00, 0x00, 0x00, 0x06,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x60,
	}
	track := []byte{
		0x00, 0x90, 0x3C, 0x40, // note on C4, explicit status
		0x10, 0x40, 0x50, // running status note on: pitch 0x40 vel 0x50
		0x10, 0x3C, 0x00, // running status note on with velocity 0 == note off
		0x00, 0xFF, 0x2F, 0x00,
	}
	trackChunk := append([]byte{'M', 'T', 'r', 'k', 0, 0, 0, byte(len(track))}, track...)
	data := append(header, trackChunk...)

	f, err := Parse(data)
	require.NoError(t, err)
	events := f.Tracks[0].Events
	require.Len(t, events, 4)
	assert.Equal(t, NoteOn, events[1].Type)
	assert.Equal(t, 0x40, events[1].Data1)
	assert.True(t, events[2].IsNoteOff(), "running-status note-on with velocity 0 is a note-off")
}

func TestParseBadHeaderTooShort(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestParseBadHeaderWrongMagic(t *testing.T) {
	data := canonicalSingleTempoFile()
	data[0] = 'X'
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestParseBadHeaderWrongPayloadSize(t *testing.T) {
	data := canonicalSingleTempoFile()
	data[7] = 0x07 // claim a 7-byte MThd payload
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestParseTruncatedChunk(t *testing.T) {
	data := canonicalSingleTempoFile()
	data = data[:len(data)-2] // chop off the tail of the last declared track
	_, err := Parse(data)
	assert.ErrorIs(t, err, ErrTruncatedChunk)
}

func TestParseSysExIsSkipped(t *testing.T) {
	header := []byte{
		'M', 'T', 'h', 'd', 0x00, 0x00, 0x00, 0x06,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x60,
	}
	track := []byte{
		0x00, 0xF0, 0x03, 0x7E, 0x00, 0xF7, // sysex, 3-byte payload
		0x00, 0xFF, 0x2F, 0x00,
	}
	trackChunk := append([]byte{'M', 'T', 'r', 'k', 0, 0, 0, byte(len(track))}, track...)
	data := append(header, trackChunk...)

	f, err := Parse(data)
	require.NoError(t, err)
	events := f.Tracks[0].Events
	require.Len(t, events, 2)
	assert.Equal(t, SysEx, events[0].Type)
	assert.Equal(t, []byte{0x7E, 0x00, 0xF7}, events[0].SysExData)
}
