package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

func overlappingNotesFile() *smf.File {
	return &smf.File{Tracks: []smf.Track{{Events: []smf.Event{
		{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
		{Tick: 10, Type: smf.NoteOn, Channel: 0, Data1: 64, Data2: 100},
		{Tick: 20, Type: smf.NoteOff, Channel: 0, Data1: 60},
		{Tick: 30, Type: smf.NoteOff, Channel: 0, Data1: 64},
	}}}}
}

func TestBuildSegmentsPairsNoteOnWithMatchingNoteOff(t *testing.T) {
	segments := buildSegments(overlappingNotesFile())
	assert.Len(t, segments, 2)

	byPitch := map[int]noteSegment{}
	for _, s := range segments {
		byPitch[s.Pitch] = s
	}
	assert.Equal(t, uint64(0), byPitch[60].StartTick)
	assert.Equal(t, uint64(20), byPitch[60].EndTick)
	assert.Equal(t, uint64(10), byPitch[64].StartTick)
	assert.Equal(t, uint64(30), byPitch[64].EndTick)
}

func TestBuildSegmentsClosesUnterminatedNoteAtItsOwnStart(t *testing.T) {
	f := &smf.File{Tracks: []smf.Track{{Events: []smf.Event{
		{Tick: 5, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
	}}}}
	segments := buildSegments(f)
	assert.Len(t, segments, 1)
	assert.Equal(t, segments[0].StartTick, segments[0].EndTick)
}

func TestBuildSegmentsTreatsZeroVelocityNoteOnAsNoteOff(t *testing.T) {
	f := &smf.File{Tracks: []smf.Track{{Events: []smf.Event{
		{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
		{Tick: 15, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 0},
	}}}}
	segments := buildSegments(f)
	assert.Len(t, segments, 1)
	assert.Equal(t, uint64(15), segments[0].EndTick)
}

func TestSweepPolyphonyComputesMaxAndWeightedAverage(t *testing.T) {
	stats := sweepPolyphony(buildSegments(overlappingNotesFile()))
	// Occupancy: [0,10)=1, [10,20)=2, [20,30)=1 -> max 2.
	assert.Equal(t, 2.0, stats.Max)
	// (1*10 + 2*10 + 1*10) / 30 = 4/3.
	assert.InDelta(t, 4.0/3.0, stats.Avg, 1e-9)
}

func TestSweepPolyphonyHandlesNoSegments(t *testing.T) {
	stats := sweepPolyphony(nil)
	assert.Equal(t, 0.0, stats.Max)
	assert.Equal(t, 0.0, stats.Avg)
}

func TestSweepPolyphonySingleNoteIsMonophonic(t *testing.T) {
	f := &smf.File{Tracks: []smf.Track{{Events: []smf.Event{
		{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
		{Tick: 50, Type: smf.NoteOff, Channel: 0, Data1: 60},
	}}}}
	stats := sweepPolyphony(buildSegments(f))
	assert.Equal(t, 1.0, stats.Max)
	assert.Equal(t, 1.0, stats.Avg)
}
