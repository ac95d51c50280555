package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

func simpleMelodyFile() *smf.File {
	return &smf.File{
		Division: 480,
		Tracks: []smf.Track{
			{Events: []smf.Event{
				{Tick: 0, Type: smf.MetaTempo, TempoMicrosPerQtr: 500000}, // 120 BPM
				{Tick: 0, Type: smf.MetaTimeSignature, TimeSigNumerator: 3, TimeSigDenominator: 4},
			}},
			{Events: []smf.Event{
				{Tick: 0, Type: smf.ProgramChange, Channel: 0, Data1: 0}, // acoustic grand piano
				{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 90},
				{Tick: 480, Type: smf.NoteOff, Channel: 0, Data1: 60},
				{Tick: 480, Type: smf.NoteOn, Channel: 0, Data1: 64, Data2: 80},
				{Tick: 960, Type: smf.NoteOff, Channel: 0, Data1: 64},
			}},
		},
	}
}

func TestAnalyzeReportsDetectedTempoAndTimeSignature(t *testing.T) {
	result := Analyze(simpleMelodyFile())
	assert.InDelta(t, 120.0, result.Metadata.TempoBPM, 1e-6)
	assert.Equal(t, 1.0, result.Metadata.TempoConfidence)
	assert.Equal(t, 3, result.Metadata.TimeSigNumerator)
	assert.Equal(t, 4, result.Metadata.TimeSigDenominator)
}

func TestAnalyzeComputesNoteStatistics(t *testing.T) {
	result := Analyze(simpleMelodyFile())
	m := result.Metadata
	assert.Equal(t, 2, m.TotalNotes)
	assert.Equal(t, 2, m.DistinctPitches)
	assert.Equal(t, 60, m.PitchRangeLow)
	assert.Equal(t, 64, m.PitchRangeHigh)
	assert.InDelta(t, 85.0, m.AvgVelocity, 1e-9)
}

func TestAnalyzeMarksSingleLineMelodyMonophonic(t *testing.T) {
	result := Analyze(simpleMelodyFile())
	assert.True(t, result.Metadata.Monophonic)
	assert.False(t, result.Metadata.Polyphonic)
	assert.False(t, result.Metadata.Percussive)
}

func TestAnalyzeDetectsPercussionChannel(t *testing.T) {
	f := &smf.File{Division: 480, Tracks: []smf.Track{{Events: []smf.Event{
		{Tick: 0, Type: smf.NoteOn, Channel: percussionChannel, Data1: 36, Data2: 100},
		{Tick: 120, Type: smf.NoteOff, Channel: percussionChannel, Data1: 36},
	}}}}
	result := Analyze(f)
	assert.True(t, result.Metadata.Percussive)
}

func TestAnalyzeRollsUpInstrumentsByChannelAndProgram(t *testing.T) {
	result := Analyze(simpleMelodyFile())
	require.Len(t, result.Instruments, 1)
	inst := result.Instruments[0]
	assert.Equal(t, 0, inst.Channel)
	assert.Equal(t, 0, inst.Program)
	assert.Equal(t, "Acoustic Grand Piano", inst.ProgramName)
	assert.Equal(t, "piano", inst.InstrumentFamily)
	assert.Equal(t, 2, inst.NoteCount)
	assert.True(t, inst.Primary)
}

func TestAnalyzeDefaultsUnsetProgramToAcousticGrandPiano(t *testing.T) {
	f := &smf.File{Division: 480, Tracks: []smf.Track{{Events: []smf.Event{
		{Tick: 0, Type: smf.NoteOn, Channel: 2, Data1: 60, Data2: 100},
		{Tick: 100, Type: smf.NoteOff, Channel: 2, Data1: 60},
	}}}}
	result := Analyze(f)
	require.Len(t, result.Instruments, 1)
	assert.Equal(t, 0, result.Instruments[0].Program)
	assert.Equal(t, model.MusicalKey("C"), result.Metadata.Key) // a lone C correlates ~0.68 with the C major profile, above the 0.5 threshold
}
