package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

func TestClassifyChordIdentifiesMajorTriad(t *testing.T) {
	root, tmpl, ok := classifyChord(map[int]bool{0: true, 4: true, 7: true})
	assert.True(t, ok)
	assert.Equal(t, 0, root)
	assert.Equal(t, "C", chordName(root, tmpl))
}

func TestClassifyChordIdentifiesMinorSeventh(t *testing.T) {
	// A minor seventh: A, C, E, G -> pitch classes 9, 0, 4, 7.
	root, tmpl, ok := classifyChord(map[int]bool{9: true, 0: true, 4: true, 7: true})
	assert.True(t, ok)
	assert.Equal(t, "Am7", chordName(root, tmpl))
}

func TestClassifyChordRequiresAtLeastThreeClasses(t *testing.T) {
	_, _, ok := classifyChord(map[int]bool{0: true, 4: true})
	assert.False(t, ok)
}

func twoBeatProgressionFile() *smf.File {
	return &smf.File{
		Division: 480,
		Tracks: []smf.Track{{Events: []smf.Event{
			// Beat 1: C major (C, E, G).
			{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
			{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 64, Data2: 100},
			{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 67, Data2: 100},
			{Tick: 480, Type: smf.NoteOff, Channel: 0, Data1: 60},
			{Tick: 480, Type: smf.NoteOff, Channel: 0, Data1: 64},
			{Tick: 480, Type: smf.NoteOff, Channel: 0, Data1: 67},
			// Beat 2: F major (F, A, C).
			{Tick: 480, Type: smf.NoteOn, Channel: 0, Data1: 65, Data2: 100},
			{Tick: 480, Type: smf.NoteOn, Channel: 0, Data1: 69, Data2: 100},
			{Tick: 480, Type: smf.NoteOn, Channel: 0, Data1: 72, Data2: 100},
			{Tick: 960, Type: smf.NoteOff, Channel: 0, Data1: 65},
			{Tick: 960, Type: smf.NoteOff, Channel: 0, Data1: 69},
			{Tick: 960, Type: smf.NoteOff, Channel: 0, Data1: 72},
		}}},
	}
}

func TestAnalyzeChordsReadsProgressionAcrossBeatWindows(t *testing.T) {
	chords := AnalyzeChords(twoBeatProgressionFile())
	assert.Equal(t, []string{"C", "F"}, chords.Progression)
	assert.Contains(t, chords.Types, "")
	assert.False(t, chords.HasSevenths)
	assert.False(t, chords.HasExtended)
	assert.Greater(t, chords.ChangeRate, 0.0)
}

func TestAnalyzeChordsIgnoresPercussionChannel(t *testing.T) {
	f := &smf.File{
		Division: 480,
		Tracks: []smf.Track{{Events: []smf.Event{
			{Tick: 0, Type: smf.NoteOn, Channel: percussionChannel, Data1: 36, Data2: 100},
			{Tick: 0, Type: smf.NoteOn, Channel: percussionChannel, Data1: 38, Data2: 100},
			{Tick: 0, Type: smf.NoteOn, Channel: percussionChannel, Data1: 42, Data2: 100},
			{Tick: 480, Type: smf.NoteOff, Channel: percussionChannel, Data1: 36},
			{Tick: 480, Type: smf.NoteOff, Channel: percussionChannel, Data1: 38},
			{Tick: 480, Type: smf.NoteOff, Channel: percussionChannel, Data1: 42},
		}}},
	}
	chords := AnalyzeChords(f)
	assert.Empty(t, chords.Progression)
}
