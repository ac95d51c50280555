package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

func twoTrackFile() *smf.File {
	return &smf.File{
		Format:   smf.Format1,
		Division: 96,
		Tracks: []smf.Track{
			{ // conductor: tempo only
				Events: []smf.Event{
					{Tick: 0, Type: smf.MetaTempo, TempoMicrosPerQtr: 500000},
					{Tick: 0, Type: smf.MetaEndOfTrack},
				},
			},
			{ // named melody track
				Events: []smf.Event{
					{Tick: 0, Type: smf.MetaTrackName, Text: "Lead"},
					{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
					{Tick: 96, Type: smf.NoteOff, Channel: 0, Data1: 60},
					{Tick: 96, Type: smf.MetaEndOfTrack},
				},
			},
			{ // unnamed track identified by program change
				Events: []smf.Event{
					{Tick: 0, Type: smf.ProgramChange, Data1: 33},
					{Tick: 0, Type: smf.NoteOn, Channel: 1, Data1: 40, Data2: 90},
					{Tick: 48, Type: smf.MetaEndOfTrack},
				},
			},
		},
	}
}

func TestSplitProjectsOneFilePerNonEmptyTrack(t *testing.T) {
	children := Split(twoTrackFile(), "song")
	require.Len(t, children, 3)

	for _, c := range children {
		assert.Equal(t, smf.Format0, c.File.Format)
		assert.Equal(t, int16(96), c.File.Division)
		assert.Len(t, c.File.Tracks, 1)
	}
}

func TestSplitNamesChildrenByTrackNameOrProgram(t *testing.T) {
	children := Split(twoTrackFile(), "song")
	require.Len(t, children, 3)

	assert.Equal(t, "song_track_01.mid", children[0].Filename)
	assert.Equal(t, "song_track_02_Lead.mid", children[1].Filename)
	assert.Equal(t, "song_track_03_Electric_Bass_finger.mid", children[2].Filename)
}

func TestSplitSkipsTracksWithOnlyEndOfTrack(t *testing.T) {
	f := &smf.File{
		Format:   smf.Format1,
		Division: 96,
		Tracks: []smf.Track{
			{Events: []smf.Event{{Type: smf.MetaEndOfTrack}}},
			{Events: []smf.Event{
				{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
				{Tick: 10, Type: smf.MetaEndOfTrack},
			}},
		},
	}
	children := Split(f, "song")
	require.Len(t, children, 1)
	assert.Equal(t, 1, children[0].TrackIndex)
}
