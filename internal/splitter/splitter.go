// Package splitter projects a multi-track Standard MIDI File into N
// single-track files, one per non-empty source track.
package splitter

import (
	"fmt"
	"strings"

	"github.com/Michael-F-Ellis/midipipe/internal/analysis"
	"github.com/Michael-F-Ellis/midipipe/internal/normalize"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

// MergeConductorMeta controls whether global meta events on the
// conductor track (tempo, time signature, key signature) are copied
// into every child track on split. Kept false: children are emitted
// as-is, exactly as their source MTrk chunk recorded them.
const MergeConductorMeta = false

// Child is one track's projection into a standalone format-0 file,
// paired with the canonical filename it should be written under.
type Child struct {
	TrackIndex int // zero-based index into the parent's Tracks slice
	Filename   string
	File       *smf.File
}

// Split projects every non-empty track of f into its own format-0
// file. f.Format must be 1 and have at least two non-empty tracks;
// callers check NonEmptyTrackCount before calling Split. parentStem is
// the parent file's sanitized name with its extension removed.
func Split(f *smf.File, parentStem string) []Child {
	var children []Child
	nonEmptyIndex := 0
	for i, t := range f.Tracks {
		if !hasMusicalContent(t) {
			continue
		}
		nonEmptyIndex++
		child := &smf.File{
			Format:   smf.Format0,
			Division: f.Division,
			Tracks:   []smf.Track{t},
		}
		suffix := trackSuffix(t)
		filename := childFilename(parentStem, nonEmptyIndex, suffix)
		children = append(children, Child{
			TrackIndex: i,
			Filename:   filename,
			File:       child,
		})
	}
	return children
}

// hasMusicalContent reports whether t carries any event besides a
// trailing EndOfTrack.
func hasMusicalContent(t smf.Track) bool {
	for _, e := range t.Events {
		if e.Type != smf.MetaEndOfTrack {
			return true
		}
	}
	return false
}

// trackSuffix picks a human-readable tag for a child's filename: the
// track name meta event if present, else a program-change-derived
// program name, else empty. The result is raw text; childFilename
// sanitizes the whole composed name in one pass.
func trackSuffix(t smf.Track) string {
	for _, e := range t.Events {
		if e.Type == smf.MetaTrackName && strings.TrimSpace(e.Text) != "" {
			return e.Text
		}
	}
	for _, e := range t.Events {
		if e.Type == smf.ProgramChange {
			if name, err := analysis.ProgramName(e.Data1); err == nil {
				return name
			}
			return fmt.Sprintf("prog%d", e.Data1)
		}
	}
	return ""
}

// childFilename builds {parent_stem}_track_{NN}_{suffix}.mid, where NN
// is the zero-padded one-based track index. An empty suffix is omitted
// along with its separating underscore.
func childFilename(parentStem string, oneBasedIndex int, suffix string) string {
	base := fmt.Sprintf("%s_track_%02d", parentStem, oneBasedIndex)
	if suffix != "" {
		base = base + "_" + suffix
	}
	return normalize.Sanitize(base + ".mid")
}
