// Package jsonpattern exports a parsed Standard MIDI File as a DAW
// pattern JSON document: a flat list of typed events keyed by small
// integer field names rather than by name, matching the layout several
// Akai Force/MPC-compatible tools read and write.
package jsonpattern

import (
	"encoding/json"
	"sort"

	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

// initType marks a Type-1 initialization event; noteType marks a
// Type-2 note event carrying a start time and duration.
const (
	initType = 1
	noteType = 2
)

// timeScale doubles tick values on the way out; consuming tools expect
// twice the source file's tick resolution.
const timeScale = 2

// defaultInitVelocity is the third initialization event's velocity,
// carried over unchanged from observed exports of this format.
const defaultInitVelocity = 0.787401556968689

// Pattern is the document's top-level shape: {"pattern": {...}}.
type Pattern struct {
	Pattern patternBody `json:"pattern"`
}

type patternBody struct {
	Length int64   `json:"length"`
	Events []Event `json:"events"`
}

// Event is one pattern event. Field1/Field2/Field3 carry pitch,
// normalized velocity, and a reserved slot respectively; Mod/ModVal
// are reserved modulation fields, unused by a straight MIDI import but
// present so consumers don't have to special-case their absence.
type Event struct {
	Type   int     `json:"type"`
	Time   int64   `json:"time"`
	Len    int64   `json:"len"`
	Field1 int     `json:"1"`
	Field2 float64 `json:"2"`
	Field3 int     `json:"3"`
	Mod    int     `json:"mod"`
	ModVal float64 `json:"modVal"`
}

func initEvent(field1 int, velocity float64) Event {
	return Event{Type: initType, Field1: field1, Field2: velocity}
}

func noteEvent(start, duration int64, pitch int, velocity float64) Event {
	return Event{
		Type:   noteType,
		Time:   start,
		Len:    duration,
		Field1: pitch,
		Field2: velocity,
		ModVal: 0.5,
	}
}

type activeNote struct {
	pitch     int
	velocity  int
	startTick int64
}

// FromSMF flattens every track of f into a single pattern, sorted by
// time, then event type, then first field. Channel is not preserved:
// the target format has no per-event channel field. A note left open
// at one track's end can still be closed by a matching NoteOff in a
// later track, since open notes are tracked by pitch across the whole
// file rather than reset per track.
func FromSMF(f *smf.File) Pattern {
	events := []Event{
		initEvent(0, 0),
		initEvent(32, 0),
		initEvent(130, defaultInitVelocity),
	}

	active := map[int]activeNote{}
	for _, track := range f.Tracks {
		for _, e := range track.Events {
			scaled := int64(e.Tick) * timeScale
			switch {
			case e.IsNoteOn():
				active[e.Data1] = activeNote{pitch: e.Data1, velocity: e.Data2, startTick: scaled}
			case e.IsNoteOff():
				if a, ok := active[e.Data1]; ok {
					events = append(events, noteEvent(a.startTick, scaled-a.startTick, a.pitch, float64(a.velocity)/127.0))
					delete(active, e.Data1)
				}
			}
		}
	}
	closeRemaining(&events, active)

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		if events[i].Type != events[j].Type {
			return events[i].Type < events[j].Type
		}
		return events[i].Field1 < events[j].Field1
	})

	return Pattern{Pattern: patternBody{Length: maxInt64, Events: events}}
}

// closeRemaining terminates notes left open at track end, at the
// latest note-event time already collected.
func closeRemaining(events *[]Event, active map[int]activeNote) {
	if len(active) == 0 {
		return
	}
	var maxTime int64
	for _, e := range *events {
		if e.Type != noteType {
			continue
		}
		if end := e.Time + e.Len; end > maxTime {
			maxTime = end
		}
	}
	for _, a := range active {
		*events = append(*events, noteEvent(a.startTick, maxTime-a.startTick, a.pitch, float64(a.velocity)/127.0))
	}
}

const maxInt64 = int64(1<<63 - 1)

// Marshal renders p as pretty-printed JSON, matching the indentation
// other exporters in this family use.
func Marshal(p Pattern) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
