package analysis

import (
	"sort"

	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

// percussionChannel is MIDI channel 10 in the 1-indexed convention,
// channel 9 here since channels are stored 0-indexed.
const percussionChannel = 9

// noteSegment is one (NoteOn, NoteOff) pair resolved to absolute tick
// bounds.
type noteSegment struct {
	StartTick uint64
	EndTick   uint64
	Pitch     int
	Channel   int
	Velocity  int
}

// buildSegments converts every track's NoteOn/NoteOff pairs into
// noteSegments. A NoteOn left open at track end (no matching NoteOff)
// is closed at its own start tick, contributing zero duration to the
// sweep rather than being dropped.
func buildSegments(f *smf.File) []noteSegment {
	type openNote struct {
		startTick uint64
		velocity  int
	}
	var segments []noteSegment
	for _, t := range f.Tracks {
		open := map[[2]int]openNote{} // (channel, pitch) -> most recent NoteOn
		for _, e := range t.Events {
			key := [2]int{e.Channel, e.Data1}
			switch {
			case e.IsNoteOn():
				open[key] = openNote{startTick: e.Tick, velocity: e.Data2}
			case e.IsNoteOff():
				if o, ok := open[key]; ok {
					segments = append(segments, noteSegment{
						StartTick: o.startTick, EndTick: e.Tick,
						Pitch: e.Data1, Channel: e.Channel, Velocity: o.velocity,
					})
					delete(open, key)
				}
			}
		}
		for key, o := range open {
			segments = append(segments, noteSegment{
				StartTick: o.startTick, EndTick: o.startTick,
				Pitch: key[1], Channel: key[0], Velocity: o.velocity,
			})
		}
	}
	return segments
}

// sweepEvent is a +1/-1 occupancy change at a tick, used to compute
// polyphony by a sweep-line scan.
type sweepEvent struct {
	Tick  uint64
	Delta int
}

// polyphonyStats is the sweep's output: the maximum simultaneous note
// count and the tick-span-weighted time-average count.
type polyphonyStats struct {
	Max float64
	Avg float64
}

// sweepPolyphony sorts segment boundaries by tick, tracks running
// overlap count, and weights each interval's count by its tick span to
// get the time-average.
func sweepPolyphony(segments []noteSegment) polyphonyStats {
	if len(segments) == 0 {
		return polyphonyStats{}
	}
	events := make([]sweepEvent, 0, len(segments)*2)
	for _, s := range segments {
		if s.EndTick <= s.StartTick {
			continue // zero-length segment: no occupancy to contribute
		}
		events = append(events, sweepEvent{Tick: s.StartTick, Delta: 1})
		events = append(events, sweepEvent{Tick: s.EndTick, Delta: -1})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Tick != events[j].Tick {
			return events[i].Tick < events[j].Tick
		}
		// A note-end must be processed before a note-start at the same
		// tick, or a back-to-back, non-overlapping pair briefly reads as
		// two simultaneous notes.
		return events[i].Delta < events[j].Delta
	})

	var (
		current      int
		maxCount     int
		weightedSum  float64
		totalSpan    float64
		lastTick     uint64
		haveLastTick bool
	)
	for _, e := range events {
		if haveLastTick && e.Tick > lastTick {
			span := float64(e.Tick - lastTick)
			weightedSum += float64(current) * span
			totalSpan += span
		}
		current += e.Delta
		if current > maxCount {
			maxCount = current
		}
		lastTick = e.Tick
		haveLastTick = true
	}
	avg := 0.0
	if totalSpan > 0 {
		avg = weightedSum / totalSpan
	}
	return polyphonyStats{Max: float64(maxCount), Avg: avg}
}
