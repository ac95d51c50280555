// Package analysis extracts musical metadata from a parsed Standard MIDI
// File: tempo, key, note statistics, polyphony, harmony and instrument
// roll-up.
package analysis

import (
	"sort"

	"github.com/Michael-F-Ellis/midipipe/internal/bpmdetect"
	"github.com/Michael-F-Ellis/midipipe/internal/keydetect"
	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

// Result bundles the two persisted analysis outputs, plus the tempo and
// key detector diagnostics a caller may want to log or surface.
type Result struct {
	Metadata    model.MusicalMetadata
	Instruments []model.FileInstrument
	Tempo       bpmdetect.Result
	Key         keydetect.Result
}

// Analyze runs every detector over f and reduces their outputs to the
// persisted MusicalMetadata and FileInstrument rows.
func Analyze(f *smf.File) Result {
	tempo := bpmdetect.Detect(f)
	key := keydetect.Detect(f)
	segments := buildSegments(f)
	poly := sweepPolyphony(nonPercussion(segments))
	chords := AnalyzeChords(f)
	instruments := rollUpInstruments(f, segments)

	notes := noteStats(segments)
	durationSecs := ticksToSeconds(longestTick(segments), f.TicksPerQuarterNote(), tempo.BPM)

	metadata := model.MusicalMetadata{
		TempoBPM:        tempo.BPM,
		TempoConfidence: tempo.Confidence,
		HasTempoChanges: len(tempo.TempoChanges) > 1,

		Key:           key.Key,
		KeyConfidence: key.Confidence,

		TimeSigNumerator:   timeSigNumerator(f),
		TimeSigDenominator: timeSigDenominator(f),

		TotalNotes:      notes.total,
		DistinctPitches: notes.distinctPitches,
		PitchRangeLow:   notes.low,
		PitchRangeHigh:  notes.high,
		AvgVelocity:     notes.avgVelocity,
		NoteDensity:     noteDensity(notes.total, durationSecs),

		PolyphonyMax: poly.Max,
		PolyphonyAvg: poly.Avg,
		Monophonic:   poly.Max <= 1,
		Polyphonic:   poly.Max > 1,
		Percussive:   hasPercussion(segments),

		Chords: chords,

		MelodicRangeLow:  notes.low,
		MelodicRangeHigh: notes.high,
	}

	return Result{Metadata: metadata, Instruments: instruments, Tempo: tempo, Key: key}
}

func nonPercussion(segments []noteSegment) []noteSegment {
	out := make([]noteSegment, 0, len(segments))
	for _, s := range segments {
		if s.Channel != percussionChannel {
			out = append(out, s)
		}
	}
	return out
}

// hasPercussion reports whether more than half of segments sound on the
// percussion channel.
func hasPercussion(segments []noteSegment) bool {
	if len(segments) == 0 {
		return false
	}
	var percussionCount int
	for _, s := range segments {
		if s.Channel == percussionChannel {
			percussionCount++
		}
	}
	return float64(percussionCount)/float64(len(segments)) > 0.5
}

type noteStatistics struct {
	total           int
	distinctPitches int
	low, high       int
	avgVelocity     float64
}

func noteStats(segments []noteSegment) noteStatistics {
	if len(segments) == 0 {
		return noteStatistics{}
	}
	pitches := map[int]bool{}
	low, high := 127, 0
	var velocitySum int
	for _, s := range segments {
		pitches[s.Pitch] = true
		if s.Pitch < low {
			low = s.Pitch
		}
		if s.Pitch > high {
			high = s.Pitch
		}
		velocitySum += s.Velocity
	}
	return noteStatistics{
		total:           len(segments),
		distinctPitches: len(pitches),
		low:             low,
		high:            high,
		avgVelocity:     float64(velocitySum) / float64(len(segments)),
	}
}

func longestTick(segments []noteSegment) uint64 {
	var maxTick uint64
	for _, s := range segments {
		if s.EndTick > maxTick {
			maxTick = s.EndTick
		}
	}
	return maxTick
}

// ticksToSeconds converts an absolute tick position to seconds given the
// file's ticks-per-quarter resolution and a representative BPM.
func ticksToSeconds(tick uint64, ticksPerQuarter int, bpm float64) float64 {
	if ticksPerQuarter <= 0 || bpm <= 0 {
		return 0
	}
	quarters := float64(tick) / float64(ticksPerQuarter)
	return quarters * (60.0 / bpm)
}

func noteDensity(total int, durationSecs float64) float64 {
	if durationSecs <= 0 {
		return 0
	}
	return float64(total) / durationSecs
}

func timeSigNumerator(f *smf.File) int {
	for _, t := range f.Tracks {
		for _, e := range t.Events {
			if e.Type == smf.MetaTimeSignature {
				return e.TimeSigNumerator
			}
		}
	}
	return 4
}

func timeSigDenominator(f *smf.File) int {
	for _, t := range f.Tracks {
		for _, e := range t.Events {
			if e.Type == smf.MetaTimeSignature {
				return e.TimeSigDenominator
			}
		}
	}
	return 4
}

// rollUpInstruments aggregates note segments per (channel, program),
// marking the instrument with the most notes as primary. Each channel is
// attributed to the last ProgramChange seen for it anywhere in the file;
// earlier programs on the same channel get no row of their own. A
// channel with no ProgramChange defaults to GM program 0 (acoustic grand
// piano), matching General MIDI's implicit power-on state.
func rollUpInstruments(f *smf.File, segments []noteSegment) []model.FileInstrument {
	programByChannel := map[int]int{}
	for _, t := range f.Tracks {
		for _, e := range t.Events {
			if e.Type == smf.ProgramChange {
				programByChannel[e.Channel] = e.Data1
			}
		}
	}

	type agg struct {
		count       int
		velocitySum int
		low, high   int
	}
	byKey := map[[2]int]*agg{}
	for _, s := range segments {
		program := 0
		if s.Channel != percussionChannel {
			program = programByChannel[s.Channel]
		}
		key := [2]int{s.Channel, program}
		a, ok := byKey[key]
		if !ok {
			a = &agg{low: 127, high: 0}
			byKey[key] = a
		}
		a.count++
		a.velocitySum += s.Velocity
		if s.Pitch < a.low {
			a.low = s.Pitch
		}
		if s.Pitch > a.high {
			a.high = s.Pitch
		}
	}

	keys := make([][2]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	primary := -1
	maxCount := 0
	instruments := make([]model.FileInstrument, 0, len(keys))
	for i, k := range keys {
		a := byKey[k]
		channel, program := k[0], k[1]
		name, family := "Drums", "drums"
		if channel != percussionChannel {
			if n, err := ProgramName(program); err == nil {
				name = n
			}
			family = ProgramFamily(program)
		}
		instruments = append(instruments, model.FileInstrument{
			Channel:          channel,
			Program:          program,
			ProgramName:      name,
			InstrumentFamily: family,
			InstrumentType:   fileNameToken(name),
			NoteCount:        a.count,
			AvgVelocity:      float64(a.velocitySum) / float64(a.count),
			PitchRangeLow:    a.low,
			PitchRangeHigh:   a.high,
		})
		if a.count > maxCount {
			maxCount = a.count
			primary = i
		}
	}
	if primary >= 0 {
		instruments[primary].Primary = true
	}
	return instruments
}
