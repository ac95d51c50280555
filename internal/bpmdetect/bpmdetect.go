// Package bpmdetect derives a single weighted tempo estimate, with a
// confidence score, from a parsed Standard MIDI File.
package bpmdetect

import (
	"math"

	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

const (
	minBPM = 20.0
	maxBPM = 300.0

	defaultBPM        = 120.0
	defaultConfidence = 0.3

	confidenceFloor = 0.5
	confidenceCeil  = 1.0
)

// TempoChange is one tempo meta event's projection into BPM at an
// absolute tick position.
type TempoChange struct {
	Tick uint64
	BPM  float64
}

// Result is the detector's output: a single representative BPM, a
// confidence in [0,1], the method that produced it, and the full
// tempo-change history.
type Result struct {
	BPM          float64
	Confidence   float64
	Method       string // "default", "single", or "weighted"
	TempoChanges []TempoChange
}

// Detect traverses every track of f, collecting each Tempo meta event as
// a (tick, BPM) pair clamped to [20, 300], and reduces them to a single
// weighted estimate.
//
// With no tempo events, it reports 120 BPM at confidence 0.3. With
// exactly one, it reports that BPM at confidence 1.0. With more than
// one, it reports the duration-weighted average — each tempo weighted
// by the tick span until the next tempo change or the end of the
// longest track — with confidence derived from the coefficient of
// variation of the BPM values, clamped to [0.5, 1.0].
func Detect(f *smf.File) Result {
	changes := collectTempoChanges(f)
	switch len(changes) {
	case 0:
		return Result{BPM: defaultBPM, Confidence: defaultConfidence, Method: "default"}
	case 1:
		return Result{BPM: changes[0].BPM, Confidence: 1.0, Method: "single", TempoChanges: changes}
	}

	endTick := longestTrackEndTick(f)
	bpm := weightedAverage(changes, endTick)
	confidence := coefficientOfVariationConfidence(changes)
	return Result{BPM: bpm, Confidence: confidence, Method: "weighted", TempoChanges: changes}
}

func collectTempoChanges(f *smf.File) []TempoChange {
	var changes []TempoChange
	for _, t := range f.Tracks {
		for _, e := range t.Events {
			if e.Type != smf.MetaTempo || e.TempoMicrosPerQtr == 0 {
				continue
			}
			bpm := microsPerQtrToBPM(e.TempoMicrosPerQtr)
			changes = append(changes, TempoChange{Tick: e.Tick, BPM: clamp(bpm, minBPM, maxBPM)})
		}
	}
	return changes
}

func microsPerQtrToBPM(micros uint32) float64 {
	return 60_000_000.0 / float64(micros)
}

func longestTrackEndTick(f *smf.File) uint64 {
	var maxTick uint64
	for _, t := range f.Tracks {
		for _, e := range t.Events {
			if e.Tick > maxTick {
				maxTick = e.Tick
			}
		}
	}
	return maxTick
}

// weightedAverage weights each tempo by the tick span it governs: from
// its own tick to the next tempo change's tick, or to endTick for the
// last one.
func weightedAverage(changes []TempoChange, endTick uint64) float64 {
	var weightedSum, totalWeight float64
	for i, c := range changes {
		var span uint64
		if i+1 < len(changes) {
			span = changes[i+1].Tick - c.Tick
		} else if endTick > c.Tick {
			span = endTick - c.Tick
		} else {
			span = 1
		}
		weightedSum += c.BPM * float64(span)
		totalWeight += float64(span)
	}
	if totalWeight == 0 {
		return changes[0].BPM
	}
	return weightedSum / totalWeight
}

func coefficientOfVariationConfidence(changes []TempoChange) float64 {
	n := float64(len(changes))
	var sum float64
	for _, c := range changes {
		sum += c.BPM
	}
	mean := sum / n

	var variance float64
	for _, c := range changes {
		d := c.BPM - mean
		variance += d * d
	}
	variance /= n
	stddev := math.Sqrt(variance)

	if mean == 0 {
		return confidenceFloor
	}
	confidence := 1 - (stddev / mean)
	return clamp(confidence, confidenceFloor, confidenceCeil)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
