// Package keydetect identifies a tonality among the 24 major/minor keys
// from a pitch-class histogram, by correlating the histogram against
// rotations of the Krumhansl-Kessler key profiles.
package keydetect

import (
	"math"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

// DefaultThreshold is the minimum best-correlation value required to
// report a key rather than "unknown".
const DefaultThreshold = 0.5

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// majorProfile and minorProfile are the Krumhansl & Kessler (1982)
// tonal-hierarchy weights for a tonic of C, indexed by pitch class
// offset from the tonic. The tonic itself carries the strongest weight;
// for major the perfect fifth (index 7) is the next strongest; for
// minor the minor third (index 3) is the characteristic marker.
var majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
var minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}

// Result is the detector's output.
type Result struct {
	Key        model.MusicalKey
	Confidence float64 // best correlation, clamped to [0,1]
	Margin     float64 // best correlation minus second-best
}

// Detect builds a duration-weighted pitch-class histogram from f's
// NoteOn events and correlates it against all 24 rotated key profiles,
// selecting the argmax. Below DefaultThreshold the key is reported as
// model.KeyUnknown, with confidence preserved for diagnostics.
func Detect(f *smf.File) Result {
	histogram := pitchClassHistogram(f)
	return DetectFromHistogram(histogram)
}

// DetectFromHistogram runs the correlation step directly against a
// caller-supplied 12-element pitch-class histogram, for tests and for
// callers that already have one (e.g. a sweep shared with analysis).
func DetectFromHistogram(histogram [12]float64) Result {
	type candidate struct {
		key         model.MusicalKey
		correlation float64
	}
	candidates := make([]candidate, 0, 24)
	for tonic := 0; tonic < 12; tonic++ {
		candidates = append(candidates, candidate{
			key:         model.MusicalKey(pitchClassNames[tonic]),
			correlation: pearson(histogram, rotate(majorProfile, tonic)),
		})
		candidates = append(candidates, candidate{
			key:         model.MusicalKey(pitchClassNames[tonic] + "m"),
			correlation: pearson(histogram, rotate(minorProfile, tonic)),
		})
	}

	best, second := 0, 1
	if candidates[second].correlation > candidates[best].correlation {
		best, second = second, best
	}
	for i := 2; i < len(candidates); i++ {
		if candidates[i].correlation > candidates[best].correlation {
			second = best
			best = i
		} else if candidates[i].correlation > candidates[second].correlation {
			second = i
		}
	}

	confidence := clamp01(candidates[best].correlation)
	margin := candidates[best].correlation - candidates[second].correlation

	key := candidates[best].key
	if confidence < DefaultThreshold {
		key = model.KeyUnknown
	}
	return Result{Key: key, Confidence: confidence, Margin: margin}
}

// pitchClassHistogram accumulates note duration (NoteOn-to-NoteOff tick
// span) per pitch class, falling back to a unit count per NoteOn when a
// note's matching NoteOff is never observed.
func pitchClassHistogram(f *smf.File) [12]float64 {
	var histogram [12]float64
	for _, t := range f.Tracks {
		open := map[int]uint64{} // pitch -> NoteOn tick, most recent
		for _, e := range t.Events {
			pc := e.Data1 % 12
			switch {
			case e.IsNoteOn():
				open[e.Data1] = e.Tick
			case e.IsNoteOff():
				if start, ok := open[e.Data1]; ok {
					span := float64(e.Tick - start)
					if span <= 0 {
						span = 1
					}
					histogram[pc] += span
					delete(open, e.Data1)
				} else {
					histogram[pc]++
				}
			}
		}
		for pitch := range open {
			histogram[pitch%12]++
		}
	}
	return histogram
}

// rotate shifts profile so that index i holds the weight for pitch
// class (i - tonic) mod 12, generalizing getScale's "(p + keynum) % 12"
// interval-rotation idiom from scale degrees to profile weights.
func rotate(profile [12]float64, tonic int) [12]float64 {
	var out [12]float64
	for i := 0; i < 12; i++ {
		out[(i+tonic)%12] = profile[i]
	}
	return out
}

func pearson(a, b [12]float64) float64 {
	var sumA, sumB float64
	for i := 0; i < 12; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/12, sumB/12

	var cov, varA, varB float64
	for i := 0; i < 12; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	denom := math.Sqrt(varA * varB)
	if denom == 0 {
		return 0
	}
	return cov / denom
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
