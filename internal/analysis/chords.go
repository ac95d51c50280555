package analysis

import (
	"sort"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// chordTemplate is a chord quality's pitch-class intervals above its root.
type chordTemplate struct {
	name      string
	intervals []int
	weight    float64 // complexity contribution: triad 1, seventh 2, ninth 3
}

// chordTemplates is tried root-major first so that simpler triads win ties
// against richer extensions built on the same root.
var chordTemplates = []chordTemplate{
	{"", []int{0, 4, 7}, 1},        // major
	{"m", []int{0, 3, 7}, 1},       // minor
	{"dim", []int{0, 3, 6}, 1},     // diminished
	{"aug", []int{0, 4, 8}, 1},     // augmented
	{"sus2", []int{0, 2, 7}, 1},    // suspended second
	{"sus4", []int{0, 5, 7}, 1},    // suspended fourth
	{"maj7", []int{0, 4, 7, 11}, 2},
	{"7", []int{0, 4, 7, 10}, 2},    // dominant seventh
	{"m7", []int{0, 3, 7, 10}, 2},   // minor seventh
	{"m7b5", []int{0, 3, 6, 10}, 2}, // half-diminished
	{"dim7", []int{0, 3, 6, 9}, 2},
	{"maj9", []int{0, 4, 7, 11, 2}, 3},
	{"9", []int{0, 4, 7, 10, 2}, 3},
	{"m9", []int{0, 3, 7, 10, 2}, 3},
}

// beatWindowTicks returns the window size used to sample chords: one
// beat as defined by the file's time signature denominator (a quarter
// note for /4, an eighth note for /8, and so on), falling back to a
// nominal 480-tick quarter when the file carries no usable division.
func beatWindowTicks(f *smf.File) uint64 {
	tpq := f.TicksPerQuarterNote()
	if tpq <= 0 {
		tpq = 480
	}
	denom := timeSigDenominator(f)
	if denom <= 0 {
		denom = 4
	}
	ticks := tpq * 4 / denom
	if ticks <= 0 {
		ticks = tpq
	}
	return uint64(ticks)
}

// chordWindow is the set of pitch classes sounding during one beat.
type chordWindow struct {
	startTick uint64
	classes   map[int]bool
}

// windowSegments buckets non-percussion note segments into fixed-width
// beat windows, adding each segment to every window it sounds in (its
// end tick exclusive), so a chord can be read off of each window's
// pitch-class set.
func windowSegments(segments []noteSegment, windowTicks uint64) []chordWindow {
	if len(segments) == 0 || windowTicks == 0 {
		return nil
	}
	var maxTick uint64
	for _, s := range segments {
		if s.EndTick > maxTick {
			maxTick = s.EndTick
		}
	}
	numWindows := int(maxTick/windowTicks) + 1
	windows := make([]chordWindow, numWindows)
	for i := range windows {
		windows[i] = chordWindow{startTick: uint64(i) * windowTicks, classes: map[int]bool{}}
	}
	for _, s := range segments {
		if s.Channel == percussionChannel {
			continue
		}
		first := int(s.StartTick / windowTicks)
		last := first
		if s.EndTick > s.StartTick {
			last = int((s.EndTick - 1) / windowTicks)
		}
		if last >= numWindows {
			last = numWindows - 1
		}
		for w := first; w <= last; w++ {
			windows[w].classes[s.Pitch%12] = true
		}
	}
	return windows
}

// classifyChord finds the root/template pair whose intervals best explain
// active, scoring by matched pitch classes minus unexplained ones. Returns
// ok=false when fewer than three distinct pitch classes are sounding.
func classifyChord(active map[int]bool) (root int, tmpl chordTemplate, ok bool) {
	if len(active) < 3 {
		return 0, chordTemplate{}, false
	}
	bestScore := -1.0
	for candidateRoot := 0; candidateRoot < 12; candidateRoot++ {
		if !active[candidateRoot] {
			continue
		}
		for _, t := range chordTemplates {
			matched, extra := 0, 0
			want := map[int]bool{}
			for _, iv := range t.intervals {
				want[(candidateRoot+iv)%12] = true
			}
			for pc := range want {
				if active[pc] {
					matched++
				}
			}
			for pc := range active {
				if !want[pc] {
					extra++
				}
			}
			if matched < len(want) {
				continue // require every template tone present
			}
			score := float64(matched) - float64(extra)*0.5
			if score > bestScore {
				bestScore = score
				root, tmpl, ok = candidateRoot, t, true
			}
		}
	}
	return root, tmpl, ok
}

// chordName renders root/template as e.g. "C", "F#m7", "A#dim" in the
// sharp spelling used throughout the package.
func chordName(root int, tmpl chordTemplate) string {
	return pitchClassNames[root] + tmpl.name
}

// AnalyzeChords reads chord windows off of f's non-percussion note
// segments and reduces them to a ChordDescriptor: the deduplicated chord
// sequence, the distinct chord qualities seen, seventh/extended-chord
// flags, and a complexity score.
func AnalyzeChords(f *smf.File) model.ChordDescriptor {
	segments := buildSegments(f)
	windows := windowSegments(segments, beatWindowTicks(f))

	var progression []string
	typeSet := map[string]bool{}
	hasSevenths, hasExtended := false, false
	var totalWeight float64
	changes := 0

	for _, w := range windows {
		root, tmpl, ok := classifyChord(w.classes)
		if !ok {
			continue
		}
		name := chordName(root, tmpl)
		if len(progression) == 0 || progression[len(progression)-1] != name {
			progression = append(progression, name)
			changes++
		}
		typeSet[tmpl.name] = true
		totalWeight += tmpl.weight
		if tmpl.weight == 2 {
			hasSevenths = true
		}
		if tmpl.weight >= 3 {
			hasExtended = true
		}
	}

	types := make([]string, 0, len(typeSet))
	for name := range typeSet {
		types = append(types, name)
	}
	sort.Strings(types)

	var changeRate, complexity float64
	if len(windows) > 0 {
		changeRate = float64(changes) / float64(len(windows))
	}
	if len(progression) > 0 {
		complexity = totalWeight / float64(len(progression)) / 3.0 // normalize against the richest (ninth) template
	}

	return model.ChordDescriptor{
		Progression: progression,
		Types:       types,
		HasSevenths: hasSevenths,
		HasExtended: hasExtended,
		ChangeRate:  changeRate,
		Complexity:  complexity,
	}
}
