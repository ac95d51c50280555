package pipeline

import (
	"sync"
	"time"
)

// Progress is a point-in-time snapshot of pipeline advancement, suitable
// for logging or relaying to a CLI progress bar.
type Progress struct {
	Stage       string
	CurrentFile string
	Index       int64
	Total       int64
	Percentage  float64
	Rate        float64 // files per second since the tracker started
	ETA         time.Duration
}

// Tracker accumulates current-file/index/rate state across all stages.
// Emission is the caller's responsibility — Complete's shouldEmit result
// is true once every N completions; a stage transition does not by
// itself trigger an emission.
type Tracker struct {
	mu        sync.Mutex
	total     int64
	index     int64
	stage     string
	current   string
	startedAt time.Time
	every     int
}

// NewTracker builds a Tracker against an expected total file count
// (0 if unknown) emitting a snapshot every emitEvery advances.
func NewTracker(total int64, emitEvery int) *Tracker {
	if emitEvery <= 0 {
		emitEvery = 100
	}
	return &Tracker{total: total, startedAt: now(), every: emitEvery}
}

// Observe updates the live current-stage/current-file display without
// advancing the completion count, so a caller can report what a worker
// is doing mid-flight.
func (t *Tracker) Observe(stage, file string) {
	t.mu.Lock()
	t.stage = stage
	t.current = file
	t.mu.Unlock()
}

// Complete records that one record finished the entire pipeline (the
// Rename stage) and returns whether this completion crossed an emission
// boundary.
func (t *Tracker) Complete(file string) (snapshot Progress, shouldEmit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.index++
	t.stage = "rename"
	t.current = file
	shouldEmit = t.index%int64(t.every) == 0
	return t.snapshotLocked(), shouldEmit
}

// Snapshot returns the current state without advancing it, for a final
// end-of-run emission.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Progress {
	elapsed := now().Sub(t.startedAt).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(t.index) / elapsed
	}
	var pct float64
	if t.total > 0 {
		pct = float64(t.index) / float64(t.total) * 100
	}
	var eta time.Duration
	if rate > 0 && t.total > t.index {
		eta = time.Duration(float64(t.total-t.index)/rate) * time.Second
	}
	return Progress{
		Stage:       t.stage,
		CurrentFile: t.current,
		Index:       t.index,
		Total:       t.total,
		Percentage:  pct,
		Rate:        rate,
		ETA:         eta,
	}
}

// now is overridable in tests that need deterministic elapsed time.
var now = time.Now
