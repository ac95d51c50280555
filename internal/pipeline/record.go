// Package pipeline wires the five processing stages — import, sanitize,
// split, analyze, rename — into concurrent worker pools connected by
// bounded queues, with cooperative cancellation and progress reporting.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
)

// Record carries one file's state through the pipeline. Stages mutate it
// in place and push it to the next stage's queue; a Record never visits
// two stages concurrently.
type Record struct {
	SourcePath string // path on disk as discovered by the walker
	Category   string
	BatchID    uuid.UUID

	RawData []byte
	File    *model.File
	Parsed  *smf.File

	// ParentID/TrackIndex are set on a Record synthesized by the split
	// stage for a child track; nil for a top-level import.
	ParentID   *uuid.UUID
	TrackIndex *int

	// ParseFailed marks a Record whose bytes could not be decoded even
	// after repair. Its File row stays inserted with analyzed_at unset
	// for a future retry, but Rename leaves it untouched on disk rather
	// than writing a canonical copy; Split and Analyze are no-ops for it
	// since there is no Parsed tree to work from.
	ParseFailed bool

	EnqueuedAt time.Time
}
