// Package model defines the persisted data entities of the MIDI library:
// File, MusicalMetadata, FileInstrument, TrackSplit, Tag, FileTag,
// Collection, CollectionFile and ImportBatch.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SMFFormat is the Standard MIDI File format code (0, 1 or 2).
type SMFFormat int

const (
	FormatSingleTrack SMFFormat = 0
	FormatMultiTrack  SMFFormat = 1
	FormatMultiSong   SMFFormat = 2
)

// File is the central entity: one row per imported or split-out MIDI file.
type File struct {
	ID             uuid.UUID
	Filename       string // canonical filename after sanitize/rename
	OriginalName   string // filename as first observed by the importer
	Filepath       string // absolute path, unique
	ContentHash    [32]byte
	SizeBytes      int64
	Format         SMFFormat
	TrackCount     int
	TicksPerQtr    int
	DurationSecs   *float64
	DurationTicks  *int64
	ParentFileID   *uuid.UUID
	TrackNumber    *int // 0-based; valid iff ParentFileID != nil
	SiblingCount   *int
	FolderTags     []string
	ImportBatchID  uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	AnalyzedAt     *time.Time
}

// IsSplitChild reports whether f was produced by the track splitter.
func (f *File) IsSplitChild() bool { return f.ParentFileID != nil }

// Analyzed reports whether analysis has produced a MusicalMetadata row.
func (f *File) Analyzed() bool { return f.AnalyzedAt != nil }

// MusicalKey is one of the 24 major/minor tonalities, or "" (unknown).
// Spelling is pinned to sharps and a bare "m" minor suffix: "C#", "C#m",
// never the flat or "min"/"minor" spellings.
type MusicalKey string

const KeyUnknown MusicalKey = ""

// ChordDescriptor summarizes the harmonic content of a file.
type ChordDescriptor struct {
	Progression  []string `json:"progression"`
	Types        []string `json:"types"`
	HasSevenths  bool     `json:"has_sevenths"`
	HasExtended  bool     `json:"has_extended"`
	ChangeRate   float64  `json:"change_rate"` // chord changes per beat
	Complexity   float64  `json:"complexity"`
}

// MusicalMetadata is the 1:1 analysis result for an analyzed File.
type MusicalMetadata struct {
	FileID uuid.UUID

	TempoBPM         float64
	TempoConfidence  float64
	HasTempoChanges  bool

	Key            MusicalKey
	KeyConfidence  float64

	TimeSigNumerator   int
	TimeSigDenominator int

	TotalNotes      int
	DistinctPitches int
	PitchRangeLow   int
	PitchRangeHigh  int
	AvgVelocity     float64
	NoteDensity     float64 // notes per second

	PolyphonyMax float64
	PolyphonyAvg float64
	Monophonic   bool
	Polyphonic   bool
	Percussive   bool

	Chords ChordDescriptor

	MelodicRangeLow  int
	MelodicRangeHigh int

	TempoChangesJSON     json.RawMessage
	KeyChangesJSON       json.RawMessage
	TimeSigChangesJSON   json.RawMessage
	ControllerDataJSON   json.RawMessage
	ArticulationDataJSON json.RawMessage
	SectionStructureJSON json.RawMessage
}

// FileInstrument is one (channel, program) observation within a file.
type FileInstrument struct {
	FileID           uuid.UUID
	Channel          int // 0-15
	Program          int // GM program, 0-127
	ProgramName      string
	InstrumentFamily string
	InstrumentType   string
	NoteCount        int
	Primary          bool
	AvgVelocity      float64
	PitchRangeLow    int
	PitchRangeHigh   int
}

// TrackSplit records a parent/child relation produced by the splitter.
type TrackSplit struct {
	ParentFileID uuid.UUID
	ChildFileID  uuid.UUID
	TrackIndex   int
}

// Tag is a reusable, named label, optionally grouped into a category.
type Tag struct {
	ID         uuid.UUID
	Name       string
	Category   string
	UsageCount int
}

// FileTag is a many-to-many join between File and Tag.
type FileTag struct {
	FileID  uuid.UUID
	TagID   uuid.UUID
	AddedBy string // origin label, e.g. "import", "user", "auto"
}

// Collection is a user-curated, ordered grouping of files.
type Collection struct {
	ID          uuid.UUID
	Name        string
	Description string
	Icon        string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CollectionFile places a File into a Collection at a given position.
type CollectionFile struct {
	CollectionID uuid.UUID
	FileID       uuid.UUID
	Position     int
}

// BatchStatus is the lifecycle state of an ImportBatch.
type BatchStatus string

const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// ImportBatch tracks one pipeline invocation.
type ImportBatch struct {
	ID         uuid.UUID
	Status     BatchStatus
	Category   string
	Imported   int
	Skipped    int
	ErrorCount int
	Errors     []string // first 10 retained verbatim, rest dropped but counted
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RecordError appends err to b.Errors, retaining only the first 10
// verbatim and counting the rest.
func (b *ImportBatch) RecordError(err string) {
	b.ErrorCount++
	if len(b.Errors) < 10 {
		b.Errors = append(b.Errors, err)
	}
}
