// Package store implements the repository layer: typed
// query functions over the persisted schema, backed by PostgreSQL via
// pgx. Store is defined as an interface so the pipeline runtime and its
// tests can be driven against either the real pgx-backed implementation
// or the in-memory fake in memory.go.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
)

// ErrNotFound is returned by GetFile and UpdateFilePath when no row
// matches the given id, by both Store implementations.
var ErrNotFound = errors.New("store: not found")

// SearchParams is search_files's filter set. Missing
// filters (zero value) are NULL-predicated to be no-ops; whitespace-only
// Text degrades to NULL.
type SearchParams struct {
	Text         string
	BPMMin       *float64
	BPMMax       *float64
	Key          model.MusicalKey
	Manufacturer string
	CollectionID *uuid.UUID
	Limit        int
	Offset       int
}

// TagSpec names a tag to upsert, with an optional category.
type TagSpec struct {
	Name     string
	Category string
}

// AnalyzedRecord bundles one file's analysis outputs for a single
// transactional upsert.
type AnalyzedRecord struct {
	File        *model.File
	Metadata    model.MusicalMetadata
	Instruments []model.FileInstrument
}

// Store is the repository layer's contract.
type Store interface {
	// FindFileByHash implements dedup: DuplicateContent is not an error
	// — the caller proceeds against the returned File rather than erroring.
	FindFileByHash(ctx context.Context, hash [32]byte) (*model.File, bool, error)
	InsertFile(ctx context.Context, f *model.File) error
	UpdateFilePath(ctx context.Context, id uuid.UUID, filename, filepath string) error

	// UpdateFileParseInfo persists the fields only known once Sanitize (and
	// later Analyze) have run against a File row inserted by Import before
	// parsing happened.
	UpdateFileParseInfo(ctx context.Context, id uuid.UUID, format model.SMFFormat, trackCount, ticksPerQtr int, durationTicks *int64, durationSecs *float64) error

	GetFile(ctx context.Context, id uuid.UUID) (*model.File, error)

	InsertTrackSplit(ctx context.Context, ts model.TrackSplit) error

	// ListUnanalyzed pages un-analyzed files, page-sized to bound memory
	// to bound memory.
	ListUnanalyzed(ctx context.Context, limit, offset int) ([]*model.File, error)

	// BatchInsertAnalyzed upserts metadata+instrument rows for a batch of
	// files inside a single transaction and stamps analyzed_at. It is
	// safe to call twice with the same records (upsert-idempotent).
	BatchInsertAnalyzed(ctx context.Context, records []AnalyzedRecord) error

	// ListFiles returns a stable created_at-ordered listing.
	ListFiles(ctx context.Context, limit, offset int) ([]*model.File, error)
	SearchFiles(ctx context.Context, params SearchParams) ([]*model.File, error)

	GetOrCreateTagsBatch(ctx context.Context, specs []TagSpec) ([]model.Tag, error)

	CreateImportBatch(ctx context.Context, b *model.ImportBatch) error
	UpdateImportBatch(ctx context.Context, b *model.ImportBatch) error

	Close()
}

// now is overridable in tests that need deterministic timestamps.
var now = time.Now
