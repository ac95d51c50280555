package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
)

// MemoryStore is an in-process Store used by pipeline and command tests
// that don't stand up a Postgres instance. It mirrors the upsert and
// paging semantics of PostgresStore closely enough to exercise callers,
// without enforcing schema constraints such as foreign keys or checks.
type MemoryStore struct {
	mu sync.Mutex

	filesByID   map[uuid.UUID]*model.File
	filesByHash map[[32]byte]uuid.UUID
	splits      []model.TrackSplit
	metadata    map[uuid.UUID]model.MusicalMetadata
	instruments map[uuid.UUID][]model.FileInstrument
	tagsByName  map[string]*model.Tag
	batches     map[uuid.UUID]*model.ImportBatch
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		filesByID:   make(map[uuid.UUID]*model.File),
		filesByHash: make(map[[32]byte]uuid.UUID),
		metadata:    make(map[uuid.UUID]model.MusicalMetadata),
		instruments: make(map[uuid.UUID][]model.FileInstrument),
		tagsByName:  make(map[string]*model.Tag),
		batches:     make(map[uuid.UUID]*model.ImportBatch),
	}
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) FindFileByHash(ctx context.Context, hash [32]byte) (*model.File, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.filesByHash[hash]
	if !ok {
		return nil, false, nil
	}
	f := *s.filesByID[id]
	return &f, true, nil
}

func (s *MemoryStore) GetFile(ctx context.Context, id uuid.UUID) (*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filesByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) InsertFile(ctx context.Context, f *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	t := now()
	f.CreatedAt, f.UpdatedAt = t, t
	cp := *f
	s.filesByID[f.ID] = &cp
	s.filesByHash[f.ContentHash] = f.ID
	return nil
}

func (s *MemoryStore) UpdateFilePath(ctx context.Context, id uuid.UUID, filename, filepath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filesByID[id]
	if !ok {
		return ErrNotFound
	}
	f.Filename = filename
	f.Filepath = filepath
	f.UpdatedAt = now()
	return nil
}

func (s *MemoryStore) UpdateFileParseInfo(ctx context.Context, id uuid.UUID, format model.SMFFormat, trackCount, ticksPerQtr int, durationTicks *int64, durationSecs *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.filesByID[id]
	if !ok {
		return ErrNotFound
	}
	f.Format = format
	f.TrackCount = trackCount
	f.TicksPerQtr = ticksPerQtr
	f.DurationTicks = durationTicks
	f.DurationSecs = durationSecs
	f.UpdatedAt = now()
	return nil
}

func (s *MemoryStore) InsertTrackSplit(ctx context.Context, ts model.TrackSplit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.splits = append(s.splits, ts)
	return nil
}

func (s *MemoryStore) ListUnanalyzed(ctx context.Context, limit, offset int) ([]*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*model.File
	for _, f := range s.filesByID {
		if f.AnalyzedAt == nil {
			cp := *f
			all = append(all, &cp)
		}
	}
	sortByCreatedAtDesc(all)
	return page(all, limit, offset), nil
}

func (s *MemoryStore) ListFiles(ctx context.Context, limit, offset int) ([]*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*model.File
	for _, f := range s.filesByID {
		cp := *f
		all = append(all, &cp)
	}
	sortByCreatedAtDesc(all)
	return page(all, limit, offset), nil
}

func (s *MemoryStore) SearchFiles(ctx context.Context, p SearchParams) ([]*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*model.File
	for _, f := range s.filesByID {
		if !matchesSearch(f, s.metadata[f.ID], p) {
			continue
		}
		cp := *f
		all = append(all, &cp)
	}
	sortByCreatedAtDesc(all)
	return page(all, p.Limit, p.Offset), nil
}

func matchesSearch(f *model.File, m model.MusicalMetadata, p SearchParams) bool {
	if p.BPMMin != nil && m.TempoBPM < *p.BPMMin {
		return false
	}
	if p.BPMMax != nil && m.TempoBPM > *p.BPMMax {
		return false
	}
	if p.Key != model.KeyUnknown && m.Key != p.Key {
		return false
	}
	return true
}

func (s *MemoryStore) BatchInsertAnalyzed(ctx context.Context, records []AnalyzedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.metadata[rec.File.ID] = rec.Metadata
		s.instruments[rec.File.ID] = rec.Instruments
		if f, ok := s.filesByID[rec.File.ID]; ok {
			t := now()
			f.AnalyzedAt = &t
		}
	}
	return nil
}

func (s *MemoryStore) GetOrCreateTagsBatch(ctx context.Context, specs []TagSpec) ([]model.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Tag, 0, len(specs))
	for _, spec := range specs {
		t, ok := s.tagsByName[spec.Name]
		if !ok {
			t = &model.Tag{ID: uuid.New(), Name: spec.Name, Category: spec.Category}
			s.tagsByName[spec.Name] = t
		}
		t.UsageCount++
		out = append(out, *t)
	}
	return out, nil
}

func (s *MemoryStore) CreateImportBatch(ctx context.Context, b *model.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.StartedAt = now()
	cp := *b
	s.batches[b.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateImportBatch(ctx context.Context, b *model.ImportBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.batches[b.ID] = &cp
	return nil
}

func sortByCreatedAtDesc(files []*model.File) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
}

func page(files []*model.File, limit, offset int) []*model.File {
	if offset >= len(files) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(files) {
		end = len(files)
	}
	return files[offset:end]
}
