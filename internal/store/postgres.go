package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Michael-F-Ellis/midipipe/internal/model"
)

var log = logrus.WithField("component", "store")

// DBErrorClass classifies a Postgres failure: connection-class and
// pool-exhausted errors are the transient classes. The classification
// is informational; no code in this module retries on it.
type DBErrorClass int

const (
	DBErrorUnknown DBErrorClass = iota
	DBErrorUniqueViolation
	DBErrorForeignKeyViolation
	DBErrorCheckViolation
	DBErrorConnectionLoss
	DBErrorPoolExhausted
)

// ClassifyError inspects err and reports which DBErrorClass it belongs
// to, so callers can branch on the tag rather than message text.
func ClassifyError(err error) DBErrorClass {
	if err == nil {
		return DBErrorUnknown
	}
	if errors.Is(err, pgxpool.ErrClosedPool) {
		return DBErrorPoolExhausted
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return DBErrorUniqueViolation
		case "23503":
			return DBErrorForeignKeyViolation
		case "23514":
			return DBErrorCheckViolation
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "broken pipe"), strings.Contains(msg, "closed"):
		return DBErrorConnectionLoss
	case strings.Contains(msg, "pool") && strings.Contains(msg, "exhaust"):
		return DBErrorPoolExhausted
	case strings.Contains(msg, "timeout") && strings.Contains(msg, "acquir"):
		return DBErrorPoolExhausted
	}
	return DBErrorUnknown
}

// IsTransient reports whether this error class is a transient one
// (connection loss or pool exhaustion).
func (c DBErrorClass) IsTransient() bool {
	return c == DBErrorConnectionLoss || c == DBErrorPoolExhausted
}

// PostgresStore is the pgx-backed implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Open creates a connection pool sized per the caller's
// config.Config.PoolSize (max(workers)+2).
func Open(ctx context.Context, databaseURL string, poolSize int, acquireTimeout time.Duration) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parsing DATABASE_URL: %w", err)
	}
	cfg.MaxConns = int32(poolSize)
	cfg.MinConns = int32(poolSize)
	cfg.MaxConnIdleTime = 0 // unbounded during a run

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: creating pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) FindFileByHash(ctx context.Context, hash [32]byte) (*model.File, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, filename, original_name, filepath, content_hash, size_bytes, format,
		       track_count, ticks_per_qtr, duration_secs, duration_ticks, parent_file_id,
		       track_number, sibling_count, folder_tags, import_batch_id, created_at,
		       updated_at, analyzed_at
		FROM files WHERE content_hash = $1`, hash[:])
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

func (s *PostgresStore) GetFile(ctx context.Context, id uuid.UUID) (*model.File, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, filename, original_name, filepath, content_hash, size_bytes, format,
		       track_count, ticks_per_qtr, duration_secs, duration_ticks, parent_file_id,
		       track_number, sibling_count, folder_tags, import_batch_id, created_at,
		       updated_at, analyzed_at
		FROM files WHERE id = $1`, id)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*model.File, error) {
	var f model.File
	var hash []byte
	if err := row.Scan(&f.ID, &f.Filename, &f.OriginalName, &f.Filepath, &hash, &f.SizeBytes,
		&f.Format, &f.TrackCount, &f.TicksPerQtr, &f.DurationSecs, &f.DurationTicks,
		&f.ParentFileID, &f.TrackNumber, &f.SiblingCount, &f.FolderTags, &f.ImportBatchID,
		&f.CreatedAt, &f.UpdatedAt, &f.AnalyzedAt); err != nil {
		return nil, err
	}
	copy(f.ContentHash[:], hash)
	return &f, nil
}

func (s *PostgresStore) InsertFile(ctx context.Context, f *model.File) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	now := now()
	f.CreatedAt, f.UpdatedAt = now, now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, filename, original_name, filepath, content_hash, size_bytes,
			format, track_count, ticks_per_qtr, duration_secs, duration_ticks, parent_file_id,
			track_number, sibling_count, folder_tags, import_batch_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		f.ID, f.Filename, f.OriginalName, f.Filepath, f.ContentHash[:], f.SizeBytes,
		f.Format, f.TrackCount, f.TicksPerQtr, f.DurationSecs, f.DurationTicks, f.ParentFileID,
		f.TrackNumber, f.SiblingCount, f.FolderTags, f.ImportBatchID, f.CreatedAt, f.UpdatedAt)
	return err
}

func (s *PostgresStore) UpdateFilePath(ctx context.Context, id uuid.UUID, filename, filepath string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE files SET filename = $2, filepath = $3, updated_at = now() WHERE id = $1`,
		id, filename, filepath)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateFileParseInfo(ctx context.Context, id uuid.UUID, format model.SMFFormat, trackCount, ticksPerQtr int, durationTicks *int64, durationSecs *float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE files SET format = $2, track_count = $3, ticks_per_qtr = $4,
			duration_ticks = $5, duration_secs = $6, updated_at = now()
		WHERE id = $1`,
		id, format, trackCount, ticksPerQtr, durationTicks, durationSecs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertTrackSplit(ctx context.Context, ts model.TrackSplit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO track_splits (parent_file_id, child_file_id, track_index) VALUES ($1,$2,$3)`,
		ts.ParentFileID, ts.ChildFileID, ts.TrackIndex)
	return err
}

func (s *PostgresStore) ListUnanalyzed(ctx context.Context, limit, offset int) ([]*model.File, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, original_name, filepath, content_hash, size_bytes, format,
		       track_count, ticks_per_qtr, duration_secs, duration_ticks, parent_file_id,
		       track_number, sibling_count, folder_tags, import_batch_id, created_at,
		       updated_at, analyzed_at
		FROM files WHERE analyzed_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListFiles(ctx context.Context, limit, offset int) ([]*model.File, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, filename, original_name, filepath, content_hash, size_bytes, format,
		       track_count, ticks_per_qtr, duration_secs, duration_ticks, parent_file_id,
		       track_number, sibling_count, folder_tags, import_batch_id, created_at,
		       updated_at, analyzed_at
		FROM files ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SearchFiles implements the full-text + faceted search.
// Missing filters are NULL-predicated to be no-ops; whitespace-only
// Text degrades to NULL so it never participates in the predicate.
func (s *PostgresStore) SearchFiles(ctx context.Context, p SearchParams) ([]*model.File, error) {
	text := strings.TrimSpace(p.Text)
	var textArg any
	if text != "" {
		textArg = text
	}
	var manufacturerArg any
	if p.Manufacturer != "" {
		manufacturerArg = p.Manufacturer
	}
	var keyArg any
	if p.Key != model.KeyUnknown {
		keyArg = string(p.Key)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.filename, f.original_name, f.filepath, f.content_hash, f.size_bytes,
		       f.format, f.track_count, f.ticks_per_qtr, f.duration_secs, f.duration_ticks,
		       f.parent_file_id, f.track_number, f.sibling_count, f.folder_tags,
		       f.import_batch_id, f.created_at, f.updated_at, f.analyzed_at
		FROM files f
		LEFT JOIN musical_metadata m ON m.file_id = f.id
		LEFT JOIN collection_files cf ON cf.file_id = f.id
		WHERE ($1::text IS NULL OR f.search_vector @@ plainto_tsquery('english', $1))
		  AND ($2::double precision IS NULL OR m.tempo_bpm >= $2)
		  AND ($3::double precision IS NULL OR m.tempo_bpm <= $3)
		  AND ($4::musical_key IS NULL OR m.key = $4::musical_key)
		  AND ($5::text IS NULL OR f.filename ILIKE '%' || $5 || '%')
		  AND ($6::uuid IS NULL OR cf.collection_id = $6)
		GROUP BY f.id
		ORDER BY f.created_at DESC
		LIMIT $7 OFFSET $8`,
		textArg, p.BPMMin, p.BPMMax, keyArg, manufacturerArg, p.CollectionID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetOrCreateTagsBatch(ctx context.Context, specs []TagSpec) ([]model.Tag, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make([]model.Tag, 0, len(specs))
	for _, spec := range specs {
		var t model.Tag
		err := tx.QueryRow(ctx, `
			INSERT INTO tags (id, name, category, usage_count)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (name) DO UPDATE SET usage_count = tags.usage_count + 1
			RETURNING id, name, category, usage_count`,
			uuid.New(), spec.Name, spec.Category).Scan(&t.ID, &t.Name, &t.Category, &t.UsageCount)
		if err != nil {
			return nil, fmt.Errorf("store: upserting tag %q: %w", spec.Name, err)
		}
		out = append(out, t)
	}
	return out, tx.Commit(ctx)
}

// BatchInsertAnalyzed upserts musical-metadata and file-instrument rows
// for every record inside a single transaction, then stamps
// files.analyzed_at = now().
func (s *PostgresStore) BatchInsertAnalyzed(ctx context.Context, records []AnalyzedRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		m := rec.Metadata
		var keyArg any
		if m.Key != model.KeyUnknown {
			keyArg = string(m.Key)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO musical_metadata (
				file_id, tempo_bpm, tempo_confidence, has_tempo_changes, key, key_confidence,
				time_sig_numerator, time_sig_denominator, total_notes, distinct_pitches,
				pitch_range_low, pitch_range_high, avg_velocity, note_density,
				polyphony_max, polyphony_avg, monophonic, polyphonic, percussive,
				chord_progression, chord_types, has_sevenths, has_extended,
				chord_change_rate, chord_complexity, melodic_range_low, melodic_range_high,
				tempo_changes, key_changes, time_sig_changes, controller_data,
				articulation_data, section_structure)
			VALUES ($1,$2,$3,$4,$5::musical_key,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
				$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33)
			ON CONFLICT (file_id) DO UPDATE SET
				tempo_bpm = EXCLUDED.tempo_bpm,
				tempo_confidence = EXCLUDED.tempo_confidence,
				has_tempo_changes = EXCLUDED.has_tempo_changes,
				key = EXCLUDED.key,
				key_confidence = EXCLUDED.key_confidence,
				time_sig_numerator = EXCLUDED.time_sig_numerator,
				time_sig_denominator = EXCLUDED.time_sig_denominator,
				total_notes = EXCLUDED.total_notes,
				distinct_pitches = EXCLUDED.distinct_pitches,
				pitch_range_low = EXCLUDED.pitch_range_low,
				pitch_range_high = EXCLUDED.pitch_range_high,
				avg_velocity = EXCLUDED.avg_velocity,
				note_density = EXCLUDED.note_density,
				polyphony_max = EXCLUDED.polyphony_max,
				polyphony_avg = EXCLUDED.polyphony_avg,
				monophonic = EXCLUDED.monophonic,
				polyphonic = EXCLUDED.polyphonic,
				percussive = EXCLUDED.percussive,
				chord_progression = EXCLUDED.chord_progression,
				chord_types = EXCLUDED.chord_types,
				has_sevenths = EXCLUDED.has_sevenths,
				has_extended = EXCLUDED.has_extended,
				chord_change_rate = EXCLUDED.chord_change_rate,
				chord_complexity = EXCLUDED.chord_complexity,
				melodic_range_low = EXCLUDED.melodic_range_low,
				melodic_range_high = EXCLUDED.melodic_range_high,
				tempo_changes = EXCLUDED.tempo_changes,
				key_changes = EXCLUDED.key_changes,
				time_sig_changes = EXCLUDED.time_sig_changes,
				controller_data = EXCLUDED.controller_data,
				articulation_data = EXCLUDED.articulation_data,
				section_structure = EXCLUDED.section_structure`,
			rec.File.ID, m.TempoBPM, m.TempoConfidence, m.HasTempoChanges, keyArg, m.KeyConfidence,
			m.TimeSigNumerator, m.TimeSigDenominator, m.TotalNotes, m.DistinctPitches,
			m.PitchRangeLow, m.PitchRangeHigh, m.AvgVelocity, m.NoteDensity,
			m.PolyphonyMax, m.PolyphonyAvg, m.Monophonic, m.Polyphonic, m.Percussive,
			chordProgressionJSON(m), chordTypesJSON(m), m.Chords.HasSevenths, m.Chords.HasExtended,
			m.Chords.ChangeRate, m.Chords.Complexity, m.MelodicRangeLow, m.MelodicRangeHigh,
			nullableJSON(m.TempoChangesJSON), nullableJSON(m.KeyChangesJSON), nullableJSON(m.TimeSigChangesJSON),
			nullableJSON(m.ControllerDataJSON), nullableJSON(m.ArticulationDataJSON), nullableJSON(m.SectionStructureJSON))
		if err != nil {
			return fmt.Errorf("store: upserting musical_metadata for %s: %w", rec.File.ID, err)
		}

		for _, fi := range rec.Instruments {
			_, err := tx.Exec(ctx, `
				INSERT INTO file_instruments (file_id, channel, program_number, program_name,
					instrument_family, instrument_type, note_count, is_primary, avg_velocity,
					pitch_range_low, pitch_range_high)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
				ON CONFLICT (file_id, channel, program_number) DO UPDATE SET
					program_name = EXCLUDED.program_name,
					instrument_family = EXCLUDED.instrument_family,
					instrument_type = EXCLUDED.instrument_type,
					note_count = EXCLUDED.note_count,
					is_primary = EXCLUDED.is_primary,
					avg_velocity = EXCLUDED.avg_velocity,
					pitch_range_low = EXCLUDED.pitch_range_low,
					pitch_range_high = EXCLUDED.pitch_range_high`,
				fi.FileID, fi.Channel, fi.Program, fi.ProgramName, fi.InstrumentFamily,
				fi.InstrumentType, fi.NoteCount, fi.Primary, fi.AvgVelocity,
				fi.PitchRangeLow, fi.PitchRangeHigh)
			if err != nil {
				return fmt.Errorf("store: upserting file_instruments for %s: %w", rec.File.ID, err)
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE files SET analyzed_at = now() WHERE id = $1`, rec.File.ID); err != nil {
			return fmt.Errorf("store: stamping analyzed_at for %s: %w", rec.File.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.WithField("count", len(records)).Debug("flushed analyze batch")
	return nil
}

func (s *PostgresStore) CreateImportBatch(ctx context.Context, b *model.ImportBatch) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.StartedAt = now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_batches (id, status, category, imported, skipped, error_count, errors, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.Status, b.Category, b.Imported, b.Skipped, b.ErrorCount, b.Errors, b.StartedAt)
	return err
}

func (s *PostgresStore) UpdateImportBatch(ctx context.Context, b *model.ImportBatch) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE import_batches SET status=$2, imported=$3, skipped=$4, error_count=$5, errors=$6, finished_at=$7
		WHERE id = $1`,
		b.ID, b.Status, b.Imported, b.Skipped, b.ErrorCount, b.Errors, b.FinishedAt)
	return err
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func chordProgressionJSON(m model.MusicalMetadata) any {
	if len(m.Chords.Progression) == 0 {
		return nil
	}
	return m.Chords.Progression
}

func chordTypesJSON(m model.MusicalMetadata) any {
	if len(m.Chords.Types) == 0 {
		return nil
	}
	return m.Chords.Types
}
