package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Michael-F-Ellis/midipipe/internal/analysis"
	"github.com/Michael-F-Ellis/midipipe/internal/hashutil"
	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/normalize"
	"github.com/Michael-F-Ellis/midipipe/internal/repair"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
	"github.com/Michael-F-Ellis/midipipe/internal/splitter"
	"github.com/Michael-F-Ellis/midipipe/internal/store"
)

// discoverMIDIFiles lists .mid/.midi files under root, recursing when
// recursive is set.
func discoverMIDIFiles(root string, recursive bool) ([]string, error) {
	var paths []string
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !isMIDIExtension(e.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(root, e.Name()))
		}
		return paths, nil
	}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isMIDIExtension(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func isMIDIExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".mid" || ext == ".midi"
}

// runImport reads one source path, hashes it, and either attaches the
// Record to an existing File (DuplicateContent — not an error) or
// inserts a fresh one. A failure here drops the record: the original
// file on disk is unaffected, per the error handling design's Import
// row.
func (r *Runtime) runImport(ctx context.Context, path, category string) (*Record, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		r.logStageError("import", path, err)
		r.counters.incErrored()
		return nil, false
	}
	hash := hashutil.Sum(data)

	if existing, found, err := r.store.FindFileByHash(ctx, hash); err != nil {
		r.logStageError("import", path, err)
		r.counters.incErrored()
		return nil, false
	} else if found {
		r.counters.incSkipped()
		return &Record{
			SourcePath: path,
			Category:   category,
			BatchID:    r.batch.ID,
			RawData:    data,
			File:       existing,
			EnqueuedAt: time.Now(),
		}, true
	}

	f := &model.File{
		ID:            uuid.New(),
		Filename:      normalize.Sanitize(filepath.Base(path)),
		OriginalName:  filepath.Base(path),
		Filepath:      path,
		ContentHash:   hash,
		SizeBytes:     int64(len(data)),
		FolderTags:    folderTags(path),
		ImportBatchID: r.batch.ID,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := r.store.InsertFile(ctx, f); err != nil {
		r.logStageError("import", path, err)
		r.counters.incErrored()
		return nil, false
	}
	r.counters.incImported()
	return &Record{
		SourcePath: path,
		Category:   category,
		BatchID:    r.batch.ID,
		RawData:    data,
		File:       f,
		EnqueuedAt: time.Now(),
	}, true
}

// folderTags derives coarse categorical tags from a path's immediate
// parent directory name, e.g. "library/rock/song.mid" -> ["rock"].
func folderTags(path string) []string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "" || dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	return []string{dir}
}

// runSanitize parses a Record's raw bytes, attempting one auto-repair
// pass on failure. A file that still cannot be parsed is marked
// ParseFailed: its File row stays inserted with analyzed_at unset (the
// ParseError contract — retryable by a future analyze run), but Rename
// leaves the original bytes on disk untouched rather than writing a
// canonical copy, and the batch counts it as skipped rather than
// imported.
func (r *Runtime) runSanitize(ctx context.Context, rec *Record) {
	parsed, err := smf.Parse(rec.RawData)
	if err != nil {
		result := repair.AttemptRepair(rec.RawData)
		switch result.Status {
		case repair.Repaired:
			reparsed, rerr := smf.Parse(result.Data)
			if rerr != nil {
				r.logStageError("sanitize", rec.SourcePath, rerr)
				rec.ParseFailed = true
				r.counters.incSkipped()
				return
			}
			r.log.WithField("file", rec.SourcePath).Infof("repaired: %s", result.Description)
			rec.RawData = result.Data
			parsed = reparsed
		default:
			r.logStageError("sanitize", rec.SourcePath, err)
			rec.ParseFailed = true
			r.counters.incSkipped()
			return
		}
	}
	rec.Parsed = parsed
	rec.File.Format = model.SMFFormat(parsed.Format)
	rec.File.TrackCount = len(parsed.Tracks)
	rec.File.TicksPerQtr = parsed.TicksPerQuarterNote()
	if err := r.store.UpdateFileParseInfo(ctx, rec.File.ID, rec.File.Format, rec.File.TrackCount, rec.File.TicksPerQtr, nil, nil); err != nil {
		r.logStageError("sanitize", rec.SourcePath, err)
	}
}

// runSplit projects a multi-track file into one Record per non-empty
// track, in addition to forwarding the parent unchanged: the parent's
// own combined-track metadata is still useful for search after
// splitting, so it is analyzed too, not only its children.
func (r *Runtime) runSplit(ctx context.Context, rec *Record) []*Record {
	if rec.Parsed == nil || rec.Parsed.Format != smf.Format1 || rec.Parsed.NonEmptyTrackCount() < 2 {
		return []*Record{rec}
	}
	stem := strings.TrimSuffix(rec.File.Filename, filepath.Ext(rec.File.Filename))
	children := splitter.Split(rec.Parsed, stem)
	siblingCount := len(children)

	out := make([]*Record, 0, len(children)+1)
	out = append(out, rec)
	for _, c := range children {
		trackIndex := c.TrackIndex
		encoded := mustEncode(c.File)
		childFile := &model.File{
			ID:            uuid.New(),
			Filename:      c.Filename,
			OriginalName:  c.Filename,
			ContentHash:   hashutil.Sum(encoded),
			Format:        model.FormatSingleTrack,
			TrackCount:    1,
			TicksPerQtr:   c.File.TicksPerQuarterNote(),
			ParentFileID:  &rec.File.ID,
			TrackNumber:   &trackIndex,
			SiblingCount:  &siblingCount,
			FolderTags:    rec.File.FolderTags,
			ImportBatchID: rec.BatchID,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if err := r.store.InsertFile(ctx, childFile); err != nil {
			r.logStageError("split", rec.SourcePath, err)
			continue
		}
		if err := r.store.InsertTrackSplit(ctx, model.TrackSplit{
			ParentFileID: rec.File.ID,
			ChildFileID:  childFile.ID,
			TrackIndex:   c.TrackIndex,
		}); err != nil {
			r.logStageError("split", rec.SourcePath, err)
		}
		out = append(out, &Record{
			SourcePath: rec.SourcePath,
			Category:   rec.Category,
			BatchID:    rec.BatchID,
			RawData:    encoded,
			File:       childFile,
			Parsed:     c.File,
			ParentID:   &rec.File.ID,
			TrackIndex: &trackIndex,
			EnqueuedAt: time.Now(),
		})
	}
	return out
}

func mustEncode(f *smf.File) []byte {
	data, err := smf.Encode(f)
	if err != nil {
		return nil
	}
	return data
}

// runAnalyze runs the analysis aggregator over a Record's parsed tree
// and appends the result to the shared batch buffer, flushing it once
// AnalyzeBatchSize is reached. A Record with no parsed tree (a failed
// parse) is forwarded untouched.
func (r *Runtime) runAnalyze(ctx context.Context, rec *Record) {
	if rec.Parsed == nil {
		return
	}
	result := analysis.Analyze(rec.Parsed)
	result.Metadata.FileID = rec.File.ID
	for i := range result.Instruments {
		result.Instruments[i].FileID = rec.File.ID
	}

	durationTicks := int64(longestTickAcross(rec.Parsed))
	durationSecs := ticksToSeconds(durationTicks, rec.File.TicksPerQtr, result.Tempo.BPM)
	rec.File.DurationTicks = &durationTicks
	rec.File.DurationSecs = &durationSecs
	if err := r.store.UpdateFileParseInfo(ctx, rec.File.ID, rec.File.Format, rec.File.TrackCount, rec.File.TicksPerQtr, &durationTicks, &durationSecs); err != nil {
		r.logStageError("analyze", rec.SourcePath, err)
	}

	r.appendAnalyzed(ctx, store.AnalyzedRecord{
		File:        rec.File,
		Metadata:    result.Metadata,
		Instruments: result.Instruments,
	})
}

func longestTickAcross(f *smf.File) uint64 {
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

// ticksToSeconds converts an absolute tick position to seconds given the
// file's ticks-per-quarter resolution and a representative BPM.
func ticksToSeconds(tick int64, ticksPerQuarter int, bpm float64) float64 {
	if ticksPerQuarter <= 0 || bpm <= 0 {
		return 0
	}
	quarters := float64(tick) / float64(ticksPerQuarter)
	return quarters * (60.0 / bpm)
}

// runRename writes a Record's bytes to their canonical, collision-free
// path under destDir and persists the final filename/path. A split
// child is materialized here for the first time; a top-level import is
// moved from its source path. A ParseFailed record is left exactly
// where it was found — its File row stays retryable, but nothing is
// written or removed on disk for a file the pipeline couldn't read.
func (r *Runtime) runRename(ctx context.Context, rec *Record, destDir string) {
	if rec.File == nil || rec.ParseFailed {
		return
	}
	targetDir := filepath.Join(destDir, rec.Category)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		r.logStageError("rename", rec.SourcePath, err)
		return
	}
	finalPath := normalize.WithUniquePath(targetDir, rec.File.Filename, normalize.FileExists)
	finalName := filepath.Base(finalPath)

	if err := os.WriteFile(finalPath, rec.RawData, 0o644); err != nil {
		r.logStageError("rename", rec.SourcePath, err)
		return
	}
	if rec.ParentID == nil && rec.SourcePath != "" && rec.SourcePath != finalPath {
		_ = os.Remove(rec.SourcePath)
	}

	rec.File.Filename = finalName
	rec.File.Filepath = finalPath
	if err := r.store.UpdateFilePath(ctx, rec.File.ID, finalName, finalPath); err != nil {
		r.logStageError("rename", rec.SourcePath, err)
	}
}

func (r *Runtime) logStageError(stage, path string, err error) {
	r.log.WithFields(map[string]any{"stage": stage, "file": path}).Warn(err)
	if r.batch != nil {
		r.batch.RecordError(fmt.Sprintf("%s: %s: %v", stage, path, err))
	}
}
