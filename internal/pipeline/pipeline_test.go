package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michael-F-Ellis/midipipe/internal/config"
	"github.com/Michael-F-Ellis/midipipe/internal/model"
	"github.com/Michael-F-Ellis/midipipe/internal/smf"
	"github.com/Michael-F-Ellis/midipipe/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Workers: config.StageWorkers{
			Import:   2,
			Sanitize: 2,
			Split:    1,
			Analyze:  2,
			Rename:   1,
		},
		QueueCapacity:    64,
		AnalyzeBatchSize: 10,
		DBPageSize:       1000,
		ArchiveMaxDepth:  10,
		PollInterval:     time.Millisecond,
		PushBackoff:      time.Millisecond,
		ProgressEvery:    1,
	}
}

func writeSingleTrackFixture(t *testing.T, dir, name string) string {
	t.Helper()
	f := &smf.File{
		Format:   smf.Format0,
		Division: 480,
		Tracks: []smf.Track{{Events: []smf.Event{
			{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 60, Data2: 100},
			{Tick: 480, Type: smf.NoteOff, Channel: 0, Data1: 60},
			{Tick: 480, Type: smf.MetaEndOfTrack},
		}}},
	}
	data, err := smf.Encode(f)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeMultiTrackFixture(t *testing.T, dir, name string) string {
	t.Helper()
	f := &smf.File{
		Format:   smf.Format1,
		Division: 480,
		Tracks: []smf.Track{
			{Events: []smf.Event{
				{Tick: 0, Type: smf.MetaTempo, TempoMicrosPerQtr: 500000},
				{Tick: 0, Type: smf.MetaEndOfTrack},
			}},
			{Events: []smf.Event{
				{Tick: 0, Type: smf.MetaTrackName, Text: "Lead"},
				{Tick: 0, Type: smf.NoteOn, Channel: 0, Data1: 64, Data2: 90},
				{Tick: 240, Type: smf.NoteOff, Channel: 0, Data1: 64},
				{Tick: 240, Type: smf.MetaEndOfTrack},
			}},
			{Events: []smf.Event{
				{Tick: 0, Type: smf.ProgramChange, Channel: 1, Data1: 33},
				{Tick: 0, Type: smf.NoteOn, Channel: 1, Data1: 40, Data2: 80},
				{Tick: 240, Type: smf.NoteOff, Channel: 1, Data1: 40},
				{Tick: 240, Type: smf.MetaEndOfTrack},
			}},
		},
	}
	data, err := smf.Encode(f)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestImportDirectoryProcessesAllFilesThroughEveryStage(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeSingleTrackFixture(t, srcDir, "solo.mid")
	writeMultiTrackFixture(t, srcDir, "band.mid")

	st := store.NewMemoryStore()
	rt := NewRuntime(testConfig(), st)

	batch, err := rt.ImportDirectory(context.Background(), srcDir, destDir, false, "demo")
	require.NoError(t, err)
	assert.Equal(t, model.BatchCompleted, batch.Status)
	assert.Equal(t, 2, batch.Imported)

	files, err := st.ListFiles(context.Background(), 100, 0)
	require.NoError(t, err)
	// solo.mid (1) + band.mid (1) + 3 split children from band.mid (the
	// tempo-only conductor track counts as non-empty).
	assert.Len(t, files, 5)

	for _, f := range files {
		assert.NotNil(t, f.AnalyzedAt, "file %s should be analyzed", f.Filename)
	}

	entries, err := os.ReadDir(filepath.Join(destDir, "demo"))
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestImportDirectoryDeduplicatesByContentHash(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeSingleTrackFixture(t, srcDir, "a.mid")
	writeSingleTrackFixture(t, srcDir, "b.mid") // byte-identical to a.mid

	st := store.NewMemoryStore()
	rt := NewRuntime(testConfig(), st)

	batch, err := rt.ImportDirectory(context.Background(), srcDir, destDir, false, "dup")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Imported)
	assert.Equal(t, 1, batch.Skipped)
}

func TestImportDirectoryLeavesUnparseableFileForRetry(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	badPath := filepath.Join(srcDir, "broken.mid")
	require.NoError(t, os.WriteFile(badPath, []byte("not a midi file at all"), 0o644))

	st := store.NewMemoryStore()
	rt := NewRuntime(testConfig(), st)

	batch, err := rt.ImportDirectory(context.Background(), srcDir, destDir, false, "broken")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Imported)
	assert.Equal(t, 1, batch.Skipped)

	files, err := st.ListFiles(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Nil(t, files[0].AnalyzedAt)
	assert.Equal(t, badPath, files[0].Filepath, "a failed parse must leave the original file in place")

	entries, err := os.ReadDir(filepath.Join(destDir, "broken"))
	assert.True(t, os.IsNotExist(err) || len(entries) == 0, "nothing should be written to destDir for an unparseable file")

	pending, err := st.ListUnanalyzed(context.Background(), 100, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestAnalyzePendingRecoversOnceTheSourceFileIsFixed(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	path := writeSingleTrackFixture(t, srcDir, "solo.mid")
	good, err := os.ReadFile(path)
	require.NoError(t, err)

	// Corrupt the MThd header length field: repair.AttemptRepair only
	// fixes a missing EndOfTrack or trailing bytes, never a malformed
	// header, so this is unrecoverable by Sanitize every time.
	corrupted := append([]byte(nil), good...)
	corrupted[7] = 0xFF
	require.NoError(t, os.WriteFile(path, corrupted, 0o644))

	st := store.NewMemoryStore()
	rt := NewRuntime(testConfig(), st)
	batch, err := rt.ImportDirectory(context.Background(), srcDir, destDir, false, "fix-me")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Skipped)

	pending, err := st.ListUnanalyzed(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// An operator repairs the file in place before retrying.
	require.NoError(t, os.WriteFile(path, good, 0o644))

	analyzed, stillPending, err := rt.AnalyzePending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, analyzed)
	assert.Equal(t, 0, stillPending)

	files, err := st.ListFiles(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.NotNil(t, files[0].AnalyzedAt)
}

func TestImportDirectoryNonRecursiveIgnoresSubdirectories(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	writeSingleTrackFixture(t, srcDir, "top.mid")
	sub := filepath.Join(srcDir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeSingleTrackFixture(t, sub, "buried.mid")

	st := store.NewMemoryStore()
	rt := NewRuntime(testConfig(), st)

	batch, err := rt.ImportDirectory(context.Background(), srcDir, destDir, false, "flat")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Imported)
}
