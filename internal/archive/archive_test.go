package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := zip.NewWriter(f)
	for name, data := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestExtractFindsTargetExtensions(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "songs.zip")
	writeZip(t, zipPath, map[string][]byte{
		"a.mid":   []byte("midi-a"),
		"b.txt":   []byte("not midi"),
		"sub/c.mid": []byte("midi-c"),
	})

	ex := NewExtractor(".mid")
	result, err := ex.Extract(zipPath, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.ExtractedFiles, 2)
}

func TestExtractRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "evil.zip")
	writeZip(t, zipPath, map[string][]byte{
		"../../escape.mid": []byte("evil"),
	})

	ex := NewExtractor(".mid")
	destDir := filepath.Join(dir, "out")
	result, err := ex.Extract(zipPath, destDir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "escape.mid"))
	assert.True(t, os.IsNotExist(statErr), "escaped file must not be written outside destDir")
	assert.Empty(t, result.ExtractedFiles)
}

func TestExtractUnsupportedFormatRecorded(t *testing.T) {
	dir := t.TempDir()
	notAnArchive := filepath.Join(dir, "data.rar")
	require.NoError(t, os.WriteFile(notAnArchive, []byte("Rar!\x1a\x07\x00"), 0o644))

	ex := NewExtractor(".mid")
	result, err := ex.Extract(notAnArchive, filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.ErrorIs(t, result.Errors[0], ErrUnsupportedFormat)
}

func TestExtractDepthExceededRecordedNotFatal(t *testing.T) {
	dir := t.TempDir()

	innermost := filepath.Join(dir, "innermost.zip")
	writeZip(t, innermost, map[string][]byte{"deep.mid": []byte("deep")})

	current := innermost
	for i := 0; i < 12; i++ {
		wrapper := filepath.Join(dir, "wrap.zip")
		data, err := os.ReadFile(current)
		require.NoError(t, err)
		writeZip(t, wrapper, map[string][]byte{"inner.zip": data})
		current = wrapper + ".step"
		require.NoError(t, os.Rename(wrapper, current))
	}

	ex := NewExtractor(".mid")
	ex.MaxDepth = 3
	result, err := ex.Extract(current, filepath.Join(dir, "out"))
	require.NoError(t, err)

	found := false
	for _, e := range result.Errors {
		if errors.Is(e, ErrArchiveDepthExceeded) {
			found = true
		}
	}
	assert.True(t, found, "expected an ErrArchiveDepthExceeded among: %v", result.Errors)
}
