// Package archive implements a recursive archive extractor:
// depth-bounded decompression of nested archives down to plain files,
// with path-escape and symlink safety. Error variable naming follows
// the golift-xtractr package's convention of a block of sentinel
// xtractr errors (see other_examples/golift-xtractr__cue.go.go).
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
)

func init() {
	// Use klauspost/compress's flate implementation for higher
	// throughput on large libraries, per DESIGN.md's golift-xtractr
	// grounding, while keeping archive/zip for container parsing.
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Sentinel errors, never surfaced as a hard batch failure.
var (
	ErrUnsupportedFormat   = errors.New("archive: unrecognized container format")
	ErrArchiveDepthExceeded = errors.New("archive: recursion depth exceeded")
	ErrPathEscape           = errors.New("archive: entry path escapes extraction root")
)

// DefaultMaxDepth is the default recursion bound.
const DefaultMaxDepth = 10

// Extractor walks nested archives, extracting files to disk and
// recording the paths of those matching TargetExtensions.
type Extractor struct {
	MaxDepth         int
	TargetExtensions map[string]bool
}

// NewExtractor builds an Extractor with the given target extensions
// (e.g. ".mid", ".midi") and the default depth bound.
func NewExtractor(extensions ...string) *Extractor {
	targets := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		targets[strings.ToLower(ext)] = true
	}
	return &Extractor{MaxDepth: DefaultMaxDepth, TargetExtensions: targets}
}

// Result accumulates the outcome of one (possibly recursive) extraction.
type Result struct {
	ExtractedFiles []string
	Errors         []error
}

// Extract decompresses archivePath into destDir, recursing into any
// nested archives it finds up to MaxDepth. It never returns a non-nil
// error for a recoverable condition (unsupported format, depth
// exceeded) — those are recorded in Result.Errors instead. A non-nil
// error return means the top-level archive itself could not be opened.
func (e *Extractor) Extract(archivePath, destDir string) (*Result, error) {
	result := &Result{}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return result, err
	}
	format, err := detectFormat(archivePath)
	if err != nil {
		return result, err
	}
	if format == formatZip {
		zr, err := zip.OpenReader(archivePath)
		if err != nil {
			return result, err
		}
		zr.Close()
	}
	e.extract(archivePath, destDir, 0, result)
	return result, nil
}

func (e *Extractor) extract(archivePath, destDir string, depth int, result *Result) {
	format, err := detectFormat(archivePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("archive: reading %s: %w", archivePath, err))
		return
	}
	switch format {
	case formatZip:
		e.extractZip(archivePath, destDir, depth, result)
	default:
		result.Errors = append(result.Errors, fmt.Errorf("%w: %s", ErrUnsupportedFormat, archivePath))
	}
}

func (e *Extractor) extractZip(archivePath, destDir string, depth int, result *Result) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("archive: opening %s: %w", archivePath, err))
		return
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}

		if f.Mode()&os.ModeSymlink != 0 {
			// Symlink entries are not followed.
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				result.Errors = append(result.Errors, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if err := extractOneEntry(f, target); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("archive: extracting %s: %w", f.Name, err))
			continue
		}

		ext := strings.ToLower(filepath.Ext(target))
		if e.TargetExtensions[ext] {
			result.ExtractedFiles = append(result.ExtractedFiles, target)
		}

		if nestedFormat, _ := detectFormat(target); nestedFormat == formatZip {
			if depth+1 > e.MaxDepth {
				result.Errors = append(result.Errors, fmt.Errorf("%w: %s at depth %d", ErrArchiveDepthExceeded, target, depth+1))
				continue
			}
			e.extract(target, filepath.Join(destDir, strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))+"_extracted"), depth+1, result)
		}
	}
}

func extractOneEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// safeJoin resolves name under root and rejects any entry whose
// resolved path would escape it (a "zip-slip" path via ".." segments).
func safeJoin(root, name string) (string, error) {
	cleanRoot := filepath.Clean(root)
	target := filepath.Join(cleanRoot, name)
	if !strings.HasPrefix(target, cleanRoot+string(os.PathSeparator)) && target != cleanRoot {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, name)
	}
	return target, nil
}

type containerFormat int

const (
	formatUnknown containerFormat = iota
	formatZip
)

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// detectFormat identifies an archive by magic bytes rather than
// extension.
func detectFormat(path string) (containerFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return formatUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 4)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return formatUnknown, err
	}
	if n == 4 && bytes.Equal(buf, zipMagic) {
		return formatZip, nil
	}
	return formatUnknown, nil
}
