// Package normalize canonicalizes MIDI filenames to the conservative
// character set [A-Za-z0-9._-], preserving the
// ".mid" extension.
package normalize

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var midiExtensions = map[string]bool{
	".mid": true, ".midi": true,
}

// Sanitize applies an ordered sequence of transformations
// to name and returns a canonical filename. Sanitize is idempotent:
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	lowerExt := strings.ToLower(ext)
	if !midiExtensions[lowerExt] {
		// Not a recognized MIDI extension; treat the whole name as the
		// base and still append ".mid" so the contract (preserve the
		// .mid extension) holds for arbitrarily-named inputs.
		base = name
	}

	base = stripDiacritics(base)
	base = strings.ReplaceAll(base, " ", "_")
	base = replaceDisallowedCollapsing(base)
	base = strings.TrimRight(base, "_.-")

	if base == "" {
		base = "track"
	}
	return base + ".mid"
}

// WithUniquePath returns a path in dir for the sanitized form of name
// that does not collide with an existing file, appending "_{n}" before
// the extension as needed. exists is typically os.Stat-backed but is
// injectable for tests.
func WithUniquePath(dir, name string, exists func(path string) bool) string {
	sanitized := Sanitize(name)
	candidate := filepath.Join(dir, sanitized)
	if !exists(candidate) {
		return candidate
	}
	ext := filepath.Ext(sanitized)
	stem := strings.TrimSuffix(sanitized, ext)
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, stem+"_"+strconv.Itoa(n)+ext)
		if !exists(candidate) {
			return candidate
		}
	}
}

// FileExists is the default exists predicate for WithUniquePath.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// stripDiacritics decomposes s (NFD) and drops combining marks, leaving
// the base Latin letters behind — e.g. "Jäger" -> "Jager" — rather than
// collapsing accented letters to underscore.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

func isAllowed(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
}

// replaceDisallowedCollapsing replaces every character outside the
// allowed set with '_', collapsing runs of underscores (whether
// pre-existing or newly introduced) inline during the same pass.
func replaceDisallowedCollapsing(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevUnderscore := false
	for _, r := range s {
		var out rune
		if isAllowed(r) {
			out = r
		} else {
			out = '_'
		}
		if out == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(out)
	}
	return b.String()
}
