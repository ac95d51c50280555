// Package hashutil computes the BLAKE3 content hash used throughout the
// pipeline for dedup: files.content_hash is unique and globally
// identifies byte-identical MIDI files regardless of path or name.
package hashutil

import (
	"io"

	"lukechampine.com/blake3"
)

// Sum returns the 32-byte BLAKE3 digest of data.
func Sum(data []byte) [32]byte {
	var out [32]byte
	sum := blake3.Sum256(data)
	copy(out[:], sum[:])
	return out
}

// SumReader streams r through BLAKE3 without buffering the whole input.
// The importer hashes in-memory bytes with Sum instead.
func SumReader(r io.Reader) ([32]byte, error) {
	h := blake3.New(32, nil)
	var out [32]byte
	if _, err := io.Copy(h, r); err != nil {
		return out, err
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}
