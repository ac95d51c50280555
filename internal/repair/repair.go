// Package repair implements the auto-repair pass: recovering
// common SMF corruptions before splitting or analysis without requiring
// a full event-level parse. Repairs operate on chunk framing only: the
// pass walks chunk headers by their declared lengths and inspects each
// track chunk's final bytes instead of decoding events.
package repair

import (
	"encoding/binary"
	"fmt"
)

// Status is the outcome of an AttemptRepair call.
type Status int

const (
	Valid Status = iota
	Repaired
	Corrupt
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "Valid"
	case Repaired:
		return "Repaired"
	case Corrupt:
		return "Corrupt"
	}
	return "unknown"
}

// Result describes the outcome of one AttemptRepair call.
type Result struct {
	Status      Status
	Description string // set when Status == Repaired
	Reason      string // set when Status == Corrupt
	Data        []byte // repaired bytes; equals the input when Status != Repaired
}

var eotMarker = []byte{0xFF, 0x2F, 0x00}

// AttemptRepair inspects data for the two corruptions this package
// documents — a missing EndOfTrack marker, and trailing bytes after all
// declared tracks — and fixes what it can. It is idempotent:
// AttemptRepair(AttemptRepair(x).Data) == AttemptRepair(x) in its output
// bytes.
func AttemptRepair(data []byte) Result {
	if len(data) < 14 || string(data[0:4]) != "MThd" {
		return Result{Status: Corrupt, Reason: "missing or malformed MThd chunk", Data: data}
	}
	hdrLen := binary.BigEndian.Uint32(data[4:8])
	if hdrLen != 6 {
		return Result{Status: Corrupt, Reason: "MThd payload is not 6 bytes", Data: data}
	}
	numTracks := int(binary.BigEndian.Uint16(data[10:12]))

	out := append([]byte(nil), data...)
	pos := 14
	repaired := false
	var description string

	for i := 0; i < numTracks; i++ {
		if pos+8 > len(out) {
			return Result{Status: Corrupt, Reason: fmt.Sprintf("track %d: chunk header truncated", i), Data: data}
		}
		if string(out[pos:pos+4]) != "MTrk" {
			return Result{Status: Corrupt, Reason: fmt.Sprintf("track %d: expected MTrk, found %q", i, out[pos:pos+4]), Data: data}
		}
		chunkLen := int(binary.BigEndian.Uint32(out[pos+4 : pos+8]))
		start := pos + 8
		end := start + chunkLen
		if end > len(out) {
			return Result{Status: Corrupt, Reason: fmt.Sprintf("track %d: declared length %d exceeds remaining bytes", i, chunkLen), Data: data}
		}
		if chunkLen < 3 || !equalTail(out[start:end], eotMarker) {
			// Missing EndOfTrack: insert it at the track-end boundary
			// and grow the chunk-length field accordingly.
			newTrack := append(append([]byte(nil), out[start:end]...), eotMarker...)
			newOut := make([]byte, 0, len(out)+3)
			newOut = append(newOut, out[:pos+4]...)
			var lenBuf [4]byte
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(newTrack)))
			newOut = append(newOut, lenBuf[:]...)
			newOut = append(newOut, newTrack...)
			newOut = append(newOut, out[end:]...)
			out = newOut
			end = start + len(newTrack)
			repaired = true
			description = "inserted missing EndOfTrack marker"
		}
		pos = end
	}

	if pos < len(out) {
		out = out[:pos]
		repaired = true
		if description == "" {
			description = "truncated trailing garbage"
		} else {
			description += "; truncated trailing garbage"
		}
	}

	if !repaired {
		return Result{Status: Valid, Data: data}
	}
	return Result{Status: Repaired, Description: description, Data: out}
}

func equalTail(data, marker []byte) bool {
	if len(data) < len(marker) {
		return false
	}
	tail := data[len(data)-len(marker):]
	for i := range marker {
		if tail[i] != marker[i] {
			return false
		}
	}
	return true
}
