package smf

import (
	"bytes"
	"encoding/binary"
)

// Encode emits f as a canonical Standard MIDI File: format is normalized
// to 1, inter-event deltas are recomputed from absolute tick positions,
// each track is terminated with EndOfTrack, and varlen quantities are
// minimal-length. Encode is not a bit-exact round-trip of arbitrary
// inputs.
func Encode(f *File) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("MThd")
	writeUint32(&buf, 6)
	writeUint16(&buf, 1) // format normalized to 1
	writeUint16(&buf, uint16(len(f.Tracks)))
	binary.Write(&buf, binary.BigEndian, f.Division)

	for _, t := range f.Tracks {
		trackBytes := encodeTrack(t)
		buf.WriteString("MTrk")
		writeUint32(&buf, uint32(len(trackBytes)))
		buf.Write(trackBytes)
	}
	return buf.Bytes(), nil
}

// eventOrderClass assigns same-tick ordering priority: tempo first, then
// other meta, then channel-voice, then EndOfTrack last. A tempo meta
// event at tick zero is therefore always written at track start.
func eventOrderClass(e Event) int {
	switch e.Type {
	case MetaEndOfTrack:
		return 3
	case MetaTempo:
		return 0
	case MetaTimeSignature, MetaKeySignature, MetaTrackName, MetaText, MetaOther:
		return 1
	default:
		return 2
	}
}

func encodeTrack(t Track) []byte {
	events := make([]Event, 0, len(t.Events)+1)
	for _, e := range t.Events {
		if e.Type != MetaEndOfTrack {
			events = append(events, e)
		}
	}
	// stable sort by (tick, order class) — insertion sort is adequate:
	// tracks are small and already nearly tick-ordered from the parser.
	for i := 1; i < len(events); i++ {
		j := i
		for j > 0 && lessEvent(events[j], events[j-1]) {
			events[j], events[j-1] = events[j-1], events[j]
			j--
		}
	}

	var buf bytes.Buffer
	var prevTick uint64
	for _, e := range events {
		delta := uint32(e.Tick - prevTick)
		buf.Write(WriteVarLen(delta))
		buf.Write(encodeEventBody(e))
		prevTick = e.Tick
	}
	// Always terminate with EndOfTrack, delta 0 from the last event.
	buf.Write(WriteVarLen(0))
	buf.Write([]byte{0xFF, 0x2F, 0x00})
	return buf.Bytes()
}

func lessEvent(a, b Event) bool {
	if a.Tick != b.Tick {
		return a.Tick < b.Tick
	}
	return eventOrderClass(a) < eventOrderClass(b)
}

func encodeEventBody(e Event) []byte {
	switch e.Type {
	case MetaTempo:
		payload := []byte{
			byte(e.TempoMicrosPerQtr >> 16),
			byte(e.TempoMicrosPerQtr >> 8),
			byte(e.TempoMicrosPerQtr),
		}
		return metaBytes(0x51, payload)
	case MetaTimeSignature:
		denomPow := logBase2(e.TimeSigDenominator)
		payload := []byte{byte(e.TimeSigNumerator), denomPow, byte(e.TimeSigClocksPerMT), byte(e.TimeSig32ndsPerQtr)}
		return metaBytes(0x58, payload)
	case MetaKeySignature:
		minor := byte(0)
		if e.KeyIsMinor {
			minor = 1
		}
		return metaBytes(0x59, []byte{byte(e.KeySharpsFlats), minor})
	case MetaTrackName:
		return metaBytes(0x03, []byte(e.Text))
	case MetaText:
		return metaBytes(e.MetaType, []byte(e.Text))
	case MetaOther:
		return metaBytes(e.MetaType, e.RawData)
	case SysEx:
		var buf bytes.Buffer
		buf.WriteByte(0xF0)
		buf.Write(WriteVarLen(uint32(len(e.SysExData))))
		buf.Write(e.SysExData)
		return buf.Bytes()
	default: // channel voice
		var buf bytes.Buffer
		status := channelVoiceStatusByte(e.Type) | byte(e.Channel&0x0F)
		buf.WriteByte(status)
		switch channelVoiceDataBytes(status & 0xF0) {
		case 1:
			buf.WriteByte(byte(e.Data1))
		case 2:
			buf.WriteByte(byte(e.Data1))
			buf.WriteByte(byte(e.Data2))
		}
		return buf.Bytes()
	}
}

func channelVoiceStatusByte(t EventType) byte {
	switch t {
	case NoteOff:
		return 0x80
	case NoteOn:
		return 0x90
	case PolyAftertouch:
		return 0xA0
	case ControlChange:
		return 0xB0
	case ProgramChange:
		return 0xC0
	case ChannelPressure:
		return 0xD0
	case PitchBend:
		return 0xE0
	}
	return 0x80
}

func metaBytes(metaType byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(0xFF)
	buf.WriteByte(metaType)
	buf.Write(WriteVarLen(uint32(len(payload))))
	buf.Write(payload)
	return buf.Bytes()
}

func logBase2(n int) byte {
	var p byte
	for n > 1 {
		n >>= 1
		p++
	}
	return p
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}
