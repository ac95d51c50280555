package analysis

import (
	"fmt"
	"strings"
)

// gmProgramNames is the General MIDI program table, indexed by the
// 0-based program number carried in a ProgramChange event.
var gmProgramNames = [128]string{
	"Acoustic Grand Piano", "Bright Acoustic Piano", "Electric Grand Piano", "Honky-tonk Piano",
	"Electric Piano 1", "Electric Piano 2", "Harpsichord", "Clavinet",
	"Celesta", "Glockenspiel", "Music Box", "Vibraphone",
	"Marimba", "Xylophone", "Tubular Bells", "Dulcimer",
	"Drawbar Organ", "Percussive Organ", "Rock Organ", "Church Organ",
	"Reed Organ", "Accordion", "Harmonica", "Tango Accordion",
	"Acoustic Guitar (nylon)", "Acoustic Guitar (steel)", "Electric Guitar (jazz)", "Electric Guitar (clean)",
	"Electric Guitar (muted)", "Overdriven Guitar", "Distortion Guitar", "Guitar Harmonics",
	"Acoustic Bass", "Electric Bass (finger)", "Electric Bass (pick)", "Fretless Bass",
	"Slap Bass 1", "Slap Bass 2", "Synth Bass 1", "Synth Bass 2",
	"Violin", "Viola", "Cello", "Contrabass",
	"Tremolo Strings", "Pizzicato Strings", "Orchestral Harp", "Timpani",
	"String Ensemble 1", "String Ensemble 2", "SynthStrings 1", "SynthStrings 2",
	"Choir Aahs", "Voice Oohs", "Synth Voice", "Orchestra Hit",
	"Trumpet", "Trombone", "Tuba", "Muted Trumpet",
	"French Horn", "Brass Section", "Synth Brass 1", "Synth Brass 2",
	"Soprano Sax", "Alto Sax", "Tenor Sax", "Baritone Sax",
	"Oboe", "English Horn", "Bassoon", "Clarinet",
	"Piccolo", "Flute", "Recorder", "Pan Flute",
	"Blown Bottle", "Shakuhachi", "Whistle", "Ocarina",
	"Lead 1 (square)", "Lead 2 (sawtooth)", "Lead 3 (calliope)", "Lead 4 (chiff)",
	"Lead 5 (charang)", "Lead 6 (voice)", "Lead 7 (fifths)", "Lead 8 (bass+lead)",
	"Pad 1 (new age)", "Pad 2 (warm)", "Pad 3 (polysynth)", "Pad 4 (choir)",
	"Pad 5 (bowed)", "Pad 6 (metallic)", "Pad 7 (halo)", "Pad 8 (sweep)",
	"FX 1 (train)", "FX 2 (soundtrack)", "FX 3 (crystal)", "FX 4 (atmosphere)",
	"FX 5 (brightness)", "FX 6 (goblins)", "FX 7 (echoes)", "FX 8 (sci-fi)",
	"Sitar", "Banjo", "Shamisen", "Koto",
	"Kalimba", "Bagpipe", "Fiddle", "Shanai",
	"Tinkle Bell", "Agogo", "Steel Drums", "Woodblock",
	"Taiko Drum", "Melodic Tom", "Synth Drum", "Reverse Cymbal",
	"Guitar Fret Noise", "Breath Noise", "Seashore", "Bird Tweet",
	"Telephone Ring", "Helicopter", "Applause", "Gunshot",
}

// ProgramName looks up the General MIDI instrument name for a 0-based
// program number in [0,127].
func ProgramName(program int) (string, error) {
	if program < 0 || program >= len(gmProgramNames) {
		return "", fmt.Errorf("%d is not a valid GM program number", program)
	}
	return gmProgramNames[program], nil
}

// gmFamilyBoundaries partitions the 128 GM programs into the 16 melodic
// instrument families, per the General MIDI 1 sound set specification's
// contiguous 8-program family blocks. The "drums" family is not in this
// table: rollUpInstruments assigns it by channel.
var gmFamilyBoundaries = []struct {
	upTo   int // inclusive upper program bound for this family
	family string
}{
	{7, "piano"}, {15, "chromatic_percussion"}, {23, "organ"}, {31, "guitar"},
	{39, "bass"}, {47, "strings"}, {55, "ensemble"}, {63, "brass"},
	{71, "reed"}, {79, "pipe"}, {87, "synth_lead"}, {95, "synth_pad"},
	{103, "synth_effects"}, {111, "ethnic"}, {119, "percussive"}, {127, "sound_effects"},
}

// ProgramFamily returns the instrument family for a 0-based GM program
// number. Channel 10 (0-indexed 9) is conventionally drums regardless
// of its program number; callers check the channel before falling back
// to this lookup.
func ProgramFamily(program int) string {
	for _, b := range gmFamilyBoundaries {
		if program <= b.upTo {
			return b.family
		}
	}
	return "sound_effects"
}

// fileNameToken returns a clean, lowercase, space-free token for name,
// suitable for use inside a canonicalized filename suffix, e.g.
// "FX 4 (atmosphere)" -> "fx_4_atmosphere".
func fileNameToken(name string) string {
	clean := strings.ToLower(name)
	clean = strings.NewReplacer("(", "", ")", "", " ", "_").Replace(clean)
	return clean
}
