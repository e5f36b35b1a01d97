package pitch

import "math"

// CenterNote is the MIDI note that plays a grain at its recorded speed.
const CenterNote = 60

// semitoneRatios holds the equal-tempered ratios for one octave above the
// center note. The values are used as-is rather than recomputed with
// math.Pow so that rates match the hardware instrument exactly.
var semitoneRatios = [12]float64{
	1,
	1.0594630943591,
	1.1224620483089,
	1.1892071150019,
	1.2599210498937,
	1.3348398541685,
	1.4142135623711,
	1.4983070768743,
	1.5874010519653,
	1.6817928305039,
	1.7817974362766,
	1.8877486253586,
}

// MidiRatio returns the playback-rate multiplier for a MIDI note relative to
// CenterNote. Notes outside 0..127 are clamped.
func MidiRatio(note int) float64 {
	if note < 0 {
		note = 0
	}
	if note > 127 {
		note = 127
	}
	d := note - CenterNote
	if d < 0 {
		down := -d
		return math.Pow(0.5, float64(down/12)) / semitoneRatios[down%12]
	}
	return math.Pow(2, float64(d/12)) * semitoneRatios[d%12]
}
