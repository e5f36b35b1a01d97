package control

import (
	"math"

	"github.com/cbegin/grainscope/internal/engine"
	"github.com/cbegin/grainscope/internal/wave"
)

// Velocity converts a MIDI velocity to [0,1].
func Velocity(v uint8) float64 {
	return float64(min(v, 127)) / 127
}

// SelectionSizeFromCC maps 0..127 onto 1..MaxSelectionChunks.
func SelectionSizeFromCC(v uint8) int {
	size := int(math.Floor(float64(min(v, 127))/127*wave.MaxSelectionChunks)) + 1
	return min(size, wave.MaxSelectionChunks)
}

// GrainCoeffFromCC maps 0..127 linearly onto the grain duration coefficient
// range.
func GrainCoeffFromCC(v uint8) float64 {
	span := engine.MaxGrainDurationCoeff - engine.MinGrainDurationCoeff
	return engine.MinGrainDurationCoeff + float64(min(v, 127))/127*span
}

// FilterCutoffFromCC maps 0..127 exponentially onto the cutoff range.
func FilterCutoffFromCC(v uint8) float64 {
	ratio := engine.MaxFilterCutoff / engine.MinFilterCutoff
	return engine.MinFilterCutoff * math.Pow(ratio, float64(min(v, 127))/127)
}

// SelectionStartFromBend maps a pitch bend (-8192..8191, centered at 0) onto
// the start positions available to a selection of size chunks.
func SelectionStartFromBend(rel int16, size int) int {
	maxStart := wave.NumChunks - size
	if maxStart <= 0 {
		return 0
	}
	norm := float64(rel) / 8192
	start := int(math.Floor((norm + 1) * float64(maxStart) / 2))
	return max(0, min(maxStart, start))
}
