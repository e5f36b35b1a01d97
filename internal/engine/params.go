package engine

import (
	"math"

	"github.com/cbegin/grainscope/internal/envelope"
)

const (
	// MinGrainDuration is the shortest grain the engine will play, in seconds.
	MinGrainDuration = 0.04
	// Attenuation is applied to every grain's peak gain.
	Attenuation = 0.25

	MinGrainDurationCoeff = 1.0
	MaxGrainDurationCoeff = 8.0
	MinFilterCutoff       = 200.0
	MaxFilterCutoff       = 22050.0

	DefaultVelocity = 0.8
)

// Params holds the performer-facing engine settings.
type Params struct {
	SelectionStart     int
	SelectionSize      int
	GrainDurationCoeff float64
	FilterCutoff       float64
	MasterVolume       float64
	Loop               bool

	Attack  float64
	Release float64
	// ReleaseGrace is how long past its scheduled end a grain may go
	// without a completion before the engine releases it anyway.
	// Zero disables the forced release.
	ReleaseGrace float64
}

func DefaultParams() Params {
	return Params{
		SelectionStart:     0,
		SelectionSize:      30,
		GrainDurationCoeff: 1,
		FilterCutoff:       MaxFilterCutoff,
		MasterVolume:       0.7,
		Attack:             envelope.DefaultAttack,
		Release:            envelope.DefaultRelease,
		ReleaseGrace:       1,
	}
}

// FilterCoeff maps a cutoff frequency onto [0,1] on the same exponential
// curve the controller uses.
func FilterCoeff(hz float64) float64 {
	hz = clamp(hz, MinFilterCutoff, MaxFilterCutoff)
	return math.Log(hz/MinFilterCutoff) / math.Log(MaxFilterCutoff/MinFilterCutoff)
}

// CutoffForCoeff is the inverse of FilterCoeff.
func CutoffForCoeff(c float64) float64 {
	c = clamp(c, 0, 1)
	return MinFilterCutoff * math.Pow(MaxFilterCutoff/MinFilterCutoff, c)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
