package effects

import "math"

// Limiter keeps dense grain clouds under full scale. Both channels share one
// envelope so the stereo image does not shift under gain reduction.
type Limiter struct {
	threshold float32
	attack    float32 // coefficient
	release   float32 // coefficient
	env       float32
}

// NewLimiter creates a limiter with thresholdDB (e.g. -1) and attack/release
// times in milliseconds.
func NewLimiter(sampleRate int, thresholdDB, attackMs, releaseMs float32) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
	}
}

func (lm *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(float32(math.Abs(float64(l))), float32(math.Abs(float64(r))))
	if peak > lm.env {
		lm.env += lm.attack * (peak - lm.env)
	} else {
		lm.env += lm.release * (peak - lm.env)
	}
	if lm.env <= lm.threshold {
		return l, r
	}
	g := lm.threshold / lm.env
	return l * g, r * g
}

func (lm *Limiter) Reset() { lm.env = 0 }
