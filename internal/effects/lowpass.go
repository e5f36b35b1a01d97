package effects

import (
	"math"
	"sync/atomic"
)

// Lowpass is a stereo biquad lowpass (RBJ cookbook, Q 0.707). The cutoff is
// stored atomically so the control loop can move it while the audio thread
// processes; coefficients are recomputed on the audio thread when it changes.
type Lowpass struct {
	sampleRate float64
	q          float64
	cutoff     atomic.Uint64 // float64 bits
	applied    float64

	b0, b1, b2, a1, a2 float64
	xl1, xl2, yl1, yl2 float64
	xr1, xr2, yr1, yr2 float64
}

func NewLowpass(sampleRate int, cutoff float64) *Lowpass {
	lp := &Lowpass{sampleRate: float64(sampleRate), q: math.Sqrt2 / 2}
	lp.SetCutoff(cutoff)
	lp.update(lp.Cutoff())
	return lp
}

// SetCutoff moves the cutoff frequency. Values are clamped below Nyquist.
func (lp *Lowpass) SetCutoff(hz float64) {
	nyquist := lp.sampleRate/2 - 1
	if hz > nyquist {
		hz = nyquist
	}
	if hz < 10 {
		hz = 10
	}
	lp.cutoff.Store(math.Float64bits(hz))
}

func (lp *Lowpass) Cutoff() float64 {
	return math.Float64frombits(lp.cutoff.Load())
}

func (lp *Lowpass) update(hz float64) {
	w0 := 2 * math.Pi * hz / lp.sampleRate
	alpha := math.Sin(w0) / (2 * lp.q)
	cosw := math.Cos(w0)
	a0 := 1 + alpha
	lp.b0 = (1 - cosw) / 2 / a0
	lp.b1 = (1 - cosw) / a0
	lp.b2 = lp.b0
	lp.a1 = -2 * cosw / a0
	lp.a2 = (1 - alpha) / a0
	lp.applied = hz
}

func (lp *Lowpass) Process(l, r float32) (float32, float32) {
	if hz := lp.Cutoff(); hz != lp.applied {
		lp.update(hz)
	}
	xl := float64(l)
	yl := lp.b0*xl + lp.b1*lp.xl1 + lp.b2*lp.xl2 - lp.a1*lp.yl1 - lp.a2*lp.yl2
	lp.xl2, lp.xl1 = lp.xl1, xl
	lp.yl2, lp.yl1 = lp.yl1, yl

	xr := float64(r)
	yr := lp.b0*xr + lp.b1*lp.xr1 + lp.b2*lp.xr2 - lp.a1*lp.yr1 - lp.a2*lp.yr2
	lp.xr2, lp.xr1 = lp.xr1, xr
	lp.yr2, lp.yr1 = lp.yr1, yr
	return float32(yl), float32(yr)
}

func (lp *Lowpass) Reset() {
	lp.xl1, lp.xl2, lp.yl1, lp.yl2 = 0, 0, 0, 0
	lp.xr1, lp.xr2, lp.yr1, lp.yr2 = 0, 0, 0, 0
}
