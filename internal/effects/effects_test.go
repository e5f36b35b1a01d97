package effects

import (
	"math"
	"testing"
)

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func sine(freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate)))
	}
	return out
}

func TestLowpassPassesLowsAndCutsHighs(t *testing.T) {
	const sr = 48000
	run := func(freq float64) float64 {
		lp := NewLowpass(sr, 500)
		in := sine(freq, sr, sr/2)
		out := make([]float32, len(in))
		for i, s := range in {
			out[i], _ = lp.Process(s, s)
		}
		return rms(out[len(out)/2:]) / rms(in[len(in)/2:])
	}
	if g := run(100); g < 0.9 {
		t.Errorf("100Hz gain = %v, want near unity", g)
	}
	if g := run(8000); g > 0.05 {
		t.Errorf("8kHz gain = %v, want strong attenuation", g)
	}
}

func TestLowpassCutoffClampedBelowNyquist(t *testing.T) {
	lp := NewLowpass(44100, 22050)
	if lp.Cutoff() >= 22050 {
		t.Fatalf("cutoff %v not clamped below Nyquist", lp.Cutoff())
	}
	lp.SetCutoff(0)
	if lp.Cutoff() <= 0 {
		t.Fatalf("cutoff must stay positive")
	}
}

func TestLowpassRetunesOnChange(t *testing.T) {
	lp := NewLowpass(48000, 20000)
	lp.SetCutoff(1000)
	lp.Process(0, 0)
	if lp.applied != 1000 {
		t.Fatalf("coefficients not updated, applied = %v", lp.applied)
	}
}

func TestLimiterReducesLoud(t *testing.T) {
	lm := NewLimiter(48000, -6, 1, 50)
	var l float32
	for i := 0; i < 4800; i++ {
		l, _ = lm.Process(2, 2)
	}
	if l > 0.6 {
		t.Fatalf("limited output %v still above threshold", l)
	}
	lm.Reset()
	if out, _ := lm.Process(0.1, 0.1); out != 0.1 {
		t.Fatalf("quiet signal altered: %v", out)
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	var nilChain *Chain
	if l, r := nilChain.Process(0.5, -0.5); l != 0.5 || r != -0.5 {
		t.Fatalf("nil chain should pass through")
	}
	c := NewChain(NewLimiter(48000, -20, 0.01, 10))
	c.Add(NewLowpass(48000, 1000))
	if c.Len() != 2 {
		t.Fatalf("Len() = %d", c.Len())
	}
	buf := []float32{1, 1, 1, 1}
	c.ProcessInterleaved(buf)
	if buf[0] >= 1 {
		t.Fatalf("chain did not process buffer: %v", buf)
	}
	c.Reset()
}
