package render

import (
	"errors"
	"math"
	"testing"

	"github.com/cbegin/grainscope/internal/engine"
	"github.com/cbegin/grainscope/internal/envelope"
	"github.com/cbegin/grainscope/internal/logging"
	"github.com/cbegin/grainscope/internal/sample"
)

const testRate = 8000

func dcBuffer(seconds float64) *sample.Buffer {
	samples := make([]float32, int(seconds*testRate))
	for i := range samples {
		samples[i] = 0.5
	}
	return &sample.Buffer{Samples: samples, SampleRate: testRate}
}

func newTestMixer(t *testing.T) *Mixer {
	t.Helper()
	m, err := NewMixer(testRate, logging.Discard())
	if err != nil {
		t.Fatalf("NewMixer: %v", err)
	}
	m.SetBuffer(dcBuffer(1))
	return m
}

func grainCmd(slot int, id uint64, at, dur float64) engine.GrainCommand {
	return engine.GrainCommand{
		Slot:     slot,
		GrainID:  id,
		At:       at,
		Offset:   0.1,
		Duration: dur,
		Rate:     1,
		Envelope: envelope.Shape(dur, 0.01, 0.01),
		Peak:     1,
	}
}

func peakAbs(samples []float32) float64 {
	var p float64
	for _, s := range samples {
		p = math.Max(p, math.Abs(float64(s)))
	}
	return p
}

func TestNewMixerValidates(t *testing.T) {
	if _, err := NewMixer(0, nil); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestGrainProducesSignalThenSilence(t *testing.T) {
	m := newTestMixer(t)
	if err := m.StartGrain(grainCmd(0, 1, 0, 0.1)); err != nil {
		t.Fatalf("StartGrain: %v", err)
	}
	during := m.Render(testRate / 20) // 50ms
	if peakAbs(during) < 0.3 {
		t.Fatalf("expected signal during grain, peak %v", peakAbs(during))
	}
	m.Render(testRate / 10)
	select {
	case c := <-m.Completions():
		if c.Slot != 0 || c.GrainID != 1 {
			t.Fatalf("unexpected completion %+v", c)
		}
	default:
		t.Fatalf("expected a completion after the grain ended")
	}
	if m.ActiveVoices() != 0 {
		t.Fatalf("voice still active after completion")
	}
	after := m.Render(testRate / 5)
	if peakAbs(after[len(after)/2:]) > 1e-3 {
		t.Fatalf("expected silence after grain, peak %v", peakAbs(after))
	}
}

func TestClockAdvancesWithRendering(t *testing.T) {
	m := newTestMixer(t)
	if m.Now() != 0 {
		t.Fatalf("Now() = %v before rendering", m.Now())
	}
	m.Render(testRate / 2)
	if m.Now() != 0.5 {
		t.Fatalf("Now() = %v, want 0.5", m.Now())
	}
}

func TestFutureGrainWaitsForStart(t *testing.T) {
	m := newTestMixer(t)
	m.StartGrain(grainCmd(3, 7, 0.05, 0.1))
	early := m.Render(testRate / 25) // 40ms
	if peakAbs(early) != 0 {
		t.Fatalf("grain sounded before its start time")
	}
}

func TestStopGrainSilencesWithoutCompletion(t *testing.T) {
	m := newTestMixer(t)
	m.StartGrain(grainCmd(0, 1, 0, 0.5))
	m.Render(100)
	m.StopGrain(0, 2, 0) // wrong id
	if m.ActiveVoices() != 1 {
		t.Fatalf("StopGrain with a stale id stopped the voice")
	}
	m.StopGrain(0, 1, 0)
	if m.ActiveVoices() != 0 {
		t.Fatalf("StopGrain did not stop the voice")
	}
	m.Render(testRate)
	select {
	case c := <-m.Completions():
		t.Fatalf("stopped grain reported completion %+v", c)
	default:
	}
}

func TestMasterGainScalesOutput(t *testing.T) {
	loud := newTestMixer(t)
	quiet := newTestMixer(t)
	quiet.SetMasterGain(0.5)
	loud.StartGrain(grainCmd(0, 1, 0, 0.2))
	quiet.StartGrain(grainCmd(0, 1, 0, 0.2))
	a := peakAbs(loud.Render(testRate / 10))
	b := peakAbs(quiet.Render(testRate / 10))
	if math.Abs(b-a*0.5) > 1e-3 {
		t.Fatalf("half gain peak %v, full gain peak %v", b, a)
	}
	quiet.SetMasterGain(-1)
	if quiet.MasterGain() != 0 {
		t.Fatalf("negative gain should clamp to 0")
	}
}

func TestClosedMixerRejectsGrains(t *testing.T) {
	m := newTestMixer(t)
	m.Close()
	if err := m.StartGrain(grainCmd(0, 1, 0, 0.1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestStartGrainValidates(t *testing.T) {
	m, _ := NewMixer(testRate, logging.Discard())
	if err := m.StartGrain(grainCmd(0, 1, 0, 0.1)); !errors.Is(err, ErrNoBuffer) {
		t.Fatalf("expected ErrNoBuffer, got %v", err)
	}
	m.SetBuffer(dcBuffer(1))
	if err := m.StartGrain(grainCmd(99, 1, 0, 0.1)); err == nil {
		t.Fatalf("expected error for out-of-range slot")
	}
}

func TestPitchedGrainReadsFaster(t *testing.T) {
	m, _ := NewMixer(testRate, logging.Discard())
	ramp := make([]float32, testRate)
	for i := range ramp {
		ramp[i] = float32(i) / float32(len(ramp))
	}
	m.SetBuffer(&sample.Buffer{Samples: ramp, SampleRate: testRate})
	cmd := grainCmd(0, 1, 0, 0.3)
	cmd.Offset = 0
	cmd.Rate = 2
	cmd.Envelope = envelope.Curve{{T: 0, V: 1}, {T: 0, V: 1}, {T: 0.3, V: 1}, {T: 0.3, V: 1}}
	m.SetFilterCutoff(engine.MaxFilterCutoff)
	if err := m.StartGrain(cmd); err != nil {
		t.Fatalf("StartGrain: %v", err)
	}
	out := m.Render(testRate / 10)
	// After 0.1s at double speed the read head is at 0.2s of the ramp.
	last := float64(out[len(out)-2])
	if math.Abs(last-0.2) > 0.05 {
		t.Fatalf("read position value %v, want near 0.2", last)
	}
}
