package render

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/grainscope/internal/effects"
	"github.com/cbegin/grainscope/internal/engine"
	"github.com/cbegin/grainscope/internal/envelope"
	"github.com/cbegin/grainscope/internal/grain"
	"github.com/cbegin/grainscope/internal/logging"
	"github.com/cbegin/grainscope/internal/sample"
)

var (
	// ErrClosed is returned by StartGrain after Close.
	ErrClosed   = errors.New("render: mixer closed")
	ErrNoBuffer = errors.New("render: no buffer loaded")
)

// completionBuffer bounds undelivered completions. The engine's forced
// release covers any completion dropped when it fills.
const completionBuffer = 256

type voice struct {
	active     bool
	grainID    uint64
	startFrame int64
	endFrame   int64
	offset     float64
	rate       float64
	curve      envelope.Curve
	peak       float64
}

// Mixer is the software rendering service. The control loop schedules grains
// through the engine.Renderer methods and the audio thread pulls interleaved
// stereo frames through Process. Time advances only as frames are rendered.
type Mixer struct {
	sampleRate int
	log        *slog.Logger

	mu     sync.Mutex
	voices [grain.PoolSize]voice
	buf    *sample.Buffer
	closed bool

	frames     atomic.Int64
	masterGain atomic.Uint64 // float64 bits
	lowpass    *effects.Lowpass
	fx         *effects.Chain
	done       chan engine.Completion
}

// NewMixer creates a mixer rendering at sampleRate.
func NewMixer(sampleRate int, logger *slog.Logger) (*Mixer, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	m := &Mixer{
		sampleRate: sampleRate,
		log:        logging.Component(logger, "render"),
		lowpass:    effects.NewLowpass(sampleRate, engine.MaxFilterCutoff),
		done:       make(chan engine.Completion, completionBuffer),
	}
	m.fx = effects.NewChain(m.lowpass, effects.NewLimiter(sampleRate, -1, 1, 80))
	m.masterGain.Store(math.Float64bits(1))
	return m, nil
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// Now returns the time of the next frame to be rendered, in seconds.
func (m *Mixer) Now() float64 {
	return float64(m.frames.Load()) / float64(m.sampleRate)
}

func (m *Mixer) SetBuffer(buf *sample.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = buf
}

func (m *Mixer) StartGrain(cmd engine.GrainCommand) error {
	if cmd.Slot < 0 || cmd.Slot >= grain.PoolSize {
		return fmt.Errorf("render: slot %d out of range", cmd.Slot)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.buf == nil {
		return ErrNoBuffer
	}
	sr := float64(m.sampleRate)
	start := int64(math.Round(cmd.At * sr))
	if now := m.frames.Load(); start < now {
		start = now
	}
	m.voices[cmd.Slot] = voice{
		active:     true,
		grainID:    cmd.GrainID,
		startFrame: start,
		endFrame:   start + int64(math.Ceil(cmd.Duration*sr)),
		offset:     cmd.Offset,
		rate:       cmd.Rate,
		curve:      cmd.Envelope,
		peak:       cmd.Peak,
	}
	return nil
}

// StopGrain silences the grain immediately. No completion is reported for it.
func (m *Mixer) StopGrain(slot int, grainID uint64, at float64) {
	if slot < 0 || slot >= grain.PoolSize {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v := &m.voices[slot]; v.active && v.grainID == grainID {
		v.active = false
	}
}

func (m *Mixer) SetFilterCutoff(hz float64) { m.lowpass.SetCutoff(hz) }

func (m *Mixer) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	m.masterGain.Store(math.Float64bits(gain))
}

func (m *Mixer) MasterGain() float64 {
	return math.Float64frombits(m.masterGain.Load())
}

func (m *Mixer) Completions() <-chan engine.Completion { return m.done }

// ActiveVoices returns how many grains are currently rendering.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.voices {
		if m.voices[i].active {
			n++
		}
	}
	return n
}

// Close makes further StartGrain calls fail with ErrClosed and silences
// every voice.
func (m *Mixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for i := range m.voices {
		m.voices[i].active = false
	}
	return nil
}

// Process renders len(dst)/2 interleaved stereo frames.
func (m *Mixer) Process(dst []float32) {
	frames := len(dst) / 2
	if frames == 0 {
		return
	}
	m.mu.Lock()
	base := m.frames.Load()
	buf := m.buf
	srcRate := 0.0
	if buf != nil {
		srcRate = float64(buf.SampleRate)
	}
	sr := float64(m.sampleRate)
	gain := float32(m.MasterGain())

	for i := 0; i < frames; i++ {
		frame := base + int64(i)
		var sum float64
		for slot := range m.voices {
			v := &m.voices[slot]
			if !v.active || frame < v.startFrame {
				continue
			}
			if frame >= v.endFrame {
				v.active = false
				m.complete(slot, v.grainID)
				continue
			}
			if buf == nil {
				continue
			}
			t := float64(frame-v.startFrame) / sr
			pos := (v.offset + t*v.rate) * srcRate
			sum += float64(buf.At(pos)) * v.curve.ValueAt(t) * v.peak
		}
		s := float32(sum)
		l, r := m.fx.Process(s, s)
		dst[2*i] = l * gain
		dst[2*i+1] = r * gain
	}
	m.frames.Add(int64(frames))
	m.mu.Unlock()
}

func (m *Mixer) complete(slot int, grainID uint64) {
	select {
	case m.done <- engine.Completion{Slot: slot, GrainID: grainID}:
	default:
		m.log.Warn("completion queue full", "slot", slot, "grain", grainID)
	}
}

// Render produces frames of interleaved stereo output, advancing the clock.
func (m *Mixer) Render(frames int) []float32 {
	out := make([]float32, frames*2)
	m.Process(out)
	return out
}
