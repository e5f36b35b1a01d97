package engine

import (
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cbegin/grainscope/internal/bus"
	"github.com/cbegin/grainscope/internal/grain"
	"github.com/cbegin/grainscope/internal/logging"
	"github.com/cbegin/grainscope/internal/sample"
	"github.com/cbegin/grainscope/internal/sched"
	"github.com/cbegin/grainscope/internal/wave"
)

var (
	// ErrEngineUnavailable is returned when the renderer refuses a grain.
	ErrEngineUnavailable = errors.New("engine: rendering service unavailable")
	// ErrSampleRateMismatch is returned by SetBuffer for buffers that were
	// not converted to the engine rate.
	ErrSampleRateMismatch = errors.New("engine: buffer sample rate does not match engine")
	ErrNoRenderer         = errors.New("engine: renderer is required")
)

// Options carries the engine's collaborators.
type Options struct {
	Renderer  Renderer
	Publisher Publisher
	// Rand drives the start-offset jitter. Nil seeds from the clock.
	Rand   *rand.Rand
	Logger *slog.Logger
}

type heldNote struct {
	rate     float64
	velocity float64
}

// Engine is the granular voice engine. It is driven by a single control
// loop: every method must be called from that loop (or under the caller's
// lock) and none of them block on the renderer.
type Engine struct {
	sampleRate int
	r          Renderer
	pub        Publisher
	rng        *rand.Rand
	log        *slog.Logger

	pool   *grain.Pool
	timers *sched.Queue
	// safety holds each slot's forced-release timer.
	safety [grain.PoolSize]sched.TimerID

	buf    *sample.Buffer
	wave   wave.Wave
	params Params

	noteHeld  bool
	held      heldNote
	loopTimer sched.TimerID
}

// New creates an engine rendering at sampleRate.
func New(sampleRate int, params Params, opts Options) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if opts.Renderer == nil {
		return nil, ErrNoRenderer
	}
	e := &Engine{
		sampleRate: sampleRate,
		r:          opts.Renderer,
		pub:        opts.Publisher,
		rng:        opts.Rand,
		log:        logging.Component(opts.Logger, "engine"),
		pool:       grain.NewPool(),
		timers:     sched.NewQueue(),
		wave:       wave.New(),
	}
	if e.pub == nil {
		e.pub = nopPublisher{}
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.params = params
	e.SetSelection(params.SelectionStart, params.SelectionSize)
	e.SetGrainDurationCoeff(params.GrainDurationCoeff)
	e.SetFilterCutoff(params.FilterCutoff)
	e.SetMasterVolume(params.MasterVolume)
	e.params.Loop = false
	if params.Loop {
		e.LoopOn()
	}
	return e, nil
}

func (e *Engine) SampleRate() int { return e.sampleRate }

// Now returns the renderer clock.
func (e *Engine) Now() float64 { return e.r.Now() }

// Params returns the current settings with the selection folded in.
func (e *Engine) Params() Params {
	p := e.params
	sel := e.wave.Selection()
	p.SelectionStart = sel.Start
	p.SelectionSize = sel.Size
	return p
}

// Wave returns a snapshot of the selection, chunk and cursor state.
func (e *Engine) Wave() wave.Wave { return e.wave }

// Buffer returns the current source buffer, or nil.
func (e *Engine) Buffer() *sample.Buffer { return e.buf }

// SetBuffer stops every sounding grain and then swaps the source buffer.
// No grain started against the old buffer survives the call. A nil buffer
// silences the engine until a new one arrives.
func (e *Engine) SetBuffer(buf *sample.Buffer) error {
	if buf != nil && buf.SampleRate != e.sampleRate {
		return ErrSampleRateMismatch
	}
	e.StopAllGrains()
	e.buf = buf
	e.r.SetBuffer(buf)
	if buf == nil {
		e.wave = e.wave.Reset(true)
		return nil
	}
	e.wave = wave.FromSamples(buf.Samples, e.wave.Selection()).SetFilterCoeff(e.wave.FilterCoeff())
	e.log.Info("buffer set", "seconds", buf.Duration(), "frames", buf.Frames())
	return nil
}

// SetSelection moves the selection; values are clamped into range.
func (e *Engine) SetSelection(start, size int) {
	e.wave = e.wave.UpdateSelection(wave.SelectionUpdate{Start: &start, Size: &size})
}

// UpdateSelection applies a partial selection change.
func (e *Engine) UpdateSelection(u wave.SelectionUpdate) {
	e.wave = e.wave.UpdateSelection(u)
}

// SetGrainDurationCoeff sets the grain length multiplier, clamped to [1,8].
func (e *Engine) SetGrainDurationCoeff(c float64) {
	e.params.GrainDurationCoeff = clamp(c, MinGrainDurationCoeff, MaxGrainDurationCoeff)
}

// SetFilterCutoff sets the output lowpass cutoff in Hz, clamped to [200,22050].
func (e *Engine) SetFilterCutoff(hz float64) {
	hz = clamp(hz, MinFilterCutoff, MaxFilterCutoff)
	e.params.FilterCutoff = hz
	e.wave = e.wave.SetFilterCoeff(FilterCoeff(hz))
	e.r.SetFilterCutoff(hz)
}

// SetMasterVolume sets the output gain, clamped to [0,1].
func (e *Engine) SetMasterVolume(v float64) {
	v = clamp(v, 0, 1)
	e.params.MasterVolume = v
	e.r.SetMasterGain(v)
}

// ActiveGrainCount returns the number of sounding grain voices.
func (e *Engine) ActiveGrainCount() int { return e.pool.Active() }

// StopAllGrains silences every sounding grain immediately.
func (e *Engine) StopAllGrains() {
	now := e.r.Now()
	for _, v := range e.pool.StopAll() {
		e.r.StopGrain(v.Slot, v.ID, now)
		e.finishGrain(v.Slot, v.ID)
	}
}

// GrainEnded handles a renderer completion. Completions for grains that were
// already released, or whose slot now holds a newer grain, are ignored.
func (e *Engine) GrainEnded(slot int, grainID uint64) {
	if e.pool.ReleaseGrain(slot, grainID) {
		e.finishGrain(slot, grainID)
	}
}

func (e *Engine) finishGrain(slot int, grainID uint64) {
	if id := e.safety[slot]; id != 0 {
		e.timers.Cancel(id)
		e.safety[slot] = 0
	}
	e.wave = e.wave.RemoveCursor(grainID)
	e.pub.Publish(bus.CursorEnd{GrainID: grainID})
}

// Tick applies renderer completions, runs due timers and refreshes the
// cursors of sounding grains. The control loop calls it at its tick rate.
func (e *Engine) Tick() {
	e.drainCompletions()
	now := e.r.Now()
	e.timers.RunDue(now)
	e.refreshCursors(now)
	e.wave = e.wave.CleanupExpiredCursors(clockTime(now), wave.MaxCursorAge)
}

func (e *Engine) drainCompletions() {
	ch := e.r.Completions()
	if ch == nil {
		return
	}
	for {
		select {
		case c := <-ch:
			e.GrainEnded(c.Slot, c.GrainID)
		default:
			return
		}
	}
}

func (e *Engine) refreshCursors(now float64) {
	chunkDur := e.chunkDuration()
	if chunkDur <= 0 {
		return
	}
	e.pool.Each(func(v *grain.Voice) {
		elapsed := min(max(now-v.StartTime, 0), v.Duration)
		pos := (v.Offset + elapsed*v.Rate) / chunkDur
		e.wave = e.wave.SetCursor(v.ID, pos, clockTime(now))
		e.pub.Publish(bus.CursorTrigger{GrainID: v.ID, Position: pos})
	})
}

func (e *Engine) chunkDuration() float64 {
	return e.buf.Duration() / wave.NumChunks
}

// clockTime places a renderer-clock reading on the time.Time axis used for
// cursor ages.
func clockTime(sec float64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(sec * float64(time.Second)))
}
