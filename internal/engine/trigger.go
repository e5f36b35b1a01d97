package engine

import (
	"fmt"

	"github.com/cbegin/grainscope/internal/bus"
	"github.com/cbegin/grainscope/internal/envelope"
	"github.com/cbegin/grainscope/internal/grain"
	"github.com/cbegin/grainscope/internal/wave"
)

// NoteOn starts playing at rate (see pitch.MidiRatio) and velocity in [0,1].
// Outside loop mode a single grain fires; in loop mode a grain fires now and
// the loop timer is armed. Without a buffer NoteOn does nothing.
func (e *Engine) NoteOn(rate, velocity float64) error {
	if e.buf == nil {
		return nil
	}
	e.noteHeld = true
	e.held = heldNote{rate: rate, velocity: clamp(velocity, 0, 1)}
	if e.params.Loop {
		return e.startLoop()
	}
	return e.trigger(e.held.rate, e.held.velocity)
}

// NoteOff stops future loop grains. Grains already sounding play out.
func (e *Engine) NoteOff() {
	e.noteHeld = false
	e.disarmLoop()
}

// Retune changes the rate and velocity used by upcoming loop grains while a
// note is held.
func (e *Engine) Retune(rate, velocity float64) {
	if !e.noteHeld {
		return
	}
	e.held = heldNote{rate: rate, velocity: clamp(velocity, 0, 1)}
}

// NoteHeld reports whether a note is currently held.
func (e *Engine) NoteHeld() bool { return e.noteHeld }

// LoopOn enables loop mode. If a note is held the loop starts immediately
// with that note's rate and velocity. Calling it while looping is a no-op.
func (e *Engine) LoopOn() error {
	if e.params.Loop {
		return nil
	}
	e.params.Loop = true
	e.pub.Publish(bus.LoopChanged{On: true})
	if e.noteHeld && e.buf != nil {
		return e.startLoop()
	}
	return nil
}

// LoopOff disables loop mode and disarms the loop timer.
func (e *Engine) LoopOff() {
	if !e.params.Loop {
		return
	}
	e.params.Loop = false
	e.disarmLoop()
	e.pub.Publish(bus.LoopChanged{On: false})
}

// LoopPeriod is the interval between loop grains for the current selection
// and grain duration coefficient.
func (e *Engine) LoopPeriod() float64 {
	return e.selectionDuration() / e.params.GrainDurationCoeff
}

// GrainDuration is the length of the next grain.
func (e *Engine) GrainDuration() float64 {
	size := float64(e.wave.Selection().Size)
	return max(MinGrainDuration, e.chunkDuration()*size*e.params.GrainDurationCoeff)
}

func (e *Engine) selectionDuration() float64 {
	size := float64(e.wave.Selection().Size)
	return max(MinGrainDuration, e.chunkDuration()*size)
}

func (e *Engine) startLoop() error {
	e.disarmLoop()
	now := e.r.Now()
	err := e.trigger(e.held.rate, e.held.velocity)
	e.loopTimer = e.timers.After(now, e.LoopPeriod(), e.loopTick)
	return err
}

func (e *Engine) disarmLoop() {
	if e.loopTimer != 0 {
		e.timers.Cancel(e.loopTimer)
		e.loopTimer = 0
	}
}

// loopTick fires one loop grain and arms the next tick. The next fire time is
// anchored to this tick's scheduled time and uses the period as of now, so
// parameter edits only affect the following interval.
func (e *Engine) loopTick(at float64) {
	e.loopTimer = 0
	if !e.params.Loop || !e.noteHeld || e.buf == nil {
		return
	}
	if err := e.trigger(e.held.rate, e.held.velocity); err != nil {
		e.log.Warn("loop grain not dispatched", "error", err)
	}
	period := e.LoopPeriod()
	next := at + period
	now := e.r.Now()
	if next < now-period {
		e.log.Debug("loop fell behind, resyncing", "late", now-at)
		next = now + period
	}
	e.loopTimer = e.timers.At(next, e.loopTick)
}

// trigger places one grain into a free voice and dispatches it. A full pool
// drops the grain silently.
func (e *Engine) trigger(rate, velocity float64) error {
	if e.buf == nil {
		return nil
	}
	v, ok := e.pool.Allocate()
	if !ok {
		e.log.Debug("grain dropped, all voices busy", "active", e.pool.Active())
		return nil
	}

	now := e.r.Now()
	sel := e.wave.Selection()
	chunkDur := e.chunkDuration()
	duration := e.GrainDuration()
	sr := float64(e.sampleRate)
	jitter := e.rng.Float64() * (sr / 100) / sr
	offset := float64(sel.Start)*chunkDur + jitter

	id := e.pool.Activate(v, grain.Params{StartTime: now, Offset: offset, Duration: duration, Rate: rate})
	cmd := GrainCommand{
		Slot:     v.Slot,
		GrainID:  id,
		At:       now,
		Offset:   offset,
		Duration: duration,
		Rate:     rate,
		Envelope: envelope.Shape(duration, e.params.Attack, e.params.Release),
		Peak:     velocity * Attenuation,
	}
	if err := e.r.StartGrain(cmd); err != nil {
		e.pool.Release(v)
		return fmt.Errorf("%w: %w", ErrEngineUnavailable, err)
	}

	if e.params.ReleaseGrace > 0 {
		slot := v.Slot
		e.safety[slot] = e.timers.After(now, duration+e.params.ReleaseGrace, func(float64) {
			e.safety[slot] = 0
			if e.pool.ReleaseGrain(slot, id) {
				e.log.Warn("grain completion missing, forcing release", "slot", slot, "grain", id)
				e.r.StopGrain(slot, id, e.r.Now())
				e.finishGrain(slot, id)
			}
		})
	}

	pos := offset / chunkDur
	e.wave = e.wave.SetCursor(id, pos, clockTime(now))
	e.pub.Publish(bus.CursorTrigger{GrainID: id, Position: min(pos, wave.NumChunks-1)})
	return nil
}
