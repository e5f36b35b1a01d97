package grain

// PoolSize is the fixed number of grain voices.
const PoolSize = 32

// Voice is one reusable grain slot. Voices are preallocated by the pool and
// recycled; callers must not retain a *Voice across a release.
type Voice struct {
	// Slot is the voice's fixed position in the pool.
	Slot int
	// ID identifies the grain currently (or most recently) held by the slot.
	// Together with Slot it is the renderer's handle for the grain.
	ID        uint64
	Active    bool
	StartTime float64
	// Offset is where in the source buffer the grain starts reading, in seconds.
	Offset   float64
	Duration float64
	Rate     float64
}

// Params describes a grain being placed into a voice.
type Params struct {
	StartTime float64
	Offset    float64
	Duration  float64
	Rate      float64
}

// Pool is a fixed set of grain voices with first-idle allocation.
type Pool struct {
	voices [PoolSize]Voice
	active int
	nextID uint64
}

func NewPool() *Pool {
	p := &Pool{}
	for i := range p.voices {
		p.voices[i].Slot = i
	}
	return p
}

// Allocate returns the first idle voice, or false when every voice is sounding.
func (p *Pool) Allocate() (*Voice, bool) {
	for i := range p.voices {
		if !p.voices[i].Active {
			return &p.voices[i], true
		}
	}
	return nil, false
}

// Activate marks v as sounding with params and stamps a fresh grain id.
func (p *Pool) Activate(v *Voice, params Params) uint64 {
	if !v.Active {
		p.active++
	}
	p.nextID++
	v.ID = p.nextID
	v.Active = true
	v.StartTime = params.StartTime
	v.Offset = params.Offset
	v.Duration = params.Duration
	v.Rate = params.Rate
	return v.ID
}

// Release returns v to the idle set. Releasing an idle voice is a no-op.
func (p *Pool) Release(v *Voice) bool {
	if v == nil || !v.Active {
		return false
	}
	v.Active = false
	p.active--
	return true
}

// ReleaseGrain releases slot only while it still holds grain id, so a late
// completion for a recycled slot leaves the new grain alone.
func (p *Pool) ReleaseGrain(slot int, id uint64) bool {
	v := p.Voice(slot)
	if v == nil || v.ID != id {
		return false
	}
	return p.Release(v)
}

// Voice returns the voice at slot, or nil when out of range.
func (p *Pool) Voice(slot int) *Voice {
	if slot < 0 || slot >= PoolSize {
		return nil
	}
	return &p.voices[slot]
}

// StopAll releases every sounding voice and returns the grains that were stopped.
func (p *Pool) StopAll() []Voice {
	var stopped []Voice
	for i := range p.voices {
		v := &p.voices[i]
		if v.Active {
			stopped = append(stopped, *v)
			p.Release(v)
		}
	}
	return stopped
}

// Active returns the number of sounding voices.
func (p *Pool) Active() int { return p.active }

// Each calls fn for every sounding voice in slot order.
func (p *Pool) Each(fn func(v *Voice)) {
	for i := range p.voices {
		if p.voices[i].Active {
			fn(&p.voices[i])
		}
	}
}
