package engine

import (
	"github.com/cbegin/grainscope/internal/bus"
	"github.com/cbegin/grainscope/internal/envelope"
	"github.com/cbegin/grainscope/internal/sample"
	"github.com/cbegin/grainscope/internal/sched"
)

// GrainCommand asks the renderer to play one grain.
type GrainCommand struct {
	Slot    int
	GrainID uint64
	// At is the renderer-clock time the grain starts.
	At float64
	// Offset is the read position in the source buffer, in seconds.
	Offset   float64
	Duration float64
	Rate     float64
	Envelope envelope.Curve
	// Peak scales Envelope; it already includes velocity and attenuation.
	Peak float64
}

// Completion reports that a grain finished sounding.
type Completion struct {
	Slot    int
	GrainID uint64
}

// Renderer is the rendering service grains are dispatched to. Its clock is
// the timeline every grain and timer is scheduled against. StartGrain must
// not block; completions are delivered on the Completions channel and may
// arrive in any order.
type Renderer interface {
	sched.Clock
	SetBuffer(buf *sample.Buffer)
	StartGrain(cmd GrainCommand) error
	StopGrain(slot int, grainID uint64, at float64)
	SetFilterCutoff(hz float64)
	SetMasterGain(gain float64)
	Completions() <-chan Completion
}

// Publisher receives engine notifications. *bus.Bus satisfies it.
type Publisher interface {
	Publish(m bus.Message)
}

type nopPublisher struct{}

func (nopPublisher) Publish(bus.Message) {}
