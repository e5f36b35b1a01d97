package sample

import "errors"

var (
	ErrEmpty               = errors.New("sample: buffer has no frames")
	ErrUnsupportedFormat   = errors.New("sample: unsupported format")
	ErrInvalidSampleRate   = errors.New("sample: sample rate must be positive")
	ErrUnsupportedBitDepth = errors.New("sample: unsupported bit depth")
)

// Buffer is mono PCM audio normalized to [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// NewBuffer validates and wraps samples.
func NewBuffer(samples []float32, sampleRate int) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

func (b *Buffer) Frames() int { return len(b.Samples) }

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.SampleRate)
}

// At returns the sample at fractional frame position pos using linear
// interpolation. Positions outside the buffer read as silence.
func (b *Buffer) At(pos float64) float32 {
	if pos < 0 {
		return 0
	}
	i := int(pos)
	if i >= len(b.Samples) {
		return 0
	}
	s0 := b.Samples[i]
	if i+1 >= len(b.Samples) {
		return s0
	}
	frac := float32(pos - float64(i))
	return s0 + (b.Samples[i+1]-s0)*frac
}
