package sample

import (
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Mono averages the channels of p into a mono buffer.
func Mono(p *PCM) *Buffer {
	ch := p.Channels
	if ch <= 1 {
		out := make([]float32, len(p.Samples))
		copy(out, p.Samples)
		return &Buffer{Samples: out, SampleRate: p.SampleRate}
	}
	frames := p.Frames()
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += p.Samples[i*ch+c]
		}
		out[i] = sum / float32(ch)
	}
	return &Buffer{Samples: out, SampleRate: p.SampleRate}
}

// Resample converts buf to rate with Catmull-Rom interpolation.
func Resample(buf *Buffer, rate int) *Buffer {
	if rate <= 0 || buf.SampleRate == rate || len(buf.Samples) == 0 {
		return buf
	}
	ratio := float64(buf.SampleRate) / float64(rate)
	n := int(math.Ceil(float64(len(buf.Samples)) / ratio))
	out := make([]float32, n)
	at := func(i int) float32 {
		if i < 0 {
			i = 0
		}
		if i >= len(buf.Samples) {
			i = len(buf.Samples) - 1
		}
		return buf.Samples[i]
	}
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		x := float32(pos - float64(idx))
		out[i] = cubic(at(idx-1), at(idx), at(idx+1), at(idx+2), x)
	}
	return &Buffer{Samples: out, SampleRate: rate}
}

func cubic(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	return a0*x*x*x + a1*x*x + a2*x + y1
}

// WriteWAV encodes interleaved float samples as 16-bit PCM.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if channels <= 0 {
		channels = 1
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(math.Round(float64(s) * 32767))
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
