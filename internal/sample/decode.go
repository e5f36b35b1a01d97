package sample

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// PCM is decoded, interleaved audio before mixdown.
type PCM struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// DecodeFunc decodes a complete stream.
type DecodeFunc func(r io.ReadSeeker) (*PCM, error)

// Registry maps lower-case file extensions (without the dot) to decoders.
type Registry struct {
	decoders map[string]DecodeFunc
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

// DefaultRegistry knows WAV, AIFF, MP3 and Ogg Vorbis.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("wav", DecodeWAV)
	r.Register("wave", DecodeWAV)
	r.Register("aif", DecodeAIFF)
	r.Register("aiff", DecodeAIFF)
	r.Register("mp3", DecodeMP3)
	r.Register("ogg", DecodeVorbis)
	return r
}

func (r *Registry) Register(ext string, fn DecodeFunc) {
	r.decoders[normalizeExt(ext)] = fn
}

// Formats returns the registered extensions, sorted.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Decode(ext string, rs io.ReadSeeker) (*PCM, error) {
	fn, ok := r.decoders[normalizeExt(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	p, err := fn(rs)
	if err != nil {
		return nil, err
	}
	if p.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if p.Frames() == 0 {
		return nil, ErrEmpty
	}
	return p, nil
}

// LoadFile decodes path by extension, mixes it to mono and resamples it to
// targetRate. A targetRate of 0 keeps the file's rate.
func (r *Registry) LoadFile(path string, targetRate int) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := r.Decode(filepath.Ext(path), f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	buf := Mono(p)
	if targetRate > 0 && targetRate != buf.SampleRate {
		buf = Resample(buf, targetRate)
	}
	return buf, nil
}

// Load uses the default registry.
func Load(path string, targetRate int) (*Buffer, error) {
	return DefaultRegistry().LoadFile(path, targetRate)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func intScale(bitDepth int) (float32, error) {
	switch bitDepth {
	case 8:
		return 128, nil
	case 16:
		return 32768, nil
	case 24:
		return 8388608, nil
	case 32:
		return 2147483648, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
}

// wavFormatFloat is the WAVE_FORMAT_IEEE_FLOAT tag, which go-audio does not
// decode.
const wavFormatFloat = 3

func DecodeWAV(r io.ReadSeeker) (*PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat == wavFormatFloat {
		return nil, fmt.Errorf("%w: floating point wav", ErrUnsupportedFormat)
	}
	scale, err := intScale(int(dec.BitDepth))
	if err != nil {
		return nil, err
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	// 8-bit WAV is unsigned.
	bias := 0
	if dec.BitDepth == 8 {
		bias = 128
	}
	out := make([]float32, len(ib.Data))
	for i, v := range ib.Data {
		out[i] = float32(v-bias) / scale
	}
	return &PCM{Samples: out, Channels: int(dec.NumChans), SampleRate: int(dec.SampleRate)}, nil
}

func DecodeAIFF(r io.ReadSeeker) (*PCM, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an aiff file", ErrUnsupportedFormat)
	}
	dec.ReadInfo()
	format := dec.Format()
	if format == nil {
		return nil, fmt.Errorf("%w: aiff without format", ErrUnsupportedFormat)
	}
	scale, err := intScale(int(dec.BitDepth))
	if err != nil {
		return nil, err
	}
	ib := &goaudio.IntBuffer{Data: make([]int, 4096), Format: format}
	var out []float32
	for {
		ib.Data = ib.Data[:cap(ib.Data)]
		n, err := dec.PCMBuffer(ib)
		for _, v := range ib.Data[:n] {
			out = append(out, float32(v)/scale)
		}
		if n == 0 || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("aiff: %w", err)
		}
	}
	return &PCM{Samples: out, Channels: format.NumChannels, SampleRate: format.SampleRate}, nil
}

// DecodeMP3 decodes to the 16-bit little-endian stereo stream go-mp3 produces.
func DecodeMP3(r io.ReadSeeker) (*PCM, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		v := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		out[i] = float32(v) / 32768
	}
	return &PCM{Samples: out, Channels: 2, SampleRate: dec.SampleRate()}, nil
}

func DecodeVorbis(r io.ReadSeeker) (*PCM, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}
	return &PCM{Samples: data, Channels: format.Channels, SampleRate: format.SampleRate}, nil
}
