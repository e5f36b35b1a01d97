package wave

// ChunkSummary is the extrema of one completed chunk.
type ChunkSummary struct {
	Index  int
	Top    float64
	Bottom float64
}

// Summarizer folds a stream of samples into NumChunks min/max pairs. The
// buffer length must be known up front so chunk boundaries are fixed; frames
// past the last full chunk are folded into the final chunk.
type Summarizer struct {
	chunkSize int
	index     int
	count     int
	lo, hi    float64
	done      bool
}

// NewSummarizer prepares a summarizer for a buffer of totalFrames samples.
func NewSummarizer(totalFrames int) *Summarizer {
	size := totalFrames / NumChunks
	if size < 1 {
		size = 1
	}
	s := &Summarizer{chunkSize: size}
	s.resetExtrema()
	return s
}

func (s *Summarizer) ChunkSize() int { return s.chunkSize }

// Write consumes samples and returns the chunks completed by them.
func (s *Summarizer) Write(samples []float32) []ChunkSummary {
	if s.done {
		return nil
	}
	var out []ChunkSummary
	for _, v := range samples {
		f := float64(v)
		s.lo = min(s.lo, f)
		s.hi = max(s.hi, f)
		s.count++
		if s.count >= s.chunkSize && s.index < NumChunks-1 {
			out = append(out, s.emit())
		}
	}
	return out
}

// Flush emits the pending partial chunk, if any. Further writes are ignored.
func (s *Summarizer) Flush() (ChunkSummary, bool) {
	if s.done {
		return ChunkSummary{}, false
	}
	s.done = true
	if s.count == 0 {
		return ChunkSummary{}, false
	}
	return s.emit(), true
}

func (s *Summarizer) emit() ChunkSummary {
	c := ChunkSummary{Index: s.index, Top: s.hi, Bottom: s.lo}
	s.index++
	s.count = 0
	s.resetExtrema()
	return c
}

func (s *Summarizer) resetExtrema() {
	s.lo = 1
	s.hi = -1
}

// Summarize computes every chunk of buf in one pass.
func Summarize(buf []float32) []ChunkSummary {
	s := NewSummarizer(len(buf))
	out := s.Write(buf)
	if last, ok := s.Flush(); ok {
		out = append(out, last)
	}
	return out
}

// FromSamples returns a wave whose chunks describe buf, keeping sel.
func FromSamples(buf []float32, sel Selection) Wave {
	w := New()
	w.selection = sel
	for _, c := range Summarize(buf) {
		w = w.SetChunk(c.Index, c.Top, c.Bottom)
	}
	return w
}
