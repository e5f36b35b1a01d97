package wave

import "testing"

func TestSummarizeCoversEveryChunk(t *testing.T) {
	buf := make([]float32, NumChunks*4+3)
	for i := range buf {
		buf[i] = 0.1
	}
	buf[5] = 0.9  // chunk 1
	buf[6] = -0.7 // chunk 1
	buf[len(buf)-1] = -0.5

	got := Summarize(buf)
	if len(got) != NumChunks {
		t.Fatalf("expected %d chunks, got %d", NumChunks, len(got))
	}
	for i, c := range got {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
	}
	if got[1].Top != float64(float32(0.9)) || got[1].Bottom != float64(float32(-0.7)) {
		t.Fatalf("chunk 1 extrema wrong: %+v", got[1])
	}
	if got[NumChunks-1].Bottom != -0.5 {
		t.Fatalf("remainder frames should fold into last chunk: %+v", got[NumChunks-1])
	}
}

func TestSummarizerIncremental(t *testing.T) {
	s := NewSummarizer(NumChunks * 2)
	if s.ChunkSize() != 2 {
		t.Fatalf("chunk size = %d, want 2", s.ChunkSize())
	}
	out := s.Write([]float32{0.5, -0.25, 0.1})
	if len(out) != 1 || out[0].Index != 0 || out[0].Top != 0.5 || out[0].Bottom != -0.25 {
		t.Fatalf("unexpected first chunk %+v", out)
	}
	last, ok := s.Flush()
	if !ok || last.Index != 1 {
		t.Fatalf("flush should emit the partial chunk, got %+v ok=%v", last, ok)
	}
	if _, ok := s.Flush(); ok {
		t.Fatalf("second flush should emit nothing")
	}
	if out := s.Write([]float32{1}); out != nil {
		t.Fatalf("writes after flush should be ignored")
	}
}

func TestFromSamplesKeepsSelection(t *testing.T) {
	sel := NewSelection(4, 6, 2)
	w := FromSamples(make([]float32, 1000), sel)
	if w.Selection() != sel {
		t.Fatalf("selection not kept: %+v", w.Selection())
	}
	if c, _ := w.Chunk(NumChunks - 1); c.Empty {
		t.Fatalf("last chunk should be populated")
	}
}
