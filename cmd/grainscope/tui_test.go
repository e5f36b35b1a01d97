package main

import (
	"strings"
	"testing"
	"time"

	"github.com/cbegin/grainscope/internal/bus"
	"github.com/cbegin/grainscope/internal/wave"
)

func TestRenderWaveFillsFullScaleChunks(t *testing.T) {
	w := wave.New()
	for i := 0; i < wave.NumChunks; i++ {
		w = w.SetChunk(i, 1, -1)
	}
	out := renderWave(w, wave.NumChunks, 4)
	if got := strings.Count(out, "█"); got != 4*wave.NumChunks {
		t.Fatalf("filled cells = %d, want %d", got, 4*wave.NumChunks)
	}
	if renderWave(w, 0, 4) != "" {
		t.Fatalf("zero width should render nothing")
	}
}

func TestRenderWaveEmptyShowsCenterLine(t *testing.T) {
	out := renderWave(wave.New(), 20, 5)
	if strings.Contains(out, "█") {
		t.Fatalf("empty waveform drew blocks")
	}
	if got := strings.Count(out, "─"); got != 20 {
		t.Fatalf("center line cells = %d, want 20", got)
	}
}

func TestRenderCursorsMarksColumns(t *testing.T) {
	now := time.Unix(0, 0)
	w := wave.New().SetCursor(1, 75, now).SetCursor(2, 0, now)
	out := renderCursors(w, 30)
	if got := strings.Count(out, "▲"); got != 2 {
		t.Fatalf("cursor marks = %d, want 2", got)
	}
}

func TestActivityLogKeepsRecentLines(t *testing.T) {
	a := newActivityLog(2)
	a.Handle(bus.NoteOn{Note: 60, Velocity: 1})
	a.Handle(bus.NoteOff{Note: 60})
	a.Handle(bus.LoopChanged{On: true})
	a.Handle(bus.CursorEnd{GrainID: 3})
	lines := a.Lines()
	if len(lines) != 2 || lines[1] != "loop on" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestMeterBar(t *testing.T) {
	if got := meterBar(0.5, 10); got != "▮▮▮▮▮·····" {
		t.Fatalf("meterBar(0.5) = %q", got)
	}
	if got := meterBar(3, 4); got != "▮▮▮▮" {
		t.Fatalf("meterBar clipped = %q", got)
	}
}
