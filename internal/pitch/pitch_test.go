package pitch

import (
	"math"
	"testing"
)

func TestMidiRatioCenter(t *testing.T) {
	if got := MidiRatio(CenterNote); got != 1 {
		t.Fatalf("MidiRatio(60) = %v, want 1", got)
	}
}

func TestMidiRatioOctaves(t *testing.T) {
	cases := []struct {
		note int
		want float64
	}{
		{72, 2},
		{84, 4},
		{48, 0.5},
		{36, 0.25},
		{0, 0.03125},
	}
	for _, tc := range cases {
		if got := MidiRatio(tc.note); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("MidiRatio(%d) = %v, want %v", tc.note, got, tc.want)
		}
	}
}

func TestMidiRatioOctaveDoubling(t *testing.T) {
	for n := 0; n+12 <= 127; n++ {
		lo, hi := MidiRatio(n), MidiRatio(n+12)
		if math.Abs(hi-2*lo) > 1e-9 {
			t.Fatalf("MidiRatio(%d)=%v not double MidiRatio(%d)=%v", n+12, hi, n, lo)
		}
	}
}

func TestMidiRatioMonotonic(t *testing.T) {
	prev := MidiRatio(0)
	for n := 1; n <= 127; n++ {
		r := MidiRatio(n)
		if r <= prev {
			t.Fatalf("ratio not increasing at note %d: %v <= %v", n, r, prev)
		}
		prev = r
	}
}

func TestMidiRatioClampsRange(t *testing.T) {
	if MidiRatio(-5) != MidiRatio(0) {
		t.Fatalf("negative note should clamp to 0")
	}
	if MidiRatio(200) != MidiRatio(127) {
		t.Fatalf("note above 127 should clamp to 127")
	}
}

func TestMidiRatioSemitoneBelowCenter(t *testing.T) {
	got := MidiRatio(59)
	want := 1 / 1.0594630943591
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("MidiRatio(59) = %v, want %v", got, want)
	}
}
