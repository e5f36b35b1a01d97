package grainscope

import (
	"strings"
	"testing"

	"github.com/cbegin/grainscope/internal/logging"
)

const script = `
# two notes over a loop
0     volume 1
0     loop on
0     on 60
0.5   coeff 2
1.0   on 67 0.5   # second voice
1.2   off 67
1.5   off 60
2.0   end
`

func TestParsePerformance(t *testing.T) {
	perf, err := ParsePerformance(strings.NewReader(script))
	if err != nil {
		t.Fatalf("ParsePerformance: %v", err)
	}
	if perf.Duration != 2 {
		t.Fatalf("Duration = %v", perf.Duration)
	}
	if len(perf.Events) != 7 {
		t.Fatalf("got %d events", len(perf.Events))
	}
	on := perf.Events[4]
	if on.Cmd != CmdNoteOn || on.Note != 67 || on.Velocity != 0.5 || on.At != 1 {
		t.Fatalf("unexpected event %+v", on)
	}
	if perf.Events[2].Velocity != 0.8 {
		t.Fatalf("default velocity = %v", perf.Events[2].Velocity)
	}
	if !perf.Events[1].On || perf.Events[1].Cmd != CmdLoop {
		t.Fatalf("loop event = %+v", perf.Events[1])
	}
}

func TestParsePerformanceErrors(t *testing.T) {
	tests := []string{
		"x on 60",
		"0 on",
		"0 loop maybe",
		"0 wobble 3",
		"0 select 4",
		"0 coeff fast",
		"1",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			if _, err := ParsePerformance(strings.NewReader(src)); err == nil {
				t.Fatalf("expected error for %q", src)
			}
		})
	}
}

func TestRenderOfflineIsDeterministic(t *testing.T) {
	perf, err := ParsePerformance(strings.NewReader(script))
	if err != nil {
		t.Fatal(err)
	}
	render := func() []float32 {
		out, err := RenderOffline(sineBuffer(3, testRate), perf,
			WithSampleRate(testRate), WithSeed(7), WithLogger(logging.Discard()))
		if err != nil {
			t.Fatalf("RenderOffline: %v", err)
		}
		return out
	}
	a, b := render(), render()
	if len(a) != 2*2*testRate {
		t.Fatalf("rendered %d samples, want %d", len(a), 2*2*testRate)
	}
	if peak(a) == 0 {
		t.Fatalf("offline render is silent")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("renders differ at sample %d", i)
		}
	}
}

func TestRenderOfflineDefaultLength(t *testing.T) {
	perf := Performance{Events: []Event{{At: 0.5, Cmd: CmdNoteOn, Note: 60, Velocity: 1}}}
	out, err := RenderOffline(sineBuffer(1, testRate), perf, WithSampleRate(testRate), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("RenderOffline: %v", err)
	}
	if want := int(2.5*testRate) * 2; len(out) != want {
		t.Fatalf("rendered %d samples, want %d", len(out), want)
	}
}

func TestRenderOfflineRejectsCustomRenderer(t *testing.T) {
	m := newTestInstrument(t).Mixer()
	if _, err := RenderOffline(sineBuffer(1, testRate), Performance{}, WithSampleRate(testRate), WithRenderer(m)); err == nil {
		t.Fatalf("expected error when the built-in mixer is replaced")
	}
}
