package grainscope

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cbegin/grainscope/internal/engine"
	"github.com/cbegin/grainscope/internal/sample"
)

// Command is one kind of scripted performance step.
type Command int

const (
	CmdNoteOn Command = iota
	CmdNoteOff
	CmdLoop
	CmdSelect
	CmdGrainCoeff
	CmdCutoff
	CmdVolume
)

// Event is a timed performance step. Only the fields relevant to Cmd are used.
type Event struct {
	At       float64
	Cmd      Command
	Note     int
	Velocity float64
	On       bool
	Start    int
	Size     int
	Value    float64
}

// Performance is a script of events rendered offline.
type Performance struct {
	Events []Event
	// Duration is the rendered length in seconds. Zero renders until two
	// seconds after the last event.
	Duration float64
}

const defaultTail = 2.0

func (p Performance) length() float64 {
	if p.Duration > 0 {
		return p.Duration
	}
	var last float64
	for _, ev := range p.Events {
		last = max(last, ev.At)
	}
	return last + defaultTail
}

// ParsePerformance reads a performance script. Each line is a time in
// seconds followed by a command:
//
//	0.0  on 60 0.8      note on (velocity optional)
//	1.0  off 60         note off
//	0.0  loop on        loop on|off
//	0.5  select 40 20   selection start and size in chunks
//	0.5  coeff 2        grain duration coefficient
//	2.0  cutoff 1200    filter cutoff in Hz
//	0.0  volume 0.5     master volume
//	4.0  end            total length
//
// Blank lines and text after # are ignored.
func ParsePerformance(r io.Reader) (Performance, error) {
	var perf Performance
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return perf, fmt.Errorf("line %d: expected time and command", line)
		}
		at, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || at < 0 {
			return perf, fmt.Errorf("line %d: bad time %q", line, fields[0])
		}
		if fields[1] == "end" {
			perf.Duration = at
			continue
		}
		ev, err := parseEvent(at, fields[1], fields[2:])
		if err != nil {
			return perf, fmt.Errorf("line %d: %w", line, err)
		}
		perf.Events = append(perf.Events, ev)
	}
	return perf, sc.Err()
}

func parseEvent(at float64, cmd string, args []string) (Event, error) {
	ev := Event{At: at}
	nums := make([]float64, len(args))
	for i, a := range args {
		if cmd == "loop" {
			break
		}
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return ev, fmt.Errorf("%s: bad argument %q", cmd, a)
		}
		nums[i] = v
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s: needs %d argument(s)", cmd, n)
		}
		return nil
	}
	switch cmd {
	case "on":
		if err := need(1); err != nil {
			return ev, err
		}
		ev.Cmd, ev.Note, ev.Velocity = CmdNoteOn, int(nums[0]), engine.DefaultVelocity
		if len(nums) > 1 {
			ev.Velocity = nums[1]
		}
	case "off":
		if err := need(1); err != nil {
			return ev, err
		}
		ev.Cmd, ev.Note = CmdNoteOff, int(nums[0])
	case "loop":
		if err := need(1); err != nil {
			return ev, err
		}
		switch args[0] {
		case "on":
			ev.On = true
		case "off":
		default:
			return ev, fmt.Errorf("loop: expected on or off, got %q", args[0])
		}
		ev.Cmd = CmdLoop
	case "select":
		if err := need(2); err != nil {
			return ev, err
		}
		ev.Cmd, ev.Start, ev.Size = CmdSelect, int(nums[0]), int(nums[1])
	case "coeff":
		if err := need(1); err != nil {
			return ev, err
		}
		ev.Cmd, ev.Value = CmdGrainCoeff, nums[0]
	case "cutoff":
		if err := need(1); err != nil {
			return ev, err
		}
		ev.Cmd, ev.Value = CmdCutoff, nums[0]
	case "volume":
		if err := need(1); err != nil {
			return ev, err
		}
		ev.Cmd, ev.Value = CmdVolume, nums[0]
	default:
		return ev, fmt.Errorf("unknown command %q", cmd)
	}
	return ev, nil
}

func (i *Instrument) apply(ev Event) error {
	switch ev.Cmd {
	case CmdNoteOn:
		return i.NoteOn(ev.Note, ev.Velocity)
	case CmdNoteOff:
		i.NoteOff(ev.Note)
	case CmdLoop:
		return i.SetLoop(ev.On)
	case CmdSelect:
		i.SetSelection(ev.Start, ev.Size)
	case CmdGrainCoeff:
		i.SetGrainDurationCoeff(ev.Value)
	case CmdCutoff:
		i.SetFilterCutoff(ev.Value)
	case CmdVolume:
		i.SetMasterVolume(ev.Value)
	}
	return nil
}

// RenderOffline performs perf against buf with the built-in mixer and
// returns interleaved stereo samples. Time advances one control tick of
// audio at a time, so events land on tick boundaries as they would live.
func RenderOffline(buf *sample.Buffer, perf Performance, opts ...Option) ([]float32, error) {
	inst, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer inst.Close()
	m := inst.Mixer()
	if m == nil {
		return nil, errors.New("offline rendering requires the built-in mixer")
	}
	if err := inst.SetBuffer(buf); err != nil {
		return nil, err
	}

	events := append([]Event(nil), perf.Events...)
	sort.SliceStable(events, func(a, b int) bool { return events[a].At < events[b].At })

	sr := float64(inst.SampleRate())
	block := max(1, int(sr*inst.tick.Seconds()))
	total := int(math.Ceil(perf.length() * sr))
	out := make([]float32, 0, total*2)
	next := 0
	for rendered := 0; rendered < total; {
		now := m.Now()
		for next < len(events) && events[next].At <= now {
			if err := inst.apply(events[next]); err != nil {
				return nil, err
			}
			next++
		}
		inst.Tick()
		n := min(block, total-rendered)
		out = append(out, m.Render(n)...)
		rendered += n
	}
	return out, nil
}
