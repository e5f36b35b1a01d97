package control

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/cbegin/grainscope/internal/config"
	"github.com/cbegin/grainscope/internal/engine"
	"github.com/cbegin/grainscope/internal/logging"
	"github.com/cbegin/grainscope/internal/wave"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// Target is the instrument surface driven by performer input.
type Target interface {
	NoteOn(note int, velocity float64) error
	NoteOff(note int)
	Selection() wave.Selection
	SetSelection(start, size int)
	SetGrainDurationCoeff(c float64)
	SetFilterCutoff(hz float64)
	SetLoop(on bool) error
	Loop() bool
	Record() error
}

// KeyNotes maps computer keyboard keys onto MIDI notes, two rows laid out
// like a piano starting at middle C.
var KeyNotes = map[string]int{
	"a": 60, "w": 61, "s": 62, "e": 63, "d": 64, "f": 65, "t": 66, "g": 67,
	"y": 68, "h": 69, "u": 70, "j": 71, "k": 72, "o": 73, "l": 74, "p": 75,
}

// Surface translates MIDI messages and key presses into instrument calls.
// MIDI and key input may arrive on different goroutines.
type Surface struct {
	target  Target
	cc      config.CCMap
	channel int
	log     *slog.Logger

	mu      sync.Mutex
	latched map[int]bool
}

// New creates a surface. channel -1 accepts every MIDI channel.
func New(target Target, cc config.CCMap, channel int, logger *slog.Logger) *Surface {
	return &Surface{
		target:  target,
		cc:      cc,
		channel: channel,
		log:     logging.Component(logger, "control"),
		latched: make(map[int]bool),
	}
}

func (s *Surface) acceptChannel(ch uint8) bool {
	return s.channel < 0 || int(ch) == s.channel
}

// HandleMIDI applies one message and reports whether it was recognized.
func (s *Surface) HandleMIDI(msg gomidi.Message) bool {
	var ch, key, vel, cc, val uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if !s.acceptChannel(ch) {
			return false
		}
		if err := s.target.NoteOn(int(key), Velocity(vel)); err != nil {
			s.log.Warn("note on failed", "note", key, "error", err)
		}
		return true
	case msg.GetNoteEnd(&ch, &key):
		// Includes note-on with velocity 0.
		if !s.acceptChannel(ch) {
			return false
		}
		s.target.NoteOff(int(key))
		return true
	case msg.GetControlChange(&ch, &cc, &val):
		if !s.acceptChannel(ch) {
			return false
		}
		return s.controlChange(cc, val)
	case msg.GetPitchBend(&ch, &rel, &abs):
		if !s.acceptChannel(ch) {
			return false
		}
		sel := s.target.Selection()
		s.target.SetSelection(SelectionStartFromBend(rel, sel.Size), sel.Size)
		return true
	}
	return false
}

func (s *Surface) controlChange(cc, val uint8) bool {
	switch cc {
	case s.cc.SelectionSize:
		sel := s.target.Selection()
		s.target.SetSelection(sel.Start, SelectionSizeFromCC(val))
	case s.cc.GrainDurationCoeff:
		s.target.SetGrainDurationCoeff(GrainCoeffFromCC(val))
	case s.cc.Loop:
		if err := s.target.SetLoop(val > 0); err != nil {
			s.log.Warn("loop toggle failed", "error", err)
		}
	case s.cc.Record:
		if val > 0 {
			if err := s.target.Record(); err != nil {
				s.log.Warn("record failed", "error", err)
			}
		}
	case s.cc.FilterCutoff:
		s.target.SetFilterCutoff(FilterCutoffFromCC(val))
	default:
		s.log.Debug("unmapped control change", "cc", cc, "value", val)
		return false
	}
	return true
}

// HandleKey applies a key press as reported by the terminal. Terminals do
// not report key releases, so note keys latch: the first press holds the
// note and the second releases it.
func (s *Surface) HandleKey(key string) bool {
	if note, ok := KeyNotes[key]; ok {
		s.mu.Lock()
		held := s.latched[note]
		if held {
			delete(s.latched, note)
		} else {
			s.latched[note] = true
		}
		s.mu.Unlock()
		if held {
			s.target.NoteOff(note)
			return true
		}
		if err := s.target.NoteOn(note, engine.DefaultVelocity); err != nil {
			s.log.Warn("note on failed", "note", note, "error", err)
		}
		return true
	}
	sel := s.target.Selection()
	switch key {
	case " ":
		if err := s.target.SetLoop(!s.target.Loop()); err != nil {
			s.log.Warn("loop toggle failed", "error", err)
		}
	case "r":
		if err := s.target.Record(); err != nil {
			s.log.Warn("record failed", "error", err)
		}
	case "left":
		s.target.SetSelection(sel.Start-1, sel.Size)
	case "right":
		s.target.SetSelection(sel.Start+1, sel.Size)
	case "up":
		s.target.SetSelection(sel.Start, sel.Size+1)
	case "down":
		s.target.SetSelection(sel.Start, sel.Size-1)
	case "esc":
		s.ReleaseAll()
	default:
		return false
	}
	return true
}

// ReleaseAll releases every latched key note.
func (s *Surface) ReleaseAll() {
	notes := s.Latched()
	s.mu.Lock()
	clear(s.latched)
	s.mu.Unlock()
	for _, note := range notes {
		s.target.NoteOff(note)
	}
}

// Latched returns the notes held by key presses, ascending.
func (s *Surface) Latched() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.latched))
	for n := range s.latched {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
