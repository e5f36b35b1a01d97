package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/grainscope"
	"github.com/cbegin/grainscope/internal/bus"
	"github.com/cbegin/grainscope/internal/control"
	"github.com/cbegin/grainscope/internal/engine"
	"github.com/cbegin/grainscope/internal/wave"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7fd4ff"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	selectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347"))
	cursorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff"))
)

const (
	waveRows  = 9
	frameRate = 30
)

// levelMeter tracks the output peak. Tap runs on the audio thread.
type levelMeter struct {
	peak atomic.Uint32 // float32 bits
}

func (l *levelMeter) Tap(samples []float32) {
	var p float32
	for _, s := range samples {
		p = max(p, float32(math.Abs(float64(s))))
	}
	prev := math.Float32frombits(l.peak.Load())
	// Fall back slowly so short peaks stay visible.
	l.peak.Store(math.Float32bits(max(p, prev*0.9)))
}

func (l *levelMeter) Peak() float32 { return math.Float32frombits(l.peak.Load()) }

// activityLog keeps the most recent note and loop messages.
type activityLog struct {
	mu    sync.Mutex
	size  int
	lines []string
}

func newActivityLog(size int) *activityLog {
	return &activityLog{size: size}
}

func (a *activityLog) Handle(m bus.Message) {
	var line string
	switch msg := m.(type) {
	case bus.NoteOn:
		line = fmt.Sprintf("note on  %3d vel %.2f", msg.Note, msg.Velocity)
	case bus.NoteOff:
		line = fmt.Sprintf("note off %3d", msg.Note)
	case bus.LoopChanged:
		line = fmt.Sprintf("loop %v", onOff(msg.On))
	default:
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, line)
	if len(a.lines) > a.size {
		a.lines = a.lines[len(a.lines)-a.size:]
	}
}

func (a *activityLog) Lines() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.lines...)
}

type frameMsg time.Time

func nextFrame() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return frameMsg(t) })
}

type model struct {
	inst     *grainscope.Instrument
	surface  *control.Surface
	meter    *levelMeter
	activity *activityLog
	port     string
	sample   string
	width    int
	quitting bool
}

func newModel(inst *grainscope.Instrument, surface *control.Surface, meter *levelMeter, activity *activityLog, port, sample string) model {
	return model{
		inst:     inst,
		surface:  surface,
		meter:    meter,
		activity: activity,
		port:     port,
		sample:   sample,
		width:    wave.NumChunks / 2,
	}
}

func (m model) Init() tea.Cmd {
	return nextFrame()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		p := m.inst.Params()
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.surface.ReleaseAll()
			return m, tea.Quit
		case "[":
			m.inst.SetGrainDurationCoeff(p.GrainDurationCoeff - 0.5)
		case "]":
			m.inst.SetGrainDurationCoeff(p.GrainDurationCoeff + 0.5)
		case ",":
			m.inst.SetFilterCutoff(engine.CutoffForCoeff(engine.FilterCoeff(p.FilterCutoff) - 0.05))
		case ".":
			m.inst.SetFilterCutoff(engine.CutoffForCoeff(engine.FilterCoeff(p.FilterCutoff) + 0.05))
		case "-":
			m.inst.SetMasterVolume(p.MasterVolume - 0.05)
		case "=":
			m.inst.SetMasterVolume(p.MasterVolume + 0.05)
		default:
			m.surface.HandleKey(msg.String())
		}
	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width-2, 10), wave.NumChunks)
	case frameMsg:
		return m, nextFrame()
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	w := m.inst.Wave()
	p := m.inst.Params()
	var b strings.Builder
	b.WriteString(titleStyle.Render("grainscope"))
	b.WriteString(statusStyle.Render(fmt.Sprintf("  sample: %s  midi: %s", orNone(m.sample), m.port)))
	b.WriteString("\n\n")
	b.WriteString(renderWave(w, m.width, waveRows))
	b.WriteString(renderCursors(w, m.width))
	b.WriteString("\n\n")

	sel := w.Selection()
	b.WriteString(activeStyle.Render(fmt.Sprintf(
		"selection %3d+%-2d  grain x%.1f  cutoff %5.0f Hz  volume %.2f  loop %s",
		sel.Start, sel.Size, p.GrainDurationCoeff, p.FilterCutoff, p.MasterVolume, onOff(p.Loop))))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(fmt.Sprintf(
		"grains %2d  held %v  level %s",
		m.inst.ActiveGrainCount(), m.inst.HeldNotes(), meterBar(m.meter.Peak(), 20))))
	b.WriteString("\n\n")
	for _, line := range m.activity.Lines() {
		b.WriteString(dimStyle.Render(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("keys a..p notes (latched)  space loop  r reload  arrows selection  [ ] grain  , . cutoff  - = volume  esc release  q quit"))
	return b.String()
}

// renderWave draws the chunk extrema as columns of blocks, highlighting the
// selected chunks.
func renderWave(w wave.Wave, cols, rows int) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	chunks := w.Chunks()
	sel := w.Selection()
	var b strings.Builder
	for r := 0; r < rows; r++ {
		level := 1 - (float64(r)+0.5)*2/float64(rows)
		for c := 0; c < cols; c++ {
			i := c * len(chunks) / cols
			ch := chunks[i]
			cell := " "
			switch {
			case !ch.Empty && ch.Bottom <= level && level <= ch.Top:
				cell = "█"
			case r == rows/2:
				cell = "─"
			}
			if sel.Contains(i) {
				b.WriteString(selectionStyle.Render(cell))
			} else {
				b.WriteString(dimStyle.Render(cell))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderCursors marks the columns under sounding grains.
func renderCursors(w wave.Wave, cols int) string {
	if cols <= 0 {
		return ""
	}
	marks := make([]bool, cols)
	for _, c := range w.Cursors() {
		col := int(c.Position * float64(cols) / wave.NumChunks)
		if col >= 0 && col < cols {
			marks[col] = true
		}
	}
	var b strings.Builder
	for _, on := range marks {
		if on {
			b.WriteString(cursorStyle.Render("▲"))
		} else {
			b.WriteString(" ")
		}
	}
	return b.String()
}

func meterBar(peak float32, width int) string {
	n := int(math.Round(float64(min(peak, 1)) * float64(width)))
	return strings.Repeat("▮", n) + strings.Repeat("·", width-n)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
