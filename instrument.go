package grainscope

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/cbegin/grainscope/internal/bus"
	"github.com/cbegin/grainscope/internal/engine"
	"github.com/cbegin/grainscope/internal/logging"
	"github.com/cbegin/grainscope/internal/pitch"
	"github.com/cbegin/grainscope/internal/render"
	"github.com/cbegin/grainscope/internal/sample"
	"github.com/cbegin/grainscope/internal/sched"
	"github.com/cbegin/grainscope/internal/wave"
)

// ErrNoRecordHandler is returned by Record when no handler was configured.
var ErrNoRecordHandler = errors.New("grainscope: no record handler")

type Option func(*instrumentConfig)

type instrumentConfig struct {
	sampleRate   int
	logger       *slog.Logger
	renderer     engine.Renderer
	clock        sched.Clock
	seed         int64
	seeded       bool
	tickRate     int
	onRecord     func() error
	releaseGrace float64
	graceSet     bool
	params       engine.Params
	registry     *sample.Registry
}

func defaultInstrumentConfig() instrumentConfig {
	return instrumentConfig{
		sampleRate: 44100,
		tickRate:   60,
		params:     engine.DefaultParams(),
	}
}

func WithSampleRate(sampleRate int) Option {
	return func(cfg *instrumentConfig) {
		cfg.sampleRate = sampleRate
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *instrumentConfig) {
		cfg.logger = logger
	}
}

// WithRenderer replaces the built-in software mixer.
func WithRenderer(r engine.Renderer) Option {
	return func(cfg *instrumentConfig) {
		cfg.renderer = r
	}
}

// WithClock overrides the renderer's clock as the engine's time source.
func WithClock(c sched.Clock) Option {
	return func(cfg *instrumentConfig) {
		cfg.clock = c
	}
}

// WithSeed makes grain jitter reproducible.
func WithSeed(seed int64) Option {
	return func(cfg *instrumentConfig) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// WithTickRate sets how often Run drives the control loop, in Hz.
func WithTickRate(hz int) Option {
	return func(cfg *instrumentConfig) {
		cfg.tickRate = hz
	}
}

// WithRecordHandler installs the action behind the record control.
func WithRecordHandler(fn func() error) Option {
	return func(cfg *instrumentConfig) {
		cfg.onRecord = fn
	}
}

// WithReleaseGrace sets how long past its end a grain may go without a
// completion before it is released anyway. Zero disables forced release.
func WithReleaseGrace(d time.Duration) Option {
	return func(cfg *instrumentConfig) {
		cfg.releaseGrace = d.Seconds()
		cfg.graceSet = true
	}
}

// WithParams sets the initial engine parameters.
func WithParams(p engine.Params) Option {
	return func(cfg *instrumentConfig) {
		cfg.params = p
	}
}

// WithRegistry sets the decoders used by LoadSample.
func WithRegistry(r *sample.Registry) Option {
	return func(cfg *instrumentConfig) {
		cfg.registry = r
	}
}

type clockedRenderer struct {
	engine.Renderer
	clock sched.Clock
}

func (r clockedRenderer) Now() float64 { return r.clock.Now() }

type heldNote struct {
	note     int
	velocity float64
}

// Instrument is the performer-facing granular instrument. Its methods are
// safe for concurrent use; message handlers run outside its lock and may
// call back into it.
type Instrument struct {
	mu         sync.Mutex
	sampleRate int
	eng        *engine.Engine
	bus        *bus.Bus
	mixer      *render.Mixer
	renderer   engine.Renderer
	registry   *sample.Registry
	log        *slog.Logger
	tick       time.Duration
	onRecord   func() error
	held       []heldNote
}

func New(opts ...Option) (*Instrument, error) {
	cfg := defaultInstrumentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if cfg.tickRate <= 0 {
		return nil, errors.New("tickRate must be positive")
	}
	if cfg.graceSet {
		cfg.params.ReleaseGrace = cfg.releaseGrace
	}
	if cfg.registry == nil {
		cfg.registry = sample.DefaultRegistry()
	}
	inst := &Instrument{
		sampleRate: cfg.sampleRate,
		bus:        bus.New(bus.DefaultCapacity, cfg.logger),
		registry:   cfg.registry,
		log:        logging.Component(cfg.logger, "instrument"),
		tick:       time.Second / time.Duration(cfg.tickRate),
		onRecord:   cfg.onRecord,
	}
	r := cfg.renderer
	if r == nil {
		m, err := render.NewMixer(cfg.sampleRate, cfg.logger)
		if err != nil {
			return nil, err
		}
		inst.mixer = m
		r = m
	}
	if cfg.clock != nil {
		r = clockedRenderer{Renderer: r, clock: cfg.clock}
	}
	inst.renderer = r

	seed := cfg.seed
	if !cfg.seeded {
		seed = time.Now().UnixNano()
	}
	eng, err := engine.New(cfg.sampleRate, cfg.params, engine.Options{
		Renderer:  r,
		Publisher: inst.bus,
		Rand:      rand.New(rand.NewSource(seed)),
		Logger:    cfg.logger,
	})
	if err != nil {
		return nil, err
	}
	inst.eng = eng
	return inst, nil
}

func (i *Instrument) SampleRate() int { return i.sampleRate }

// Mixer returns the built-in software mixer, or nil when a custom renderer
// was supplied.
func (i *Instrument) Mixer() *render.Mixer { return i.mixer }

// Subscribe registers fn for messages on topic. Handlers run during Tick.
func (i *Instrument) Subscribe(topic bus.Topic, fn bus.Handler) func() {
	return i.bus.Subscribe(topic, fn)
}

func (i *Instrument) BusStats() map[bus.Topic]bus.TopicStats {
	return i.bus.Stats()
}

// Run drives the control loop until ctx is done.
func (i *Instrument) Run(ctx context.Context) error {
	ticker := time.NewTicker(i.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			i.Tick()
		}
	}
}

// Tick runs one control step: completions, due timers and cursor refresh,
// then message delivery.
func (i *Instrument) Tick() {
	i.mu.Lock()
	i.eng.Tick()
	i.mu.Unlock()
	i.bus.Drain()
}

// LoadSample decodes path and makes it the grain source.
func (i *Instrument) LoadSample(path string) error {
	buf, err := i.registry.LoadFile(path, i.sampleRate)
	if err != nil {
		return err
	}
	i.log.Info("sample loaded", "path", path, "seconds", buf.Duration())
	return i.SetBuffer(buf)
}

// SetBuffer stops every grain and swaps in buf, converting it to the
// instrument rate if needed. The new waveform is announced on the bus.
func (i *Instrument) SetBuffer(buf *sample.Buffer) error {
	if buf != nil && buf.SampleRate != i.sampleRate {
		buf = sample.Resample(buf, i.sampleRate)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.eng.SetBuffer(buf); err != nil {
		return err
	}
	if buf == nil {
		return nil
	}
	i.bus.Publish(bus.WaveStarted{Frames: buf.Frames(), SampleRate: buf.SampleRate})
	sum := wave.NewSummarizer(buf.Frames())
	for _, c := range sum.Write(buf.Samples) {
		i.bus.Publish(bus.ChunkWritten{Index: c.Index, Top: c.Top, Bottom: c.Bottom})
	}
	if c, ok := sum.Flush(); ok {
		i.bus.Publish(bus.ChunkWritten{Index: c.Index, Top: c.Top, Bottom: c.Bottom})
	}
	return nil
}

// NoteOn plays MIDI note at velocity in [0,1]. The newest held note sets
// the pitch of loop grains.
func (i *Instrument) NoteOn(note int, velocity float64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.removeHeld(note)
	i.held = append(i.held, heldNote{note: note, velocity: velocity})
	i.bus.Publish(bus.NoteOn{Note: note, Velocity: velocity})
	return i.eng.NoteOn(pitch.MidiRatio(note), velocity)
}

// NoteOff releases note. Loop grains fall back to the most recent note still
// held; releasing the last one stops the loop.
func (i *Instrument) NoteOff(note int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.removeHeld(note) {
		return
	}
	i.bus.Publish(bus.NoteOff{Note: note})
	if len(i.held) == 0 {
		i.eng.NoteOff()
		return
	}
	top := i.held[len(i.held)-1]
	i.eng.Retune(pitch.MidiRatio(top.note), top.velocity)
}

func (i *Instrument) removeHeld(note int) bool {
	for k, h := range i.held {
		if h.note == note {
			i.held = append(i.held[:k], i.held[k+1:]...)
			return true
		}
	}
	return false
}

// HeldNotes returns the held notes, oldest first.
func (i *Instrument) HeldNotes() []int {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]int, len(i.held))
	for k, h := range i.held {
		out[k] = h.note
	}
	return out
}

// ReleaseAll releases every held note.
func (i *Instrument) ReleaseAll() {
	for _, n := range i.HeldNotes() {
		i.NoteOff(n)
	}
}

func (i *Instrument) Selection() wave.Selection {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.Wave().Selection()
}

func (i *Instrument) SetSelection(start, size int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.eng.SetSelection(start, size)
}

func (i *Instrument) UpdateSelection(u wave.SelectionUpdate) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.eng.UpdateSelection(u)
}

func (i *Instrument) SetGrainDurationCoeff(c float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.eng.SetGrainDurationCoeff(c)
}

func (i *Instrument) SetFilterCutoff(hz float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.eng.SetFilterCutoff(hz)
}

func (i *Instrument) SetMasterVolume(v float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.eng.SetMasterVolume(v)
}

func (i *Instrument) SetLoop(on bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if on {
		return i.eng.LoopOn()
	}
	i.eng.LoopOff()
	return nil
}

func (i *Instrument) Loop() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.Params().Loop
}

// Record runs the configured record handler, which typically captures or
// reloads a sample and calls SetBuffer.
func (i *Instrument) Record() error {
	if i.onRecord == nil {
		return ErrNoRecordHandler
	}
	return i.onRecord()
}

func (i *Instrument) Params() engine.Params {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.Params()
}

// Wave returns a snapshot of the waveform, selection and cursors.
func (i *Instrument) Wave() wave.Wave {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.Wave()
}

func (i *Instrument) ActiveGrainCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.eng.ActiveGrainCount()
}

func (i *Instrument) StopAllGrains() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.eng.StopAllGrains()
}

// Now returns the engine clock in seconds.
func (i *Instrument) Now() float64 {
	return i.renderer.Now()
}

// Close stops every grain and shuts down the built-in mixer.
func (i *Instrument) Close() error {
	i.mu.Lock()
	i.eng.NoteOff()
	i.eng.StopAllGrains()
	i.held = nil
	i.mu.Unlock()
	i.bus.Clear()
	if i.mixer != nil {
		return i.mixer.Close()
	}
	return nil
}
