package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	"github.com/cbegin/grainscope"
	"github.com/cbegin/grainscope/internal/audio"
	"github.com/cbegin/grainscope/internal/bus"
	"github.com/cbegin/grainscope/internal/config"
	"github.com/cbegin/grainscope/internal/control"
	"github.com/cbegin/grainscope/internal/logging"
	"github.com/cbegin/grainscope/internal/midiin"
	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"
)

var _ control.Target = (*grainscope.Instrument)(nil)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/grainscope/config.json)")
		samplePath = flag.String("sample", "", "sample to load (overrides config)")
		midiPort   = flag.String("midi", "", "MIDI input port name substring (overrides config)")
		noMIDI     = flag.Bool("no-midi", false, "disable MIDI input")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (overrides config)")
		latency    = flag.Duration("latency", 50*time.Millisecond, "audio device buffer size")
		debug      = flag.Bool("debug", false, "debug logging")
		saveConfig = flag.Bool("save-config", false, "write the effective config and exit")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *samplePath != "" {
		cfg.SamplePath = *samplePath
	}
	if *midiPort != "" {
		cfg.MIDIPort = *midiPort
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	cfg.Debug = cfg.Debug || *debug
	if *saveConfig {
		if *configPath != "" {
			err = cfg.SaveFile(*configPath)
		} else {
			err = cfg.Save()
		}
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	dir, err := config.Dir()
	if err != nil {
		log.Fatal(err)
	}
	logFile, err := logging.OpenFile(dir, "grainscope.log")
	if err != nil {
		log.Fatal(err)
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.Debug)

	source, err := cfg.ResolveSamplePath()
	if err != nil {
		log.Fatal(err)
	}
	var inst *grainscope.Instrument
	reload := func() error {
		if source == "" {
			return errors.New("no sample configured")
		}
		return inst.LoadSample(source)
	}
	inst, err = grainscope.New(
		grainscope.WithSampleRate(cfg.SampleRate),
		grainscope.WithTickRate(cfg.TickRate),
		grainscope.WithLogger(logger),
		grainscope.WithRecordHandler(reload),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer inst.Close()
	inst.SetMasterVolume(cfg.MasterVolume)
	if source != "" {
		if err := inst.LoadSample(source); err != nil {
			log.Fatal(err)
		}
	}

	meter := &levelMeter{}
	out, err := audio.NewOutput(cfg.SampleRate, inst.Mixer(), *latency, meter.Tap)
	if err != nil {
		log.Fatal(err)
	}
	defer out.Close()
	out.Play()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go inst.Run(ctx)

	activity := newActivityLog(4)
	inst.Subscribe(bus.TopicNote, activity.Handle)

	surface := control.New(inst, cfg.CC, cfg.MIDIChannel, logger)
	portName := "off"
	if !*noMIDI {
		defer midiin.CloseDriver()
		in, err := midiin.Open(cfg.MIDIPort, logger)
		if err != nil {
			logger.Warn("midi input unavailable", "error", err)
			portName = "none"
		} else {
			defer in.Close()
			portName = in.Name()
			go in.Run(ctx, func(msg gomidi.Message) { surface.HandleMIDI(msg) })
		}
	}

	m := newModel(inst, surface, meter, activity, portName, source)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
	surface.ReleaseAll()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
