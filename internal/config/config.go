package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// CCMap assigns MIDI controller numbers to instrument parameters.
type CCMap struct {
	SelectionSize      uint8 `json:"selectionSize"`
	GrainDurationCoeff uint8 `json:"grainDurationCoeff"`
	Loop               uint8 `json:"loop"`
	Record             uint8 `json:"record"`
	FilterCutoff       uint8 `json:"filterCutoff"`
}

// Config is the main configuration structure
type Config struct {
	SampleRate   int     `json:"sampleRate"`
	TickRate     int     `json:"tickRate"`
	MasterVolume float64 `json:"masterVolume"`
	SamplePath   string  `json:"samplePath,omitempty"`
	MIDIPort     string  `json:"midiPort,omitempty"`
	MIDIChannel  int     `json:"midiChannel"` // -1 listens on all channels
	Debug        bool    `json:"debug,omitempty"`
	CC           CCMap   `json:"cc"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		SampleRate:   44100,
		TickRate:     60,
		MasterVolume: 0.7,
		MIDIChannel:  -1,
		CC: CCMap{
			SelectionSize:      1,
			GrainDurationCoeff: 2,
			Loop:               4,
			Record:             5,
			FilterCutoff:       7,
		},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "grainscope"), nil
}

// Path returns the full path to config.json
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if there
// is none.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.sanitize()
	return cfg, nil
}

func (c *Config) sanitize() {
	d := Default()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.TickRate <= 0 {
		c.TickRate = d.TickRate
	}
	if c.MasterVolume < 0 || c.MasterVolume > 1 {
		c.MasterVolume = d.MasterVolume
	}
	if c.MIDIChannel < -1 || c.MIDIChannel > 15 {
		c.MIDIChannel = -1
	}
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveSamplePath expands a leading ~ in SamplePath.
func (c *Config) ResolveSamplePath() (string, error) {
	if c.SamplePath == "" {
		return "", nil
	}
	return homedir.Expand(c.SamplePath)
}
