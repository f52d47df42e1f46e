// Package config loads player settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/slade-tools/oplplay/pkg/opl"
	"github.com/slade-tools/oplplay/pkg/oplmusic"
)

// Config holds every setting the player reads from its config file.
type Config struct {
	Chips       int    `toml:"chips"`
	SampleRate  int    `toml:"sample_rate"`
	ImfRate     int    `toml:"imf_rate"`
	SingleVoice bool   `toml:"single_voice"`
	Loop        bool   `toml:"loop"`
	Volume      int    `toml:"volume"`
	GenMIDI     string `toml:"genmidi"`
	Buffer      int    `toml:"buffer"` // frames per pull
	Output      string `toml:"output"` // oto, beep or null

	// ImfRates maps a file CRC-32, written in hex, to its IMF tick rate.
	ImfRates map[string]int `toml:"imf_rates"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Chips:      2,
		SampleRate: opl.SampleRate,
		ImfRate:    oplmusic.DefaultImfRate,
		Volume:     100,
		Buffer:     4096,
		Output:     "oto",
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config %s: %w", path, err)
	}
	err := cfg.Validate()
	return cfg, err
}

// Validate checks ranges and clamps what can be clamped.
func (c *Config) Validate() error {
	if c.Chips < 1 || c.Chips > opl.MaxChips {
		return fmt.Errorf("chips must be 1..%d, got %d", opl.MaxChips, c.Chips)
	}
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample_rate too low: %d", c.SampleRate)
	}
	if c.ImfRate <= 0 {
		return fmt.Errorf("imf_rate must be positive, got %d", c.ImfRate)
	}
	if c.Buffer <= 0 {
		return fmt.Errorf("buffer must be positive, got %d", c.Buffer)
	}
	c.Volume = max(0, min(100, c.Volume))
	switch c.Output {
	case "oto", "beep", "null":
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	_, err := c.RateTable()
	return err
}

// RateTable parses the imf_rates table.
func (c *Config) RateTable() (oplmusic.RateTable, error) {
	t := make(oplmusic.RateTable, len(c.ImfRates))
	for k, rate := range c.ImfRates {
		crc, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(k), "0x"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("bad imf_rates key %q: %w", k, err)
		}
		if rate <= 0 {
			return nil, fmt.Errorf("bad imf_rates rate for %q: %d", k, rate)
		}
		t[uint32(crc)] = rate
	}
	return t, nil
}

// Music returns the sequencer settings. bank may be nil.
func (c *Config) Music(bank *opl.Bank) oplmusic.Config {
	return oplmusic.Config{
		Chips:       c.Chips,
		SampleRate:  c.SampleRate,
		ImfRate:     c.ImfRate,
		Bank:        bank,
		SingleVoice: c.SingleVoice,
	}
}
