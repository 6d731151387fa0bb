// Package config holds the host configuration shared by the command line
// tool and the desktop and console front ends. It is read from YAML and
// overridden by flags.
package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/yaml.v2"

	"gochip8/pkg/cpu"
)

// Quirk presets accepted in the quirks.preset field.
const (
	PresetCHIP48 = "chip48"
	PresetVIP    = "vip"
)

// QuirkConfig selects the instruction interpretation. The preset is applied
// first and the individual switches are added on top of it.
type QuirkConfig struct {
	Preset               string `yaml:"preset,omitempty"`
	ShiftUsesVY          bool   `yaml:"shift_uses_vy,omitempty"`
	LoadStoreIncrementsI bool   `yaml:"load_store_increments_i,omitempty"`
	JumpUsesVX           bool   `yaml:"jump_uses_vx,omitempty"`
	LogicResetsVF        bool   `yaml:"logic_resets_vf,omitempty"`
	IndexOverflowFlag    bool   `yaml:"index_overflow_flag,omitempty"`
}

// Config is the complete host configuration.
type Config struct {
	CyclesPerSecond int     `yaml:"cycles_per_second"`
	Scale           int     `yaml:"scale"`
	Foreground      string  `yaml:"foreground"`
	Background      string  `yaml:"background"`
	ToneHz          float64 `yaml:"tone_hz"`
	Volume          float64 `yaml:"volume"`
	// Seed fixes the CXNN random source. Zero picks a random seed.
	Seed uint64 `yaml:"seed,omitempty"`
	// Log is a loggo specification, for example "<root>=INFO;gochip8.cpu=DEBUG".
	Log    string      `yaml:"log"`
	Compat QuirkConfig `yaml:"quirks"`
	// Keymap maps host key names to keypad digits "0"-"F".
	Keymap map[string]string `yaml:"keymap"`
}

// DefaultKeymap is the usual QWERTY layout of the 4x4 keypad:
//
//	1 2 3 4      1 2 3 C
//	Q W E R  ->  4 5 6 D
//	A S D F      7 8 9 E
//	Z X C V      A 0 B F
var DefaultKeymap = map[string]string{
	"1": "1", "2": "2", "3": "3", "4": "C",
	"q": "4", "w": "5", "e": "6", "r": "D",
	"a": "7", "s": "8", "d": "9", "f": "E",
	"z": "A", "x": "0", "c": "B", "v": "F",
}

// Default returns the built-in configuration.
func Default() *Config {
	keymap := make(map[string]string, len(DefaultKeymap))
	for k, v := range DefaultKeymap {
		keymap[k] = v
	}
	return &Config{
		CyclesPerSecond: cpu.DefaultCyclesPerSecond,
		Scale:           10,
		Foreground:      "#33FF66",
		Background:      "#000000",
		ToneHz:          440,
		Volume:          0.2,
		Log:             "<root>=WARNING",
		Keymap:          keymap,
	}
}

// Load reads path over the defaults. Unknown fields are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	keymap := c.Keymap
	c.Keymap = nil
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, errors.Annotate(err, "decoding config")
	}
	if c.Keymap == nil {
		c.Keymap = keymap
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return c, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	return out, errors.Trace(err)
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.CyclesPerSecond <= 0 || c.CyclesPerSecond > cpu.MaxCyclesPerSecond {
		return errors.NotValidf("cycles_per_second %d outside [1, %d]", c.CyclesPerSecond, cpu.MaxCyclesPerSecond)
	}
	if c.Scale <= 0 {
		return errors.NotValidf("scale %d", c.Scale)
	}
	if _, err := ParseColour(c.Foreground); err != nil {
		return errors.Annotate(err, "foreground")
	}
	if _, err := ParseColour(c.Background); err != nil {
		return errors.Annotate(err, "background")
	}
	if c.ToneHz <= 0 {
		return errors.NotValidf("tone_hz %v", c.ToneHz)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return errors.NotValidf("volume %v outside [0, 1]", c.Volume)
	}
	switch strings.ToLower(c.Compat.Preset) {
	case "", PresetCHIP48, PresetVIP:
	default:
		return errors.NotValidf("quirks preset %q", c.Compat.Preset)
	}
	if _, err := c.Keys(); err != nil {
		return errors.Trace(err)
	}
	if _, err := loggo.ParseConfigString(c.Log); err != nil {
		return errors.Annotate(err, "log")
	}
	return nil
}

// Quirks returns the interpreter quirk set.
func (c *Config) Quirks() cpu.Quirks {
	var q cpu.Quirks
	if strings.EqualFold(c.Compat.Preset, PresetVIP) {
		q = cpu.Quirks{ShiftUsesVY: true, LoadStoreIncrementsI: true, LogicResetsVF: true}
	}
	q.ShiftUsesVY = q.ShiftUsesVY || c.Compat.ShiftUsesVY
	q.LoadStoreIncrementsI = q.LoadStoreIncrementsI || c.Compat.LoadStoreIncrementsI
	q.JumpUsesVX = q.JumpUsesVX || c.Compat.JumpUsesVX
	q.LogicResetsVF = q.LogicResetsVF || c.Compat.LogicResetsVF
	q.IndexOverflowFlag = q.IndexOverflowFlag || c.Compat.IndexOverflowFlag
	return q
}

// Keys resolves the keymap to keypad indices, keyed by lower-cased host key
// name.
func (c *Config) Keys() (map[string]uint8, error) {
	out := make(map[string]uint8, len(c.Keymap))
	for name, digit := range c.Keymap {
		if strings.TrimSpace(name) == "" {
			return nil, errors.NotValidf("empty key name")
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(digit), "0x"), 16, 8)
		if err != nil || v >= cpu.KeyCount {
			return nil, errors.NotValidf("keypad digit %q for key %q", digit, name)
		}
		out[strings.ToLower(name)] = uint8(v)
	}
	return out, nil
}

// Palette returns the lit and unlit pixel colours.
func (c *Config) Palette() (on, off color.RGBA) {
	on, _ = ParseColour(c.Foreground)
	off, _ = ParseColour(c.Background)
	return on, off
}

// RunnerOptions returns the execution loop options for this configuration.
func (c *Config) RunnerOptions() cpu.RunnerOptions {
	return cpu.RunnerOptions{CyclesPerSecond: c.CyclesPerSecond}
}

// CPUOptions returns the interpreter options for this configuration.
func (c *Config) CPUOptions() []cpu.Option {
	opts := []cpu.Option{cpu.WithQuirks(c.Quirks())}
	if c.Seed != 0 {
		opts = append(opts, cpu.WithSeed(c.Seed))
	}
	return opts
}

// ConfigureLogging applies the log specification.
func (c *Config) ConfigureLogging() error {
	return errors.Trace(loggo.ConfigureLoggers(c.Log))
}

// ParseColour reads "#RRGGBB" or "RRGGBB".
func ParseColour(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, errors.NotValidf("colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.NotValidf("colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// FormatColour is the inverse of ParseColour.
func FormatColour(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
