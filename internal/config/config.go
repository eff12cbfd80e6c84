// Package config loads daemon settings. Precedence, lowest first: built-in
// defaults, the YAML file named by -config, command-line flags.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/bomb-prop/internal/display"
	"github.com/sweeney/bomb-prop/internal/gpio"
	"github.com/sweeney/bomb-prop/internal/logic"
)

// Off disables an optional endpoint (broker, display, HTTP).
const Off = "off"

// Config holds every daemon setting.
type Config struct {
	Poll           time.Duration `yaml:"poll"`
	Sample         time.Duration `yaml:"sample"`
	LongPress      time.Duration `yaml:"long_press"`
	DefaultMinutes int           `yaml:"default_minutes"`
	MinuteStep     int           `yaml:"minute_step"`
	MaxMinutes     int           `yaml:"max_minutes"`
	Games          int           `yaml:"games"`
	FinishedGrace  time.Duration `yaml:"finished_grace"`
	TickPeriod     time.Duration `yaml:"tick_period"`
	TieBreak       string        `yaml:"tie_break"`

	PinButton int    `yaml:"pin_button"`
	PinWires  []int  `yaml:"pin_wires"`
	PinBuzzer int    `yaml:"pin_buzzer"`
	Display   string `yaml:"display"` // I2C bus name, "" for the first bus, or "off"
	I2CAddr   uint16 `yaml:"display_addr"`

	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	HTTPAddr  string        `yaml:"http"`
	DBPath    string        `yaml:"db"`

	PrintState    bool `yaml:"-"`
	PrintPassword bool `yaml:"-"`
}

// Default returns the settings of the reference prop.
func Default() Config {
	g := logic.DefaultConfig()
	return Config{
		Poll:           2 * time.Millisecond,
		Sample:         g.SampleInterval,
		LongPress:      g.LongPress,
		DefaultMinutes: g.DefaultMinutes,
		MinuteStep:     g.MinuteStep,
		MaxMinutes:     g.MaxMinutes,
		Games:          g.Games,
		FinishedGrace:  g.FinishedGrace,
		TickPeriod:     g.TickPeriod,
		TieBreak:       string(g.TieBreak),

		PinButton: gpio.PinButton,
		PinWires:  gpio.DefaultWirePins(),
		PinBuzzer: gpio.PinBuzzer,
		Display:   "",
		I2CAddr:   display.DefaultAddress,

		Broker:    "tcp://192.168.4.2:1883",
		ClientID:  "bomb-prop",
		Heartbeat: 15 * time.Minute,
		HTTPAddr:  ":80",
		DBPath:    "/var/lib/bomb-prop/prop.db",
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadInto(&cfg, path); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadInto(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Parse builds the configuration from args (without the program name).
func Parse(args []string) (Config, error) {
	// First pass only finds -config; flags are applied again over the file.
	// Its errors are reported by the second pass.
	var path string
	scratch := Default()
	fs := newFlagSet(&scratch, &path)
	fs.SetOutput(io.Discard)
	_ = fs.Parse(args)

	cfg := Default()
	if path != "" {
		if err := loadInto(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	fs = newFlagSet(&cfg, &path)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet("bomb-prop", flag.ContinueOnError)
	fs.StringVar(path, "config", *path, "YAML config file (flags override it)")

	fs.DurationVar(&cfg.Poll, "poll", cfg.Poll, "GPIO polling interval")
	fs.DurationVar(&cfg.Sample, "sample", cfg.Sample, "Debounce sample interval")
	fs.DurationVar(&cfg.LongPress, "long-press", cfg.LongPress, "Long press duration")
	fs.IntVar(&cfg.DefaultMinutes, "minutes", cfg.DefaultMinutes, "Default round length in minutes")
	fs.IntVar(&cfg.MinuteStep, "minute-step", cfg.MinuteStep, "Minutes added per short press")
	fs.IntVar(&cfg.MaxMinutes, "max-minutes", cfg.MaxMinutes, "Longest selectable round")
	fs.IntVar(&cfg.Games, "games", cfg.Games, "Number of selectable game variants")
	fs.DurationVar(&cfg.FinishedGrace, "finished-grace", cfg.FinishedGrace, "How long the outcome cue plays")
	fs.DurationVar(&cfg.TickPeriod, "tick-period", cfg.TickPeriod, "Buzzer tick period while armed")
	fs.StringVar(&cfg.TieBreak, "tie-break", cfg.TieBreak, `Outcome when win and lose hold together ("win-first" or "lose-first")`)

	fs.IntVar(&cfg.PinButton, "pin-button", cfg.PinButton, "BCM pin number for the button")
	fs.Var((*intList)(&cfg.PinWires), "pin-wires", "Comma-separated BCM pins for wires 1..n")
	fs.IntVar(&cfg.PinBuzzer, "pin-buzzer", cfg.PinBuzzer, "BCM pin number for the buzzer")
	fs.StringVar(&cfg.Display, "display", cfg.Display, `I2C bus for the HT16K33 display ("" for the first bus, "off" logs instead)`)
	fs.Var((*hexAddr)(&cfg.I2CAddr), "display-addr", "I2C address of the display")

	fs.StringVar(&cfg.Broker, "broker", cfg.Broker, `MQTT broker address ("off" disables)`)
	fs.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "MQTT client ID")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "Heartbeat interval (0 to disable)")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status address (empty to disable)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")

	fs.BoolVar(&cfg.PrintState, "print-state", false, "Print current input levels and exit")
	fs.BoolVar(&cfg.PrintPassword, "print-password", false, "Print the access point password and exit")
	return fs
}

// Validate rejects settings the game cannot run with.
func (c Config) Validate() error {
	var errs []error
	positive := map[string]time.Duration{
		"poll":           c.Poll,
		"long-press":     c.LongPress,
		"finished-grace": c.FinishedGrace,
		"tick-period":    c.TickPeriod,
	}
	for _, name := range []string{"poll", "long-press", "finished-grace", "tick-period"} {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", name, positive[name]))
		}
	}
	if c.Sample < 0 {
		errs = append(errs, fmt.Errorf("sample must not be negative, got %v", c.Sample))
	}
	if c.Heartbeat < 0 {
		errs = append(errs, fmt.Errorf("heartbeat must not be negative, got %v", c.Heartbeat))
	}
	if n := len(c.PinWires); n < 1 || n > logic.MaxWires {
		errs = append(errs, fmt.Errorf("need 1..%d wire pins, got %d", logic.MaxWires, n))
	}
	if c.MinuteStep < 1 {
		errs = append(errs, fmt.Errorf("minute-step must be at least 1, got %d", c.MinuteStep))
	}
	if c.MaxMinutes < c.MinuteStep || c.MaxMinutes > 99 {
		errs = append(errs, fmt.Errorf("max-minutes must be in %d..99, got %d", c.MinuteStep, c.MaxMinutes))
	}
	if c.DefaultMinutes < 1 || c.DefaultMinutes > c.MaxMinutes {
		errs = append(errs, fmt.Errorf("minutes must be in 1..%d, got %d", c.MaxMinutes, c.DefaultMinutes))
	}
	if c.Games < 1 || c.Games > 2 {
		errs = append(errs, fmt.Errorf("games must be 1 or 2, got %d", c.Games))
	}
	switch logic.TieBreak(c.TieBreak) {
	case logic.WinFirst, logic.LoseFirst:
	default:
		errs = append(errs, fmt.Errorf("unknown tie-break %q", c.TieBreak))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path must be set"))
	}
	return errors.Join(errs...)
}

// GameConfig returns the logic settings.
func (c Config) GameConfig() logic.Config {
	return logic.Config{
		Wires:          len(c.PinWires),
		SampleInterval: c.Sample,
		LongPress:      c.LongPress,
		DefaultMinutes: c.DefaultMinutes,
		MinuteStep:     c.MinuteStep,
		MaxMinutes:     c.MaxMinutes,
		Games:          c.Games,
		FinishedGrace:  c.FinishedGrace,
		TickPeriod:     c.TickPeriod,
		TieBreak:       logic.TieBreak(c.TieBreak),
	}
}

// BrokerEnabled reports whether MQTT publishing is configured.
func (c Config) BrokerEnabled() bool {
	return c.Broker != "" && c.Broker != Off
}

// DisplayEnabled reports whether the HT16K33 should be opened.
func (c Config) DisplayEnabled() bool {
	return c.Display != Off
}

// intList is a flag.Value for "17,27,22".
type intList []int

func (l *intList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, v := range *l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func (l *intList) Set(s string) error {
	var out []int
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("bad pin %q: %w", p, err)
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

// hexAddr is a flag.Value accepting "0x70" or "112".
type hexAddr uint16

func (a *hexAddr) String() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf("0x%02x", uint16(*a))
}

func (a *hexAddr) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return fmt.Errorf("bad address %q: %w", s, err)
	}
	*a = hexAddr(v)
	return nil
}
