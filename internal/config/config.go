// Package config loads the siomon daemon configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danielkucera/siomon/internal/portio"
	"github.com/danielkucera/siomon/internal/sio"
)

// Config holds all daemon configuration.
type Config struct {
	Bus     BusConfig     `toml:"bus"`
	Poll    PollConfig    `toml:"poll"`
	Sensors SensorsConfig `toml:"sensors"`
	HTTP    HTTPConfig    `toml:"http"`
	Modbus  ModbusConfig  `toml:"modbus"`
	Logging LoggingConfig `toml:"logging"`
}

// BusConfig selects the port I/O driver.
type BusConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// PollConfig controls the polling loop and EC timing.
type PollConfig struct {
	Interval         Duration `toml:"interval"`
	RedetectInterval Duration `toml:"redetect_interval"`
	SpinBudget       int      `toml:"spin_budget"`
	SpinPause        Duration `toml:"spin_pause"`
	SettleDelay      Duration `toml:"settle_delay"`
}

// SensorsConfig bounds plausible temperatures in °C.
type SensorsConfig struct {
	TempMin float64 `toml:"temp_min"`
	TempMax float64 `toml:"temp_max"`
}

// HTTPConfig controls the HTTP API server.
type HTTPConfig struct {
	Listen  string `toml:"listen"`
	Metrics bool   `toml:"metrics"`
}

// ModbusConfig controls the Modbus TCP server.
type ModbusConfig struct {
	Enabled    bool   `toml:"enabled"`
	Listen     string `toml:"listen"`
	MaxClients uint   `toml:"max_clients"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as "500ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Bus: BusConfig{
			Driver: portio.KindAuto,
		},
		Poll: PollConfig{
			Interval:    Duration{500 * time.Millisecond},
			SpinBudget:  1000,
			SpinPause:   Duration{time.Microsecond},
			SettleDelay: Duration{50 * time.Millisecond},
		},
		Sensors: SensorsConfig{
			TempMin: 0,
			TempMax: 115,
		},
		HTTP: HTTPConfig{
			Listen:  "127.0.0.1:9090",
			Metrics: true,
		},
		Modbus: ModbusConfig{
			Listen:     "tcp://127.0.0.1:5502",
			MaxClients: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath is the config file used when none is named.
func DefaultPath() string {
	return filepath.Join(Home(), "config.toml")
}

// Load reads path, or DefaultPath() when path is empty. Only a missing
// default file falls back to defaults; a named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultPath()); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg to path.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Poll.Interval.Duration <= 0:
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval)
	case c.Poll.RedetectInterval.Duration < 0:
		return fmt.Errorf("poll.redetect_interval must not be negative, got %s", c.Poll.RedetectInterval)
	case c.Poll.SpinBudget <= 0:
		return fmt.Errorf("poll.spin_budget must be positive, got %d", c.Poll.SpinBudget)
	case c.Poll.SpinPause.Duration < 0 || c.Poll.SettleDelay.Duration < 0:
		return errors.New("poll.spin_pause and poll.settle_delay must not be negative")
	case c.Sensors.TempMin >= c.Sensors.TempMax:
		return fmt.Errorf("sensors.temp_min (%v) must be below temp_max (%v)", c.Sensors.TempMin, c.Sensors.TempMax)
	}
	switch c.Bus.Driver {
	case portio.KindAuto, portio.KindDevPort, portio.KindInpOut:
	default:
		return fmt.Errorf("bus.driver %q: want auto, devport or inpout", c.Bus.Driver)
	}
	return nil
}

// Engine converts the polling and sensor settings for sio.New.
func (c Config) Engine() sio.Config {
	e := sio.DefaultConfig()
	e.Interval = c.Poll.Interval.Duration
	e.RedetectInterval = c.Poll.RedetectInterval.Duration
	e.Spin = sio.SpinConfig{Budget: c.Poll.SpinBudget, Pause: c.Poll.SpinPause.Duration}
	e.SettleDelay = c.Poll.SettleDelay.Duration
	e.Limits.TempMin = c.Sensors.TempMin
	e.Limits.TempMax = c.Sensors.TempMax
	return e
}

// Home returns the siomon data directory.
func Home() string {
	if env := os.Getenv("SIOMON_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".siomon")
}
