package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Poll.Interval.Duration != 500*time.Millisecond {
		t.Errorf("Poll.Interval = %s, want 500ms", cfg.Poll.Interval)
	}
	if cfg.Poll.SpinBudget != 1000 {
		t.Errorf("Poll.SpinBudget = %d, want 1000", cfg.Poll.SpinBudget)
	}
	if cfg.Poll.SettleDelay.Duration != 50*time.Millisecond {
		t.Errorf("Poll.SettleDelay = %s, want 50ms", cfg.Poll.SettleDelay)
	}
	if cfg.Sensors.TempMax != 115 {
		t.Errorf("Sensors.TempMax = %v, want 115", cfg.Sensors.TempMax)
	}
	if cfg.Modbus.Enabled {
		t.Error("Modbus should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("SIOMON_HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9090" {
		t.Errorf("HTTP.Listen = %q", cfg.HTTP.Listen)
	}
}

func TestLoad_MissingNamedFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load err = %v, want ErrNotExist", err)
	}
}

func TestLoad_DefaultFileUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SIOMON_HOME", home)
	if err := os.WriteFile(filepath.Join(home, "config.toml"), []byte("[http]\nlisten = \"0.0.0.0:9999\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Listen != "0.0.0.0:9999" {
		t.Errorf("HTTP.Listen = %q, want 0.0.0.0:9999", cfg.HTTP.Listen)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[bus]
driver = "devport"

[poll]
interval = "2s"
redetect_interval = "30s"
spin_budget = 250

[sensors]
temp_max = 100.0

[modbus]
enabled = true
listen = "tcp://0.0.0.0:502"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Interval.Duration != 2*time.Second {
		t.Errorf("Poll.Interval = %s, want 2s", cfg.Poll.Interval)
	}
	if cfg.Poll.SpinBudget != 250 {
		t.Errorf("Poll.SpinBudget = %d, want 250", cfg.Poll.SpinBudget)
	}
	if cfg.Poll.SettleDelay.Duration != 50*time.Millisecond {
		t.Errorf("unset Poll.SettleDelay = %s, want default 50ms", cfg.Poll.SettleDelay)
	}
	if !cfg.Modbus.Enabled || cfg.Modbus.Listen != "tcp://0.0.0.0:502" {
		t.Errorf("Modbus = %+v", cfg.Modbus)
	}

	e := cfg.Engine()
	if e.Interval != 2*time.Second || e.RedetectInterval != 30*time.Second {
		t.Errorf("Engine intervals = %s/%s", e.Interval, e.RedetectInterval)
	}
	if e.Spin.Budget != 250 || e.Limits.TempMax != 100 {
		t.Errorf("Engine spin/limits = %d/%v", e.Spin.Budget, e.Limits.TempMax)
	}
	if !e.ReleaseOnClose {
		t.Error("ReleaseOnClose should default to true")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[poll]\ninterval = \"fast\"\n"), 0600)
	if _, err := Load(path); err == nil {
		t.Error("Load accepted an unparseable duration")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Poll.Interval.Duration = 0 }, "poll.interval"},
		{"zero budget", func(c *Config) { c.Poll.SpinBudget = 0 }, "spin_budget"},
		{"inverted temps", func(c *Config) { c.Sensors.TempMin = 120 }, "temp_min"},
		{"unknown driver", func(c *Config) { c.Bus.Driver = "ioctl" }, "bus.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Poll.Interval.Duration = 750 * time.Millisecond
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Poll.Interval.Duration != 750*time.Millisecond {
		t.Errorf("Poll.Interval = %s, want 750ms", got.Poll.Interval)
	}
}

func TestHome_Env(t *testing.T) {
	t.Setenv("SIOMON_HOME", "/tmp/siomon-test")
	if Home() != "/tmp/siomon-test" {
		t.Errorf("Home() = %q", Home())
	}
}
