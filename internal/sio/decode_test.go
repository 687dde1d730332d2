package sio

import (
	"errors"
	"math"
	"testing"
)

// ─── Nuvoton Formulas ───────────────────────────────────────────────────────

func TestDecodeTemperature(t *testing.T) {
	tests := []struct {
		integer, fraction byte
		want              float64
	}{
		{45, 0x80, 45.5},
		{45, 0x00, 45.0},
		{45, 0x7F, 45.0},
		{30, 0xFF, 30.5},
	}
	for _, tt := range tests {
		if got := DecodeTemperature(tt.integer, tt.fraction); got != tt.want {
			t.Errorf("DecodeTemperature(%d, 0x%02X) = %v, want %v", tt.integer, tt.fraction, got, tt.want)
		}
	}
}

func TestDecodeVoltage(t *testing.T) {
	// 0x19<<4 | 0xA0>>4 = 410 mV, times 12.
	got := DecodeVoltage(0x19, 0xA0, 12)
	if math.Abs(got-4.92) > 1e-9 {
		t.Errorf("DecodeVoltage = %v, want 4.92", got)
	}
	if got := DecodeVoltage(0x4B, 0x00, 1); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("DecodeVoltage vcore = %v, want 1.2", got)
	}
}

func TestDecodeFanRPM(t *testing.T) {
	if got := DecodeFanRPM(0x04, 0x20); got != 1056 {
		t.Errorf("DecodeFanRPM = %d, want 1056", got)
	}
}

// ─── ITE / Fintek Formulas ──────────────────────────────────────────────────

func TestITEFormulas(t *testing.T) {
	if got := iteTemperature(52, 0); got != 52 {
		t.Errorf("iteTemperature = %v, want 52", got)
	}
	if got := iteVoltage(0, 100, 1); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("iteVoltage = %v, want 1.2", got)
	}
	if got := iteFanRPM(0x02, 0x00); got != 1318 {
		t.Errorf("iteFanRPM(512) = %d, want 1318", got)
	}
	if got := iteFanRPM(0xFF, 0xFF); got != 0 {
		t.Errorf("iteFanRPM(0xFFFF) = %d, want 0", got)
	}
}

func TestFintekFormulas(t *testing.T) {
	if got := fintekVoltage(0, 150, 1); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("fintekVoltage = %v, want 1.2", got)
	}
	if got := fintekFanRPM(0x05, 0xDC); got != 1000 {
		t.Errorf("fintekFanRPM(1500) = %d, want 1000", got)
	}
	if got := fintekFanRPM(0, 0); got != 0 {
		t.Errorf("fintekFanRPM(0) = %d, want 0", got)
	}
}

// ─── Plausibility ───────────────────────────────────────────────────────────

func TestLimits_Temperature(t *testing.T) {
	l := DefaultLimits()
	tests := []struct {
		v  float64
		ok bool
	}{
		{150, false},
		{115, false},
		{114.5, true},
		{45.5, true},
		{0, false},
		{-3, false},
	}
	for _, tt := range tests {
		err := l.checkTemperature(tt.v)
		if (err == nil) != tt.ok {
			t.Errorf("checkTemperature(%v) err = %v, want ok=%v", tt.v, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrImplausibleReading) {
			t.Errorf("checkTemperature(%v) err = %v, want ErrImplausibleReading", tt.v, err)
		}
	}
}

func TestLimits_VoltageAndFan(t *testing.T) {
	l := DefaultLimits()
	if l.checkVoltage(12.1, 12) != nil {
		t.Error("12.1V on a 12V rail should be plausible")
	}
	if l.checkVoltage(0, 12) == nil {
		t.Error("0V should be implausible")
	}
	if l.checkVoltage(5, 1.2) == nil {
		t.Error("5V on a 1.2V rail should be implausible")
	}
	if l.checkFanRPM(0) != nil {
		t.Error("a stopped fan is plausible")
	}
	if l.checkFanRPM(0xFFFF) == nil {
		t.Error("65535 RPM should be implausible")
	}
}

// ─── PWM Mapping ────────────────────────────────────────────────────────────

func TestPercentToPWM(t *testing.T) {
	tests := []struct {
		percent int
		want    byte
	}{
		{0, 0},
		{50, 128},
		{100, 255},
		{40, 102},
		{150, 255},
		{-5, 0},
	}
	for _, tt := range tests {
		if got := PercentToPWM(tt.percent); got != tt.want {
			t.Errorf("PercentToPWM(%d) = %d, want %d", tt.percent, got, tt.want)
		}
	}
}
