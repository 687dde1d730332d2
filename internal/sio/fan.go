package sio

import (
	"sync/atomic"
	"time"
)

const (
	// Automatic is the requested/applied value meaning "firmware controls
	// the fan".
	Automatic = -1
	// NotApplied is the applied value before this process has completed a
	// write. The hardware may still be in manual mode from an earlier run.
	NotApplied = -2
)

// FanState summarizes a FanController.
type FanState int

const (
	FanAutomatic FanState = iota
	FanManualRequested
	FanManualApplied
	FanReleaseRequested
	FanUnknown
)

func (s FanState) String() string {
	switch s {
	case FanAutomatic:
		return "automatic"
	case FanManualRequested:
		return "manual-requested"
	case FanManualApplied:
		return "manual-applied"
	case FanReleaseRequested:
		return "release-requested"
	case FanUnknown:
		return "unknown"
	}
	return "invalid"
}

// FanController separates the requested fan speed, written from any
// goroutine, from the applied speed, written only by Reconcile on the
// polling goroutine.
type FanController struct {
	requested atomic.Int32
	applied   atomic.Int32
	asked     atomic.Bool
	settle    time.Duration
	sleep     func(time.Duration)
}

// NewFanController returns a controller that has not been asked for
// anything and does not know the hardware's mode. settle is the pause after
// each request/commit handshake write.
func NewFanController(settle time.Duration) *FanController {
	f := &FanController{settle: settle, sleep: time.Sleep}
	f.requested.Store(Automatic)
	f.applied.Store(NotApplied)
	return f
}

// RequestSpeed records a manual duty request, clamped to 0..100, and
// returns the stored value. It never touches hardware.
func (f *FanController) RequestSpeed(percent int) int {
	p := clampPercent(percent)
	f.requested.Store(int32(p))
	f.asked.Store(true)
	return p
}

// RequestAutomatic hands the fan back to firmware control on the next
// reconcile. The release is written even if this process never set a
// manual speed.
func (f *FanController) RequestAutomatic() {
	f.requested.Store(Automatic)
	f.asked.Store(true)
}

func (f *FanController) Requested() int { return int(f.requested.Load()) }

func (f *FanController) Applied() int { return int(f.applied.Load()) }

func (f *FanController) State() FanState {
	req, app := f.Requested(), f.Applied()
	switch {
	case req == app && req == Automatic:
		return FanAutomatic
	case req == app:
		return FanManualApplied
	case app == NotApplied && !f.asked.Load():
		return FanUnknown
	case req == Automatic:
		return FanReleaseRequested
	}
	return FanManualRequested
}

// Reconcile writes the requested speed to the chip when it differs from
// the applied one. Until the first request the hardware is left as found.
// The caller must hold the bus lock. Applied advances only when the whole
// write sequence ran without a bus timeout.
func (f *FanController) Reconcile(dev *Device) (wrote bool, err error) {
	if !dev.fanControl() {
		return false, ErrFanControlUnavailable
	}
	if !f.asked.Load() {
		return false, nil
	}
	req := f.requested.Load()
	if req == f.applied.Load() {
		return false, nil
	}

	before := dev.Channel.Timeouts()
	settle := func() {
		if f.settle > 0 {
			f.sleep(f.settle)
		}
	}
	if req == Automatic {
		dev.proto.fan.release(dev.Channel, dev.Map, settle)
	} else {
		dev.proto.fan.apply(dev.Channel, dev.Map, PercentToPWM(int(req)), settle)
	}
	if dev.Channel.Timeouts() != before {
		return true, ErrBusTimeout
	}
	f.applied.Store(req)
	return true, nil
}

// fanWriter is a family's fan write sequence.
type fanWriter interface {
	apply(ch Channel, m *RegisterMap, pwm byte, settle func())
	release(ch Channel, m *RegisterMap, settle func())
}

// handshakeFan brackets mode and duty writes with the Nuvoton
// request/commit handshake on ControlReg.
type handshakeFan struct{}

func (handshakeFan) apply(ch Channel, m *RegisterMap, pwm byte, settle func()) {
	handshakeFan{}.write(ch, m, true, pwm, settle)
}

func (handshakeFan) release(ch Channel, m *RegisterMap, settle func()) {
	handshakeFan{}.write(ch, m, false, 0, settle)
}

func (handshakeFan) write(ch Channel, m *RegisterMap, manual bool, pwm byte, settle func()) {
	for _, c := range m.Control {
		ch.Write(m.ControlReg, nctFanRequest)
		settle()
		setMode(ch, c, manual)
		if manual {
			ch.Write(c.Duty, pwm)
		}
		ch.Write(m.ControlReg, nctFanCommit)
		settle()
	}
}

// modeBitFan flips a per-channel mode bit and writes the duty register
// directly.
type modeBitFan struct{}

func (modeBitFan) apply(ch Channel, m *RegisterMap, pwm byte, _ func()) {
	for _, c := range m.Control {
		setMode(ch, c, true)
		ch.Write(c.Duty, pwm)
	}
}

func (modeBitFan) release(ch Channel, m *RegisterMap, _ func()) {
	for _, c := range m.Control {
		setMode(ch, c, false)
	}
}

func setMode(ch Channel, c FanChannel, manual bool) {
	mode := ch.Read(c.Mode)
	if c.manual(mode) != manual {
		ch.Write(c.Mode, c.withManual(mode, manual))
	}
}
