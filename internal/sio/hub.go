package sio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielkucera/siomon/internal/portio"
)

// Config tunes a Hub.
type Config struct {
	// Interval between poll cycles.
	Interval time.Duration
	// RedetectInterval retries failed detection from the poll loop; 0
	// leaves retries to explicit Detect calls.
	RedetectInterval time.Duration
	Spin             SpinConfig
	SettleDelay      time.Duration
	Limits           Limits
	Ports            []uint16
	// ReleaseOnClose hands fans back to firmware in Close.
	ReleaseOnClose bool
	// OnPublish, if set, receives each new snapshot on the polling
	// goroutine.
	OnPublish func(Snapshot)
}

// DefaultConfig polls every 500ms.
func DefaultConfig() Config {
	return Config{
		Interval:       500 * time.Millisecond,
		Spin:           DefaultSpin(),
		SettleDelay:    50 * time.Millisecond,
		Limits:         DefaultLimits(),
		Ports:          ConfigPorts,
		ReleaseOnClose: true,
	}
}

// Stats are cumulative engine counters.
type Stats struct {
	Cycles         uint64
	DetectAttempts uint64
	BusTimeouts    uint64
	Implausible    uint64
	FanWrites      uint64
}

// Hub owns the port bus and everything reached through it. Bus access is
// serialized by busMu; requests and snapshot reads never take it.
type Hub struct {
	cfg Config
	bus portio.Bus
	log *slog.Logger

	busMu       sync.Mutex
	dev         *Device // set once, guarded by busMu
	detected    atomic.Pointer[Device]
	lastAttempt time.Time

	lastSeen atomic.Uint32
	fan      *FanController
	snap     snapshotStore

	cycles, detects, implausible, fanWrites atomic.Uint64
	timeoutsSeen                            atomic.Uint64
	driverFailed                            atomic.Bool
}

// New returns a Hub on bus. A nil bus yields a Hub whose snapshots report
// StatusUnavailable and whose fan requests are recorded but never applied.
func New(bus portio.Bus, cfg Config, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	h := &Hub{
		cfg: cfg,
		bus: bus,
		log: log.With("component", "sio"),
		fan: NewFanController(cfg.SettleDelay),
	}
	status := StatusScanning
	if bus == nil {
		status = StatusUnavailable
	}
	h.snap.store(h.baseSnapshot(status, nil))
	return h
}

// Detect runs chip detection now unless a chip is already bound, in which
// case the bound chip is returned.
func (h *Hub) Detect() (DetectedChip, error) {
	if h.bus == nil {
		return DetectedChip{}, portio.ErrDriverUnavailable
	}
	h.busMu.Lock()
	defer h.busMu.Unlock()
	dev, err := h.detectLocked()
	if dev == nil {
		return DetectedChip{}, err
	}
	return dev.DetectedChip, err
}

func (h *Hub) detectLocked() (*Device, error) {
	if h.dev != nil {
		return h.dev, h.dev.readErr()
	}
	h.detects.Add(1)
	h.lastAttempt = time.Now()
	d := &Detector{Bus: h.bus, Ports: h.cfg.Ports, Log: h.log}
	chip, seen, err := d.Detect()
	if seen != ChipNone {
		h.lastSeen.Store(uint32(seen))
	}
	if err != nil {
		h.log.Debug("detection failed", "err", err, "last_seen", seen)
		return nil, err
	}
	dev := NewDevice(h.bus, chip, h.cfg.Spin)
	h.dev = dev
	h.detected.Store(dev)
	if err := dev.readErr(); err != nil {
		h.log.Warn("chip has no usable register map", "chip", chip.Name, "base", hexAddr(chip.ECBase))
		return dev, err
	}
	return dev, nil
}

func (h *Hub) shouldDetect() bool {
	if h.dev != nil {
		return false
	}
	if h.lastAttempt.IsZero() {
		return true
	}
	return h.cfg.RedetectInterval > 0 && time.Since(h.lastAttempt) >= h.cfg.RedetectInterval
}

// Cycle runs one poll: detection if due, sensor reads, fan reconcile and
// snapshot publication.
func (h *Hub) Cycle() {
	h.cycles.Add(1)
	if h.bus == nil {
		h.publish(h.baseSnapshot(StatusUnavailable, nil))
		return
	}

	h.busMu.Lock()
	if h.shouldDetect() {
		_, _ = h.detectLocked()
	}
	dev := h.dev
	var next Snapshot
	switch {
	case dev == nil:
		next = h.baseSnapshot(StatusScanning, nil)
	case !dev.Readable():
		next = h.baseSnapshot(StatusNoRegisterMap, dev)
	default:
		next = h.read(dev)
		h.reconcile(dev)
		h.fanFields(&next, dev)
	}
	h.busMu.Unlock()

	h.checkDriver()
	h.publish(next)
}

// checkDriver logs the driver's first I/O failure once.
func (h *Hub) checkDriver() {
	d, ok := h.bus.(interface{ Err() error })
	if !ok {
		return
	}
	if err := d.Err(); err != nil && h.driverFailed.CompareAndSwap(false, true) {
		h.log.Error("port I/O failed, readings are unreliable", "err", err)
	}
}

// read decodes every mapped sensor. Implausible values keep the previous
// cycle's reading.
func (h *Hub) read(dev *Device) Snapshot {
	prev := h.snap.load()
	next := h.baseSnapshot(StatusOK, dev)
	f := dev.formulas()
	lim := h.cfg.Limits
	m := dev.Map

	for _, s := range m.Temperatures {
		hi, lo := readPair(dev.Channel, s.Addr, s.Frac)
		v := f.Temperature(hi, lo)
		if err := lim.checkTemperature(v); err != nil {
			h.implausibleReading(s.Name, v)
			keepPrevious(next.Temperatures, prev.Temperatures, s.Name)
			continue
		}
		next.Temperatures[s.Name] = v
	}
	for _, r := range m.Voltages {
		hi, lo := readPair(dev.Channel, r.Hi, r.Lo)
		v := f.Voltage(hi, lo, r.Multiplier)
		if err := lim.checkVoltage(v, r.Nominal); err != nil {
			h.implausibleReading(r.Name, v)
			keepPrevious(next.Voltages, prev.Voltages, r.Name)
			continue
		}
		next.Voltages[r.Name] = v
	}
	for _, t := range m.Fans {
		hi, lo := readPair(dev.Channel, t.Hi, t.Lo)
		rpm := f.FanRPM(hi, lo)
		if err := lim.checkFanRPM(rpm); err != nil {
			h.implausibleReading(t.Name, rpm)
			keepPrevious(next.Fans, prev.Fans, t.Name)
			continue
		}
		next.Fans[t.Name] = rpm
	}
	if len(m.Fans) > 0 {
		if rpm, ok := next.Fans[m.Fans[0].Name]; ok {
			next.FanRPM = &rpm
		}
	}
	h.countTimeouts(dev)
	return next
}

func keepPrevious[V any](next, prev map[string]V, name string) {
	if v, ok := prev[name]; ok {
		next[name] = v
	}
}

func (h *Hub) implausibleReading(name string, value any) {
	h.implausible.Add(1)
	h.log.Debug("implausible reading", "sensor", name, "value", value)
}

func (h *Hub) reconcile(dev *Device) {
	wrote, err := h.fan.Reconcile(dev)
	switch {
	case errors.Is(err, ErrFanControlUnavailable):
	case errors.Is(err, ErrBusTimeout):
		h.log.Debug("fan write interrupted by bus timeout", "requested", h.fan.Requested())
	case wrote:
		h.fanWrites.Add(1)
		h.log.Info("fan speed applied", "percent", h.fan.Applied())
	}
	h.countTimeouts(dev)
}

func (h *Hub) countTimeouts(dev *Device) {
	if dev.Channel != nil {
		h.timeoutsSeen.Store(dev.Channel.Timeouts())
	}
}

func (h *Hub) baseSnapshot(status Status, dev *Device) Snapshot {
	s := Snapshot{
		Status:       status,
		LastSeenID:   h.LastSeenID(),
		Temperatures: map[string]float64{},
		Voltages:     map[string]float64{},
		Fans:         map[string]int{},
		LastUpdated:  time.Now(),
	}
	if dev != nil {
		s.Chip = dev.Name
		s.ChipID = dev.RawID
		s.ECBase = dev.ECBase
	}
	h.fanFields(&s, dev)
	return s
}

func (h *Hub) fanFields(s *Snapshot, dev *Device) {
	s.FanControl = dev.fanControl()
	s.FanState = h.fan.State().String()
	s.FanRequested = h.fan.Requested()
	s.FanApplied = h.fan.Applied()
}

func (h *Hub) publish(s Snapshot) {
	s.Cycle = h.cycles.Load()
	h.snap.store(s)
	if h.cfg.OnPublish != nil {
		h.cfg.OnPublish(s.Clone())
	}
}

// Run polls until ctx is cancelled, starting with an immediate cycle.
func (h *Hub) Run(ctx context.Context) {
	h.Cycle()
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Cycle()
		}
	}
}

// RequestSpeed records a manual fan duty (clamped to 0..100) for the next
// cycle and returns the stored value.
func (h *Hub) RequestSpeed(percent int) int { return h.fan.RequestSpeed(percent) }

// RequestAutomatic returns the fan to firmware control on the next cycle.
func (h *Hub) RequestAutomatic() { h.fan.RequestAutomatic() }

// FanRequested is the current fan target, ahead of the snapshot until the
// next cycle publishes it.
func (h *Hub) FanRequested() int { return h.fan.Requested() }

// Fan exposes the fan controller state.
func (h *Hub) Fan() *FanController { return h.fan }

// Snapshot returns a copy of the latest published state.
func (h *Hub) Snapshot() Snapshot { return h.snap.load() }

// LastSeenID is the most recent raw chip ID read during detection,
// recognized or not, or ChipNone.
func (h *Hub) LastSeenID() ChipID { return ChipID(h.lastSeen.Load()) }

// Chip returns the bound chip, if detection has succeeded.
func (h *Hub) Chip() (DetectedChip, bool) {
	if d := h.detected.Load(); d != nil {
		return d.DetectedChip, true
	}
	return DetectedChip{}, false
}

// Layout returns the bound chip's sensor names in register order.
func (h *Hub) Layout() Layout {
	if d := h.detected.Load(); d != nil {
		return d.Map.Layout()
	}
	return Layout{}
}

func (h *Hub) Stats() Stats {
	return Stats{
		Cycles:         h.cycles.Load(),
		DetectAttempts: h.detects.Load(),
		BusTimeouts:    h.timeoutsSeen.Load(),
		Implausible:    h.implausible.Load(),
		FanWrites:      h.fanWrites.Load(),
	}
}

// Close hands the fan back to firmware if configured, including when this
// process never learned the fan mode, and closes the bus when it is
// closable.
func (h *Hub) Close() error {
	if h.bus == nil {
		return nil
	}
	h.busMu.Lock()
	if h.cfg.ReleaseOnClose && h.dev.fanControl() && h.fan.Applied() != Automatic {
		h.fan.RequestAutomatic()
		if _, err := h.fan.Reconcile(h.dev); err != nil {
			h.log.Warn("failed to release fan control", "err", err)
		}
	}
	h.busMu.Unlock()

	if c, ok := h.bus.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
