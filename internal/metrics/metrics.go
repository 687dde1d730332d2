// Package metrics exports engine snapshots as Prometheus metrics.
package metrics

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielkucera/siomon/internal/sio"
)

// Exporter holds the gauges mirrored from each published snapshot.
type Exporter struct {
	mu        sync.Mutex
	gauges    map[string]prometheus.Gauge
	gaugeVecs map[string]*prometheus.GaugeVec
}

// NewExporter registers the snapshot gauges and the engine counters on
// reg. stats is read at scrape time.
func NewExporter(reg prometheus.Registerer, stats func() sio.Stats) *Exporter {
	e := &Exporter{
		gauges:    map[string]prometheus.Gauge{},
		gaugeVecs: map[string]*prometheus.GaugeVec{},
	}

	e.addGauge("siomon_up", "1 when the last cycle read sensors")
	e.addGauge("siomon_chip_id", "Detected Super I/O chip ID")
	e.addGauge("siomon_last_seen_chip_id", "Last raw chip ID read during detection")
	e.addGauge("siomon_fan_requested_percent", "Requested fan duty (%), -1 = automatic")
	e.addGauge("siomon_fan_applied_percent", "Applied fan duty (%), -1 = automatic, -2 = nothing applied yet")
	e.addGauge("siomon_last_update_timestamp_seconds", "Time of the last published snapshot")

	e.addGaugeVec("siomon_temperature_celsius", "Temperature (°C)", "sensor")
	e.addGaugeVec("siomon_voltage_volts", "Voltage rail (V)", "rail")
	e.addGaugeVec("siomon_fan_speed_rpm", "Fan tachometer (RPM)", "fan")
	e.addGaugeVec("siomon_status", "Engine status, 1 for the current one", "status")
	// No labels: the single series is removed while the tach has no reading.
	e.addGaugeVec("siomon_fan_rpm", "Primary fan speed (RPM)")

	for _, g := range e.gauges {
		reg.MustRegister(g)
	}
	for _, gv := range e.gaugeVecs {
		reg.MustRegister(gv)
	}

	reg.MustRegister(
		counterFunc("siomon_cycles_total", "Poll cycles run", func() float64 { return float64(stats().Cycles) }),
		counterFunc("siomon_detect_attempts_total", "Chip detection attempts", func() float64 { return float64(stats().DetectAttempts) }),
		counterFunc("siomon_bus_timeouts_total", "EC spin-waits that exhausted their budget", func() float64 { return float64(stats().BusTimeouts) }),
		counterFunc("siomon_implausible_readings_total", "Sensor readings rejected as implausible", func() float64 { return float64(stats().Implausible) }),
		counterFunc("siomon_fan_writes_total", "Completed fan write sequences", func() float64 { return float64(stats().FanWrites) }),
	)
	return e
}

func counterFunc(name, help string, f func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help}, f)
}

func (e *Exporter) addGauge(name, help string) {
	e.gauges[name] = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
}

func (e *Exporter) addGaugeVec(name, help string, labels ...string) {
	e.gaugeVecs[name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, labels)
}

var statuses = []sio.Status{sio.StatusUnavailable, sio.StatusScanning, sio.StatusNoRegisterMap, sio.StatusOK}

// Update mirrors a snapshot. Sensors missing from s are dropped rather
// than left at their last value.
func (e *Exporter) Update(s sio.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	up := 0.0
	if s.Status == sio.StatusOK {
		up = 1
	}
	e.setGauge("siomon_up", up)
	e.setGauge("siomon_chip_id", float64(s.ChipID))
	e.setGauge("siomon_last_seen_chip_id", float64(s.LastSeenID))
	primary := e.gaugeVecs["siomon_fan_rpm"]
	primary.Reset()
	if s.FanRPM != nil {
		primary.WithLabelValues().Set(float64(*s.FanRPM))
	}
	e.setGauge("siomon_fan_requested_percent", float64(s.FanRequested))
	e.setGauge("siomon_fan_applied_percent", float64(s.FanApplied))
	if !s.LastUpdated.IsZero() {
		e.setGauge("siomon_last_update_timestamp_seconds", float64(s.LastUpdated.UnixNano())/1e9)
	}

	for _, st := range statuses {
		v := 0.0
		if st == s.Status {
			v = 1
		}
		e.gaugeVecs["siomon_status"].WithLabelValues(string(st)).Set(v)
	}

	setVec(e.gaugeVecs["siomon_temperature_celsius"], s.Temperatures)
	setVec(e.gaugeVecs["siomon_voltage_volts"], s.Voltages)
	setVec(e.gaugeVecs["siomon_fan_speed_rpm"], s.Fans)
}

func setVec[V int | float64](gv *prometheus.GaugeVec, values map[string]V) {
	gv.Reset()
	for name, v := range values {
		gv.WithLabelValues(name).Set(float64(v))
	}
}

func (e *Exporter) setGauge(name string, v float64) {
	if g, ok := e.gauges[name]; ok {
		g.Set(v)
	} else {
		slog.Warn("metric not found", "name", name)
	}
}
