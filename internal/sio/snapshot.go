package sio

import (
	"maps"
	"sync"
	"time"
)

// Status describes what a snapshot could observe.
type Status string

const (
	// StatusUnavailable: no port I/O driver.
	StatusUnavailable Status = "unavailable"
	// StatusScanning: no recognized chip yet.
	StatusScanning Status = "scanning"
	// StatusNoRegisterMap: chip recognized but its sensors cannot be read.
	StatusNoRegisterMap Status = "no-register-map"
	StatusOK            Status = "ok"
)

// Snapshot is the externally visible state after a poll cycle. Readers
// always get their own copy.
type Snapshot struct {
	Status     Status `json:"status"`
	Chip       string `json:"chip,omitempty"`
	ChipID     ChipID `json:"chip_id"`
	LastSeenID ChipID `json:"last_seen_id"`
	ECBase     uint16 `json:"ec_base"`

	Temperatures map[string]float64 `json:"temperatures"`
	Voltages     map[string]float64 `json:"voltages"`
	Fans         map[string]int     `json:"fans"`
	// FanRPM is the primary fan tachometer, nil when it has no reading.
	FanRPM *int `json:"fan_rpm,omitempty"`

	FanControl   bool   `json:"fan_control"`
	FanState     string `json:"fan_state"`
	FanRequested int    `json:"fan_requested"`
	FanApplied   int    `json:"fan_applied"`

	Cycle       uint64    `json:"cycle"`
	LastUpdated time.Time `json:"last_updated"`
}

// HasData reports whether any sensor value is present.
func (s Snapshot) HasData() bool {
	return len(s.Temperatures)+len(s.Voltages)+len(s.Fans) > 0
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.Temperatures = cloneOrEmpty(s.Temperatures)
	s.Voltages = cloneOrEmpty(s.Voltages)
	s.Fans = cloneOrEmpty(s.Fans)
	if s.FanRPM != nil {
		rpm := *s.FanRPM
		s.FanRPM = &rpm
	}
	return s
}

func cloneOrEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return maps.Clone(m)
}

// snapshotStore replaces the snapshot as a whole so readers never see a
// half-updated cycle.
type snapshotStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func (s *snapshotStore) load() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *snapshotStore) store(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}
