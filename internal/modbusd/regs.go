// Package modbusd exposes the engine over Modbus TCP: the snapshot as
// input registers and the fan target as a holding register.
package modbusd

import (
	"math"

	"github.com/danielkucera/siomon/internal/sio"
)

// Input register layout.
const (
	AddrStatus       = 0
	AddrChipID       = 1
	AddrLastSeenID   = 2
	AddrFanRPM       = 3
	AddrFanApplied   = 4
	AddrFanRequested = 5
	AddrTempCount    = 6
	AddrVoltCount    = 7
	AddrFanCount     = 8
	AddrCycle        = 9 // low 16 bits

	AddrTempBase = 10 // int16, 0.1 °C
	AddrVoltBase = 40 // uint16, mV
	AddrFanBase  = 70 // uint16, RPM

	SlotsPerBlock = 30
	InputRegCount = AddrFanBase + SlotsPerBlock
)

// Holding register layout.
const (
	HoldingFanPercent = 0
	HoldingRegCount   = 1
)

// Register sentinels.
const (
	FanAutomatic = 0xFFFF // percent registers: firmware control
	FanUnknown   = 0xFFFE // applied percent: nothing written yet
	NoTemp       = 0x8000 // int16 min
	NoValue      = 0xFFFF
)

// Status register values.
const (
	StatusUnavailable uint16 = iota
	StatusScanning
	StatusNoRegisterMap
	StatusOK
)

var statusCodes = map[sio.Status]uint16{
	sio.StatusUnavailable:   StatusUnavailable,
	sio.StatusScanning:      StatusScanning,
	sio.StatusNoRegisterMap: StatusNoRegisterMap,
	sio.StatusOK:            StatusOK,
}

// InputRegs is the decoded input register block. Missing temperatures and
// voltages are NaN, missing fans and FanRPM -1.
type InputRegs struct {
	Status       uint16
	ChipID       uint16
	LastSeenID   uint16
	FanRPM       int
	FanApplied   int
	FanRequested int
	Cycle        uint16
	Temps        []float64
	Volts        []float64
	Fans         []int
}

// EncodeInputRegs lays a snapshot out in register order. Sensor slots
// follow the chip's register map order.
func EncodeInputRegs(s sio.Snapshot, l sio.Layout) []uint16 {
	regs := make([]uint16, InputRegCount)
	regs[AddrStatus] = statusCodes[s.Status]
	regs[AddrChipID] = uint16(s.ChipID)
	regs[AddrLastSeenID] = uint16(s.LastSeenID)
	regs[AddrFanRPM] = NoValue
	if s.FanRPM != nil {
		regs[AddrFanRPM] = clampU16(*s.FanRPM)
	}
	regs[AddrFanApplied] = percentReg(s.FanApplied)
	regs[AddrFanRequested] = percentReg(s.FanRequested)
	regs[AddrCycle] = uint16(s.Cycle)

	regs[AddrTempCount] = fill(regs[AddrTempBase:AddrVoltBase], l.Temperatures, func(name string) uint16 {
		v, ok := s.Temperatures[name]
		if !ok {
			return NoTemp
		}
		return uint16(int16(math.Round(v * 10)))
	})
	regs[AddrVoltCount] = fill(regs[AddrVoltBase:AddrFanBase], l.Voltages, func(name string) uint16 {
		v, ok := s.Voltages[name]
		if !ok {
			return NoValue
		}
		return clampU16(int(math.Round(v * 1000)))
	})
	regs[AddrFanCount] = fill(regs[AddrFanBase:InputRegCount], l.Fans, func(name string) uint16 {
		v, ok := s.Fans[name]
		if !ok {
			return NoValue
		}
		return clampU16(v)
	})
	return regs
}

func fill(block []uint16, names []string, enc func(string) uint16) uint16 {
	n := min(len(names), len(block))
	for i := 0; i < n; i++ {
		block[i] = enc(names[i])
	}
	return uint16(n)
}

// DecodeInputMap constructs InputRegs from a map[address]value.
func DecodeInputMap(m map[uint16]uint16) InputRegs {
	r := InputRegs{
		Status:       m[AddrStatus],
		ChipID:       m[AddrChipID],
		LastSeenID:   m[AddrLastSeenID],
		FanRPM:       rpmValue(m[AddrFanRPM]),
		FanApplied:   percentValue(m[AddrFanApplied]),
		FanRequested: percentValue(m[AddrFanRequested]),
		Cycle:        m[AddrCycle],
	}
	for i := uint16(0); i < min(m[AddrTempCount], SlotsPerBlock); i++ {
		v := m[AddrTempBase+i]
		if v == NoTemp {
			r.Temps = append(r.Temps, math.NaN())
			continue
		}
		r.Temps = append(r.Temps, i16f(v, 0.1))
	}
	for i := uint16(0); i < min(m[AddrVoltCount], SlotsPerBlock); i++ {
		v := m[AddrVoltBase+i]
		if v == NoValue {
			r.Volts = append(r.Volts, math.NaN())
			continue
		}
		r.Volts = append(r.Volts, u16f(v, 0.001))
	}
	for i := uint16(0); i < min(m[AddrFanCount], SlotsPerBlock); i++ {
		v := m[AddrFanBase+i]
		if v == NoValue {
			r.Fans = append(r.Fans, -1)
			continue
		}
		r.Fans = append(r.Fans, int(v))
	}
	return r
}

func i16f(v uint16, scale float64) float64 { return float64(int16(v)) * scale }

func u16f(v uint16, scale float64) float64 { return float64(v) * scale }

func clampU16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16-1:
		return math.MaxUint16 - 1
	}
	return uint16(v)
}

func rpmValue(v uint16) int {
	if v == NoValue {
		return -1
	}
	return int(v)
}

func percentReg(p int) uint16 {
	switch {
	case p == sio.NotApplied:
		return FanUnknown
	case p < 0:
		return FanAutomatic
	}
	return uint16(p)
}

func percentValue(v uint16) int {
	switch v {
	case FanAutomatic:
		return sio.Automatic
	case FanUnknown:
		return sio.NotApplied
	}
	return int(v)
}
