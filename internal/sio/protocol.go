package sio

import "github.com/danielkucera/siomon/internal/portio"

// Configuration-space registers, common to all families.
const (
	regLDN         = 0x07
	regChipIDHigh  = 0x20
	regChipIDLow   = 0x21
	regIOSpaceLock = 0x28
	regActivate    = 0x30
	regBaseHigh    = 0x60
	regBaseLow     = 0x61

	ioSpaceLockBit = 0x10
	activateBit    = 0x01
)

// ConfigPorts are the configuration index ports probed, in order. The
// data port is always index+1.
var ConfigPorts = []uint16{0x2E, 0x4E}

// channelKind selects how the hardware-monitor registers are reached
// once the base address is known.
type channelKind uint8

const (
	channelNone    channelKind = iota
	channelPaged               // page/index/data at base+4..6
	channelIndexed             // address/data at base+5..6
)

// portWrite is one byte written to the config index port (off 0) or
// data port (off 1).
type portWrite struct {
	off uint16
	val byte
}

// Formulas turn raw register bytes into physical units.
type Formulas struct {
	Temperature func(integer, fraction byte) float64
	Voltage     func(hi, lo byte, multiplier float64) float64
	FanRPM      func(hi, lo byte) int
}

// protocol is everything that differs between Super I/O families.
type protocol struct {
	vendor   Vendor
	enter    func(port uint16) []portWrite
	exit     []portWrite
	hwmLDN   byte
	ioLock   bool
	channel  channelKind
	formulas Formulas
	fan      fanWriter
}

// handshakeOrder is tried per config port until a recognized ID appears.
var handshakeOrder = []Vendor{VendorITE, VendorNuvoton, VendorMicrochip}

var protocols = map[Vendor]*protocol{
	VendorITE: {
		vendor: VendorITE,
		enter: func(port uint16) []portWrite {
			last := byte(0x55)
			if port == 0x4E {
				last = 0xAA
			}
			return []portWrite{{0, 0x87}, {0, 0x01}, {0, 0x55}, {0, last}}
		},
		exit:     []portWrite{{0, 0x02}, {1, 0x02}},
		hwmLDN:   0x04,
		channel:  channelIndexed,
		formulas: Formulas{Temperature: iteTemperature, Voltage: iteVoltage, FanRPM: iteFanRPM},
		fan:      modeBitFan{},
	},
	VendorNuvoton: {
		vendor:   VendorNuvoton,
		enter:    constEnter(0x87, 0x87),
		exit:     []portWrite{{0, 0xAA}},
		hwmLDN:   0x0B,
		ioLock:   true,
		channel:  channelPaged,
		formulas: Formulas{Temperature: DecodeTemperature, Voltage: DecodeVoltage, FanRPM: DecodeFanRPM},
		fan:      handshakeFan{},
	},
	VendorFintek: {
		vendor:   VendorFintek,
		enter:    constEnter(0x87, 0x87),
		exit:     []portWrite{{0, 0xAA}},
		hwmLDN:   0x04,
		channel:  channelIndexed,
		formulas: Formulas{Temperature: fintekTemperature, Voltage: fintekVoltage, FanRPM: fintekFanRPM},
	},
	VendorMicrochip: {
		vendor: VendorMicrochip,
		enter:  constEnter(0x55),
		exit:   []portWrite{{0, 0xAA}},
		hwmLDN: 0x0A,
	},
}

func constEnter(seq ...byte) func(uint16) []portWrite {
	w := make([]portWrite, len(seq))
	for i, b := range seq {
		w[i] = portWrite{0, b}
	}
	return func(uint16) []portWrite { return w }
}

func (p *protocol) enterConfig(bus portio.Bus, port uint16) {
	send(bus, port, p.enter(port))
}

func (p *protocol) exitConfig(bus portio.Bus, port uint16) {
	send(bus, port, p.exit)
}

func send(bus portio.Bus, port uint16, seq []portWrite) {
	for _, w := range seq {
		bus.Outb(port+w.off, w.val)
	}
}

func readConfig(bus portio.Bus, port uint16, reg byte) byte {
	bus.Outb(port, reg)
	return bus.Inb(port + 1)
}

func writeConfig(bus portio.Bus, port uint16, reg, value byte) {
	bus.Outb(port, reg)
	bus.Outb(port+1, value)
}

// ITE: 1 °C and 12 mV per LSB, tachometer counts at 1.35 MHz / 2 pulses.

func iteTemperature(integer, _ byte) float64 { return float64(int8(integer)) }

func iteVoltage(_, lo byte, multiplier float64) float64 {
	return float64(lo) * 0.012 * multiplier
}

func iteFanRPM(hi, lo byte) int {
	count := int(hi)<<8 | int(lo)
	if count == 0 || count == 0xFFFF {
		return 0
	}
	return 1350000 / (2 * count)
}

// Fintek: 1 °C and 8 mV per LSB, tachometer counts at 1.5 MHz.

func fintekTemperature(integer, _ byte) float64 { return float64(integer) }

func fintekVoltage(_, lo byte, multiplier float64) float64 {
	return float64(lo) * 0.008 * multiplier
}

func fintekFanRPM(hi, lo byte) int {
	count := int(hi)<<8 | int(lo)
	if count == 0 || count == 0xFFFF {
		return 0
	}
	return 1500000 / count
}

// PercentToPWM maps 0..100 onto the 0..255 duty register, rounding
// half up in integer arithmetic so 50% is exactly 128.
func PercentToPWM(percent int) byte {
	return byte((clampPercent(percent)*255 + 50) / 100)
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
