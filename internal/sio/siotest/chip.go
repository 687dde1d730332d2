// Package siotest provides a simulated Super I/O chip that implements
// portio.Bus. It answers one configuration port, emulates the EC register
// channel and records every port access so tests can assert ordering and
// detect interleaved transactions.
package siotest

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Op is one recorded port access.
type Op struct {
	Write bool
	Port  uint16
	Value byte
}

// ECMode selects how the simulated EC is addressed.
type ECMode int

const (
	Paged   ECMode = iota // page/index/data at base+4..6
	Indexed               // address/data at base+5..6
)

// Chip is a simulated Super I/O chip. The zero value is not usable; build
// one with NewNuvoton, NewITE or NewFintek.
type Chip struct {
	mu sync.Mutex

	port   uint16
	unlock []byte
	hwmLDN byte
	base   uint16
	mode   ECMode

	recent   []byte
	unlocked bool
	index    byte
	ldn      byte
	global   map[byte]byte
	ldnRegs  map[byte]map[byte]byte

	ec       map[uint16]byte
	page     byte
	ecIndex  byte
	txOpen   bool
	stuck    int
	stuckVal byte
	ecWrites map[uint16]int

	ops     []Op
	outs    int
	overlap bool

	active     atomic.Int32
	concurrent atomic.Bool
}

func newChip(id uint16, port uint16, unlock []byte, hwmLDN byte, base uint16, mode ECMode) *Chip {
	c := &Chip{
		port:     port,
		unlock:   unlock,
		hwmLDN:   hwmLDN,
		base:     base,
		mode:     mode,
		global:   map[byte]byte{0x20: byte(id >> 8), 0x21: byte(id)},
		ldnRegs:  map[byte]map[byte]byte{},
		ec:       map[uint16]byte{},
		page:     0xFF,
		ecWrites: map[uint16]int{},
	}
	c.ldnRegs[0] = map[byte]byte{}
	c.ldnRegs[hwmLDN] = map[byte]byte{0x60: byte(base >> 8), 0x61: byte(base)}
	return c
}

// NewNuvoton simulates a Nuvoton chip with a paged EC at base.
func NewNuvoton(id, port, base uint16) *Chip {
	return newChip(id, port, []byte{0x87, 0x87}, 0x0B, base, Paged)
}

// NewFintek simulates a Fintek chip with an address/data EC at base.
func NewFintek(id, port, base uint16) *Chip {
	return newChip(id, port, []byte{0x87, 0x87}, 0x04, base, Indexed)
}

// NewITE simulates an ITE chip with an address/data EC at base.
func NewITE(id, port, base uint16) *Chip {
	last := byte(0x55)
	if port == 0x4E {
		last = 0xAA
	}
	return newChip(id, port, []byte{0x87, 0x01, 0x55, last}, 0x04, base, Indexed)
}

// NewMicrochip simulates a Microchip part whose ID register holds dev and
// revision register rev.
func NewMicrochip(dev, rev byte, port uint16) *Chip {
	return newChip(uint16(dev)<<8|uint16(rev), port, []byte{0x55}, 0x0A, 0, Indexed)
}

// SetLDNReg presets a register of the hardware-monitor logical device.
func (c *Chip) SetLDNReg(reg, v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ldnRegs[c.hwmLDN][reg] = v
}

// LDNReg returns a register of the hardware-monitor logical device.
func (c *Chip) LDNReg(reg byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ldnRegs[c.hwmLDN][reg]
}

// SetEC presets an EC register.
func (c *Chip) SetEC(addr uint16, v byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ec[addr] = v
}

// EC returns an EC register.
func (c *Chip) EC(addr uint16) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ec[addr]
}

// ECWrites counts data writes to an EC register.
func (c *Chip) ECWrites(addr uint16) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ecWrites[addr]
}

// StickPage makes the next n reads of the page port return v, as if
// another agent held the EC. Writing 0xFF to the page port clears it.
func (c *Chip) StickPage(v byte, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stuck, c.stuckVal = n, v
}

// Ops returns a copy of the recorded accesses.
func (c *Chip) Ops() []Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Op(nil), c.ops...)
}

// Outs counts every Outb call.
func (c *Chip) Outs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outs
}

// Reset clears the access log and counters.
func (c *Chip) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops, c.outs = nil, 0
	clear(c.ecWrites)
}

// Overlapped reports whether an EC transaction was interrupted by another
// transaction or by configuration-port traffic.
func (c *Chip) Overlapped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlap
}

// Concurrent reports whether two goroutines were ever inside the bus at
// once.
func (c *Chip) Concurrent() bool { return c.concurrent.Load() }

func (c *Chip) enter() {
	if c.active.Add(1) > 1 {
		c.concurrent.Store(true)
	}
}

func (c *Chip) leave() { c.active.Add(-1) }

// Inb implements portio.Bus.
func (c *Chip) Inb(port uint16) byte {
	c.enter()
	defer c.leave()
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.in(port)
	c.ops = append(c.ops, Op{Port: port, Value: v})
	return v
}

// Outb implements portio.Bus.
func (c *Chip) Outb(port uint16, v byte) {
	c.enter()
	defer c.leave()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.outs++
	c.ops = append(c.ops, Op{Write: true, Port: port, Value: v})
	c.out(port, v)
}

func (c *Chip) in(port uint16) byte {
	switch {
	case port == c.port+1:
		c.configTouched()
		if !c.unlocked {
			return 0xFF
		}
		return c.readConfig(c.index)
	case port == c.port:
		c.configTouched()
		return 0xFF
	case c.base == 0:
		return 0xFF
	}

	switch {
	case c.mode == Paged && port == c.base+4:
		if c.stuck > 0 {
			c.stuck--
			return c.stuckVal
		}
		return c.page
	case c.mode == Paged && port == c.base+6:
		return c.ec[uint16(c.page)<<8|uint16(c.ecIndex)]
	case c.mode == Indexed && port == c.base+6:
		c.txOpen = false
		return c.ec[uint16(c.ecIndex)]
	}
	return 0xFF
}

func (c *Chip) out(port uint16, v byte) {
	switch port {
	case c.port:
		c.configTouched()
		if !c.unlocked {
			c.feedUnlock(v)
			return
		}
		if v == 0xAA {
			c.lock()
			return
		}
		c.index = v
		return
	case c.port + 1:
		c.configTouched()
		if !c.unlocked {
			return
		}
		if c.index == 0x02 && v&0x02 != 0 {
			c.lock()
			return
		}
		c.writeConfig(c.index, v)
		return
	}
	if c.base == 0 {
		return
	}

	switch {
	case c.mode == Paged && port == c.base+4:
		if v == 0xFF {
			c.stuck = 0
			c.txOpen = false
		} else {
			if c.txOpen {
				c.overlap = true
			}
			c.txOpen = true
		}
		c.page = v
	case c.mode == Paged && port == c.base+5:
		c.ecIndex = v
	case c.mode == Paged && port == c.base+6:
		addr := uint16(c.page)<<8 | uint16(c.ecIndex)
		c.ec[addr] = v
		c.ecWrites[addr]++
	case c.mode == Indexed && port == c.base+5:
		if c.txOpen {
			c.overlap = true
		}
		c.txOpen = true
		c.ecIndex = v
	case c.mode == Indexed && port == c.base+6:
		c.txOpen = false
		c.ec[uint16(c.ecIndex)] = v
		c.ecWrites[uint16(c.ecIndex)]++
	}
}

// configTouched flags config-port traffic inside an open EC transaction.
func (c *Chip) configTouched() {
	if c.txOpen {
		c.overlap = true
	}
}

func (c *Chip) feedUnlock(v byte) {
	c.recent = append(c.recent, v)
	if len(c.recent) > len(c.unlock) {
		c.recent = c.recent[len(c.recent)-len(c.unlock):]
	}
	if bytes.Equal(c.recent, c.unlock) {
		c.unlocked = true
		c.recent = nil
	}
}

func (c *Chip) lock() {
	c.unlocked = false
	c.recent = nil
}

func (c *Chip) readConfig(reg byte) byte {
	if reg < 0x30 && reg != 0x28 {
		return c.global[reg]
	}
	return c.ldnRegs[c.ldn][reg]
}

func (c *Chip) writeConfig(reg, v byte) {
	switch {
	case reg == 0x07:
		c.ldn = v
		if c.ldnRegs[v] == nil {
			c.ldnRegs[v] = map[byte]byte{}
		}
	case reg < 0x30 && reg != 0x28:
		c.global[reg] = v
	default:
		c.ldnRegs[c.ldn][reg] = v
	}
}
