package sio

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/danielkucera/siomon/internal/portio"
)

// RegisterAddress is a 16-bit EC register address. On paged chips the
// high byte is the page and the low byte the index.
type RegisterAddress uint16

// noRegister marks an absent second byte in a register pair.
const noRegister RegisterAddress = 0xFFFF

// pageIdle is the value the page port holds between transactions.
const pageIdle = 0xFF

// Channel reads and writes hardware-monitor registers once the base
// address is resolved. Callers hold the bus lock.
type Channel interface {
	Read(addr RegisterAddress) byte
	Write(addr RegisterAddress, value byte)
	// Timeouts counts spin-waits that exhausted their budget.
	Timeouts() uint64
}

// SpinConfig bounds the wait for the EC page port to go idle.
type SpinConfig struct {
	Budget int
	Pause  time.Duration // 0 yields the processor instead of sleeping
}

// DefaultSpin polls the page port up to 1000 times.
func DefaultSpin() SpinConfig { return SpinConfig{Budget: 1000, Pause: time.Microsecond} }

// ECChannel is the paged page/index/data channel used by Nuvoton chips.
type ECChannel struct {
	bus               portio.Bus
	page, index, data uint16
	spin              SpinConfig
	timeouts          atomic.Uint64
}

// NewECChannel returns a paged channel for the EC at base.
func NewECChannel(bus portio.Bus, base uint16, spin SpinConfig) *ECChannel {
	if spin.Budget <= 0 {
		spin.Budget = DefaultSpin().Budget
	}
	return &ECChannel{
		bus:   bus,
		page:  base + 4,
		index: base + 5,
		data:  base + 6,
		spin:  spin,
	}
}

// waitIdle spins until the page port reads idle. On exhaustion it forces
// the port idle, counts a timeout and lets the transaction proceed.
func (c *ECChannel) waitIdle() bool {
	for i := 0; i < c.spin.Budget; i++ {
		if c.bus.Inb(c.page) == pageIdle {
			return true
		}
		if c.spin.Pause > 0 {
			time.Sleep(c.spin.Pause)
		} else {
			runtime.Gosched()
		}
	}
	c.timeouts.Add(1)
	c.bus.Outb(c.page, pageIdle)
	return false
}

func (c *ECChannel) address(addr RegisterAddress) {
	c.waitIdle()
	c.bus.Outb(c.page, byte(addr>>8))
	c.bus.Outb(c.index, byte(addr))
}

func (c *ECChannel) Read(addr RegisterAddress) byte {
	c.address(addr)
	v := c.bus.Inb(c.data)
	c.bus.Outb(c.page, pageIdle)
	return v
}

func (c *ECChannel) Write(addr RegisterAddress, value byte) {
	c.address(addr)
	c.bus.Outb(c.data, value)
	c.bus.Outb(c.page, pageIdle)
}

func (c *ECChannel) Timeouts() uint64 { return c.timeouts.Load() }

// indexedChannel is the address/data pair used by ITE and Fintek chips.
// Only the low byte of the address is significant.
type indexedChannel struct {
	bus        portio.Bus
	addr, data uint16
}

func newIndexedChannel(bus portio.Bus, base uint16) *indexedChannel {
	return &indexedChannel{bus: bus, addr: base + 5, data: base + 6}
}

func (c *indexedChannel) Read(addr RegisterAddress) byte {
	c.bus.Outb(c.addr, byte(addr))
	return c.bus.Inb(c.data)
}

func (c *indexedChannel) Write(addr RegisterAddress, value byte) {
	c.bus.Outb(c.addr, byte(addr))
	c.bus.Outb(c.data, value)
}

func (c *indexedChannel) Timeouts() uint64 { return 0 }

// readPair reads whichever of hi and lo are present.
func readPair(ch Channel, hi, lo RegisterAddress) (h, l byte) {
	if hi != noRegister {
		h = ch.Read(hi)
	}
	if lo != noRegister {
		l = ch.Read(lo)
	}
	return h, l
}
