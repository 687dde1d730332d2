package sio

import (
	"fmt"
	"log/slog"

	"github.com/danielkucera/siomon/internal/portio"
)

// DetectedChip is the outcome of a successful probe.
type DetectedChip struct {
	Chip
	RawID      ChipID
	ConfigPort uint16
	// ECBase is the hardware-monitor base address, 0 when unresolved.
	ECBase uint16
}

// Found reports whether a chip was recognized.
func (d DetectedChip) Found() bool { return d.ID != ChipNone }

// Resolved reports whether the EC base address is usable.
func (d DetectedChip) Resolved() bool { return d.Found() && d.ECBase != 0 }

// Detector probes config ports for a recognized Super I/O chip.
type Detector struct {
	Bus   portio.Bus
	Ports []uint16
	Log   *slog.Logger
}

// Detect tries every handshake on every config port, leaving config mode
// with the matching exit sequence after each attempt. lastSeen is the most
// recent ID that was neither 0x0000 nor 0xFFFF, recognized or not.
func (d *Detector) Detect() (chip DetectedChip, lastSeen ChipID, err error) {
	ports := d.Ports
	if len(ports) == 0 {
		ports = ConfigPorts
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	for _, port := range ports {
		for _, v := range handshakeOrder {
			hs := protocols[v]
			hs.enterConfig(d.Bus, port)

			id := ChipID(readConfig(d.Bus, port, regChipIDHigh))<<8 |
				ChipID(readConfig(d.Bus, port, regChipIDLow))
			if id != 0x0000 && id != 0xFFFF {
				lastSeen = id
				if c, ok := LookupChip(id); ok {
					chip = DetectedChip{Chip: c, RawID: id, ConfigPort: port}
					chip.ECBase = resolveBase(d.Bus, port, protocols[c.Vendor])
				} else {
					log.Debug("unrecognized chip id", "port", hexAddr(port), "handshake", v, "id", id)
				}
			}

			hs.exitConfig(d.Bus, port)
			if chip.Found() {
				log.Info("super i/o detected",
					"chip", chip.Name, "id", chip.RawID, "port", hexAddr(port), "base", hexAddr(chip.ECBase))
				return chip, lastSeen, nil
			}
		}
	}
	return DetectedChip{}, lastSeen, ErrChipNotFound
}

// resolveBase selects the hardware-monitor logical device, activates it,
// clears the I/O space lock where the family has one and reads the base
// address. The low three bits are not part of the address.
func resolveBase(bus portio.Bus, port uint16, p *protocol) uint16 {
	writeConfig(bus, port, regLDN, p.hwmLDN)
	writeConfig(bus, port, regActivate, readConfig(bus, port, regActivate)|activateBit)
	if p.ioLock {
		if lock := readConfig(bus, port, regIOSpaceLock); lock&ioSpaceLockBit != 0 {
			writeConfig(bus, port, regIOSpaceLock, lock&^ioSpaceLockBit)
		}
	}
	base := uint16(readConfig(bus, port, regBaseHigh))<<8 | uint16(readConfig(bus, port, regBaseLow))
	return base &^ 7
}

// hexAddr logs a port or base address as 0x2e.
type hexAddr uint16

func (h hexAddr) LogValue() slog.Value {
	return slog.StringValue(fmt.Sprintf("%#02x", uint16(h)))
}
