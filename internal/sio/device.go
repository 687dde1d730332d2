package sio

import "github.com/danielkucera/siomon/internal/portio"

// Device is a detected chip bound to its access channel and register map.
// Channel is nil when the EC base is unresolved or the family has no
// channel; Map is nil when no register map is known.
type Device struct {
	DetectedChip
	Channel Channel
	Map     *RegisterMap
	proto   *protocol
}

// NewDevice binds chip to bus using its family's protocol.
func NewDevice(bus portio.Bus, chip DetectedChip, spin SpinConfig) *Device {
	d := &Device{DetectedChip: chip, proto: protocols[chip.Vendor]}
	if m, ok := RegisterMapFor(chip.Chip); ok {
		d.Map = m
	}
	if !chip.Resolved() || d.proto == nil {
		return d
	}
	switch d.proto.channel {
	case channelPaged:
		d.Channel = NewECChannel(bus, chip.ECBase, spin)
	case channelIndexed:
		d.Channel = newIndexedChannel(bus, chip.ECBase)
	}
	return d
}

// Readable reports whether sensors can be read.
func (d *Device) Readable() bool {
	return d != nil && d.Channel != nil && d.Map != nil
}

func (d *Device) readErr() error {
	if d.Readable() {
		return nil
	}
	return ErrNoRegisterMap
}

func (d *Device) fanControl() bool {
	return d.Readable() && d.Map.FanControl() && d.proto.fan != nil
}

func (d *Device) formulas() Formulas { return d.proto.formulas }
