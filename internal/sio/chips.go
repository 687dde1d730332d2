// Package sio detects a motherboard's Super I/O hardware monitor, reads its
// temperature, voltage and fan sensors, and applies fan-speed overrides.
//
// All hardware access goes through a portio.Bus owned by a Hub; a single
// polling goroutine drives it so chip-internal addressing state is never
// interleaved.
package sio

import (
	"fmt"
	"strconv"
)

// Vendor is the Super I/O family. It selects the configuration handshake,
// the EC access channel, the decoding formulas and the fan write strategy.
type Vendor uint8

const (
	VendorUnknown Vendor = iota
	VendorITE
	VendorNuvoton
	VendorFintek
	VendorMicrochip
)

func (v Vendor) String() string {
	switch v {
	case VendorITE:
		return "ITE"
	case VendorNuvoton:
		return "Nuvoton"
	case VendorFintek:
		return "Fintek"
	case VendorMicrochip:
		return "Microchip"
	default:
		return "unknown"
	}
}

// ChipID is the 16-bit identifier read from configuration registers
// 0x20 (high) and 0x21 (low).
type ChipID uint16

// ChipNone marks "no chip detected".
const ChipNone ChipID = 0

func (id ChipID) String() string { return fmt.Sprintf("0x%04X", uint16(id)) }

// MarshalText renders the ID as 0xXXXX.
func (id ChipID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText accepts 0xXXXX or decimal.
func (id *ChipID) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 0, 16)
	if err != nil {
		return fmt.Errorf("chip id %q: %w", b, err)
	}
	*id = ChipID(v)
	return nil
}

// Chip describes a known Super I/O part.
type Chip struct {
	ID     ChipID
	Vendor Vendor
	Name   string
}

// chipTable lists the supported parts. Some Nuvoton parts share an ID;
// the first entry names the ID.
var chipTable = []Chip{
	// ITE IT87xx
	{0x8613, VendorITE, "IT8613E"},
	{0x8620, VendorITE, "IT8620E"},
	{0x8625, VendorITE, "IT8625E"},
	{0x8628, VendorITE, "IT8628E"},
	{0x8631, VendorITE, "IT8631E"},
	{0x8637, VendorITE, "IT8637E"},
	{0x8655, VendorITE, "IT8655E"},
	{0x8665, VendorITE, "IT8665E"},
	{0x8686, VendorITE, "IT8686E"},
	{0x8688, VendorITE, "IT8688E"},
	{0x8689, VendorITE, "IT8689E"},
	{0x8695, VendorITE, "IT8695E"},
	{0x8705, VendorITE, "IT8705F"},
	{0x8712, VendorITE, "IT8712F"},
	{0x8716, VendorITE, "IT8716F"},
	{0x8718, VendorITE, "IT8718F"},
	{0x8720, VendorITE, "IT8720F"},
	{0x8721, VendorITE, "IT8721F"},
	{0x8726, VendorITE, "IT8726F"},
	{0x8728, VendorITE, "IT8728F"},
	{0x8733, VendorITE, "IT8733E"},
	{0x8771, VendorITE, "IT8771E"},
	{0x8772, VendorITE, "IT8772E"},
	{0x8792, VendorITE, "IT8792E"},

	// Nuvoton NCT6xxx
	{0xC450, VendorNuvoton, "NCT6102D"},
	{0xC450, VendorNuvoton, "NCT6106D"},
	{0xC730, VendorNuvoton, "NCT6683D"},
	{0xD440, VendorNuvoton, "NCT6686D"},
	{0xD590, VendorNuvoton, "NCT6687D"},
	{0xB470, VendorNuvoton, "NCT6771F"},
	{0xB470, VendorNuvoton, "NCT6772F"},
	{0xB470, VendorNuvoton, "NCT6775F"},
	{0xC330, VendorNuvoton, "NCT6776F"},
	{0xC560, VendorNuvoton, "NCT6779D"},
	{0xC800, VendorNuvoton, "NCT6791D"},
	{0xC910, VendorNuvoton, "NCT6792D"},
	{0xD120, VendorNuvoton, "NCT6793D"},
	{0xD350, VendorNuvoton, "NCT6795D"},
	{0xD420, VendorNuvoton, "NCT6796D"},
	{0xD450, VendorNuvoton, "NCT6797D"},
	{0xD420, VendorNuvoton, "NCT6798D"},
	{0xD800, VendorNuvoton, "NCT6799D"},

	// Fintek F718xx
	{0x0901, VendorFintek, "F71808E"},
	{0x0507, VendorFintek, "F71858"},
	{0x0601, VendorFintek, "F71862"},
	{0x0814, VendorFintek, "F71869"},
	{0x0541, VendorFintek, "F71882"},
	{0x0723, VendorFintek, "F71889"},

	// Microchip (SMSC) parts report an 8-bit device ID in register 0x20
	// and a revision in 0x21.
	{0x7C, VendorMicrochip, "SCH3112"},
	{0x7D, VendorMicrochip, "SCH3114"},
	{0x7F, VendorMicrochip, "SCH3116"},
}

var chipsByID = func() map[ChipID]Chip {
	m := make(map[ChipID]Chip, len(chipTable))
	for _, c := range chipTable {
		if _, dup := m[c.ID]; !dup {
			m[c.ID] = c
		}
	}
	return m
}()

// LookupChip classifies a raw chip ID. Nuvoton parts encode a revision in
// the low nibble and Microchip parts in the whole low byte, so those bits
// are ignored for their families. Unknown IDs return a Chip named
// "unknown" and false.
func LookupChip(id ChipID) (Chip, bool) {
	if c, ok := chipsByID[id]; ok {
		return c, true
	}
	if c, ok := chipsByID[id&0xFFF0]; ok && c.Vendor == VendorNuvoton {
		return c, true
	}
	if c, ok := chipsByID[id>>8]; ok && c.Vendor == VendorMicrochip {
		return c, true
	}
	return Chip{ID: id, Vendor: VendorUnknown, Name: "unknown"}, false
}
