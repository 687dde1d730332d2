package sio

// Site is a temperature sensor: integer byte at Addr, fraction at Frac.
type Site struct {
	Name string
	Addr RegisterAddress
	Frac RegisterAddress
}

// Rail is a voltage input scaled by its divider Multiplier.
type Rail struct {
	Name       string
	Hi, Lo     RegisterAddress
	Multiplier float64
	Nominal    float64
}

// Tach is a fan tachometer pair.
type Tach struct {
	Name   string
	Hi, Lo RegisterAddress
}

// FanChannel is one controllable PWM output. The channel is under manual
// control when Mode&ModeBit is set, or clear if ManualWhenClear.
type FanChannel struct {
	Mode            RegisterAddress
	ModeBit         byte
	ManualWhenClear bool
	Duty            RegisterAddress
}

func (c FanChannel) manual(mode byte) bool {
	return (mode&c.ModeBit != 0) != c.ManualWhenClear
}

func (c FanChannel) withManual(mode byte, manual bool) byte {
	if manual != c.ManualWhenClear {
		return mode | c.ModeBit
	}
	return mode &^ c.ModeBit
}

// RegisterMap locates a chip's sensors and fan controls. The first Tach
// is the primary fan reported in the snapshot.
type RegisterMap struct {
	Temperatures []Site
	Voltages     []Rail
	Fans         []Tach
	Control      []FanChannel
	// ControlReg takes the request/commit handshake on chips that need it.
	ControlReg RegisterAddress
}

// FanControl reports whether the map describes any writable fan output.
func (m *RegisterMap) FanControl() bool { return m != nil && len(m.Control) > 0 }

// Nuvoton NCT6687D fan-control handshake.
const (
	nctFanRequest = 0x80
	nctFanCommit  = 0x40
)

var nct6687d = &RegisterMap{
	Temperatures: []Site{
		{"cpu", 0x100, 0x101},
		{"system", 0x102, 0x103},
		{"vrm", 0x104, 0x105},
		{"pch", 0x106, 0x107},
		{"socket", 0x108, 0x109},
		{"pcie", 0x10A, 0x10B},
		{"m2", 0x10C, 0x10D},
	},
	Voltages: []Rail{
		{"12v", 0x120, 0x121, 12, 12},
		{"5v", 0x122, 0x123, 5, 5},
		{"vcore", 0x124, 0x125, 1, 1.2},
		{"dram", 0x126, 0x127, 2, 1.35},
		{"soc", 0x128, 0x129, 1, 1.1},
	},
	Fans: []Tach{
		{"cpu", 0x140, 0x141},
		{"pump", 0x142, 0x143},
		{"sys1", 0x144, 0x145},
		{"sys2", 0x146, 0x147},
		{"sys3", 0x148, 0x149},
		{"sys4", 0x14A, 0x14B},
	},
	Control:    nctControl(6),
	ControlReg: 0xA01,
}

func nctControl(n int) []FanChannel {
	c := make([]FanChannel, n)
	for i := range c {
		c[i] = FanChannel{
			Mode:    0xA00,
			ModeBit: 1 << i,
			Duty:    RegisterAddress(0xA28 + i),
		}
	}
	return c
}

// iteGeneric covers the IT86xx/IT87xx environment controller layout.
var iteGeneric = &RegisterMap{
	Temperatures: []Site{
		{"system", 0x29, noRegister},
		{"cpu", 0x2A, noRegister},
		{"vrm", 0x2B, noRegister},
	},
	Voltages: []Rail{
		{"vcore", noRegister, 0x20, 1, 1.2},
		{"dram", noRegister, 0x21, 1, 1.35},
		{"12v", noRegister, 0x22, 6, 12},
		{"5v", noRegister, 0x23, 2.5, 5},
	},
	Fans: []Tach{
		{"cpu", 0x18, 0x0D},
		{"sys1", 0x19, 0x0E},
		{"sys2", 0x1A, 0x0F},
	},
	Control: []FanChannel{
		{Mode: 0x15, ModeBit: 0x80, ManualWhenClear: true, Duty: 0x63},
		{Mode: 0x16, ModeBit: 0x80, ManualWhenClear: true, Duty: 0x6B},
		{Mode: 0x17, ModeBit: 0x80, ManualWhenClear: true, Duty: 0x73},
	},
	ControlReg: noRegister,
}

// fintekGeneric reads sensors only; fan control is not mapped.
var fintekGeneric = &RegisterMap{
	Temperatures: []Site{
		{"cpu", 0x72, noRegister},
		{"system", 0x74, noRegister},
		{"vrm", 0x76, noRegister},
	},
	Voltages: []Rail{
		{"3v3", noRegister, 0x20, 2, 3.3},
		{"vcore", noRegister, 0x21, 1, 1.2},
		{"dram", noRegister, 0x22, 1, 1.35},
	},
	Fans: []Tach{
		{"cpu", 0xA0, 0xA1},
		{"sys1", 0xB0, 0xB1},
		{"sys2", 0xC0, 0xC1},
	},
	ControlReg: noRegister,
}

var mapsByChip = map[ChipID]*RegisterMap{
	0xD590: nct6687d,
}

var mapsByVendor = map[Vendor]*RegisterMap{
	VendorITE:    iteGeneric,
	VendorFintek: fintekGeneric,
}

// RegisterMapFor returns the register map for a chip: a chip-specific map
// if one exists, else the family layout. Nuvoton parts other than the
// NCT6687D and all Microchip parts have none.
func RegisterMapFor(c Chip) (*RegisterMap, bool) {
	if m, ok := mapsByChip[c.ID]; ok {
		return m, true
	}
	m, ok := mapsByVendor[c.Vendor]
	return m, ok
}

// Layout lists sensor names in register-map order.
type Layout struct {
	Temperatures []string
	Voltages     []string
	Fans         []string
}

func (m *RegisterMap) Layout() Layout {
	var l Layout
	if m == nil {
		return l
	}
	for _, s := range m.Temperatures {
		l.Temperatures = append(l.Temperatures, s.Name)
	}
	for _, r := range m.Voltages {
		l.Voltages = append(l.Voltages, r.Name)
	}
	for _, t := range m.Fans {
		l.Fans = append(l.Fans, t.Name)
	}
	return l
}
