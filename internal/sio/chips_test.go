package sio

import "testing"

// ─── Chip Registry ──────────────────────────────────────────────────────────

func TestLookupChip(t *testing.T) {
	tests := []struct {
		id     ChipID
		name   string
		vendor Vendor
		ok     bool
	}{
		{0xD590, "NCT6687D", VendorNuvoton, true},
		{0xD592, "NCT6687D", VendorNuvoton, true},
		{0x8688, "IT8688E", VendorITE, true},
		{0x8628, "IT8628E", VendorITE, true},
		{0x0723, "F71889", VendorFintek, true},
		{0x7C05, "SCH3112", VendorMicrochip, true},
		{0x7F00, "SCH3116", VendorMicrochip, true},
		{0xC450, "NCT6102D", VendorNuvoton, true},
		{0xD420, "NCT6796D", VendorNuvoton, true},
		{0x1234, "unknown", VendorUnknown, false},
		{0x8680, "unknown", VendorUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			c, ok := LookupChip(tt.id)
			if ok != tt.ok {
				t.Fatalf("LookupChip(%s) ok = %v, want %v", tt.id, ok, tt.ok)
			}
			if c.Name != tt.name {
				t.Errorf("Name = %q, want %q", c.Name, tt.name)
			}
			if c.Vendor != tt.vendor {
				t.Errorf("Vendor = %v, want %v", c.Vendor, tt.vendor)
			}
		})
	}
}

func TestLookupChip_RevisionMaskOnlyForNuvoton(t *testing.T) {
	// 0x8621 masks to IT8620E's ID, but ITE IDs must match exactly.
	if _, ok := LookupChip(0x8621); ok {
		t.Error("ITE IDs should match exactly")
	}
}

func TestChipID_String(t *testing.T) {
	if got := ChipID(0xD592).String(); got != "0xD592" {
		t.Errorf("String = %q, want 0xD592", got)
	}
	b, _ := ChipID(0x00AB).MarshalText()
	if string(b) != "0x00AB" {
		t.Errorf("MarshalText = %q, want 0x00AB", b)
	}
}

func TestVendor_String(t *testing.T) {
	for v, want := range map[Vendor]string{
		VendorITE: "ITE", VendorNuvoton: "Nuvoton", VendorFintek: "Fintek",
		VendorMicrochip: "Microchip", VendorUnknown: "unknown",
	} {
		if v.String() != want {
			t.Errorf("Vendor(%d).String() = %q, want %q", v, v.String(), want)
		}
	}
}

func TestChipTable_EveryVendorHasProtocol(t *testing.T) {
	for _, c := range chipTable {
		if protocols[c.Vendor] == nil {
			t.Errorf("%s: no protocol for vendor %v", c.Name, c.Vendor)
		}
	}
}

func TestChipID_UnmarshalText(t *testing.T) {
	var id ChipID
	if err := id.UnmarshalText([]byte("0xD592")); err != nil || id != 0xD592 {
		t.Errorf("UnmarshalText = %s, %v", id, err)
	}
	if err := id.UnmarshalText([]byte("0x1FFFF")); err == nil {
		t.Error("accepted an ID wider than 16 bits")
	}
}
