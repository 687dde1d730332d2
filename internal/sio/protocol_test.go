package sio

import (
	"slices"
	"testing"
)

// ─── Vendor Protocol Table ──────────────────────────────────────────────────

func TestProtocol_Handshakes(t *testing.T) {
	tests := []struct {
		vendor Vendor
		port   uint16
		enter  []portWrite
		exit   []portWrite
	}{
		{VendorITE, 0x2E, []portWrite{{0, 0x87}, {0, 0x01}, {0, 0x55}, {0, 0x55}}, []portWrite{{0, 0x02}, {1, 0x02}}},
		{VendorITE, 0x4E, []portWrite{{0, 0x87}, {0, 0x01}, {0, 0x55}, {0, 0xAA}}, []portWrite{{0, 0x02}, {1, 0x02}}},
		{VendorNuvoton, 0x2E, []portWrite{{0, 0x87}, {0, 0x87}}, []portWrite{{0, 0xAA}}},
		{VendorFintek, 0x4E, []portWrite{{0, 0x87}, {0, 0x87}}, []portWrite{{0, 0xAA}}},
		{VendorMicrochip, 0x2E, []portWrite{{0, 0x55}}, []portWrite{{0, 0xAA}}},
	}
	for _, tt := range tests {
		t.Run(tt.vendor.String(), func(t *testing.T) {
			p := protocols[tt.vendor]
			if got := p.enter(tt.port); !slices.Equal(got, tt.enter) {
				t.Errorf("enter(0x%X) = %v, want %v", tt.port, got, tt.enter)
			}
			if !slices.Equal(p.exit, tt.exit) {
				t.Errorf("exit = %v, want %v", p.exit, tt.exit)
			}
		})
	}
}

func TestProtocol_LogicalDevices(t *testing.T) {
	want := map[Vendor]byte{VendorITE: 0x04, VendorNuvoton: 0x0B, VendorFintek: 0x04, VendorMicrochip: 0x0A}
	for v, ldn := range want {
		if got := protocols[v].hwmLDN; got != ldn {
			t.Errorf("%v hwmLDN = 0x%02X, want 0x%02X", v, got, ldn)
		}
	}
	if !protocols[VendorNuvoton].ioLock || protocols[VendorITE].ioLock {
		t.Error("only Nuvoton carries the I/O space lock")
	}
}

func TestProtocol_Channels(t *testing.T) {
	want := map[Vendor]channelKind{
		VendorITE: channelIndexed, VendorNuvoton: channelPaged,
		VendorFintek: channelIndexed, VendorMicrochip: channelNone,
	}
	for v, kind := range want {
		if got := protocols[v].channel; got != kind {
			t.Errorf("%v channel = %d, want %d", v, got, kind)
		}
	}
}

func TestHandshakeOrder(t *testing.T) {
	want := []Vendor{VendorITE, VendorNuvoton, VendorMicrochip}
	if !slices.Equal(handshakeOrder, want) {
		t.Errorf("handshakeOrder = %v, want %v", handshakeOrder, want)
	}
}
