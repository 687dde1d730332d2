package sio

import (
	"slices"
	"testing"

	"github.com/danielkucera/siomon/internal/sio/siotest"
)

var fastSpin = SpinConfig{Budget: 16}

// ─── Paged EC Channel ───────────────────────────────────────────────────────

func TestECChannel_WriteSequence(t *testing.T) {
	sim := siotest.NewNuvoton(0xD590, 0x2E, 0x0A20)
	ch := NewECChannel(sim, 0x0A20, fastSpin)

	ch.Write(0xA28, 0x80)

	want := []siotest.Op{
		{Write: false, Port: 0x0A24, Value: 0xFF},
		{Write: true, Port: 0x0A24, Value: 0x0A},
		{Write: true, Port: 0x0A25, Value: 0x28},
		{Write: true, Port: 0x0A26, Value: 0x80},
		{Write: true, Port: 0x0A24, Value: 0xFF},
	}
	if got := sim.Ops(); !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if sim.EC(0xA28) != 0x80 {
		t.Errorf("EC[0xA28] = 0x%02X, want 0x80", sim.EC(0xA28))
	}
}

func TestECChannel_Read(t *testing.T) {
	sim := siotest.NewNuvoton(0xD590, 0x2E, 0x0A20)
	sim.SetEC(0x100, 45)
	ch := NewECChannel(sim, 0x0A20, fastSpin)

	if got := ch.Read(0x100); got != 45 {
		t.Errorf("Read(0x100) = %d, want 45", got)
	}
	ops := sim.Ops()
	if last := ops[len(ops)-1]; last != (siotest.Op{Write: true, Port: 0x0A24, Value: 0xFF}) {
		t.Errorf("last op = %+v, want page restored to 0xFF", last)
	}
	if ch.Timeouts() != 0 {
		t.Errorf("Timeouts = %d, want 0", ch.Timeouts())
	}
}

func TestECChannel_WaitsForIdle(t *testing.T) {
	sim := siotest.NewNuvoton(0xD590, 0x2E, 0x0A20)
	sim.SetEC(0x102, 30)
	sim.StickPage(0x01, 5)
	ch := NewECChannel(sim, 0x0A20, fastSpin)

	if got := ch.Read(0x102); got != 30 {
		t.Errorf("Read = %d, want 30", got)
	}
	if ch.Timeouts() != 0 {
		t.Errorf("Timeouts = %d, want 0 (page went idle within budget)", ch.Timeouts())
	}
}

func TestECChannel_BusTimeoutRecovers(t *testing.T) {
	sim := siotest.NewNuvoton(0xD590, 0x2E, 0x0A20)
	sim.SetEC(0x104, 55)
	sim.StickPage(0x01, 1<<20)
	ch := NewECChannel(sim, 0x0A20, SpinConfig{Budget: 4})

	if got := ch.Read(0x104); got != 55 {
		t.Errorf("Read = %d, want 55 after forcing idle", got)
	}
	if ch.Timeouts() != 1 {
		t.Errorf("Timeouts = %d, want 1", ch.Timeouts())
	}
	if sim.Overlapped() {
		t.Error("forced recovery should not overlap transactions")
	}

	ch.Read(0x104)
	if ch.Timeouts() != 1 {
		t.Errorf("Timeouts = %d after recovery, want 1", ch.Timeouts())
	}
}

func TestECChannel_DefaultBudget(t *testing.T) {
	ch := NewECChannel(&floatingBus{}, 0x0A20, SpinConfig{})
	if ch.spin.Budget != 1000 {
		t.Errorf("Budget = %d, want 1000", ch.spin.Budget)
	}
}

// ─── Address/Data Channel ───────────────────────────────────────────────────

func TestIndexedChannel(t *testing.T) {
	sim := siotest.NewITE(0x8688, 0x2E, 0x0290)
	sim.SetEC(0x2A, 48)
	ch := newIndexedChannel(sim, 0x0290)

	if got := ch.Read(0x2A); got != 48 {
		t.Errorf("Read(0x2A) = %d, want 48", got)
	}
	ch.Write(0x63, 0x40)
	if sim.EC(0x63) != 0x40 {
		t.Errorf("EC[0x63] = 0x%02X, want 0x40", sim.EC(0x63))
	}
	want := []siotest.Op{
		{Write: true, Port: 0x0295, Value: 0x2A},
		{Write: false, Port: 0x0296, Value: 48},
		{Write: true, Port: 0x0295, Value: 0x63},
		{Write: true, Port: 0x0296, Value: 0x40},
	}
	if got := sim.Ops(); !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}
