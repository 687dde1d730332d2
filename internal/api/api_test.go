package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielkucera/siomon/internal/portio"
	"github.com/danielkucera/siomon/internal/sio"
	"github.com/danielkucera/siomon/internal/sio/siotest"
)

func newTestServer(t *testing.T, bus portio.Bus) (*Server, *sio.Hub) {
	t.Helper()
	cfg := sio.DefaultConfig()
	cfg.SettleDelay = 0
	hub := sio.New(bus, cfg, nil)
	return NewServer(hub, nil), hub
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// ─── Health / Snapshot ──────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	w := do(t, srv.Handler(), "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestSnapshot(t *testing.T) {
	sim := siotest.NewNuvoton(0xD592, 0x2E, 0x0A20)
	sim.SetEC(0x100, 45)
	sim.SetEC(0x101, 0x80)
	srv, hub := newTestServer(t, sim)
	hub.Cycle()

	w := do(t, srv.Handler(), "GET", "/api/snapshot", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	s := decode[map[string]any](t, w)
	if s["status"] != "ok" || s["chip"] != "NCT6687D" || s["chip_id"] != "0xD592" {
		t.Errorf("snapshot = %v", s)
	}
	temps := s["temperatures"].(map[string]any)
	if temps["cpu"] != 45.5 {
		t.Errorf("cpu = %v, want 45.5", temps["cpu"])
	}
}

// ─── Chip Diagnostics ───────────────────────────────────────────────────────

func TestChip_LastSeen(t *testing.T) {
	srv, hub := newTestServer(t, siotest.NewNuvoton(0x1234, 0x2E, 0x0A20))
	hub.Cycle()

	resp := decode[chipResponse](t, do(t, srv.Handler(), "GET", "/api/chip", ""))
	if resp.Chip != nil {
		t.Errorf("Chip = %+v, want nil", resp.Chip)
	}
	if resp.Message != "no recognized chip (last seen 0x1234)" {
		t.Errorf("Message = %q", resp.Message)
	}
	if resp.Status != sio.StatusScanning {
		t.Errorf("Status = %s", resp.Status)
	}
}

func TestChip_Detected(t *testing.T) {
	srv, hub := newTestServer(t, siotest.NewNuvoton(0xD592, 0x2E, 0x0A20))
	hub.Cycle()

	resp := decode[chipResponse](t, do(t, srv.Handler(), "GET", "/api/chip", ""))
	if resp.Chip == nil || resp.Chip.Name != "NCT6687D" || resp.Chip.ECBase != "0x0A20" || resp.Chip.ConfigPort != "0x2E" {
		t.Fatalf("Chip = %+v", resp.Chip)
	}
	if resp.Message != "NCT6687D at 0x0A20" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		bus  portio.Bus
		code int
	}{
		{"found", siotest.NewNuvoton(0xD592, 0x2E, 0x0A20), http.StatusOK},
		{"unknown", siotest.NewNuvoton(0x1234, 0x2E, 0x0A20), http.StatusNotFound},
		{"no driver", nil, http.StatusServiceUnavailable},
		{"no map", siotest.NewNuvoton(0xD420, 0x2E, 0x0A20), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.bus)
			w := do(t, srv.Handler(), "POST", "/api/detect", "")
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.code, w.Body.String())
			}
		})
	}
}

// ─── Fan Requests ───────────────────────────────────────────────────────────

func TestFan(t *testing.T) {
	srv, hub := newTestServer(t, nil)
	h := srv.Handler()

	tests := []struct {
		body      string
		code      int
		requested int
	}{
		{`{"percent": 40}`, http.StatusAccepted, 40},
		{`{"percent": 150}`, http.StatusAccepted, 100},
		{`{"percent": -3}`, http.StatusAccepted, 0},
		{`{"mode": "auto"}`, http.StatusAccepted, sio.Automatic},
		{`{"mode": "turbo"}`, http.StatusBadRequest, sio.Automatic},
		{`{}`, http.StatusBadRequest, sio.Automatic},
		{`not json`, http.StatusBadRequest, sio.Automatic},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			w := do(t, h, "POST", "/api/fan", tt.body)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if got := hub.Fan().Requested(); got != tt.requested {
				t.Errorf("Requested = %d, want %d", got, tt.requested)
			}
			if w.Code == http.StatusAccepted {
				resp := decode[fanResponse](t, w)
				if resp.Requested != tt.requested {
					t.Errorf("response requested = %d, want %d", resp.Requested, tt.requested)
				}
			}
		})
	}
}

func TestMetricsMount(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if w := do(t, srv.Handler(), "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics without exporter = %d, want 404", w.Code)
	}
	srv.EnableMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("siomon_up 1\n"))
	}))
	if w := do(t, srv.Handler(), "GET", "/metrics", ""); w.Code != http.StatusOK {
		t.Errorf("metrics = %d, want 200", w.Code)
	}
}
