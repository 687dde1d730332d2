// Package api provides the HTTP surface of the siomon daemon: the sensor
// snapshot, chip diagnostics and the fan-speed request entry point.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/danielkucera/siomon/internal/portio"
	"github.com/danielkucera/siomon/internal/sio"
)

// Engine is the part of the sensor hub the HTTP surface needs.
type Engine interface {
	Snapshot() sio.Snapshot
	Chip() (sio.DetectedChip, bool)
	LastSeenID() sio.ChipID
	Detect() (sio.DetectedChip, error)
	RequestSpeed(percent int) int
	RequestAutomatic()
}

// Server is the siomon HTTP API server.
type Server struct {
	engine  Engine
	metrics http.Handler
	log     *slog.Logger
}

// NewServer creates a new API server.
func NewServer(e Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: e, log: log.With("component", "api")}
}

// EnableMetrics mounts h on /metrics.
func (s *Server) EnableMetrics(h http.Handler) { s.metrics = h }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/chip", s.handleChip)
		r.Post("/fan", s.handleFan)
		r.Post("/detect", s.handleDetect)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

type chipInfo struct {
	Name       string     `json:"name"`
	Vendor     string     `json:"vendor"`
	ID         sio.ChipID `json:"id"`
	RawID      sio.ChipID `json:"raw_id"`
	ConfigPort string     `json:"config_port"`
	ECBase     string     `json:"ec_base"`
	Resolved   bool       `json:"resolved"`
}

type chipResponse struct {
	Status     sio.Status `json:"status"`
	Chip       *chipInfo  `json:"chip"`
	LastSeenID sio.ChipID `json:"last_seen_id"`
	Message    string     `json:"message"`
}

func newChipInfo(c sio.DetectedChip) *chipInfo {
	return &chipInfo{
		Name:       c.Name,
		Vendor:     c.Vendor.String(),
		ID:         c.ID,
		RawID:      c.RawID,
		ConfigPort: fmt.Sprintf("0x%02X", c.ConfigPort),
		ECBase:     fmt.Sprintf("0x%04X", c.ECBase),
		Resolved:   c.Resolved(),
	}
}

func (s *Server) chipResponse() chipResponse {
	snap := s.engine.Snapshot()
	resp := chipResponse{Status: snap.Status, LastSeenID: s.engine.LastSeenID()}
	if c, ok := s.engine.Chip(); ok {
		resp.Chip = newChipInfo(c)
	}
	resp.Message = statusMessage(resp)
	return resp
}

func statusMessage(resp chipResponse) string {
	switch {
	case resp.Status == sio.StatusUnavailable:
		return "port I/O driver unavailable"
	case resp.Chip == nil && resp.LastSeenID != sio.ChipNone:
		return fmt.Sprintf("no recognized chip (last seen %s)", resp.LastSeenID)
	case resp.Chip == nil:
		return "no Super I/O chip responded"
	case resp.Status == sio.StatusNoRegisterMap:
		return fmt.Sprintf("%s has no register map", resp.Chip.Name)
	}
	return fmt.Sprintf("%s at %s", resp.Chip.Name, resp.Chip.ECBase)
}

func (s *Server) handleChip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chipResponse())
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	_, err := s.engine.Detect()
	resp := s.chipResponse()
	switch {
	case errors.Is(err, portio.ErrDriverUnavailable):
		resp.Status = sio.StatusUnavailable
		resp.Message = statusMessage(resp)
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case errors.Is(err, sio.ErrChipNotFound):
		writeJSON(w, http.StatusNotFound, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

type fanRequest struct {
	Percent *int   `json:"percent"`
	Mode    string `json:"mode"`
}

type fanResponse struct {
	Mode      string `json:"mode"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
}

func (s *Server) handleFan(w http.ResponseWriter, r *http.Request) {
	var req fanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	resp := fanResponse{}
	switch {
	case req.Mode == "auto":
		s.engine.RequestAutomatic()
		resp.Mode = "auto"
		resp.Requested = sio.Automatic
		s.log.Info("fan set to automatic", "request_id", middleware.GetReqID(r.Context()))
	case req.Percent != nil && (req.Mode == "" || req.Mode == "manual"):
		resp.Mode = "manual"
		resp.Requested = s.engine.RequestSpeed(*req.Percent)
		s.log.Info("fan speed requested", "percent", resp.Requested, "request_id", middleware.GetReqID(r.Context()))
	default:
		writeError(w, http.StatusBadRequest, `want {"percent": n} or {"mode": "auto"}`)
		return
	}
	resp.Applied = s.engine.Snapshot().FanApplied
	writeJSON(w, http.StatusAccepted, resp)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
