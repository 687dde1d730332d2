package modbusd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/simonvetter/modbus"
)

// Server is a Modbus TCP server bound to an Engine.
type Server struct {
	srv *modbus.ModbusServer
	url string
	log *slog.Logger
}

// NewServer prepares a server on url (tcp://host:port).
func NewServer(url string, maxClients uint, e Engine, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "modbus")
	srv, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        url,
		Timeout:    30 * time.Second,
		MaxClients: maxClients,
	}, NewHandler(e, log))
	if err != nil {
		return nil, fmt.Errorf("modbus server: %w", err)
	}
	return &Server{srv: srv, url: url, log: log}, nil
}

func (s *Server) Start() error {
	if err := s.srv.Start(); err != nil {
		return fmt.Errorf("modbus listen %s: %w", s.url, err)
	}
	s.log.Info("modbus server listening", "url", s.url)
	return nil
}

func (s *Server) Stop() error { return s.srv.Stop() }
