package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/danielkucera/siomon/internal/api"
	"github.com/danielkucera/siomon/internal/metrics"
	"github.com/danielkucera/siomon/internal/modbusd"
	"github.com/danielkucera/siomon/internal/sio"
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveModbus, "modbus", "", "Enable the Modbus server on this URL, e.g. tcp://0.0.0.0:502")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "Poll interval (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveListen   string
	serveModbus   string
	serveInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll sensors and serve them over HTTP and Modbus",
	Long: `Run the polling loop and expose the snapshot on the HTTP API
(/api/snapshot, /metrics) and, when enabled, as Modbus input registers.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.HTTP.Listen = serveListen
	}
	if serveModbus != "" {
		cfg.Modbus.Enabled = true
		cfg.Modbus.Listen = serveModbus
	}
	if serveInterval > 0 {
		cfg.Poll.Interval.Duration = serveInterval
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := cfg.Engine()
	var exporter *metrics.Exporter
	engine.OnPublish = func(s sio.Snapshot) {
		if exporter != nil {
			exporter.Update(s)
		}
	}
	hub, err := newHub(engine, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := hub.Close(); err != nil {
			slog.Warn("close bus", "err", err)
		}
	}()

	srv := api.NewServer(hub, slog.Default())
	if cfg.HTTP.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		exporter = metrics.NewExporter(reg, hub.Stats)
		exporter.Update(hub.Snapshot())
		srv.EnableMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if cfg.Modbus.Enabled {
		mb, err := modbusd.NewServer(cfg.Modbus.Listen, cfg.Modbus.MaxClients, hub, slog.Default())
		if err != nil {
			return err
		}
		if err := mb.Start(); err != nil {
			return err
		}
		defer mb.Stop()
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Listen,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		hub.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "siomond serving on http://%s\n", cfg.HTTP.Listen)
	if cfg.Modbus.Enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "  Modbus: %s\n", cfg.Modbus.Listen)
	}

	err = httpServer.ListenAndServe()
	stop()
	<-polled
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
