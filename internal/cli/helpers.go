package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/danielkucera/siomon/internal/config"
	"github.com/danielkucera/siomon/internal/portio"
	"github.com/danielkucera/siomon/internal/sio"
)

// openBus is replaced in tests.
var openBus = func(c config.BusConfig) (portio.Bus, error) {
	return portio.Open(c.Driver, c.Path)
}

var setDefaultLogger = slog.SetDefault

func newLogger(w io.Writer, c config.LoggingConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("logging.level %q: %w", c.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("logging.format %q: want text or json", c.Format)
}

// newHub opens the configured bus. When tolerant is set a missing driver
// yields a hub reporting StatusUnavailable instead of an error.
func newHub(engine sio.Config, tolerant bool) (*sio.Hub, error) {
	bus, err := openBus(cfg.Bus)
	if err != nil {
		if !tolerant || !errors.Is(err, portio.ErrDriverUnavailable) {
			return nil, err
		}
		slog.Warn("port I/O unavailable, serving without sensors", "err", err)
		bus = nil
	}
	return sio.New(bus, engine, slog.Default()), nil
}

// parseFanArg accepts a percentage or "auto".
func parseFanArg(s string) (percent int, auto bool, err error) {
	if strings.EqualFold(s, "auto") {
		return sio.Automatic, true, nil
	}
	p, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, false, fmt.Errorf("fan speed %q: want 0-100 or auto", s)
	}
	if p < 0 || p > 100 {
		return 0, false, fmt.Errorf("fan speed %d out of range 0-100", p)
	}
	return p, false, nil
}

func formatPercent(p int) string {
	switch p {
	case sio.Automatic:
		return "auto"
	case sio.NotApplied:
		return "unknown"
	}
	return fmt.Sprintf("%d%%", p)
}
