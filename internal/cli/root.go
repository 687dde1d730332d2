// Package cli implements the siomon command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielkucera/siomon/internal/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	busDriver  string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "siomond",
	Short: "Super I/O sensor monitor and fan controller",
	Long: `siomond detects the motherboard's Super I/O hardware monitor, reads its
temperature, voltage and fan sensors, and applies fan-speed overrides.

Port I/O needs /dev/port on Linux (root) or inpoutx64.dll on Windows.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $SIOMON_HOME/config.toml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (overrides config)")
	pf.StringVar(&busDriver, "driver", "", "Port I/O driver: auto, devport, inpout (overrides config)")
}

// setup loads the configuration and installs the default logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if busDriver != "" {
		cfg.Bus.Driver = busDriver
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := newLogger(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return err
	}
	setDefaultLogger(log)
	return nil
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
