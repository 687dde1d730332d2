package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielkucera/siomon/internal/modbusd"
	"github.com/danielkucera/siomon/internal/sio"
)

func init() {
	fanCmd.Flags().StringVar(&fanRemote, "remote", "", "Set the fan on a running daemon over Modbus, e.g. tcp://host:5502")
	rootCmd.AddCommand(fanCmd)
}

var fanRemote string

var fanCmd = &cobra.Command{
	Use:   "fan <percent|auto>",
	Short: "Set the fan duty cycle, or hand it back to firmware",
	Long: `Set every controllable fan channel to a fixed duty cycle (0-100),
or "auto" to return control to the board firmware. The setting persists
after the command exits.`,
	Args: cobra.ExactArgs(1),
	RunE: runFan,
}

func runFan(cmd *cobra.Command, args []string) error {
	percent, auto, err := parseFanArg(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if fanRemote != "" {
		c, err := modbusd.Dial(fanRemote, 1, 5*time.Second)
		if err != nil {
			return err
		}
		defer c.Close()
		if auto {
			err = c.SetAutomatic()
		} else {
			err = c.SetFan(percent)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Requested %s on %s\n", formatPercent(percent), fanRemote)
		return nil
	}

	engine := cfg.Engine()
	engine.ReleaseOnClose = false
	hub, err := newHub(engine, false)
	if err != nil {
		return err
	}
	defer hub.Close()

	if _, err := hub.Detect(); err != nil {
		return err
	}
	if auto {
		hub.RequestAutomatic()
	} else {
		hub.RequestSpeed(percent)
	}
	hub.Cycle()

	s := hub.Snapshot()
	if !s.FanControl {
		return fmt.Errorf("%s: %w", s.Chip, sio.ErrFanControlUnavailable)
	}
	if s.FanApplied != s.FanRequested {
		return errors.New("fan write did not complete, EC busy; retry")
	}
	fmt.Fprintf(out, "Fan set to %s\n", formatPercent(s.FanApplied))
	return nil
}
