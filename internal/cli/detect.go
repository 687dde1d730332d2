package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielkucera/siomon/internal/sio"
)

func init() {
	rootCmd.AddCommand(detectCmd)
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Probe for a Super I/O chip and print what was found",
	Args:  cobra.NoArgs,
	RunE:  runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	engine := cfg.Engine()
	engine.ReleaseOnClose = false
	hub, err := newHub(engine, false)
	if err != nil {
		return err
	}
	defer hub.Close()

	out := cmd.OutOrStdout()
	chip, err := hub.Detect()
	switch {
	case errors.Is(err, sio.ErrChipNotFound):
		if seen := hub.LastSeenID(); seen != sio.ChipNone {
			return fmt.Errorf("no recognized chip (last seen %s)", seen)
		}
		return errors.New("no Super I/O chip responded")
	case err != nil && !errors.Is(err, sio.ErrNoRegisterMap):
		return err
	}

	fmt.Fprintf(out, "Chip:     %s (%s, id %s)\n", chip.Name, chip.Vendor, chip.RawID)
	fmt.Fprintf(out, "Port:     0x%02X\n", chip.ConfigPort)
	if chip.Resolved() {
		fmt.Fprintf(out, "EC base:  0x%04X\n", chip.ECBase)
	} else {
		fmt.Fprintln(out, "EC base:  unresolved")
	}
	m, ok := sio.RegisterMapFor(chip.Chip)
	switch {
	case !ok:
		fmt.Fprintln(out, "Sensors:  no register map")
	default:
		fmt.Fprintf(out, "Sensors:  %d temperatures, %d voltages, %d fans\n", len(m.Temperatures), len(m.Voltages), len(m.Fans))
		fmt.Fprintf(out, "Fan ctl:  %v\n", m.FanControl())
	}
	return nil
}
