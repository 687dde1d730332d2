package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielkucera/siomon/internal/modbusd"
	"github.com/danielkucera/siomon/internal/sio"
)

func init() {
	readCmd.Flags().BoolVar(&readJSON, "json", false, "Print the snapshot as JSON")
	readCmd.Flags().StringVar(&readRemote, "remote", "", "Read a running daemon over Modbus, e.g. tcp://host:5502")
	rootCmd.AddCommand(readCmd)
}

var (
	readJSON   bool
	readRemote string
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read all sensors once",
	Args:  cobra.NoArgs,
	RunE:  runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if readRemote != "" {
		return readModbus(out, readRemote)
	}

	engine := cfg.Engine()
	engine.ReleaseOnClose = false
	hub, err := newHub(engine, false)
	if err != nil {
		return err
	}
	defer hub.Close()

	hub.Cycle()
	s := hub.Snapshot()
	if readJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	printSnapshot(out, s, hub.Layout())
	return nil
}

func printSnapshot(w io.Writer, s sio.Snapshot, l sio.Layout) {
	fmt.Fprintf(w, "Status: %s\n", s.Status)
	if s.Chip != "" {
		fmt.Fprintf(w, "Chip:   %s (%s)\n", s.Chip, s.ChipID)
	} else if s.LastSeenID != sio.ChipNone {
		fmt.Fprintf(w, "Chip:   none recognized (last seen %s)\n", s.LastSeenID)
	}

	for _, name := range orderedKeys(l.Temperatures, s.Temperatures) {
		fmt.Fprintf(w, "  %-8s %6.1f °C\n", name, s.Temperatures[name])
	}
	for _, name := range orderedKeys(l.Voltages, s.Voltages) {
		fmt.Fprintf(w, "  %-8s %6.3f V\n", name, s.Voltages[name])
	}
	for _, name := range orderedKeys(l.Fans, s.Fans) {
		fmt.Fprintf(w, "  %-8s %6d RPM\n", name, s.Fans[name])
	}
	if s.FanControl {
		fmt.Fprintf(w, "Fan: requested %s, applied %s\n", formatPercent(s.FanRequested), formatPercent(s.FanApplied))
	}
}

// orderedKeys lists names present in values, in layout order, followed by
// any others sorted.
func orderedKeys[V any](layout []string, values map[string]V) []string {
	var keys []string
	for _, name := range layout {
		if _, ok := values[name]; ok {
			keys = append(keys, name)
		}
	}
	var rest []string
	for name := range values {
		if !slices.Contains(layout, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

func readModbus(w io.Writer, url string) error {
	c, err := modbusd.Dial(url, 1, 5*time.Second)
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := c.ReadInputs()
	if err != nil {
		return err
	}
	if readJSON {
		return json.NewEncoder(w).Encode(remoteJSON(r))
	}
	fmt.Fprintf(w, "Status: %d  chip 0x%04X  last seen 0x%04X  cycle %d\n", r.Status, r.ChipID, r.LastSeenID, r.Cycle)
	for i, v := range r.Temps {
		if !math.IsNaN(v) {
			fmt.Fprintf(w, "  temp%-4d %6.1f °C\n", i+1, v)
		}
	}
	for i, v := range r.Volts {
		if !math.IsNaN(v) {
			fmt.Fprintf(w, "  volt%-4d %6.3f V\n", i+1, v)
		}
	}
	for i, v := range r.Fans {
		if v >= 0 {
			fmt.Fprintf(w, "  fan%-5d %6d RPM\n", i+1, v)
		}
	}
	fmt.Fprintf(w, "Fan: requested %s, applied %s\n", formatPercent(r.FanRequested), formatPercent(r.FanApplied))
	return nil
}

// remoteJSON replaces NaN, which encoding/json rejects, with null.
func remoteJSON(r modbusd.InputRegs) map[string]any {
	nullable := func(vs []float64) []*float64 {
		out := make([]*float64, len(vs))
		for i := range vs {
			if !math.IsNaN(vs[i]) {
				out[i] = &vs[i]
			}
		}
		return out
	}
	var rpm *int
	if r.FanRPM >= 0 {
		rpm = &r.FanRPM
	}
	return map[string]any{
		"status":        r.Status,
		"chip_id":       sio.ChipID(r.ChipID),
		"last_seen_id":  sio.ChipID(r.LastSeenID),
		"fan_rpm":       rpm,
		"fan_requested": r.FanRequested,
		"fan_applied":   r.FanApplied,
		"temperatures":  nullable(r.Temps),
		"voltages":      nullable(r.Volts),
		"fans":          r.Fans,
		"cycle":         r.Cycle,
	}
}
