package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crowdcast/presenced/internal/api"
)

var captureCmd = &cobra.Command{
	Use:   "capture {on|off}",
	Short: "Toggle the manual capture override",
	Long: `Set the manual capture override on a running daemon.

On Wayland the frontmost application cannot be probed, so the daemon
runs in manual mode and this override directly gates the presence
signal. Outside manual mode the override is stored but the polled
detection keeps deciding.`,
	Example: `  # Enable capture
  presenced capture on

  # Disable capture
  presenced capture off`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return fmt.Errorf("invalid argument %q, expected on or off", args[0])
	}

	var resp api.CaptureResponse
	if err := postJSON("/api/capture", api.CaptureRequest{Enabled: enabled}, &resp); err != nil {
		return err
	}

	mode := "automatic"
	if resp.ManualMode {
		mode = "manual"
	}
	fmt.Printf("Capture override: %v (mode: %s, presence: %v)\n", resp.Enabled, mode, resp.AnyHooked)
	return nil
}
