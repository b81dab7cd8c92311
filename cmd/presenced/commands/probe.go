package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crowdcast/presenced/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run the platform probe once and print the frontmost application",
	Long: `Query the platform probe directly, without a running daemon. Useful
for checking what identifier a capture target needs to match.`,
	Example: `  # Print the frontmost application identifier
  presenced probe`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	prb := probe.New()
	defer prb.Close()

	fmt.Printf("Probe: %s\n", prb.Name())
	if prb.IsWayland() {
		fmt.Println("Wayland session: frontmost application detection unavailable")
		return nil
	}

	id, ok := prb.FrontmostAppID()
	if !ok {
		fmt.Println("No frontmost application detected")
		return nil
	}
	fmt.Printf("Frontmost application: %s\n", id)
	return nil
}
