package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crowdcast/presenced/internal/api"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracked capture sources and the presence signal",
	Long: `Query a running daemon for its tracked capture sources, whether any
of them is hooked to the frontmost application, and which detection
mode is in effect.`,
	Example: `  # Show status in table format (default)
  presenced status

  # Show status in JSON format
  presenced status --format json`,
	RunE: runStatus,
}

var statusFormat string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "table", "output format (table or json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	var status api.StatusResponse
	if err := getJSON("/api/sources", &status); err != nil {
		return err
	}

	if statusFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	mode := "automatic"
	if status.ManualMode {
		mode = "manual"
	}
	fmt.Printf("Presence: %v (mode: %s)\n\n", status.AnyHooked, mode)

	if len(status.Sources) == 0 {
		fmt.Println("No capture sources tracked.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTARGET\tACTIVE\tHOOKED")
	for _, src := range status.Sources {
		fmt.Fprintf(w, "%s\t%s\t%v\t%v\n", src.Name, src.TargetApp, src.Active, src.Hooked)
	}
	return w.Flush()
}
