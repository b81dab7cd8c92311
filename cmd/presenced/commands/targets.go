package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crowdcast/presenced/internal/api"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List windows available as capture targets",
	Long: `Ask the daemon to enumerate the windows OBS can capture on this
platform. Commonly captured applications are marked as suggested.`,
	Example: `  # List capture targets in table format (default)
  presenced targets

  # List capture targets in JSON format
  presenced targets --format json

  # List only suggested applications
  presenced targets --suggested`,
	RunE: runTargets,
}

var (
	targetsFormat    string
	targetsSuggested bool
)

func init() {
	rootCmd.AddCommand(targetsCmd)

	targetsCmd.Flags().StringVarP(&targetsFormat, "format", "f", "table", "output format (table or json)")
	targetsCmd.Flags().BoolVarP(&targetsSuggested, "suggested", "s", false, "show only suggested applications")
}

func runTargets(cmd *cobra.Command, args []string) error {
	var resp api.TargetsResponse
	if err := getJSON("/api/targets", &resp); err != nil {
		return err
	}

	targets := resp.Targets
	if targetsSuggested {
		targets = resp.Suggested
	}

	if targetsFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(targets)
	}

	if len(targets) == 0 {
		fmt.Println("No capture targets found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tAPP\tID\tSUGGESTED")
	for _, target := range targets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", target.Title, target.AppName, target.ID, target.Suggested)
	}
	return w.Flush()
}
