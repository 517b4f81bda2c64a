package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyclegate/cyclegate/internal/admission"
	"github.com/cyclegate/cyclegate/internal/feed"
	"github.com/cyclegate/cyclegate/internal/persistence"
)

func newCycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run a single admission cycle from a candidates file",
		Long: `Reads a JSON array of candidate snapshots from a file, runs one
admission cycle against an empty portfolio, and prints the cycle
report. Useful for replaying a feed snapshot or sanity-checking
weights and gates before deploying a config change.`,
		RunE: runOneCycle,
	}
	cmd.Flags().String("candidates", "", "Path to JSON candidates file (required)")
	cmd.Flags().Bool("summary", false, "Print a one-line-per-symbol summary instead of the full report")
	cmd.MarkFlagRequired("candidates")
	return cmd
}

func runOneCycle(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("candidates")
	candidates, err := feed.NewFileFeed(path).Fetch(cmd.Context())
	if err != nil {
		return err
	}

	ctrl, err := buildController(cmd.Context(), cfg, persistence.NopStore(), admission.NewMemoryCooldowns())
	if err != nil {
		return err
	}
	report := ctrl.RunCycle(cmd.Context(), candidates, time.Now())

	if summary, _ := cmd.Flags().GetBool("summary"); summary {
		printSummary(report)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printSummary(report *admission.CycleReport) {
	fmt.Printf("cycle %s: %d admitted, %d displaced, %d blocked\n",
		report.CycleID, report.Admitted, report.Displaced, len(report.Blocks))
	for _, o := range report.Outcomes {
		switch o.Decision {
		case admission.DecisionAdmit, admission.DecisionDisplace:
			fmt.Printf("  %-12s %-8s score=%.4f\n", o.Symbol, o.Decision, o.FinalScore)
		default:
			fmt.Printf("  %-12s %-8s score=%.4f reason=%s\n", o.Symbol, o.Decision, o.FinalScore, o.Reason)
		}
	}
}
