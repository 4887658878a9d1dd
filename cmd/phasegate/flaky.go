package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/flaky"
)

var flakyMinRuns int

var flakyCmd = &cobra.Command{
	Use:   "flaky",
	Short: "Show flaky tests seen in this session",
	Long: `Report tests whose pass rate over the current session's samples is
between 20% and 80%. Only the newest 50 samples are kept, and a new session
starts from none.`,
	Args: cobra.NoArgs,
	RunE: runFlaky,
}

func init() {
	flakyCmd.Flags().IntVar(&flakyMinRuns, "min-runs", flaky.DefaultMinRuns, "Minimum samples before a test is judged")
}

func runFlaky(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.db.LoadEngineState(cmd.Context())
	if err != nil {
		return err
	}
	tracker := flaky.Restore(st.TestResults)
	reports := tracker.DetectFlaky(flakyMinRuns)

	fmt.Printf("Session %s: %d test sample(s)\n", sessionLabel(st.SessionID), tracker.Len())
	if len(reports) == 0 {
		printStatus("✓", "No flaky tests detected", color.FgGreen)
		return nil
	}
	for _, r := range reports {
		printStatus("⚠", fmt.Sprintf("%s  %.0f%% pass (%d/%d)", r.TestName, r.PassRate*100, r.Passed, r.Total), color.FgYellow)
	}
	return nil
}

func sessionLabel(id string) string {
	if id == "" {
		return "(none)"
	}
	return id
}
