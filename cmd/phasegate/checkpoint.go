package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/checkpoint"
)

var checkpointReason string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Manage checkpoints of uncommitted work",
	Long: `Checkpoints are patch files of the uncommitted diff, written under
checkpoints.dir with a manifest. They are created automatically at phase
boundaries and after passing validation runs.`,
}

var checkpointCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Checkpoint the current uncommitted diff",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointCreate,
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointList,
}

var checkpointPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired checkpoints, recovery patches and old run history",
	Args:  cobra.NoArgs,
	RunE:  runCheckpointPrune,
}

func init() {
	checkpointCreateCmd.Flags().StringVar(&checkpointReason, "reason", "manual", "Reason recorded in the manifest")

	checkpointCmd.AddCommand(checkpointCreateCmd)
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointPruneCmd)
}

func runCheckpointCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	cp, err := a.checkpoints.Create(checkpointReason)
	if err != nil {
		printStatus("✗", "Checkpoint failed", color.FgRed)
		return err
	}
	if cp == nil {
		printStatus("•", "No uncommitted changes; nothing to checkpoint", color.FgCyan)
		return nil
	}
	printStatus("✓", fmt.Sprintf("Checkpoint saved to %s", cp.PatchPath), color.FgGreen)
	return nil
}

func runCheckpointList(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	cps, err := a.checkpoints.List()
	if err != nil {
		return err
	}
	if len(cps) == 0 {
		fmt.Printf("No checkpoints in %s\n", a.checkpoints.Dir())
		return nil
	}
	displayCheckpoints(cps, time.Now())
	return nil
}

func displayCheckpoints(cps []checkpoint.Checkpoint, now time.Time) {
	fmt.Printf("Checkpoints (%d):\n", len(cps))
	for _, cp := range cps {
		fmt.Printf("  %s  %-14s %s ago  %s\n",
			cp.TimestampLabel,
			color.CyanString(cp.TriggerReason),
			formatDuration(now.Sub(cp.CreatedAt)),
			cp.PatchPath)
	}
}

func runCheckpointPrune(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.checkpoints.Prune()
	if err != nil {
		return err
	}
	printStatus("✓", fmt.Sprintf("Removed %d expired checkpoint(s)", len(removed)), color.FgGreen)

	recoveries, err := a.checkpoints.PruneRecoveries()
	for _, path := range recoveries {
		printStatus("-", "Deleted recovery patch "+path, color.FgYellow)
	}
	if err != nil {
		return fmt.Errorf("prune recovery patches: %w", err)
	}

	retention := time.Duration(a.cfg.Checkpoints.RetentionDays) * 24 * time.Hour
	n, err := a.db.PurgeRuns(cmd.Context(), retention)
	if err != nil {
		return fmt.Errorf("purge runs: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Removed %d validation run(s) older than %d days", n, a.cfg.Checkpoints.RetentionDays), color.FgGreen)
	return nil
}
