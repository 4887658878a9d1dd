package main

import (
	"os"

	"github.com/spf13/cobra"
)

var projectDir string

var rootCmd = &cobra.Command{
	Use:   "phasegate",
	Short: "Phase-gated validation and checkpoints",
	Long: `phasegate decides when to run your project's validation gates
(typecheck, build, lint, test), parses their output into findings, tracks
flaky tests, and gates multi-phase workflows behind passing runs.

Every gate boundary leaves a checkpoint patch of your uncommitted work, and
every rollback saves a recovery patch before anything is discarded.

Most hosts call 'phasegate hook' once per tool event with a JSON request
on stdin. The other commands are for people.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project directory")

	// Add subcommands
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(gatesCmd)
	rootCmd.AddCommand(phaseCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(flakyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
