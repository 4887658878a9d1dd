package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/engine"
)

var errValidationFailed = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the validation gates now",
	Long: `Run every enabled gate in order and print the findings.

A passing run is checkpointed when checkpoints.on_validation_pass is set.
Exits non-zero when a required gate fails.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()
	printWarnings(a)

	resp := a.engine.Handle(cmd.Context(), engine.Request{ToolKind: "validate"})
	printResponse(resp)
	if !resp.Continue {
		return errors.New(resp.StopReason)
	}

	runs, err := a.db.ListRuns(cmd.Context(), 1)
	if err != nil {
		return fmt.Errorf("read run history: %w", err)
	}
	if len(runs) > 0 && !runs[0].Passed {
		return errValidationFailed
	}
	return nil
}
