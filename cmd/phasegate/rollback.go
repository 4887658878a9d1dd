package main

import (
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Discard uncommitted work after saving a recovery patch",
	Long: `Save the uncommitted diff to a recovery patch, verify it on disk, and
then discard the uncommitted changes.

Bring the work back with: git apply <recovery patch>

Untracked files are neither saved nor removed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(projectDir)
		if err != nil {
			return err
		}
		defer a.Close()

		req, err := newRequest("rollback", nil)
		if err != nil {
			return err
		}
		return respond(a.engine.Handle(cmd.Context(), req))
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <phase>",
	Short: "Return the tree to the checkpoint taken when a phase began",
	Long: `Save the uncommitted diff to a recovery patch, discard it, and apply
the latest checkpoint recorded for the phase.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(projectDir)
		if err != nil {
			return err
		}
		defer a.Close()

		req, err := newRequest("restorePhase", map[string]any{"phase": args[0]})
		if err != nil {
			return err
		}
		return respond(a.engine.Handle(cmd.Context(), req))
	},
}
