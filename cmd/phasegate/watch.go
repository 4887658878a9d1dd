package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/phasegate/internal/engine"
	"github.com/ShayCichocki/phasegate/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Validate as files change",
	Long: `Watch the project for file changes and feed each one to the engine
as a write or delete event, printing validation results as they happen.

Use this when the host cannot call 'phasegate hook'. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp(projectDir)
	if err != nil {
		return err
	}
	defer a.Close()
	printWarnings(a)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(a.root, a.engine, func(req engine.Request, resp engine.Response) {
		printResponse(resp)
	}, a.logger.Logger)
	if err != nil {
		return err
	}
	defer w.Close()

	printStatus("•", fmt.Sprintf("Watching %s (batch threshold %d)", a.root, a.cfg.Triggers.BatchThreshold), color.FgCyan)
	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
