package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ShayCichocki/phasegate/internal/checkpoint"
	"github.com/ShayCichocki/phasegate/internal/config"
	"github.com/ShayCichocki/phasegate/internal/engine"
	"github.com/ShayCichocki/phasegate/internal/exec"
	"github.com/ShayCichocki/phasegate/internal/flaky"
	"github.com/ShayCichocki/phasegate/internal/gates"
	"github.com/ShayCichocki/phasegate/internal/git"
	"github.com/ShayCichocki/phasegate/internal/logging"
	"github.com/ShayCichocki/phasegate/internal/state"
	"github.com/ShayCichocki/phasegate/internal/trigger"
	"github.com/ShayCichocki/phasegate/internal/workflow"
)

// app holds the collaborators for one invocation.
type app struct {
	root        string
	cfg         *config.Config
	logger      *logging.Logger
	db          *state.DB
	gates       []gates.Definition
	tracker     *flaky.Tracker
	validator   *engine.GateValidator
	checkpoints *checkpoint.Manager
	machine     *workflow.Machine
	engine      *engine.Engine
}

// resolveRoot returns the repository root containing dir, or dir itself
// when it is not inside a git repository.
func resolveRoot(dir string) (string, error) {
	if root, err := git.FindRoot(dir); err == nil {
		return root, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return abs, nil
}

// openApp loads configuration and state for the project containing dir and
// wires the engine. Callers must Close the result.
func openApp(dir string) (*app, error) {
	root, err := resolveRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg := config.Load(root)
	defs := cfg.ResolveGates(gates.Detect(root))
	logger := logging.NewForRepo(cfg.LogFile(root), cfg.Logging.Level)
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("source", w.Source), zap.String("field", w.Field), zap.String("problem", w.Message))
	}

	db, err := state.OpenProject(root)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("open state: %w", err)
	}

	runner := exec.NewRunner()
	tree := git.NewRunner(root, runner)

	tracker := flaky.NewTracker()
	executor := gates.NewExecutor(runner, root)
	executor.SetRecorder(tracker)
	executor.SetLogger(logger.Logger)
	validator := engine.NewGateValidator(executor, defs, cfg.ExecutorOptions())

	checkpoints := checkpoint.NewManager(cfg.CheckpointDir(root), tree)
	checkpoints.SetRetentionDays(cfg.Checkpoints.RetentionDays)
	checkpoints.SetLogger(logger.Logger)

	stateDir := filepath.Join(root, ".phasegate")
	machine := workflow.NewMachine(db, validator, checkpoints)
	machine.SetProgressSink(&workflow.FileProgressSink{Path: filepath.Join(stateDir, "progress.json")})
	machine.SetCoordinator(&workflow.FileCoordinator{Path: filepath.Join(stateDir, "coordination.json")})
	machine.SetLogger(logger.Logger)

	eng := engine.New(engine.Deps{
		Evaluator:        trigger.NewEvaluator(cfg.Triggers.BatchThreshold, cfg.Triggers.SensitivePatterns),
		Validator:        validator,
		Tracker:          tracker,
		Checkpoints:      checkpoints,
		Workflow:         machine,
		Store:            db,
		Logger:           logger.Logger,
		CheckpointOnPass: cfg.Checkpoints.OnValidationPass,
	})

	return &app{
		root:        root,
		cfg:         cfg,
		logger:      logger,
		db:          db,
		gates:       defs,
		tracker:     tracker,
		validator:   validator,
		checkpoints: checkpoints,
		machine:     machine,
		engine:      eng,
	}, nil
}

// Close releases the database and log file.
func (a *app) Close() error {
	err := a.db.Close()
	a.logger.Close()
	return err
}
