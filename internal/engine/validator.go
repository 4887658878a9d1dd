package engine

import (
	"context"

	"github.com/ShayCichocki/phasegate/internal/gates"
)

// GateValidator runs a fixed gate set with fixed options.
type GateValidator struct {
	executor *gates.Executor
	gates    []gates.Definition
	opts     gates.Options
}

// NewGateValidator creates a validator over defs.
func NewGateValidator(executor *gates.Executor, defs []gates.Definition, opts gates.Options) *GateValidator {
	return &GateValidator{executor: executor, gates: defs, opts: opts}
}

// Validate runs every configured gate once.
func (v *GateValidator) Validate(ctx context.Context) *gates.ValidationRun {
	return v.executor.RunAll(ctx, v.gates, v.opts)
}

// Gates returns the gate definitions.
func (v *GateValidator) Gates() []gates.Definition {
	return v.gates
}
