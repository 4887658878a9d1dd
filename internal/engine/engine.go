// Package engine handles one operation event per call: it decides whether
// to validate, runs the gates, checkpoints passing states, and drives the
// phase workflow, carrying batching and test-sample state between calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ShayCichocki/phasegate/internal/checkpoint"
	"github.com/ShayCichocki/phasegate/internal/flaky"
	"github.com/ShayCichocki/phasegate/internal/gates"
	"github.com/ShayCichocki/phasegate/internal/state"
	"github.com/ShayCichocki/phasegate/internal/trigger"
	"github.com/ShayCichocki/phasegate/internal/workflow"
)

// ValidationCheckpointReason labels checkpoints taken after a passing
// triggered validation.
const ValidationCheckpointReason = "validation"

// Store persists engine state and validation history.
type Store interface {
	state.EngineStateStore
	RecordRun(ctx context.Context, run *gates.ValidationRun, trigger string) error
}

// Checkpoints creates, discards and restores snapshots of uncommitted work.
type Checkpoints interface {
	Create(reason string) (*checkpoint.Checkpoint, error)
	Rollback() (*checkpoint.RollbackResult, error)
	RestorePhaseStart(phase string) (*checkpoint.RestoreResult, error)
}

// Workflow drives phase transitions.
type Workflow interface {
	Start(ctx context.Context, workflowID string, phases []string) (*workflow.State, error)
	CompletePhase(ctx context.Context, phase string, force bool) (*workflow.Transition, error)
}

// Deps are the collaborators an Engine is built from.
type Deps struct {
	Evaluator   *trigger.Evaluator
	Validator   workflow.Validator
	Tracker     *flaky.Tracker
	Checkpoints Checkpoints
	Workflow    Workflow
	Store       Store
	Logger      *zap.Logger
	// CheckpointOnPass creates a checkpoint after every passing triggered
	// validation.
	CheckpointOnPass bool
}

// Engine handles requests. It is not safe for concurrent use; each
// invocation of the host handles exactly one request.
type Engine struct {
	evaluator        *trigger.Evaluator
	validator        workflow.Validator
	tracker          *flaky.Tracker
	checkpoints      Checkpoints
	workflow         Workflow
	store            Store
	logger           *zap.Logger
	checkpointOnPass bool
}

// New creates an engine. The tracker must be the recorder the validator's
// executor reports test outcomes to.
func New(d Deps) *Engine {
	e := &Engine{
		evaluator:        d.Evaluator,
		validator:        d.Validator,
		tracker:          d.Tracker,
		checkpoints:      d.Checkpoints,
		workflow:         d.Workflow,
		store:            d.Store,
		logger:           d.Logger,
		checkpointOnPass: d.CheckpointOnPass,
	}
	if e.evaluator == nil {
		e.evaluator = trigger.NewEvaluator(trigger.DefaultBatchThreshold, nil)
	}
	if e.tracker == nil {
		e.tracker = flaky.NewTracker()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Handle processes one request and always returns a response. Malformed
// requests are answered with continue=true and a message; only checkpoint
// and rollback failures stop the host.
func (e *Engine) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("request panicked", zap.String("tool_kind", req.ToolKind), zap.Any("panic", r))
			resp = Response{Continue: true, Message: fmt.Sprintf("phasegate internal error: %v", r)}
		}
	}()

	cmd, err := req.Decode()
	if errors.Is(err, ErrUnsupportedKind) {
		return Response{Continue: true}
	}
	if err != nil {
		e.logger.Warn("request rejected", zap.String("tool_kind", req.ToolKind), zap.Error(err))
		return Response{Continue: true, Message: "phasegate: " + err.Error()}
	}

	// An unreadable state is never overwritten with the zero state used in
	// its place.
	persist := true
	st, err := e.store.LoadEngineState(ctx)
	if err != nil {
		e.logger.Warn("load engine state; changes will not be saved", zap.Error(err))
		st = &state.EngineState{}
		persist = false
	}
	if req.SessionID != "" && req.SessionID != st.SessionID {
		e.logger.Info("new session", zap.String("session_id", req.SessionID))
		st.ResetSession(req.SessionID)
	}
	e.tracker.Load(st.TestResults)

	resp = e.dispatch(ctx, cmd, st)

	if !persist {
		return resp
	}
	st.TestResults = e.tracker.Samples()
	if err := e.store.SaveEngineState(ctx, st); err != nil {
		e.logger.Error("save engine state", zap.Error(err))
	}
	return resp
}

func (e *Engine) dispatch(ctx context.Context, cmd Command, st *state.EngineState) Response {
	switch c := cmd.(type) {
	case FileChange:
		return e.fileChange(ctx, c, st)
	case Validate:
		resetCounters(st)
		return e.validate(ctx, "manual", st)
	case CompletePhase:
		return e.completePhase(ctx, c, st)
	case StartWorkflow:
		s, err := e.workflow.Start(ctx, c.WorkflowID, c.Phases)
		if err != nil {
			return Response{Continue: true, Message: "phasegate: " + err.Error()}
		}
		return Response{Continue: true, Message: fmt.Sprintf("workflow %s started: %s (current phase %q)",
			s.WorkflowID, strings.Join(s.Phases, " -> "), s.CurrentPhase)}
	case Rollback:
		res, err := e.checkpoints.Rollback()
		if err != nil {
			return e.stop(err)
		}
		resetCounters(st)
		return Response{Continue: true, Message: res.Message}
	case RestorePhase:
		res, err := e.checkpoints.RestorePhaseStart(c.Phase)
		if err != nil {
			return e.stop(err)
		}
		if res.Success {
			resetCounters(st)
		}
		return Response{Continue: true, Message: res.Message}
	}
	return Response{Continue: true, Message: fmt.Sprintf("phasegate: unhandled command %T", cmd)}
}

func (e *Engine) fileChange(ctx context.Context, c FileChange, st *state.EngineState) Response {
	d := e.evaluator.Evaluate(
		trigger.Operation{Kind: c.Kind, Path: c.Path, DiffText: c.Diff},
		trigger.Counters{EditCount: st.FileEditCount, RecentPaths: st.RecentFiles},
	)
	st.FileEditCount = d.Counters.EditCount
	st.RecentFiles = d.Counters.RecentPaths
	st.RecentFileCount = len(st.RecentFiles)

	e.logger.Debug("trigger evaluated",
		zap.String("path", c.Path),
		zap.Bool("validate", d.ValidateNow),
		zap.String("reason", d.Reason),
	)
	if !d.ValidateNow {
		return Response{Continue: true}
	}
	return e.validate(ctx, d.Reason, st)
}

// validate runs the gates, records the run, and checkpoints a passing tree.
func (e *Engine) validate(ctx context.Context, reason string, st *state.EngineState) Response {
	run := e.validator.Validate(ctx)
	e.recordRun(ctx, run, reason)

	var b strings.Builder
	fmt.Fprintf(&b, "phasegate (%s): %s", reason, run.Summary())

	if run.Passed && !run.Skipped && e.checkpointOnPass {
		cp, err := e.checkpoints.Create(ValidationCheckpointReason)
		if err != nil {
			return e.stop(err)
		}
		if cp != nil {
			created := cp.CreatedAt
			st.LastCheckpointTimestamp = &created
			fmt.Fprintf(&b, "\ncheckpoint saved to %s", cp.PatchPath)
		}
	}
	return Response{Continue: true, Message: b.String()}
}

func (e *Engine) completePhase(ctx context.Context, c CompletePhase, st *state.EngineState) Response {
	tr, err := e.workflow.CompletePhase(ctx, c.Phase, c.Force)
	if err != nil {
		var cpErr *checkpoint.CheckpointError
		if errors.As(err, &cpErr) {
			return e.stop(err)
		}
		return Response{Continue: true, Message: "phasegate: " + err.Error()}
	}
	if tr.Run != nil {
		e.recordRun(ctx, tr.Run, "phase:"+c.Phase)
	}
	if tr.Checkpoint != nil {
		created := tr.Checkpoint.CreatedAt
		st.LastCheckpointTimestamp = &created
	}
	return Response{Continue: true, Message: tr.Message}
}

func (e *Engine) recordRun(ctx context.Context, run *gates.ValidationRun, reason string) {
	if err := e.store.RecordRun(ctx, run, reason); err != nil {
		e.logger.Warn("record validation run", zap.Error(err))
	}
	e.logger.Info("validation finished",
		zap.String("run_id", run.ID),
		zap.String("trigger", reason),
		zap.Bool("passed", run.Passed),
		zap.Bool("skipped", run.Skipped),
		zap.Int("errors", run.TotalErrors),
	)
}

// stop turns a checkpoint or rollback failure into a response that halts
// the host. Other errors do not stop it.
func (e *Engine) stop(err error) Response {
	var rbErr *checkpoint.RollbackError
	var cpErr *checkpoint.CheckpointError
	switch {
	case errors.As(err, &rbErr):
		e.logger.Error("rollback failed", zap.String("recovery_patch", rbErr.RecoveryPatchPath), zap.Error(err))
		resp := Response{Continue: false, StopReason: err.Error()}
		if rbErr.RecoveryPatchPath != "" {
			resp.Message = "recover your work with: git apply " + rbErr.RecoveryPatchPath
		}
		return resp
	case errors.As(err, &cpErr):
		e.logger.Error("checkpoint failed", zap.Error(err))
		return Response{
			Continue:   false,
			StopReason: err.Error(),
		}
	}
	e.logger.Warn("operation failed", zap.Error(err))
	return Response{Continue: true, Message: "phasegate: " + err.Error()}
}

func resetCounters(st *state.EngineState) {
	st.FileEditCount = 0
	st.RecentFiles = nil
	st.RecentFileCount = 0
}
