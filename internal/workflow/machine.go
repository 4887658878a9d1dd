// Package workflow gates transitions between the phases of a workflow behind
// validation runs and snapshots the tree at every phase boundary.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/phasegate/internal/checkpoint"
	"github.com/ShayCichocki/phasegate/internal/gates"
)

// ErrNoWorkflow is returned when no workflow has been started.
var ErrNoWorkflow = errors.New("no active workflow")

// Store persists workflow state.
type Store interface {
	// LoadWorkflow returns the current workflow or nil when none exists.
	LoadWorkflow(ctx context.Context) (*State, error)
	SaveWorkflow(ctx context.Context, s *State) error
}

// Validator runs the configured gates once.
type Validator interface {
	Validate(ctx context.Context) *gates.ValidationRun
}

// Checkpointer snapshots uncommitted work.
type Checkpointer interface {
	Create(reason string) (*checkpoint.Checkpoint, error)
}

// ProgressSink receives progress after every transition.
type ProgressSink interface {
	Publish(p Progress) error
}

// Coordinator is told when a workflow has finished.
type Coordinator interface {
	Deactivate(workflowID string) error
}

// Transition is the outcome of a CompletePhase call.
type Transition struct {
	Blocked    bool                   `json:"blocked"`
	NextPhase  string                 `json:"nextPhase,omitempty"`
	Checkpoint *checkpoint.Checkpoint `json:"checkpoint,omitempty"`
	Completed  bool                   `json:"completed,omitempty"`
	Message    string                 `json:"message"`
	Run        *gates.ValidationRun   `json:"run,omitempty"`
}

// Machine drives phase transitions. It is not safe for concurrent use.
type Machine struct {
	store       Store
	validator   Validator
	checkpoints Checkpointer
	sink        ProgressSink
	coordinator Coordinator
	logger      *zap.Logger
	now         func() time.Time
}

// NewMachine creates a state machine over the given collaborators.
func NewMachine(store Store, validator Validator, checkpoints Checkpointer) *Machine {
	return &Machine{
		store:       store,
		validator:   validator,
		checkpoints: checkpoints,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
}

// SetProgressSink sets where progress is published.
func (m *Machine) SetProgressSink(s ProgressSink) {
	m.sink = s
}

// SetCoordinator sets who is notified when the workflow completes.
func (m *Machine) SetCoordinator(c Coordinator) {
	m.coordinator = c
}

// SetLogger sets the logger.
func (m *Machine) SetLogger(l *zap.Logger) {
	if l != nil {
		m.logger = l
	}
}

// Start begins a new workflow, replacing any existing one. An empty id is
// replaced by a generated one.
func (m *Machine) Start(ctx context.Context, workflowID string, phases []string) (*State, error) {
	if len(phases) == 0 {
		return nil, errors.New("workflow needs at least one phase")
	}
	seen := make(map[string]bool, len(phases))
	for _, p := range phases {
		if strings.TrimSpace(p) == "" {
			return nil, errors.New("phase names must not be empty")
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate phase %q", p)
		}
		seen[p] = true
	}
	if workflowID == "" {
		workflowID = uuid.NewString()
	}

	s := &State{
		WorkflowID:      workflowID,
		Phases:          append([]string(nil), phases...),
		CurrentPhase:    phases[0],
		PhasesCompleted: []string{},
		UpdatedAt:       m.now(),
	}
	if err := m.store.SaveWorkflow(ctx, s); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	m.publish(s)
	m.logger.Info("workflow started", zap.String("workflow_id", workflowID), zap.Strings("phases", phases))
	return s, nil
}

// Status returns the current workflow state.
func (m *Machine) Status(ctx context.Context) (*State, error) {
	s, err := m.store.LoadWorkflow(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}
	if s == nil {
		return nil, ErrNoWorkflow
	}
	return s, nil
}

// CompletePhase marks phase complete and advances to the next phase.
//
// When another phase follows, the gates run first. A failing run blocks the
// transition unless force is set; a blocked transition changes no state and
// creates no checkpoint. On success the tree is checkpointed under the next
// phase name before state is updated, so a checkpoint failure leaves the
// workflow where it was and is returned as a *checkpoint.CheckpointError.
// Completing the last phase finishes the workflow and notifies the
// coordinator. Completing an already completed phase is a no-op.
func (m *Machine) CompletePhase(ctx context.Context, phase string, force bool) (*Transition, error) {
	s, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !s.HasPhase(phase) {
		return nil, fmt.Errorf("unknown phase %q (phases: %s)", phase, strings.Join(s.Phases, ", "))
	}
	if s.IsCompleted(phase) {
		next, _ := s.NextPhase("")
		return &Transition{
			NextPhase: next,
			Completed: s.Completed,
			Message:   fmt.Sprintf("phase %q already completed", phase),
		}, nil
	}

	next, hasNext := s.NextPhase(phase)
	if !hasNext {
		return m.finish(ctx, s, phase)
	}

	run := m.validator.Validate(ctx)
	if !run.Passed && !force {
		m.logger.Info("phase transition blocked",
			zap.String("phase", phase),
			zap.Strings("failed_gates", run.FailedGates()),
		)
		return &Transition{
			Blocked: true,
			Run:     run,
			Message: fmt.Sprintf("cannot complete phase %q: %s", phase, run.Summary()),
		}, nil
	}

	cp, err := m.checkpoints.Create(checkpoint.PhaseReason(next))
	if err != nil {
		return nil, err
	}

	s.markCompleted(phase)
	s.CurrentPhase = next
	s.UpdatedAt = m.now()
	if err := m.store.SaveWorkflow(ctx, s); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	m.publish(s)

	msg := fmt.Sprintf("phase %q completed; now in %q", phase, next)
	if !run.Passed {
		msg += " (forced past failing validation)"
	}
	if cp != nil {
		msg += fmt.Sprintf("; checkpoint %s", cp.PatchPath)
	}
	m.logger.Info("phase completed",
		zap.String("phase", phase),
		zap.String("next", next),
		zap.Bool("forced", !run.Passed),
	)
	return &Transition{NextPhase: next, Checkpoint: cp, Message: msg, Run: run}, nil
}

func (m *Machine) finish(ctx context.Context, s *State, phase string) (*Transition, error) {
	s.markCompleted(phase)
	s.Completed = true
	s.UpdatedAt = m.now()
	if err := m.store.SaveWorkflow(ctx, s); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}
	m.publish(s)

	if m.coordinator != nil {
		if err := m.coordinator.Deactivate(s.WorkflowID); err != nil {
			m.logger.Warn("deactivate coordinator", zap.String("workflow_id", s.WorkflowID), zap.Error(err))
		}
	}
	m.logger.Info("workflow completed", zap.String("workflow_id", s.WorkflowID))
	return &Transition{
		Completed: true,
		Message:   fmt.Sprintf("phase %q completed; workflow %s complete", phase, s.WorkflowID),
	}, nil
}

func (m *Machine) publish(s *State) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Publish(s.Progress()); err != nil {
		m.logger.Warn("publish progress", zap.Error(err))
	}
}
