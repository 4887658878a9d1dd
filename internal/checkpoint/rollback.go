package checkpoint

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// RollbackResult describes the outcome of discarding uncommitted work.
type RollbackResult struct {
	Success           bool   `json:"success"`
	RecoveryPatchPath string `json:"recoveryPatchPath,omitempty"`
	Message           string `json:"message"`
}

// RestoreResult describes the outcome of restoring a phase checkpoint.
type RestoreResult struct {
	Success           bool        `json:"success"`
	Checkpoint        *Checkpoint `json:"checkpoint,omitempty"`
	RecoveryPatchPath string      `json:"recoveryPatchPath,omitempty"`
	Message           string      `json:"message"`
}

// Rollback saves the uncommitted diff to a recovery patch and then discards
// it. The discard only happens once the recovery patch has been verified
// on disk. A *CheckpointError means nothing was discarded; a *RollbackError
// carries the recovery patch path.
func (m *Manager) Rollback() (*RollbackResult, error) {
	recovery, err := m.saveRecovery()
	if err != nil {
		return &RollbackResult{Message: err.Error()}, err
	}
	if recovery == "" {
		return &RollbackResult{Success: true, Message: "no uncommitted changes"}, nil
	}

	if err := m.tree.DiscardUncommitted(); err != nil {
		rerr := &RollbackError{Op: "discard", RecoveryPatchPath: recovery, Err: err}
		m.logger.Error("rollback discard failed", zap.String("recovery_patch", recovery), zap.Error(err))
		return &RollbackResult{RecoveryPatchPath: recovery, Message: rerr.Error()}, rerr
	}

	m.logger.Info("rolled back uncommitted changes", zap.String("recovery_patch", recovery))
	return &RollbackResult{
		Success:           true,
		RecoveryPatchPath: recovery,
		Message:           fmt.Sprintf("discarded uncommitted changes; recovery patch: %s", recovery),
	}, nil
}

// RestorePhaseStart returns the tree to the most recent checkpoint taken
// when phase started. Current uncommitted work is saved to a recovery patch
// and discarded before the checkpoint patch is applied.
func (m *Manager) RestorePhaseStart(phase string) (*RestoreResult, error) {
	cp, err := m.Latest(PhaseReason(phase))
	if err != nil {
		cerr := &CheckpointError{Op: "load manifest", Path: m.manifestPath(), Err: err}
		return &RestoreResult{Message: cerr.Error()}, cerr
	}
	if cp == nil {
		return &RestoreResult{Message: fmt.Sprintf("no checkpoint found for phase %q", phase)}, nil
	}

	// Nothing is touched until the checkpoint patch is known to be usable.
	if info, err := os.Stat(cp.PatchPath); err != nil || info.Size() == 0 {
		if err == nil {
			err = fmt.Errorf("patch is empty")
		}
		cerr := &CheckpointError{Op: "read checkpoint patch", Path: cp.PatchPath, Err: err}
		return &RestoreResult{Checkpoint: cp, Message: cerr.Error()}, cerr
	}

	recovery, err := m.saveRecovery()
	if err != nil {
		return &RestoreResult{Checkpoint: cp, Message: err.Error()}, err
	}

	if recovery != "" {
		if err := m.tree.DiscardUncommitted(); err != nil {
			rerr := &RollbackError{Op: "discard", RecoveryPatchPath: recovery, PatchPath: cp.PatchPath, Err: err}
			return &RestoreResult{Checkpoint: cp, RecoveryPatchPath: recovery, Message: rerr.Error()}, rerr
		}
	}

	if err := m.tree.ApplyPatch(cp.PatchPath); err != nil {
		rerr := &RollbackError{Op: "apply", RecoveryPatchPath: recovery, PatchPath: cp.PatchPath, Err: err}
		m.logger.Error("restore apply failed",
			zap.String("patch", cp.PatchPath),
			zap.String("recovery_patch", recovery),
			zap.Error(err),
		)
		return &RestoreResult{Checkpoint: cp, RecoveryPatchPath: recovery, Message: rerr.Error()}, rerr
	}

	msg := fmt.Sprintf("restored start of phase %q from %s", phase, cp.PatchPath)
	if recovery != "" {
		msg += fmt.Sprintf("; previous work saved to %s", recovery)
	}
	m.logger.Info("restored phase checkpoint", zap.String("phase", phase), zap.String("patch", cp.PatchPath))
	return &RestoreResult{Success: true, Checkpoint: cp, RecoveryPatchPath: recovery, Message: msg}, nil
}

// saveRecovery writes the current uncommitted diff to a verified recovery
// patch. It returns an empty path when the tree is clean.
func (m *Manager) saveRecovery() (string, error) {
	diff, err := m.tree.DiffUncommitted()
	if err != nil {
		return "", &CheckpointError{Op: "diff", Err: err}
	}
	if strings.TrimSpace(diff) == "" {
		return "", nil
	}

	label := m.uniqueLabel("recovery", m.now().UTC())
	path := m.patchPath("recovery", label)
	if err := writeVerified(path, []byte(diff)); err != nil {
		return "", &CheckpointError{Op: "write recovery patch", Path: path, Err: err}
	}
	return path, nil
}
