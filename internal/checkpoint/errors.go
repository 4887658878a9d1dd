package checkpoint

import "fmt"

// CheckpointError reports a failure to snapshot the working tree. The tree
// has not been modified when this error is returned.
type CheckpointError struct {
	Op   string
	Path string
	Err  error
}

func (e *CheckpointError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("checkpoint %s (%s): %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// RollbackError reports a failed discard or apply after the recovery patch
// was written. RecoveryPatchPath holds the uncommitted work that was present
// before the operation started.
type RollbackError struct {
	Op                string
	RecoveryPatchPath string
	PatchPath         string
	Err               error
}

func (e *RollbackError) Error() string {
	msg := fmt.Sprintf("rollback %s failed: %v", e.Op, e.Err)
	if e.PatchPath != "" {
		msg += fmt.Sprintf("; checkpoint patch: %s", e.PatchPath)
	}
	if e.RecoveryPatchPath != "" {
		msg += fmt.Sprintf("; uncommitted work saved to %s (apply with: git apply %s)", e.RecoveryPatchPath, e.RecoveryPatchPath)
	}
	return msg
}

func (e *RollbackError) Unwrap() error {
	return e.Err
}
