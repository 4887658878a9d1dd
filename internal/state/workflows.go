package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/phasegate/internal/workflow"
)

// LoadWorkflow returns the active workflow, or nil when none was started.
func (db *DB) LoadWorkflow(ctx context.Context) (*workflow.State, error) {
	var (
		s                         workflow.State
		phasesJSON, completedJSON string
		completed                 int
		updatedAt                 string
	)
	err := db.QueryRow(ctx, `
		SELECT id, phases, current_phase, phases_completed, completed, updated_at
		FROM workflows WHERE active = 1
		ORDER BY updated_at DESC LIMIT 1
	`).Scan(&s.WorkflowID, &phasesJSON, &s.CurrentPhase, &completedJSON, &completed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow: %w", err)
	}

	if err := json.Unmarshal([]byte(phasesJSON), &s.Phases); err != nil {
		return nil, fmt.Errorf("decode phases: %w", err)
	}
	if err := json.Unmarshal([]byte(completedJSON), &s.PhasesCompleted); err != nil {
		return nil, fmt.Errorf("decode completed phases: %w", err)
	}
	s.Completed = completed != 0
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}

// SaveWorkflow stores s and makes it the active workflow.
func (db *DB) SaveWorkflow(ctx context.Context, s *workflow.State) error {
	phasesJSON, err := json.Marshal(nonNil(s.Phases))
	if err != nil {
		return fmt.Errorf("encode phases: %w", err)
	}
	completedJSON, err := json.Marshal(nonNil(s.PhasesCompleted))
	if err != nil {
		return fmt.Errorf("encode completed phases: %w", err)
	}
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	return db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE workflows SET active = 0 WHERE id != ?`, s.WorkflowID); err != nil {
			return fmt.Errorf("deactivate previous workflows: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflows (id, phases, current_phase, phases_completed, completed, active, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT(id) DO UPDATE SET
				phases = excluded.phases,
				current_phase = excluded.current_phase,
				phases_completed = excluded.phases_completed,
				completed = excluded.completed,
				active = 1,
				updated_at = excluded.updated_at
		`, s.WorkflowID, string(phasesJSON), s.CurrentPhase, string(completedJSON),
			boolToInt(s.Completed), formatTime(updatedAt))
		if err != nil {
			return fmt.Errorf("save workflow: %w", err)
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
