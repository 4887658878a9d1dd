package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/phasegate/internal/gates"
)

// RunRecord is a stored summary of a validation run.
type RunRecord struct {
	ID              string    `json:"id"`
	Passed          bool      `json:"passed"`
	Skipped         bool      `json:"skipped"`
	TotalErrors     int       `json:"totalErrors"`
	DurationSeconds float64   `json:"durationSeconds"`
	FailedGates     []string  `json:"failedGates"`
	Trigger         string    `json:"trigger"`
	Summary         string    `json:"summary"`
	StartedAt       time.Time `json:"startedAt"`
}

// RecordRun stores a summary of run under the reason that triggered it.
func (db *DB) RecordRun(ctx context.Context, run *gates.ValidationRun, trigger string) error {
	failedJSON, err := json.Marshal(nonNil(run.FailedGates()))
	if err != nil {
		return fmt.Errorf("encode failed gates: %w", err)
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err = db.Exec(ctx, `
		INSERT INTO validation_runs (id, passed, skipped, total_errors, duration_seconds,
			failed_gates, trigger_reason, summary, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, boolToInt(run.Passed), boolToInt(run.Skipped), run.TotalErrors, run.DurationSeconds,
		string(failedJSON), trigger, run.Summary(), formatTime(startedAt))
	if err != nil {
		return fmt.Errorf("record validation run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(ctx, `
		SELECT id, passed, skipped, total_errors, duration_seconds, failed_gates,
		       trigger_reason, summary, started_at
		FROM validation_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r               RunRecord
			passed, skipped int
			failedJSON      string
			startedAt       string
		)
		if err := rows.Scan(&r.ID, &passed, &skipped, &r.TotalErrors, &r.DurationSeconds,
			&failedJSON, &r.Trigger, &r.Summary, &startedAt); err != nil {
			return nil, fmt.Errorf("scan validation run: %w", err)
		}
		r.Passed = passed != 0
		r.Skipped = skipped != 0
		if err := json.Unmarshal([]byte(failedJSON), &r.FailedGates); err != nil {
			return nil, fmt.Errorf("decode failed gates: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// PurgeRuns deletes runs older than the specified duration.
// Returns the number of runs deleted.
func (db *DB) PurgeRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(ctx, `DELETE FROM validation_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge validation runs: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
