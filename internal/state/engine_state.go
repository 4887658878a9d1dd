package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/phasegate/internal/flaky"
)

// EngineState is the batching and flakiness state carried between
// invocations.
type EngineState struct {
	SessionID               string         `json:"sessionId,omitempty"`
	FileEditCount           int            `json:"fileEditCount"`
	RecentFiles             []string       `json:"recentFiles"`
	RecentFileCount         int            `json:"recentFileCount"`
	LastCheckpointTimestamp *time.Time     `json:"lastCheckpointTimestamp,omitempty"`
	TestResults             []flaky.Sample `json:"testResults"`
	UpdatedAt               time.Time      `json:"updatedAt"`
}

// ResetSession clears everything scoped to a session and adopts sessionID.
func (s *EngineState) ResetSession(sessionID string) {
	s.SessionID = sessionID
	s.FileEditCount = 0
	s.RecentFiles = nil
	s.RecentFileCount = 0
	s.TestResults = nil
}

// LoadEngineState returns the stored engine state, or a zero state when
// nothing has been saved yet.
func (db *DB) LoadEngineState(ctx context.Context) (*EngineState, error) {
	var (
		s                     EngineState
		recentJSON, testsJSON string
		lastCheckpoint        sql.NullString
		updatedAt             string
	)
	err := db.QueryRow(ctx, `
		SELECT session_id, file_edit_count, recent_files, recent_file_count,
		       last_checkpoint_at, test_results, updated_at
		FROM engine_state WHERE id = 1
	`).Scan(&s.SessionID, &s.FileEditCount, &recentJSON, &s.RecentFileCount,
		&lastCheckpoint, &testsJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &EngineState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load engine state: %w", err)
	}

	if err := json.Unmarshal([]byte(recentJSON), &s.RecentFiles); err != nil {
		return nil, fmt.Errorf("decode recent files: %w", err)
	}
	if err := json.Unmarshal([]byte(testsJSON), &s.TestResults); err != nil {
		return nil, fmt.Errorf("decode test results: %w", err)
	}
	s.LastCheckpointTimestamp = parseNullableTime(lastCheckpoint)
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}

// SaveEngineState replaces the stored engine state. Test results beyond
// flaky.MaxSamples are dropped, oldest first.
func (db *DB) SaveEngineState(ctx context.Context, s *EngineState) error {
	if len(s.TestResults) > flaky.MaxSamples {
		s.TestResults = s.TestResults[len(s.TestResults)-flaky.MaxSamples:]
	}
	s.RecentFileCount = len(s.RecentFiles)
	s.UpdatedAt = time.Now()

	recentJSON, err := json.Marshal(nonNil(s.RecentFiles))
	if err != nil {
		return fmt.Errorf("encode recent files: %w", err)
	}
	tests := s.TestResults
	if tests == nil {
		tests = []flaky.Sample{}
	}
	testsJSON, err := json.Marshal(tests)
	if err != nil {
		return fmt.Errorf("encode test results: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO engine_state (id, session_id, file_edit_count, recent_files,
			recent_file_count, last_checkpoint_at, test_results, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			file_edit_count = excluded.file_edit_count,
			recent_files = excluded.recent_files,
			recent_file_count = excluded.recent_file_count,
			last_checkpoint_at = excluded.last_checkpoint_at,
			test_results = excluded.test_results,
			updated_at = excluded.updated_at
	`, s.SessionID, s.FileEditCount, string(recentJSON), s.RecentFileCount,
		nullableTime(s.LastCheckpointTimestamp), string(testsJSON), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save engine state: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
