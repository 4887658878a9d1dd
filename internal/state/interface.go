package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/phasegate/internal/gates"
	"github.com/ShayCichocki/phasegate/internal/workflow"
)

// EngineStateStore handles the batching and test-sample state.
type EngineStateStore interface {
	LoadEngineState(ctx context.Context) (*EngineState, error)
	SaveEngineState(ctx context.Context, s *EngineState) error
}

// RunStore handles validation-run history.
type RunStore interface {
	RecordRun(ctx context.Context, run *gates.ValidationRun, trigger string) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	PurgeRuns(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for state persistence.
// It composes focused sub-interfaces so the engine can be tested against
// in-memory fakes.
type StateStore interface {
	io.Closer
	Migrator
	EngineStateStore
	RunStore
	workflow.Store
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore       = (*DB)(nil)
	_ Migrator         = (*DB)(nil)
	_ EngineStateStore = (*DB)(nil)
	_ RunStore         = (*DB)(nil)
	_ workflow.Store   = (*DB)(nil)
)
