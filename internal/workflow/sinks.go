package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileProgressSink writes the latest progress as a JSON document.
type FileProgressSink struct {
	Path string
}

// Publish implements ProgressSink.
func (f *FileProgressSink) Publish(p Progress) error {
	return writeJSON(f.Path, p)
}

// FileCoordinator records workflow completion as a JSON document that an
// external coordinator can watch.
type FileCoordinator struct {
	Path string
	now  func() time.Time
}

type coordinationDoc struct {
	WorkflowID    string    `json:"workflowId"`
	Active        bool      `json:"active"`
	DeactivatedAt time.Time `json:"deactivatedAt"`
}

// Deactivate implements Coordinator.
func (f *FileCoordinator) Deactivate(workflowID string) error {
	now := time.Now
	if f.now != nil {
		now = f.now
	}
	return writeJSON(f.Path, coordinationDoc{
		WorkflowID:    workflowID,
		Active:        false,
		DeactivatedAt: now().UTC(),
	})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
