package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const manifestName = "manifest.json"

type manifest struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// writeVerified writes data durably to path and reads it back. The file is
// written to a temp file in the same directory, synced and renamed, so a
// crash never leaves a truncated file under the final name.
func writeVerified(path string, data []byte) error {
	if len(data) == 0 {
		return errors.New("refusing to write empty patch")
	}
	if err := writeDurable(path, data); err != nil {
		return err
	}
	got, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if len(got) == 0 || !bytes.Equal(got, data) {
		return fmt.Errorf("verify %s: content mismatch (wrote %d bytes, read %d)", path, len(data), len(got))
	}
	return nil
}

func writeDurable(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}

	// Persist the rename. Not every platform supports syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

func (m *Manager) manifestPath() string {
	return filepath.Join(m.dir, manifestName)
}

func (m *Manager) loadManifest() (*manifest, error) {
	data, err := os.ReadFile(m.manifestPath())
	if errors.Is(err, os.ErrNotExist) {
		return &manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var mf manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		// Keep the unreadable manifest for inspection and start over. The
		// patch files themselves are untouched.
		corrupt := m.manifestPath() + ".corrupt"
		_ = os.Rename(m.manifestPath(), corrupt)
		m.logger.Sugar().Warnw("checkpoint manifest unreadable, starting a new one",
			"path", m.manifestPath(), "moved_to", corrupt, "error", err)
		return &manifest{}, nil
	}
	return &mf, nil
}

func (m *Manager) saveManifest(mf *manifest) error {
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeDurable(m.manifestPath(), data)
}
