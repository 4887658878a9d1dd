// Package checkpoint snapshots uncommitted work as patch files and restores
// or discards it at gate and phase boundaries.
//
// Every destructive operation writes the current uncommitted diff to a
// recovery patch, and verifies it on disk, before anything is discarded.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/phasegate/internal/git"
)

const (
	// DefaultDir is where patches and the manifest live, relative to the
	// repository root.
	DefaultDir = ".phasegate/checkpoints"
	// DefaultRetentionDays is how long checkpoints are kept.
	DefaultRetentionDays = 7

	labelLayout = "20060102T150405.000Z"
)

// PhaseReason is the trigger reason of the checkpoint taken when phase starts.
// The prefix keeps phase checkpoints apart from other reasons, so a phase
// named like another trigger never restores the wrong snapshot.
func PhaseReason(phase string) string {
	return "phase:" + phase
}

// Checkpoint is a snapshot of uncommitted changes stored as a patch file.
type Checkpoint struct {
	TimestampLabel string    `json:"timestampLabel"`
	PatchPath      string    `json:"patchPath"`
	TriggerReason  string    `json:"triggerReason"`
	CreatedAt      time.Time `json:"createdAt"`
	RetentionDays  int       `json:"retentionDays"`
}

// Manager creates, prunes and restores checkpoints for one working tree.
// It is not safe for concurrent use.
type Manager struct {
	dir           string
	tree          git.WorkingTree
	retentionDays int
	logger        *zap.Logger
	now           func() time.Time
}

// NewManager creates a manager storing artifacts in dir.
func NewManager(dir string, tree git.WorkingTree) *Manager {
	return &Manager{
		dir:           dir,
		tree:          tree,
		retentionDays: DefaultRetentionDays,
		logger:        zap.NewNop(),
		now:           time.Now,
	}
}

// SetRetentionDays sets the retention window for new checkpoints.
func (m *Manager) SetRetentionDays(days int) {
	if days > 0 {
		m.retentionDays = days
	}
}

// SetLogger sets the logger.
func (m *Manager) SetLogger(l *zap.Logger) {
	if l != nil {
		m.logger = l
	}
}

// Dir returns the artifact directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Create snapshots the uncommitted diff under the given trigger reason.
// It returns nil without error when there is nothing to snapshot. After a
// successful write, expired checkpoints are pruned.
func (m *Manager) Create(reason string) (*Checkpoint, error) {
	diff, err := m.tree.DiffUncommitted()
	if err != nil {
		return nil, &CheckpointError{Op: "diff", Err: err}
	}
	if strings.TrimSpace(diff) == "" {
		return nil, nil
	}

	now := m.now().UTC()
	label := m.uniqueLabel("checkpoint", now)
	path := m.patchPath("checkpoint", label)
	if err := writeVerified(path, []byte(diff)); err != nil {
		return nil, &CheckpointError{Op: "write patch", Path: path, Err: err}
	}

	cp := Checkpoint{
		TimestampLabel: label,
		PatchPath:      path,
		TriggerReason:  reason,
		CreatedAt:      now,
		RetentionDays:  m.retentionDays,
	}

	mf, err := m.loadManifest()
	if err != nil {
		return nil, &CheckpointError{Op: "load manifest", Path: m.manifestPath(), Err: err}
	}
	mf.Checkpoints = append(mf.Checkpoints, cp)
	if _, err := m.pruneManifest(mf); err != nil {
		m.logger.Warn("prune checkpoints", zap.Error(err))
	}
	if err := m.saveManifest(mf); err != nil {
		return nil, &CheckpointError{Op: "save manifest", Path: m.manifestPath(), Err: err}
	}

	m.logger.Info("checkpoint created",
		zap.String("label", label),
		zap.String("reason", reason),
		zap.String("patch", path),
		zap.Int("bytes", len(diff)),
	)
	return &cp, nil
}

// List returns manifest entries, oldest first.
func (m *Manager) List() ([]Checkpoint, error) {
	mf, err := m.loadManifest()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(mf.Checkpoints, func(i, j int) bool {
		return mf.Checkpoints[i].CreatedAt.Before(mf.Checkpoints[j].CreatedAt)
	})
	return mf.Checkpoints, nil
}

// Latest returns the most recent checkpoint created for reason, or nil.
func (m *Manager) Latest(reason string) (*Checkpoint, error) {
	cps, err := m.List()
	if err != nil {
		return nil, err
	}
	for i := len(cps) - 1; i >= 0; i-- {
		if cps[i].TriggerReason == reason {
			cp := cps[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// Prune removes expired checkpoints. It returns the manifest entries that
// were removed. Recovery patches are left alone; see PruneRecoveries.
func (m *Manager) Prune() ([]Checkpoint, error) {
	mf, err := m.loadManifest()
	if err != nil {
		return nil, err
	}
	removed, pruneErr := m.pruneManifest(mf)
	if len(removed) > 0 {
		if err := m.saveManifest(mf); err != nil {
			return removed, err
		}
	}
	return removed, pruneErr
}

// pruneManifest drops expired entries from mf and deletes their patch files.
func (m *Manager) pruneManifest(mf *manifest) ([]Checkpoint, error) {
	now := m.now()
	var kept, removed []Checkpoint
	var firstErr error

	for _, cp := range mf.Checkpoints {
		if !m.expired(cp.CreatedAt, cp.RetentionDays, now) {
			kept = append(kept, cp)
			continue
		}
		if err := os.Remove(cp.PatchPath); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", cp.PatchPath, err)
		}
		removed = append(removed, cp)
	}
	mf.Checkpoints = kept

	if len(removed) > 0 {
		m.logger.Info("pruned checkpoints", zap.Int("removed", len(removed)))
	}
	return removed, firstErr
}

// PruneRecoveries deletes recovery patches older than the retention window
// and returns their paths. Recovery patches hold work that was discarded, so
// nothing but an explicit prune removes them.
func (m *Manager) PruneRecoveries() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(m.dir, "recovery-*.patch"))
	if err != nil {
		return nil, err
	}

	now := m.now()
	var removed []string
	var firstErr error
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !m.expired(info.ModTime(), 0, now) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", path, err)
			}
			continue
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 {
		m.logger.Info("pruned recovery patches", zap.Strings("paths", removed))
	}
	return removed, firstErr
}

func (m *Manager) expired(created time.Time, days int, now time.Time) bool {
	if days <= 0 {
		days = m.retentionDays
	}
	return now.Sub(created) > time.Duration(days)*24*time.Hour
}

func (m *Manager) patchPath(kind, label string) string {
	return filepath.Join(m.dir, kind+"-"+label+".patch")
}

// uniqueLabel formats now as a label that does not collide with an existing
// patch of the same kind.
func (m *Manager) uniqueLabel(kind string, now time.Time) string {
	base := now.Format(labelLayout)
	label := base
	for i := 1; ; i++ {
		if _, err := os.Stat(m.patchPath(kind, label)); err != nil {
			return label
		}
		label = fmt.Sprintf("%s-%d", base, i)
	}
}
