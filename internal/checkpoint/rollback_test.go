package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recoveryPatches(t *testing.T, m *Manager) []string {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(m.Dir(), "recovery-*.patch"))
	require.NoError(t, err)
	return paths
}

func TestRollback_CleanTree(t *testing.T) {
	tree := &fakeTree{}
	m, _ := newTestManager(t, tree)

	res, err := m.Rollback()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "no uncommitted changes", res.Message)
	assert.NotContains(t, tree.events, "discard")
}

func TestRollback_RecoveryPatchWrittenBeforeDiscard(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, _ := newTestManager(t, tree)

	var seenAtDiscard string
	tree.onDiscard = func() {
		paths := recoveryPatches(t, m)
		require.Len(t, paths, 1)
		data, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		seenAtDiscard = string(data)
	}

	res, err := m.Rollback()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, sampleDiff, seenAtDiscard)
	assert.Equal(t, []string{"diff", "discard"}, tree.events)
	assert.Empty(t, tree.diff)
	assert.Contains(t, res.Message, res.RecoveryPatchPath)
}

func TestRollback_DiscardFailureKeepsRecoveryPatch(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff, discardErr: errors.New("index.lock exists")}
	m, _ := newTestManager(t, tree)

	res, err := m.Rollback()
	assert.False(t, res.Success)

	var rerr *RollbackError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "discard", rerr.Op)
	assert.Equal(t, res.RecoveryPatchPath, rerr.RecoveryPatchPath)
	assert.Contains(t, err.Error(), rerr.RecoveryPatchPath)

	data, readErr := os.ReadFile(rerr.RecoveryPatchPath)
	require.NoError(t, readErr)
	assert.Equal(t, sampleDiff, string(data))
}

func TestRollback_RecoveryWriteFailureDoesNotDiscard(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// A regular file where the directory should be makes every write fail.
	m := NewManager(filepath.Join(blocker, "checkpoints"), tree)

	res, err := m.Rollback()
	assert.False(t, res.Success)

	var cerr *CheckpointError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "write recovery patch", cerr.Op)
	assert.NotContains(t, tree.events, "discard")
	assert.Equal(t, sampleDiff, tree.diff)
}

func TestCheckpointRollbackApply_RoundTrip(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, _ := newTestManager(t, tree)

	cp, err := m.Create(PhaseReason("implementation"))
	require.NoError(t, err)

	_, err = m.Rollback()
	require.NoError(t, err)
	assert.Empty(t, tree.diff)

	require.NoError(t, tree.ApplyPatch(cp.PatchPath))
	assert.Equal(t, sampleDiff, tree.diff)
}

func TestRestorePhaseStart(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, now := newTestManager(t, tree)

	cp, err := m.Create(PhaseReason("testing"))
	require.NoError(t, err)

	*now = now.Add(time.Minute)
	tree.diff = sampleDiff + "+four\n"
	tree.events = nil

	res, err := m.RestorePhaseStart("testing")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, cp.PatchPath, res.Checkpoint.PatchPath)
	assert.Equal(t, []string{"diff", "discard", "apply"}, tree.events)
	assert.Equal(t, sampleDiff, tree.diff)

	data, err := os.ReadFile(res.RecoveryPatchPath)
	require.NoError(t, err)
	assert.Equal(t, sampleDiff+"+four\n", string(data))
}

func TestRestorePhaseStart_CleanTreeSkipsDiscard(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, _ := newTestManager(t, tree)
	_, err := m.Create(PhaseReason("review"))
	require.NoError(t, err)

	tree.diff = ""
	tree.events = nil
	res, err := m.RestorePhaseStart("review")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.RecoveryPatchPath)
	assert.Equal(t, []string{"diff", "apply"}, tree.events)
}

func TestRestorePhaseStart_NoCheckpoint(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, _ := newTestManager(t, tree)

	res, err := m.RestorePhaseStart("unknown")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, `no checkpoint found for phase "unknown"`)
	assert.Empty(t, tree.events)
}

func TestRestorePhaseStart_MissingPatchTouchesNothing(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, _ := newTestManager(t, tree)
	cp, err := m.Create(PhaseReason("testing"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(cp.PatchPath))

	tree.events = nil
	res, err := m.RestorePhaseStart("testing")
	assert.False(t, res.Success)

	var cerr *CheckpointError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, cp.PatchPath, cerr.Path)
	assert.Empty(t, tree.events)
}

func TestRestorePhaseStart_ApplyFailureReportsPaths(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, _ := newTestManager(t, tree)
	cp, err := m.Create(PhaseReason("testing"))
	require.NoError(t, err)

	tree.applyErr = errors.New("patch does not apply")
	res, err := m.RestorePhaseStart("testing")
	assert.False(t, res.Success)

	var rerr *RollbackError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "apply", rerr.Op)
	assert.Equal(t, cp.PatchPath, rerr.PatchPath)
	assert.NotEmpty(t, rerr.RecoveryPatchPath)
	assert.Contains(t, res.Message, cp.PatchPath)
	assert.Contains(t, res.Message, rerr.RecoveryPatchPath)
}

func TestCreate_KeepsOldRecoveryPatches(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, now := newTestManager(t, tree)

	res, err := m.Rollback()
	require.NoError(t, err)
	require.NotEmpty(t, res.RecoveryPatchPath)

	old := now.Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(res.RecoveryPatchPath, old, old))

	tree.diff = sampleDiff
	_, err = m.Create("next")
	require.NoError(t, err)
	_, err = m.Prune()
	require.NoError(t, err)

	_, err = os.Stat(res.RecoveryPatchPath)
	assert.NoError(t, err)
}

func TestPruneRecoveries_RemovesOnlyExpired(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, now := newTestManager(t, tree)

	stale, err := m.Rollback()
	require.NoError(t, err)
	old := now.Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(stale.RecoveryPatchPath, old, old))

	*now = now.Add(time.Minute)
	tree.diff = sampleDiff
	fresh, err := m.Rollback()
	require.NoError(t, err)
	recent := now.Add(-time.Hour)
	require.NoError(t, os.Chtimes(fresh.RecoveryPatchPath, recent, recent))

	removed, err := m.PruneRecoveries()
	require.NoError(t, err)
	assert.Equal(t, []string{stale.RecoveryPatchPath}, removed)
	assert.Equal(t, []string{fresh.RecoveryPatchPath}, recoveryPatches(t, m))
}

func TestRestorePhaseStart_IgnoresOtherReasons(t *testing.T) {
	tree := &fakeTree{diff: sampleDiff}
	m, _ := newTestManager(t, tree)

	// A phase named like the validation trigger must not pick up its snapshot.
	_, err := m.Create("validation")
	require.NoError(t, err)

	tree.events = nil
	res, err := m.RestorePhaseStart("validation")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, tree.events)

	cp, err := m.Create(PhaseReason("validation"))
	require.NoError(t, err)
	res, err = m.RestorePhaseStart("validation")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, cp.PatchPath, res.Checkpoint.PatchPath)
}
