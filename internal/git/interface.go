// Package git provides an interface for git operations.
package git

// DiffOperations defines the interface for reading uncommitted changes.
type DiffOperations interface {
	// DiffUncommitted returns a unified diff of every staged and unstaged
	// change relative to HEAD. The text is returned byte-for-byte so it can
	// be written to a patch file and applied again. Untracked files are not
	// included.
	DiffUncommitted() (string, error)
	// HasChanges returns true if there are uncommitted changes.
	HasChanges() (bool, error)
}

// ResetOperations defines the interface for destructive working tree operations.
type ResetOperations interface {
	// DiscardUncommitted resets the index and working tree to HEAD.
	// Untracked files are left in place.
	DiscardUncommitted() error
}

// PatchOperations defines the interface for applying saved patches.
type PatchOperations interface {
	// ApplyPatch applies the unified diff stored at path to the index and
	// working tree.
	ApplyPatch(path string) error
}

// WorkingTree is the version-control capability the checkpoint manager
// depends on. Consumers should prefer the focused interfaces when possible.
type WorkingTree interface {
	DiffOperations
	ResetOperations
	PatchOperations
}
