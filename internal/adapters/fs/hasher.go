// Package fs hashes local module files so a watch session can tell real edits from noise.
package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// ComputeFileHash computes the XXHash of a file's content.
func ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}

	return hasher.Sum64(), nil
}

// ChangeTracker remembers the content hash of every file it has seen.
//
// Editors often touch a file several times per save, or rewrite it with the
// same bytes. Changed reports true only when the content actually differs
// from the last observation.
type ChangeTracker struct {
	mu     sync.Mutex
	hashes map[string]uint64
}

// NewChangeTracker creates an empty ChangeTracker.
func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{hashes: make(map[string]uint64)}
}

// Track records the current content of path without reporting a change.
// A missing file is ignored.
func (t *ChangeTracker) Track(path string) error {
	_, err := t.Changed(path)
	return err
}

// Changed rehashes path and reports whether its content differs from the
// previous observation. The first observation of a file counts as a change,
// and so does the removal of a tracked file.
func (t *ChangeTracker) Changed(path string) (bool, error) {
	hash, err := ComputeFileHash(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			_, tracked := t.hashes[path]
			delete(t.hashes, path)
			return tracked, nil
		}
		return false, err
	}

	prev, tracked := t.hashes[path]
	t.hashes[path] = hash
	return !tracked || prev != hash, nil
}

// Len returns the number of tracked files.
func (t *ChangeTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.hashes)
}
