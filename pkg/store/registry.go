package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// DirRegistry remembers which session directories have already been
// verified or created, so stores skip the stat/create sequence after
// the first operation against a path. It is safe for concurrent use
// and meant to be owned by the composition root and shared across
// stores.
type DirRegistry struct {
	mu   sync.Mutex
	seen map[string]bool

	// mkdir is swapped out in tests to count creation attempts.
	mkdir func(path string, perm os.FileMode) error
}

// NewDirRegistry creates an empty directory registry.
func NewDirRegistry() *DirRegistry {
	return &DirRegistry{
		seen:  make(map[string]bool),
		mkdir: os.MkdirAll,
	}
}

// EnsureInitialized makes sure path exists on disk, creating it with
// restricted permissions if absent. The check-then-create runs at most
// once per distinct path until Reset; repeat calls are no-ops. A
// concurrent create of the same directory is tolerated.
func (r *DirRegistry) EnsureInitialized(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[path] {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: stat %s: %w", ErrDirCreate, path, err)
		}
		if err := r.mkdir(path, 0700); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: mkdir %s: %w", ErrDirCreate, path, err)
		}
	}

	r.seen[path] = true
	return nil
}

// Reset clears the cache, forcing re-verification of every directory
// on next use. It touches nothing on disk: an operator can delete a
// session directory, call Reset, and the next operation recreates it.
func (r *DirRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[string]bool)
}
