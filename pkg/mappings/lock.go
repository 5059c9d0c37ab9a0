package mappings

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/arthur-debert/dotdav/pkg/errors"
)

const (
	// lockFileName coordinates table mutation across processes; two
	// concurrent adds must not lose each other's writes.
	lockFileName = ".mappings.lock"

	lockTimeout      = 30 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

// WithLock runs fn while holding the mapping table's file lock. The
// lock spans the whole read-modify-write so short-lived commands
// serialize against each other; the daemon never takes this lock
// because it never mutates the table.
func WithLock(root string, fn func() error) error {
	fl := flock.New(filepath.Join(root, lockFileName))

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, lockPollInterval)
	if err != nil {
		return errors.Wrap(err, errors.ErrLockTimeout, "failed to acquire mapping table lock")
	}
	if !locked {
		return errors.New(errors.ErrLockTimeout, "mapping table lock held by another process")
	}
	defer func() {
		_ = fl.Unlock()
	}()

	return fn()
}
