// Package sync serializes repository pushes and pulls against the
// remote. The mutual exclusion lock is a lock file inside the store
// root, not an in-process mutex: a manual `dotdav sync push` and the
// running daemon are different processes and must still exclude each
// other.
package sync

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/arthur-debert/dotdav/pkg/config"
	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/logging"
	"github.com/arthur-debert/dotdav/pkg/store"
)

const (
	lockFileName     = ".sync.lock"
	lockPollInterval = 100 * time.Millisecond
)

// Operation names the direction of a sync.
type Operation string

const (
	// OpPush transfers the repository to the remote
	OpPush Operation = "push"
	// OpPull transfers the remote into the repository
	OpPull Operation = "pull"
)

// Result records one completed sync and its time window.
type Result struct {
	Op       Operation
	Started  time.Time
	Finished time.Time
}

// Coordinator runs push and pull, one at a time. It does not retry:
// retry policy belongs to the caller (the daemon retries on its own
// schedule, manual commands surface the failure and exit).
type Coordinator struct {
	root     string
	cfg      *config.Config
	store    *store.Store
	transfer Transfer
}

// NewCoordinator builds a coordinator for the given store root. A nil
// transfer gets the rclone subprocess implementation.
func NewCoordinator(root string, cfg *config.Config, transfer Transfer) *Coordinator {
	if transfer == nil {
		transfer = NewRcloneTransfer(cfg.Ignores)
	}
	return &Coordinator{
		root:     root,
		cfg:      cfg,
		store:    store.New(root),
		transfer: transfer,
	}
}

// Push transfers the repository store to the configured remote. It
// blocks while another push or pull holds the sync lock.
func (c *Coordinator) Push(ctx context.Context) (*Result, error) {
	return c.run(ctx, OpPush)
}

// Pull transfers the remote into the repository store, blocking on
// the same lock as Push.
func (c *Coordinator) Pull(ctx context.Context) (*Result, error) {
	return c.run(ctx, OpPull)
}

func (c *Coordinator) run(ctx context.Context, op Operation) (*Result, error) {
	logger := logging.GetLogger("sync")

	if err := c.cfg.ValidateRemote(); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(c.root, lockFileName))
	locked, err := fl.TryLockContext(ctx, lockPollInterval)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrLockTimeout, "failed to acquire sync lock")
	}
	if !locked {
		return nil, errors.New(errors.ErrLockTimeout, "sync lock unavailable")
	}
	defer func() {
		_ = fl.Unlock()
	}()

	result := &Result{Op: op, Started: time.Now()}
	logger.Info().Str("op", string(op)).Str("remote", c.cfg.RemoteSpec()).Msg("sync started")

	switch op {
	case OpPush:
		err = c.transfer.Push(ctx, c.store.Dir(), c.cfg.RemoteSpec())
	case OpPull:
		err = c.transfer.Pull(ctx, c.cfg.RemoteSpec(), c.store.Dir())
	}
	result.Finished = time.Now()

	if err != nil {
		logger.Error().Str("op", string(op)).Err(err).Msg("sync failed")
		return nil, err
	}

	logger.Info().
		Str("op", string(op)).
		Dur("took", result.Finished.Sub(result.Started)).
		Msg("sync finished")
	return result, nil
}
