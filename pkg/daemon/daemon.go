// Package daemon implements autosync: a long-lived foreground process
// that pushes the repository store after local changes and pulls from
// the remote on a fixed interval.
//
// Two trigger sources feed one serialized executor. The filesystem
// watcher does not push on every event: a burst of edits restarts a
// quiet-period timer, and only silence fires the push. The interval
// ticker enqueues pulls unconditionally. The executor drains requests
// in arrival order, so a push and a pull can never interleave even
// before the sync lock gets involved.
package daemon

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/dotdav/pkg/config"
	"github.com/arthur-debert/dotdav/pkg/logging"
	"github.com/arthur-debert/dotdav/pkg/store"
	"github.com/arthur-debert/dotdav/pkg/sync"
)

// Syncer is the slice of the sync coordinator the daemon drives.
type Syncer interface {
	Push(ctx context.Context) (*sync.Result, error)
	Pull(ctx context.Context) (*sync.Result, error)
}

// Daemon watches the repository store and keeps it synchronized with
// the remote. Debounce and Interval default from configuration and
// may be overridden before Run.
type Daemon struct {
	Debounce time.Duration
	Interval time.Duration

	root    string
	cfg     *config.Config
	store   *store.Store
	syncer  Syncer
	ignores []string
}

// New builds a daemon for the store root. A nil syncer gets the real
// coordinator with the rclone transfer.
func New(root string, cfg *config.Config, syncer Syncer) *Daemon {
	if syncer == nil {
		syncer = sync.NewCoordinator(root, cfg, nil)
	}
	return &Daemon{
		Debounce: time.Duration(cfg.DebounceSeconds) * time.Second,
		Interval: time.Duration(cfg.SyncIntervalMinutes) * time.Minute,
		root:     root,
		cfg:      cfg,
		store:    store.New(root),
		syncer:   syncer,
		ignores:  cfg.Ignores,
	}
}

// Run blocks until ctx is cancelled. On shutdown the triggers stop
// scheduling work and an in-flight sync is allowed to finish; the
// transfer subprocess is never killed mid-flight.
func (d *Daemon) Run(ctx context.Context) error {
	logger := logging.GetLogger("daemon")

	if err := d.cfg.ValidateRemote(); err != nil {
		return err
	}
	if err := d.store.Init(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		_ = watcher.Close()
	}()
	if err := watchTree(watcher, d.store.Dir()); err != nil {
		return err
	}

	// Bounded queue: with one executor, one pending push and one
	// pending pull cover every burst; extra requests are collapsed
	requests := make(chan sync.Operation, 4)

	go d.watchLoop(ctx, watcher, requests)
	go d.pullLoop(ctx, requests)

	logger.Info().
		Str("repo", d.store.Dir()).
		Dur("debounce", d.Debounce).
		Dur("interval", d.Interval).
		Msg("autosync daemon started")

	for {
		select {
		case op := <-requests:
			// Deliberately not ctx: a sync that already started runs
			// to completion even during shutdown
			d.execute(context.Background(), op)
		case <-ctx.Done():
			logger.Info().Msg("autosync daemon stopping")
			return nil
		}
	}
}

// watchLoop turns filesystem events into debounced push requests.
func (d *Daemon) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, requests chan<- sync.Operation) {
	logger := logging.GetLogger("daemon.watch")

	debounce := time.NewTimer(d.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if d.ignored(filepath.Base(event.Name)) {
				continue
			}
			// New directories must join the watch before anything
			// inside them changes
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
					}
				}
			}
			logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change detected")
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(d.Debounce)

		case <-debounce.C:
			logger.Info().Msg("quiet period elapsed, requesting push")
			enqueue(requests, sync.OpPush, logger)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("watcher error")

		case <-ctx.Done():
			return
		}
	}
}

// pullLoop enqueues a pull every interval.
func (d *Daemon) pullLoop(ctx context.Context, requests chan<- sync.Operation) {
	logger := logging.GetLogger("daemon.pull")

	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			enqueue(requests, sync.OpPull, logger)
		case <-ctx.Done():
			return
		}
	}
}

// execute runs one sync request. A failed sync is logged and the
// daemon keeps running; repeated failures are not escalated.
func (d *Daemon) execute(ctx context.Context, op sync.Operation) {
	logger := logging.GetLogger("daemon")

	var err error
	switch op {
	case sync.OpPush:
		_, err = d.syncer.Push(ctx)
	case sync.OpPull:
		_, err = d.syncer.Pull(ctx)
	}
	if err != nil {
		logger.Error().Str("op", string(op)).Err(err).Msg("sync failed, daemon continues")
	}
}

// ignored matches a file name against the configured ignore patterns.
func (d *Daemon) ignored(name string) bool {
	for _, pattern := range d.ignores {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// enqueue adds a request without ever blocking a trigger. A full
// queue means an identical request is already pending; dropping is
// the collapse, not a loss.
func enqueue(requests chan<- sync.Operation, op sync.Operation, logger zerolog.Logger) {
	select {
	case requests <- op:
	default:
		logger.Debug().Str("op", string(op)).Msg("request queue full, collapsing")
	}
}

// watchTree adds dir and every directory below it to the watcher.
func watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
