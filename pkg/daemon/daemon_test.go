package daemon

import (
	"context"
	"os"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dotdav/pkg/config"
	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/store"
	"github.com/arthur-debert/dotdav/pkg/sync"
)

// countingSyncer records push/pull invocations and their time windows.
type countingSyncer struct {
	mu      gosync.Mutex
	delay   time.Duration
	pushErr error
	pushes  int
	pulls   int
	windows []opWindow
}

type opWindow struct {
	op       sync.Operation
	from, to time.Time
}

func (s *countingSyncer) run(op sync.Operation) (*sync.Result, error) {
	from := time.Now()
	time.Sleep(s.delay)
	to := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = append(s.windows, opWindow{op: op, from: from, to: to})
	if op == sync.OpPush {
		s.pushes++
		if s.pushErr != nil {
			return nil, s.pushErr
		}
	} else {
		s.pulls++
	}
	return &sync.Result{Op: op, Started: from, Finished: to}, nil
}

func (s *countingSyncer) Push(ctx context.Context) (*sync.Result, error) {
	return s.run(sync.OpPush)
}

func (s *countingSyncer) Pull(ctx context.Context) (*sync.Result, error) {
	return s.run(sync.OpPull)
}

func (s *countingSyncer) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes, s.pulls
}

func testConfig() *config.Config {
	return &config.Config{
		Remote:              "testremote",
		RemotePath:          "dotfiles",
		Profile:             "default",
		DebounceSeconds:     2,
		SyncIntervalMinutes: 10,
	}
}

// startDaemon runs the daemon in the background with short windows
// suitable for tests and returns the repo dir plus a stopper.
func startDaemon(t *testing.T, cfg *config.Config, syncer Syncer, debounce, interval time.Duration) (string, func()) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, store.New(root).Init())

	d := New(root, cfg, syncer)
	d.Debounce = debounce
	d.Interval = interval

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()

	// Give the watcher time to come up before the test writes files
	time.Sleep(100 * time.Millisecond)

	return filepath.Join(root, store.DirName), func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}

func TestRun_NoRemoteConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Remote = ""

	d := New(t.TempDir(), cfg, &countingSyncer{})
	err := d.Run(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrConfigValid))
}

func TestDebounce_BurstCollapsesToOnePush(t *testing.T) {
	syncer := &countingSyncer{}
	repoDir, stop := startDaemon(t, testConfig(), syncer, 250*time.Millisecond, time.Hour)
	defer stop()

	// A burst of edits well inside the debounce window
	for i := 0; i < 8; i++ {
		name := filepath.Join(repoDir, "bashrc")
		require.NoError(t, os.WriteFile(name, []byte{byte(i)}, 0644))
		time.Sleep(10 * time.Millisecond)
	}

	// Wait past quiescence plus slack
	time.Sleep(900 * time.Millisecond)

	pushes, _ := syncer.counts()
	assert.Equal(t, 1, pushes, "a burst of events must produce exactly one push")
}

func TestDebounce_RestartsOnNewEvent(t *testing.T) {
	syncer := &countingSyncer{}
	repoDir, stop := startDaemon(t, testConfig(), syncer, 300*time.Millisecond, time.Hour)
	defer stop()

	// Keep the window from closing with spaced writes
	for i := 0; i < 4; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(repoDir, "vimrc"), []byte{byte(i)}, 0644))
		time.Sleep(150 * time.Millisecond)
	}
	pushes, _ := syncer.counts()
	assert.Equal(t, 0, pushes, "no push while events keep arriving")

	time.Sleep(900 * time.Millisecond)
	pushes, _ = syncer.counts()
	assert.Equal(t, 1, pushes, "push fires once after quiescence")
}

func TestPeriodicPull(t *testing.T) {
	syncer := &countingSyncer{}
	_, stop := startDaemon(t, testConfig(), syncer, time.Hour, 200*time.Millisecond)
	defer stop()

	time.Sleep(700 * time.Millisecond)

	_, pulls := syncer.counts()
	assert.GreaterOrEqual(t, pulls, 2, "interval pulls must keep firing")
}

func TestIgnoredFilesDoNotTriggerPush(t *testing.T) {
	cfg := testConfig()
	cfg.Ignores = []string{"*.swp"}

	syncer := &countingSyncer{}
	repoDir, stop := startDaemon(t, cfg, syncer, 200*time.Millisecond, time.Hour)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "bashrc.swp"), []byte("x"), 0644))
	time.Sleep(700 * time.Millisecond)

	pushes, _ := syncer.counts()
	assert.Equal(t, 0, pushes, "ignored files must not trigger a push")
}

func TestNewSubdirectoryIsWatched(t *testing.T) {
	syncer := &countingSyncer{}
	repoDir, stop := startDaemon(t, testConfig(), syncer, 200*time.Millisecond, time.Hour)
	defer stop()

	sub := filepath.Join(repoDir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(700 * time.Millisecond) // first push from the mkdir event

	require.NoError(t, os.WriteFile(filepath.Join(sub, "conf"), []byte("x"), 0644))
	time.Sleep(700 * time.Millisecond)

	pushes, _ := syncer.counts()
	assert.Equal(t, 2, pushes, "changes inside new subdirectories must be seen")
}

func TestSyncFailureKeepsDaemonRunning(t *testing.T) {
	syncer := &countingSyncer{pushErr: errors.New(errors.ErrSyncFailure, "remote unreachable")}
	repoDir, stop := startDaemon(t, testConfig(), syncer, 150*time.Millisecond, time.Hour)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "a"), []byte("1"), 0644))
	time.Sleep(600 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "b"), []byte("2"), 0644))
	time.Sleep(600 * time.Millisecond)

	pushes, _ := syncer.counts()
	assert.Equal(t, 2, pushes, "a failed push must not stop later pushes")
}

func TestShutdown_InFlightSyncFinishes(t *testing.T) {
	syncer := &countingSyncer{delay: 400 * time.Millisecond}
	repoDir, stop := startDaemon(t, testConfig(), syncer, 100*time.Millisecond, time.Hour)

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "a"), []byte("1"), 0644))
	// Let the debounce fire and the push get underway, then stop
	time.Sleep(300 * time.Millisecond)

	stop() // blocks until Run returns

	pushes, _ := syncer.counts()
	require.Equal(t, 1, pushes)
	assert.False(t, syncer.windows[0].to.IsZero(), "the in-flight push must have completed")
}

func TestExecutor_SerializesRequests(t *testing.T) {
	syncer := &countingSyncer{delay: 150 * time.Millisecond}
	repoDir, stop := startDaemon(t, testConfig(), syncer, 100*time.Millisecond, 200*time.Millisecond)
	defer stop()

	// Fire the watch trigger while the ticker is also producing pulls
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "a"), []byte("1"), 0644))
	time.Sleep(900 * time.Millisecond)

	syncer.mu.Lock()
	windows := append([]opWindow(nil), syncer.windows...)
	syncer.mu.Unlock()

	require.NotEmpty(t, windows)
	for i := 1; i < len(windows); i++ {
		assert.False(t, windows[i].from.Before(windows[i-1].to),
			"request %d started before request %d finished", i, i-1)
	}
}

func TestIgnoredPatternMatching(t *testing.T) {
	d := &Daemon{ignores: []string{"*.swp", "*~", ".DS_Store"}}

	assert.True(t, d.ignored("bashrc.swp"))
	assert.True(t, d.ignored("config~"))
	assert.True(t, d.ignored(".DS_Store"))
	assert.False(t, d.ignored("bashrc"))
}
