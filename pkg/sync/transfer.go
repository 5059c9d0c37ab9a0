package sync

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/logging"
)

// Transfer is the external remote-transfer capability. Each call is
// treated as atomic and network-fallible; tests substitute an
// instrumented implementation.
type Transfer interface {
	Push(ctx context.Context, localDir, remoteSpec string) error
	Pull(ctx context.Context, remoteSpec, localDir string) error
}

// RcloneTransfer shells out to rclone, mirroring the repository
// directory to or from the remote. Ignore patterns become --exclude
// flags so editor droppings never reach the remote.
type RcloneTransfer struct {
	excludes []string
}

// NewRcloneTransfer builds a transfer with the given ignore patterns.
func NewRcloneTransfer(ignores []string) *RcloneTransfer {
	return &RcloneTransfer{excludes: ignores}
}

// Push mirrors localDir to remoteSpec.
func (r *RcloneTransfer) Push(ctx context.Context, localDir, remoteSpec string) error {
	return r.sync(ctx, localDir, remoteSpec)
}

// Pull mirrors remoteSpec into localDir.
func (r *RcloneTransfer) Pull(ctx context.Context, remoteSpec, localDir string) error {
	return r.sync(ctx, remoteSpec, localDir)
}

func (r *RcloneTransfer) sync(ctx context.Context, src, dst string) error {
	logger := logging.GetLogger("sync.rclone")

	args := []string{"sync", src, dst}
	for _, pattern := range r.excludes {
		args = append(args, "--exclude", pattern)
	}

	cmd := exec.CommandContext(ctx, "rclone", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug().Strs("args", args).Msg("running rclone")
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, errors.ErrSyncFailure,
			"rclone sync %s -> %s failed: %s", src, dst, stderrExcerpt(stderr.String()))
	}
	return nil
}

// stderrExcerpt keeps error messages readable: the last few lines of
// rclone output are where the actual failure reason lives.
func stderrExcerpt(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	excerpt := strings.Join(lines, "; ")
	if len(excerpt) > 500 {
		excerpt = excerpt[len(excerpt)-500:]
	}
	if excerpt == "" {
		return "(no stderr output)"
	}
	return excerpt
}
