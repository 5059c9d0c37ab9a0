package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrNotManaged, "path is not tracked")
	assert.Equal(t, ErrNotManaged, err.Code)
	assert.Equal(t, "[NOT_MANAGED] path is not tracked", err.Error())
}

func TestNewf(t *testing.T) {
	err := Newf(ErrNoVariant, "no variant for %q", "bashrc")
	assert.Contains(t, err.Error(), `no variant for "bashrc"`)
	assert.Equal(t, ErrNoVariant, err.Code)
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("permission denied")
	err := Wrap(inner, ErrSymlinkCreate, "creating link")

	require.NotNil(t, err)
	assert.Equal(t, ErrSymlinkCreate, err.Code)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, inner, stderrors.Unwrap(err))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternal, "should vanish"))
	assert.Nil(t, Wrapf(nil, ErrInternal, "should %s", "vanish"))
}

func TestIs_MatchesByCode(t *testing.T) {
	err := Newf(ErrConflict, "target %s exists", "/home/u/.bashrc")
	assert.True(t, stderrors.Is(err, New(ErrConflict, "")))
	assert.False(t, stderrors.Is(err, New(ErrNotManaged, "")))
}

func TestIs_ThroughWrapping(t *testing.T) {
	inner := New(ErrNoVariant, "corrupt entry")
	outer := fmt.Errorf("deploy: %w", inner)
	assert.True(t, stderrors.Is(outer, New(ErrNoVariant, "")))
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(ErrSyncFailure, "rclone exited 1"))
	assert.True(t, IsCode(err, ErrSyncFailure))
	assert.False(t, IsCode(err, ErrConfigLoad))
	assert.False(t, IsCode(stderrors.New("plain"), ErrSyncFailure))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrConflict, "exists").WithDetail("path", "/tmp/x")
	assert.Equal(t, "/tmp/x", err.Details["path"])
}
