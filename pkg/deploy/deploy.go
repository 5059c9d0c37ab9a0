// Package deploy reconciles the mapping table with live symlinks: for
// every managed file it makes the local path a symlink into the
// repository store, pointing at the variant the active profile
// resolves to. It also hosts add and remove, the two operations that
// move content between the user's home and the store.
package deploy

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/logging"
	"github.com/arthur-debert/dotdav/pkg/mappings"
	"github.com/arthur-debert/dotdav/pkg/store"
)

// Engine performs deployment against one store root.
type Engine struct {
	root  string
	store *store.Store
}

// New returns an engine for the given store root.
func New(root string) *Engine {
	return &Engine{root: root, store: store.New(root)}
}

// Store exposes the engine's repository store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Deploy reconciles every mapping entry with the filesystem. The
// expected link target is computed fresh each run, never cached: the
// active profile or the table may have changed since the last one.
// All entries are processed even when some fail.
func (e *Engine) Deploy(profile string, force bool) (*Report, error) {
	logger := logging.GetLogger("deploy")

	table, err := mappings.Load(e.root)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, name := range table.Names() {
		entry := table.Files[name]
		result := e.deployEntry(table, name, entry, profile, force)

		switch result.Outcome {
		case OutcomeFailed:
			logger.Error().Str("file", name).Err(result.Err).Msg("deploy failed")
		case OutcomeConflictSkipped:
			logger.Warn().Str("file", name).Str("path", entry.LocalPath).
				Msg("conflict: target exists, use --force to overwrite")
		default:
			logger.Info().Str("file", name).Str("outcome", string(result.Outcome)).Msg("deployed")
		}
		report.Entries = append(report.Entries, result)
	}
	return report, nil
}

func (e *Engine) deployEntry(table *mappings.Table, name string, entry *mappings.Entry, profile string, force bool) EntryResult {
	logger := logging.GetLogger("deploy")
	result := EntryResult{LogicalName: name, LocalPath: entry.LocalPath}

	storedName, err := table.Resolve(name, profile)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}
	result.StoredName = storedName

	storedPath := e.store.PathOf(storedName)
	if !e.store.Exists(storedName) {
		result.Outcome = OutcomeFailed
		result.Err = errors.Newf(errors.ErrInternal, "stored file %s missing for %s", storedName, name)
		return result
	}

	info, err := os.Lstat(entry.LocalPath)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(filepath.Dir(entry.LocalPath), 0755); mkErr != nil {
			result.Outcome = OutcomeFailed
			result.Err = errors.Wrap(mkErr, errors.ErrDirCreate, "failed to create parent directory")
			return result
		}
		if linkErr := os.Symlink(storedPath, entry.LocalPath); linkErr != nil {
			result.Outcome = OutcomeFailed
			result.Err = errors.Wrap(linkErr, errors.ErrSymlinkCreate, "failed to create symlink")
			return result
		}
		result.Outcome = OutcomeCreated
		return result

	case err != nil:
		result.Outcome = OutcomeFailed
		result.Err = errors.Wrap(err, errors.ErrInternal, "failed to inspect local path")
		return result

	case info.Mode()&os.ModeSymlink != 0:
		target, readErr := os.Readlink(entry.LocalPath)
		if readErr == nil && filepath.Clean(target) == filepath.Clean(storedPath) {
			result.Outcome = OutcomeAlreadyCorrect
			return result
		}
		// A link into our own store (e.g. at another profile's
		// variant) is managed content: relinking loses nothing, so no
		// force is needed. Only foreign symlinks count as conflicts.
		if readErr == nil && e.storeOwns(target) {
			return e.replace(result, storedPath, entry.LocalPath, false)
		}
		if !force {
			result.Outcome = OutcomeConflictSkipped
			result.Err = errors.Newf(errors.ErrConflict, "%s is a symlink to %s", entry.LocalPath, target)
			return result
		}
		return e.replace(result, storedPath, entry.LocalPath, false)

	default:
		// Regular file or directory occupying the target. A file whose
		// bytes already match the resolved stored content is adopted
		// without force: replacing it with the link loses nothing.
		// This is the common state right after add, which copies the
		// file but leaves linking to deploy.
		if !force {
			if !info.IsDir() && sameContent(entry.LocalPath, storedPath) {
				replaced := e.replace(result, storedPath, entry.LocalPath, false)
				if replaced.Outcome == OutcomeReplaced {
					replaced.Outcome = OutcomeCreated
				}
				return replaced
			}
			result.Outcome = OutcomeConflictSkipped
			result.Err = errors.Newf(errors.ErrConflict, "%s exists and is not managed", entry.LocalPath)
			return result
		}
		logger.Warn().Str("path", entry.LocalPath).
			Msg("OVERWRITING unmanaged content because --force was given; original content is lost")
		return e.replace(result, storedPath, entry.LocalPath, info.IsDir())
	}
}

// replace swaps whatever sits at localPath for the correct symlink.
func (e *Engine) replace(result EntryResult, storedPath, localPath string, isDir bool) EntryResult {
	var rmErr error
	if isDir {
		rmErr = os.RemoveAll(localPath)
	} else {
		rmErr = os.Remove(localPath)
	}
	if rmErr != nil {
		result.Outcome = OutcomeFailed
		result.Err = errors.Wrap(rmErr, errors.ErrInternal, "failed to remove existing content")
		return result
	}
	if err := os.Symlink(storedPath, localPath); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = errors.Wrap(err, errors.ErrSymlinkCreate, "failed to create symlink")
		return result
	}
	result.Outcome = OutcomeReplaced
	return result
}

// sameContent reports whether two files hold identical bytes.
func sameContent(a, b string) bool {
	rawA, err := os.ReadFile(a)
	if err != nil {
		return false
	}
	rawB, err := os.ReadFile(b)
	if err != nil {
		return false
	}
	return bytes.Equal(rawA, rawB)
}

// resolveLocal normalizes a user-supplied path to the absolute form
// used as the mapping key.
func resolveLocal(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrInvalidInput, "invalid path %s", path)
	}
	return filepath.Clean(abs), nil
}
