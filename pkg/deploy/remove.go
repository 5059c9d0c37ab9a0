package deploy

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/logging"
	"github.com/arthur-debert/dotdav/pkg/mappings"
)

// RemoveResult describes a completed remove.
type RemoveResult struct {
	LogicalName  string
	LocalPath    string
	Variant      string
	StoredName   string
	EntryDeleted bool
}

// Remove takes a file out of management: the local path becomes a
// regular file again holding the variant's content, and the variant
// (plus the stored file) is deleted. The restore copy is staged as a
// sibling temp file before the symlink is touched, so a failure at
// any step leaves either a working symlink or the restored file,
// never a missing path with the stored content already gone.
func (e *Engine) Remove(localPath, profile string) (*RemoveResult, error) {
	logger := logging.GetLogger("deploy.remove")

	local, err := resolveLocal(localPath)
	if err != nil {
		return nil, err
	}

	var result *RemoveResult
	err = mappings.WithLock(e.root, func() error {
		table, err := mappings.Load(e.root)
		if err != nil {
			return err
		}

		name, _, ok := table.EntryForPath(local)
		if !ok {
			// The given path may not match the recorded key (relative
			// vs absolute, renamed home); fall back to matching the
			// deployed symlink's target against the store
			name, ok = e.entryForLink(table, local)
			if !ok {
				return errors.Newf(errors.ErrNotManaged, "%s is not tracked by dotdav", local)
			}
		}

		variantKey, err := table.VariantKey(name, profile)
		if err != nil {
			return err
		}
		storedName := table.Files[name].Variants[variantKey]

		if !e.store.Exists(storedName) {
			return errors.Newf(errors.ErrNoVariant, "stored file %s is missing, cannot restore %s", storedName, local)
		}

		// Stage the restored content next to the target so the final
		// move is a same-filesystem rename
		tmp := local + ".dotdav-restore"
		if err := e.store.CopyOut(storedName, tmp); err != nil {
			return err
		}

		if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
			_ = os.Remove(tmp)
			return errors.Wrapf(err, errors.ErrInternal, "failed to remove %s, leaving it in place", local)
		}
		if err := os.Rename(tmp, local); err != nil {
			_ = os.Remove(tmp)
			return errors.Wrapf(err, errors.ErrInternal, "failed to restore %s", local)
		}

		// Only now is the user's file durable; retire the variant,
		// persisting the table before the stored file goes so a crash
		// leaves an orphan file rather than a dangling record
		entryDeleted := table.RemoveVariant(name, variantKey)
		if err := table.Save(e.root); err != nil {
			return err
		}
		if err := e.store.Remove(storedName); err != nil {
			return err
		}

		result = &RemoveResult{
			LogicalName:  name,
			LocalPath:    local,
			Variant:      variantKey,
			StoredName:   storedName,
			EntryDeleted: entryDeleted,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("file", result.LogicalName).
		Str("variant", result.Variant).
		Bool("entry_deleted", result.EntryDeleted).
		Msg("removed from management")
	return result, nil
}

// entryForLink matches a symlink against the stored file it points at.
func (e *Engine) entryForLink(table *mappings.Table, local string) (string, bool) {
	info, err := os.Lstat(local)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return "", false
	}
	target, err := os.Readlink(local)
	if err != nil || !e.storeOwns(target) {
		return "", false
	}
	name, _, ok := table.EntryForStoredName(filepath.Base(filepath.Clean(target)))
	return name, ok
}
