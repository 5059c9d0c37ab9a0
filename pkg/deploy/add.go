package deploy

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/logging"
	"github.com/arthur-debert/dotdav/pkg/mappings"
	"github.com/arthur-debert/dotdav/pkg/paths"
)

// AddResult describes a completed add.
type AddResult struct {
	LogicalName string
	LocalPath   string
	Profile     string
	StoredName  string
}

// Add copies a local file into the repository store and records the
// variant for the given profile. The path must be a regular file, or
// the deployed symlink of an entry that has no variant for this
// profile yet (that is how a second profile's variant is captured:
// the content currently visible through the link becomes the new
// variant). A symlink whose variant already exists is rejected with
// ALREADY_MANAGED. Add never deploys: several adds can be batched
// before one relink.
func (e *Engine) Add(localPath, profile string) (*AddResult, error) {
	logger := logging.GetLogger("deploy.add")

	local, err := resolveLocal(localPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrNotAFile, "%s does not exist", local)
		}
		return nil, errors.Wrapf(err, errors.ErrInternal, "failed to inspect %s", local)
	}

	isLink := info.Mode()&os.ModeSymlink != 0
	if isLink && !e.linksIntoStore(local) {
		return nil, errors.Newf(errors.ErrNotAFile, "%s is a symlink, not a regular file", local)
	}
	if !isLink && !info.Mode().IsRegular() {
		return nil, errors.Newf(errors.ErrNotAFile, "%s is not a regular file", local)
	}

	var result *AddResult
	err = mappings.WithLock(e.root, func() error {
		table, err := mappings.Load(e.root)
		if err != nil {
			return err
		}

		logicalName := paths.LogicalName(local)
		if isLink {
			name, entry, ok := table.EntryForPath(local)
			if !ok {
				if name, ok = e.entryForLink(table, local); !ok {
					return errors.Newf(errors.ErrNotAFile, "%s links into the store but is not tracked", local)
				}
				entry = table.Files[name]
			}
			if _, exists := entry.Variants[profile]; exists {
				return errors.Newf(errors.ErrAlreadyManaged,
					"%s is already managed for profile %q", local, profile)
			}
			logicalName = name
		}

		storedName := paths.StoredName(logicalName, profile)

		// Validate the table change before any file moves so a stored
		// name collision aborts with nothing mutated
		if err := table.AddVariant(logicalName, local, profile, storedName); err != nil {
			return err
		}
		// CopyIn reads through a deployed symlink, capturing whatever
		// content the link currently shows
		if err := e.store.CopyIn(local, storedName); err != nil {
			return err
		}
		if err := table.Save(e.root); err != nil {
			// Roll the copy back so the store never holds unrecorded
			// content
			_ = e.store.Remove(storedName)
			return err
		}

		result = &AddResult{
			LogicalName: logicalName,
			LocalPath:   local,
			Profile:     profile,
			StoredName:  storedName,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("file", result.LogicalName).
		Str("profile", profile).
		Str("stored", result.StoredName).
		Msg("added to management")
	return result, nil
}

// linksIntoStore reports whether a symlink points into the repository
// store.
func (e *Engine) linksIntoStore(localPath string) bool {
	target, err := os.Readlink(localPath)
	if err != nil {
		return false
	}
	return e.storeOwns(target)
}

// storeOwns reports whether a path lies inside the repository store.
func (e *Engine) storeOwns(path string) bool {
	rel, err := filepath.Rel(e.store.Dir(), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
