// Package store owns the repository store: the directory of canonical
// file contents, one flat file per (logical name, profile) variant.
// Local symlinks are the only outside references into it; nothing else
// may hold independent copies.
package store

import (
	"io"
	"os"
	"path/filepath"

	"github.com/arthur-debert/dotdav/pkg/errors"
)

// DirName is the repository directory inside the store root
const DirName = "repo"

// Store is a handle on the repository directory.
type Store struct {
	dir string
}

// New returns a store rooted at <root>/repo.
func New(root string) *Store {
	return &Store{dir: filepath.Join(root, DirName)}
}

// Dir returns the repository directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Init creates the repository directory.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "failed to create repository directory")
	}
	return nil
}

// PathOf returns the absolute path of a stored file.
func (s *Store) PathOf(storedName string) string {
	return filepath.Join(s.dir, storedName)
}

// Exists reports whether a stored file is present.
func (s *Store) Exists(storedName string) bool {
	info, err := os.Stat(s.PathOf(storedName))
	return err == nil && info.Mode().IsRegular()
}

// CopyIn copies a local file's content into the store under the given
// name, preserving the file mode.
func (s *Store) CopyIn(src, storedName string) error {
	if err := s.Init(); err != nil {
		return err
	}
	if err := copyFile(src, s.PathOf(storedName)); err != nil {
		return errors.Wrapf(err, errors.ErrFileCopy, "failed to copy %s into store", src)
	}
	return nil
}

// CopyOut copies a stored file to an arbitrary destination, keeping
// the stored copy in place. Used by remove to stage the restored
// content before the symlink is touched.
func (s *Store) CopyOut(storedName, dst string) error {
	if err := copyFile(s.PathOf(storedName), dst); err != nil {
		return errors.Wrapf(err, errors.ErrFileCopy, "failed to copy %s out of store", storedName)
	}
	return nil
}

// Remove deletes a stored file. A file that is already gone is not an
// error; the variant record is what matters at that point.
func (s *Store) Remove(storedName string) error {
	if err := os.Remove(s.PathOf(storedName)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrInternal, "failed to delete stored file %s", storedName)
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
