// Package mappings owns the mapping table: the persisted association
// of logical name -> local path -> profile variants. The table is a
// single human-editable YAML file inside the store root, loaded fully
// into memory at command start.
package mappings

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/paths"
)

// FileName is the mapping table file inside the store root
const FileName = "mappings.yaml"

// Entry describes one managed file: where its symlink lives and which
// stored filename backs it under each profile. Every entry holds at
// least one variant; the whole entry disappears when the last variant
// is removed.
type Entry struct {
	LocalPath string            `yaml:"local_path"`
	Variants  map[string]string `yaml:"variants"`
}

// Table is the full mapping table, keyed by logical name.
type Table struct {
	Files map[string]*Entry `yaml:"files"`
}

// Load reads the mapping table from the store root. A missing file
// yields an empty table.
func Load(root string) (*Table, error) {
	t := &Table{Files: map[string]*Entry{}}

	raw, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to read mapping table")
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to parse mapping table")
	}
	if t.Files == nil {
		t.Files = map[string]*Entry{}
	}
	return t, nil
}

// Save writes the table atomically (temp file + rename).
func (t *Table) Save(root string) error {
	out, err := yaml.Marshal(t)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode mapping table")
	}

	tmp, err := os.CreateTemp(root, ".mappings-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to create temp mapping file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrInternal, "failed to write mapping table")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrInternal, "failed to close mapping table")
	}
	if err := os.Rename(tmpName, filepath.Join(root, FileName)); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrInternal, "failed to replace mapping table")
	}
	return nil
}

// Resolve picks the stored filename for a logical name under the
// given profile: the profile's own variant when present, the default
// variant otherwise. An entry satisfying neither violates the table
// invariant and resolves to a NO_VARIANT error.
func (t *Table) Resolve(name, profile string) (string, error) {
	key, err := t.VariantKey(name, profile)
	if err != nil {
		return "", err
	}
	return t.Files[name].Variants[key], nil
}

// VariantKey returns which variant key (profile name) Resolve would
// use for the given logical name and profile. Remove needs this to
// know which variant it is actually deleting.
func (t *Table) VariantKey(name, profile string) (string, error) {
	entry, ok := t.Files[name]
	if !ok || len(entry.Variants) == 0 {
		return "", errors.Newf(errors.ErrNoVariant, "no variants recorded for %q", name)
	}
	if _, ok := entry.Variants[profile]; ok {
		return profile, nil
	}
	if _, ok := entry.Variants[paths.DefaultProfile]; ok {
		return paths.DefaultProfile, nil
	}
	return "", errors.Newf(errors.ErrNoVariant, "no variant of %q for profile %q and no default", name, profile)
}

// EntryForPath finds the entry whose local path matches the given
// absolute path.
func (t *Table) EntryForPath(localPath string) (string, *Entry, bool) {
	for name, entry := range t.Files {
		if entry.LocalPath == localPath {
			return name, entry, true
		}
	}
	return "", nil, false
}

// EntryForStoredName finds the entry owning the given stored filename
// and the variant key it is filed under.
func (t *Table) EntryForStoredName(storedName string) (string, string, bool) {
	for name, entry := range t.Files {
		for variant, stored := range entry.Variants {
			if stored == storedName {
				return name, variant, true
			}
		}
	}
	return "", "", false
}

// AddVariant records a new variant. A stored filename already claimed
// by a different logical name is rejected: the flat naming scheme
// makes such collisions possible (e.g. a profile named so the
// suffixed name matches another file's default), and silently
// sharing a stored file would cross-wire two mappings.
func (t *Table) AddVariant(name, localPath, profile, storedName string) error {
	if owner, _, ok := t.EntryForStoredName(storedName); ok && owner != name {
		return errors.Newf(errors.ErrAlreadyExists,
			"stored name %q already belongs to %q", storedName, owner)
	}

	entry, ok := t.Files[name]
	if !ok {
		entry = &Entry{LocalPath: localPath, Variants: map[string]string{}}
		t.Files[name] = entry
	}
	entry.Variants[profile] = storedName
	return nil
}

// RemoveVariant deletes one variant and reports whether the whole
// entry went with it.
func (t *Table) RemoveVariant(name, profile string) bool {
	entry, ok := t.Files[name]
	if !ok {
		return false
	}
	delete(entry.Variants, profile)
	if len(entry.Variants) == 0 {
		delete(t.Files, name)
		return true
	}
	return false
}

// Names returns all logical names in stable order, so deploy reports
// are deterministic.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.Files))
	for name := range t.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
