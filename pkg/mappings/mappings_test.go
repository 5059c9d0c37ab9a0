package mappings

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dotdav/pkg/errors"
)

func newTable(t *testing.T) *Table {
	t.Helper()
	table, err := Load(t.TempDir())
	require.NoError(t, err)
	return table
}

func TestLoad_MissingFile(t *testing.T) {
	table, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, table.Files)
}

func TestLoad_Malformed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("{not yaml"), 0644))

	_, err := Load(root)
	assert.True(t, errors.IsCode(err, errors.ErrConfigLoad))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()

	table, err := Load(root)
	require.NoError(t, err)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "default", "bashrc"))
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "laptop", "bashrc_laptop"))
	require.NoError(t, table.Save(root))

	reloaded, err := Load(root)
	require.NoError(t, err)
	entry, ok := reloaded.Files[".bashrc"]
	require.True(t, ok)
	assert.Equal(t, "/home/u/.bashrc", entry.LocalPath)
	assert.Equal(t, map[string]string{
		"default": "bashrc",
		"laptop":  "bashrc_laptop",
	}, entry.Variants)
}

func TestResolve_ProfileVariantWins(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "default", "bashrc"))
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "laptop", "bashrc_laptop"))

	stored, err := table.Resolve(".bashrc", "laptop")
	require.NoError(t, err)
	assert.Equal(t, "bashrc_laptop", stored)
}

func TestResolve_FallsBackToDefault(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "default", "bashrc"))

	stored, err := table.Resolve(".bashrc", "laptop")
	require.NoError(t, err)
	assert.Equal(t, "bashrc", stored)
}

func TestResolve_NoVariant(t *testing.T) {
	table := newTable(t)

	_, err := table.Resolve(".bashrc", "laptop")
	assert.True(t, errors.IsCode(err, errors.ErrNoVariant))

	// Entry with only a foreign profile variant and no default is a
	// broken invariant and must also fail
	require.NoError(t, table.AddVariant(".vimrc", "/home/u/.vimrc", "desktop", "vimrc_desktop"))
	_, err = table.Resolve(".vimrc", "laptop")
	assert.True(t, errors.IsCode(err, errors.ErrNoVariant))
}

func TestVariantKey(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "default", "bashrc"))
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "laptop", "bashrc_laptop"))

	key, err := table.VariantKey(".bashrc", "laptop")
	require.NoError(t, err)
	assert.Equal(t, "laptop", key)

	key, err = table.VariantKey(".bashrc", "work")
	require.NoError(t, err)
	assert.Equal(t, "default", key)
}

func TestAddVariant_StoredNameCollision(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "laptop", "bashrc_laptop"))

	// A different logical name deriving the same stored name must be
	// rejected, not silently shared
	err := table.AddVariant(".bashrc_laptop", "/home/u/.bashrc_laptop", "default", "bashrc_laptop")
	assert.True(t, errors.IsCode(err, errors.ErrAlreadyExists))

	// Re-recording the same variant for the same name is fine
	assert.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "laptop", "bashrc_laptop"))
}

func TestRemoveVariant(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "default", "bashrc"))
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "laptop", "bashrc_laptop"))

	gone := table.RemoveVariant(".bashrc", "laptop")
	assert.False(t, gone, "entry should survive while default remains")
	_, ok := table.Files[".bashrc"]
	assert.True(t, ok)

	gone = table.RemoveVariant(".bashrc", "default")
	assert.True(t, gone, "removing the last variant deletes the entry")
	_, ok = table.Files[".bashrc"]
	assert.False(t, ok)
}

func TestEntryForPath(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "default", "bashrc"))

	name, entry, ok := table.EntryForPath("/home/u/.bashrc")
	require.True(t, ok)
	assert.Equal(t, ".bashrc", name)
	assert.Equal(t, "/home/u/.bashrc", entry.LocalPath)

	_, _, ok = table.EntryForPath("/home/u/.vimrc")
	assert.False(t, ok)
}

func TestEntryForStoredName(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "laptop", "bashrc_laptop"))

	name, variant, ok := table.EntryForStoredName("bashrc_laptop")
	require.True(t, ok)
	assert.Equal(t, ".bashrc", name)
	assert.Equal(t, "laptop", variant)
}

func TestNames_Sorted(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.AddVariant(".zshrc", "/home/u/.zshrc", "default", "zshrc"))
	require.NoError(t, table.AddVariant(".bashrc", "/home/u/.bashrc", "default", "bashrc"))
	require.NoError(t, table.AddVariant(".vimrc", "/home/u/.vimrc", "default", "vimrc"))

	assert.Equal(t, []string{".bashrc", ".vimrc", ".zshrc"}, table.Names())
}

func TestWithLock_SerializesMutation(t *testing.T) {
	root := t.TempDir()

	// Hammer the same table from several goroutines; the lock plus
	// load-modify-save must not lose any entry
	var wg sync.WaitGroup
	names := []string{".bashrc", ".vimrc", ".zshrc", ".gitconfig"}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			err := WithLock(root, func() error {
				table, err := Load(root)
				if err != nil {
					return err
				}
				if err := table.AddVariant(name, "/home/u/"+name, "default", name[1:]); err != nil {
					return err
				}
				return table.Save(root)
			})
			assert.NoError(t, err)
		}(name)
	}
	wg.Wait()

	table, err := Load(root)
	require.NoError(t, err)
	assert.Len(t, table.Files, len(names))
}
