// Package paths centralizes path expansion and the naming scheme that
// ties a user's file to its entry in the repository store.
//
// Two derived names matter here:
//
//   - the logical name: a stable identifier for a managed file,
//     derived from its location (relative to $HOME when possible so
//     mappings travel between machines)
//   - the stored filename: the flat name a variant occupies inside the
//     repository store, "<base>" for the default profile and
//     "<base>_<profile>" for any other
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// DefaultProfile is the reserved profile name every mapping entry
// falls back to.
const DefaultProfile = "default"

// ExpandHome expands a leading ~ or ~/ to the user's home directory.
// Paths that cannot be expanded are returned unchanged.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			return path
		}
	}

	if len(path) == 1 {
		return homeDir
	}
	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(homeDir, path[2:])
	}

	// ~otheruser is not supported, leave untouched
	return path
}

// DefaultRoot returns the store root directory: DOTDAV_ROOT if set,
// otherwise $XDG_DATA_HOME/dotdav.
func DefaultRoot() string {
	if root := os.Getenv("DOTDAV_ROOT"); root != "" {
		return ExpandHome(root)
	}
	return filepath.Join(xdg.DataHome, "dotdav")
}

// LogicalName derives the stable identifier for a local path: the
// path relative to $HOME when it lives under it, the absolute path
// otherwise. The input must already be absolute.
func LogicalName(localPath string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return localPath
	}
	rel, err := filepath.Rel(home, localPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return localPath
	}
	return rel
}

// LocalPath reverses LogicalName: relative names are anchored at
// $HOME, absolute ones are used as-is.
func LocalPath(logicalName string) string {
	if filepath.IsAbs(logicalName) {
		return logicalName
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return logicalName
	}
	return filepath.Join(home, logicalName)
}

// StoredName derives the flat repository filename for a variant of
// the given logical name. Leading dots are stripped and path
// separators flattened so ".config/git/config" becomes
// "config-git-config". The default profile keeps the bare name;
// other profiles get a "_<profile>" suffix.
func StoredName(logicalName, profile string) string {
	base := sanitize(logicalName)
	if profile == DefaultProfile {
		return base
	}
	return base + "_" + profile
}

func sanitize(logicalName string) string {
	s := strings.TrimLeft(logicalName, "./")
	s = strings.ReplaceAll(s, string(filepath.Separator), "-")
	s = strings.ReplaceAll(s, ".", "-")
	if s == "" {
		s = "file"
	}
	return s
}
