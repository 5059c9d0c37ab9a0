// Package config loads the layered dotdav configuration.
//
// Three layers, later wins:
//
//  1. built-in defaults
//  2. config.toml — the shared file, synced with the repository
//  3. config.local.toml — per-machine overrides; every mutation dotdav
//     makes (profile switch, init) lands here so the shared file never
//     picks up machine-local state
//
// DOTDAV_* environment variables override all files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/paths"
)

const (
	// ConfigFileName is the shared configuration file inside the store root
	ConfigFileName = "config.toml"
	// LocalConfigFileName holds per-machine overrides
	LocalConfigFileName = "config.local.toml"

	envPrefix = "DOTDAV_"
)

// Config is the fully resolved configuration for one invocation. The
// active profile is read once here and passed explicitly to every
// operation that needs it.
type Config struct {
	Remote              string   `koanf:"remote"`
	RemotePath          string   `koanf:"remote_path"`
	Profile             string   `koanf:"profile"`
	DebounceSeconds     int      `koanf:"debounce_seconds"`
	SyncIntervalMinutes int      `koanf:"sync_interval_minutes"`
	Ignores             []string `koanf:"ignores"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"remote":                "",
		"remote_path":           "dotfiles",
		"profile":               paths.DefaultProfile,
		"debounce_seconds":      2,
		"sync_interval_minutes": 10,
	}
}

// Load reads the layered configuration from the store root.
func Load(root string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
	}

	for _, name := range []string{ConfigFileName, LocalConfigFileName} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigLoad, "failed to load %s", name)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load environment")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to unmarshal config")
	}

	if cfg.Profile == "" {
		cfg.Profile = paths.DefaultProfile
	}
	if cfg.DebounceSeconds <= 0 {
		return nil, errors.Newf(errors.ErrConfigValid, "debounce_seconds must be positive, got %d", cfg.DebounceSeconds)
	}
	if cfg.SyncIntervalMinutes <= 0 {
		return nil, errors.Newf(errors.ErrConfigValid, "sync_interval_minutes must be positive, got %d", cfg.SyncIntervalMinutes)
	}

	return &cfg, nil
}

// RemoteSpec returns the rclone destination, e.g. "gdrive:dotfiles".
func (c *Config) RemoteSpec() string {
	return c.Remote + ":" + c.RemotePath
}

// ValidateRemote checks that a remote has been configured; sync
// operations abort before touching anything when it is missing.
func (c *Config) ValidateRemote() error {
	if c.Remote == "" {
		return errors.New(errors.ErrConfigValid, "no remote configured, run 'dotdav init --remote <name>'")
	}
	return nil
}

// SetProfile switches the active profile and persists it to the
// local overlay.
func (c *Config) SetProfile(root, name string) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "profile name must not be empty")
	}
	c.Profile = name
	return setLocal(root, map[string]interface{}{"profile": name})
}

// SetRemote records the remote name and path, skipping empty values
// so init can update them independently.
func (c *Config) SetRemote(root, remote, remotePath string) error {
	updates := map[string]interface{}{}
	if remote != "" {
		c.Remote = remote
		updates["remote"] = remote
	}
	if remotePath != "" {
		c.RemotePath = remotePath
		updates["remote_path"] = remotePath
	}
	if len(updates) == 0 {
		return nil
	}
	return setLocal(root, updates)
}

// setLocal merges updates into config.local.toml, preserving keys it
// does not touch. The write is atomic (temp file + rename).
func setLocal(root string, updates map[string]interface{}) error {
	path := filepath.Join(root, LocalConfigFileName)

	data := map[string]interface{}{}
	if raw, err := os.ReadFile(path); err == nil {
		if err := gotoml.Unmarshal(raw, &data); err != nil {
			return errors.Wrapf(err, errors.ErrConfigLoad, "failed to parse %s", LocalConfigFileName)
		}
	}
	for k, v := range updates {
		data[k] = v
	}

	out, err := gotoml.Marshal(data)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode local config")
	}

	tmp, err := os.CreateTemp(root, ".config.local-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to create temp config")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrInternal, "failed to write local config")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrInternal, "failed to close temp config")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrInternal, "failed to replace local config")
	}
	return nil
}
