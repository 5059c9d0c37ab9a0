// Package service installs dotdav's autosync daemon as a systemd user
// unit. The daemon itself stays a plain foreground process; systemd is
// the supervisor that starts, restarts and reports it.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/arthur-debert/dotdav/pkg/errors"
	"github.com/arthur-debert/dotdav/pkg/logging"
)

// UnitName is the systemd user unit file name
const UnitName = "dotdav.service"

const unitTemplate = `[Unit]
Description=dotdav autosync daemon
After=network.target

[Service]
ExecStart=%s autosync
Restart=always
RestartSec=10

[Install]
WantedBy=default.target
`

// runSystemctl is swapped out in tests; the real one shells out to
// systemctl --user.
var runSystemctl = func(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// UnitPath returns where the user unit file lives.
func UnitPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "cannot determine home directory")
	}
	return filepath.Join(home, ".config", "systemd", "user", UnitName), nil
}

// Install writes the unit file pointing at the current executable and
// enables it immediately.
func Install() error {
	logger := logging.GetLogger("service")

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "cannot determine executable path")
	}

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(unitPath), 0755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "failed to create systemd user directory")
	}

	content := fmt.Sprintf(unitTemplate, exe)
	if err := os.WriteFile(unitPath, []byte(content), 0644); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to write unit file")
	}
	logger.Info().Str("unit", unitPath).Msg("unit file written")

	if err := runSystemctl("daemon-reload"); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "systemctl daemon-reload failed")
	}
	if err := runSystemctl("enable", "--now", UnitName); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to enable service")
	}

	logger.Info().Msg("service installed and started")
	return nil
}

// Uninstall stops and disables the unit, then removes the file. A
// missing unit file is reported, not treated as failure.
func Uninstall() error {
	logger := logging.GetLogger("service")

	unitPath, err := UnitPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(unitPath); os.IsNotExist(err) {
		logger.Warn().Str("unit", unitPath).Msg("unit file not found, nothing to uninstall")
		return nil
	}

	// Best effort: a unit that was never started still gets removed
	if err := runSystemctl("stop", UnitName); err != nil {
		logger.Warn().Err(err).Msg("failed to stop service")
	}
	if err := runSystemctl("disable", UnitName); err != nil {
		logger.Warn().Err(err).Msg("failed to disable service")
	}

	if err := os.Remove(unitPath); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to remove unit file")
	}

	logger.Info().Msg("service uninstalled")
	return nil
}
