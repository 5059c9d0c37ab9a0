package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger_VerbosityLevels(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	tests := []struct {
		verbosity int
		expected  zerolog.Level
	}{
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{3, zerolog.TraceLevel},
		{5, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		SetupLogger(tt.verbosity)
		assert.Equal(t, tt.expected, zerolog.GlobalLevel(), "verbosity %d", tt.verbosity)
	}
}

func TestSetupLogger_CreatesLogFile(t *testing.T) {
	stateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", stateHome)

	SetupLogger(1)

	logPath := filepath.Join(stateHome, "dotdav", "dotdav.log")
	_, err := os.Stat(logPath)
	require.NoError(t, err, "log file should be created under the state dir")
}

func TestGetLogger_ComponentField(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	SetupLogger(0)

	logger := GetLogger("sync.coordinator")
	// A component logger must be usable without further setup
	logger.Debug().Msg("probe")
}
