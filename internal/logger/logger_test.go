package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	orig := Logger
	t.Cleanup(func() {
		Logger = orig
		SetOutput(os.Stderr)
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"INFO":    log.InfoLevel,
		"warn":    log.WarnLevel,
		"error":   log.ErrorLevel,
		"fatal":   log.FatalLevel,
		"verbose": log.WarnLevel,
		"":        log.WarnLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseLogLevel(input), input)
	}
}

func TestConfigure_FlagBeatsEnvironment(t *testing.T) {
	restoreLogger(t)
	t.Setenv("GOREPL_LOG_LEVEL", "error")

	require.NoError(t, Configure("debug", ""))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	require.NoError(t, Configure("", ""))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	restoreLogger(t)
	path := filepath.Join(t.TempDir(), "gorepl.log")

	require.NoError(t, Configure("info", path))
	Info("Session created", "rules", 17)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Session created")
	assert.Contains(t, string(data), "rules=17")
}

func TestConfigure_BadLogFile(t *testing.T) {
	restoreLogger(t)
	err := Configure("info", filepath.Join(t.TempDir(), "missing", "gorepl.log"))
	assert.Error(t, err)
}

func TestNewStyledLogger(t *testing.T) {
	restoreLogger(t)
	var buf bytes.Buffer
	SetOutput(&buf)
	Logger.SetLevel(log.DebugLevel)

	l := NewStyledLogger("Dispatcher")
	l.Debug("Dispatching", "rule", "evaluate")

	assert.Equal(t, log.DebugLevel, l.GetLevel())
	assert.Contains(t, buf.String(), "Dispatcher")
	assert.Contains(t, buf.String(), "Dispatching")
}
