package logging

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "logs",
			appName: "statesync",
			want:    filepath.Join("logs", "statesync.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./logs",
			appName: "statesync",
			want:    filepath.Join(".", "logs", "statesync.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "statesync"),
			appName: "statesync",
			want:    filepath.Join("/var", "log", "statesync", "statesync.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("Error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	m, err := Setup(Options{Level: "debug", Console: &console, File: &file})
	require.NoError(t, err)
	defer m.Close()

	m.Logger.Debug().Int("frame", 7).Msg("hello")

	assert.Contains(t, console.String(), "hello")
	assert.Contains(t, file.String(), "hello")
	assert.Contains(t, file.String(), "frame=7")
	// file output has no color codes
	assert.NotContains(t, file.String(), "\x1b[")
}

func TestSetup_LevelFilters(t *testing.T) {
	var file bytes.Buffer
	m, err := Setup(Options{Level: "warn", Console: &bytes.Buffer{}, File: &file})
	require.NoError(t, err)

	m.Logger.Info().Msg("quiet")
	m.Logger.Warn().Msg("loud")

	assert.NotContains(t, file.String(), "quiet")
	assert.Contains(t, file.String(), "loud")
}

func TestSetup_ContextHook(t *testing.T) {
	var file bytes.Buffer
	session := "lab-run"
	m, err := Setup(Options{
		Level:   "info",
		Console: &bytes.Buffer{},
		File:    &file,
		Context: func(e *zerolog.Event) { e.Str("session", session) },
	})
	require.NoError(t, err)

	m.Logger.Info().Msg("with context")
	assert.Contains(t, file.String(), "session=lab-run")
}
