package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/arscene/statesync/internal/dispatcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*DispatcherLogger)
		level string
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("msg", "k", "v") }, "debug"},
		{"info", func(l *DispatcherLogger) { l.Info("msg", "k", "v") }, "info"},
		{"error", func(l *DispatcherLogger) { l.Error("msg", "k", "v") }, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
			tt.log(dl)

			entry := decode(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "msg", entry["message"])
			assert.Equal(t, "v", entry["k"])
		})
	}
}

func TestDispatcherLogger_Values(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("error occurred", "code", 500, "reason", "internal")

	entry := decode(t, &buf)
	assert.Equal(t, float64(500), entry["code"])
	assert.Equal(t, "internal", entry["reason"])
}

func TestDispatcherLogger_OddAndNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("partial", "handler", "storage", 42, "ignored", "dangling")

	entry := decode(t, &buf)
	assert.Equal(t, "storage", entry["handler"])
	assert.NotContains(t, entry, "dangling")
	assert.Len(t, entry, 4) // level, message, component, handler
	assert.Equal(t, "dispatcher", entry["component"])
}

func TestDispatcherLogger_ErrorValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("handler failed", "error", errors.New("disk full"), "cause", errors.New("quota"))

	entry := decode(t, &buf)
	assert.Equal(t, "disk full", entry["error"])
	assert.Equal(t, "quota", entry["cause"])
}

func TestDispatcherLogger_BelowLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("noise", "k", "v")
	assert.Zero(t, buf.Len())
}
