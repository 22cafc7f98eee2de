package logging

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func newRecordingProvider(t *testing.T) (*sdklog.LoggerProvider, *recordingExporter) {
	t.Helper()
	exp := &recordingExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })
	return lp, exp
}

func attrs(r sdklog.Record) map[string]otellog.Value {
	out := map[string]otellog.Value{}
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value
		return true
	})
	return out
}

func TestOTelWriter_ConvertsEntries(t *testing.T) {
	lp, exp := newRecordingProvider(t)
	log := zerolog.New(NewOTelWriter(lp, "test")).With().Timestamp().Logger()

	log.Warn().Int("anchor", 4).Bool("moved", true).Float64("dt", 0.5).Str("session", "lab").Msg("Anchor lost")

	require.Len(t, exp.records, 1)
	r := exp.records[0]
	assert.Equal(t, "Anchor lost", r.Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, r.Severity())
	assert.Equal(t, "warn", r.SeverityText())
	assert.False(t, r.Timestamp().IsZero())

	a := attrs(r)
	assert.Equal(t, int64(4), a["anchor"].AsInt64())
	assert.True(t, a["moved"].AsBool())
	assert.Equal(t, 0.5, a["dt"].AsFloat64())
	assert.Equal(t, "lab", a["session"].AsString())
	assert.NotContains(t, a, "level")
	assert.NotContains(t, a, "message")
}

func TestOTelWriter_RejectsGarbage(t *testing.T) {
	lp, _ := newRecordingProvider(t)
	_, err := NewOTelWriter(lp, "test").Write([]byte("not json"))
	assert.Error(t, err)
}

func TestSetup_WithOTel(t *testing.T) {
	lp, exp := newRecordingProvider(t)
	var console bytes.Buffer
	m, err := Setup(Options{Level: "debug", Console: &console, OTel: lp})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	m.Logger.Debug().Msg("hello otel")

	var bodies []string
	for _, r := range exp.records {
		bodies = append(bodies, r.Body().AsString())
	}
	assert.Contains(t, bodies, "hello otel")
}
