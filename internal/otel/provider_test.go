package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	// no-op meter must still hand out instruments
	c, err := p.Meter("test").Int64Counter("frames")
	require.NoError(t, err)
	c.Add(context.Background(), 1)

	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_ManualReaderCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := New(Config{Enabled: true, ServiceName: "statesync-test", Reader: reader})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	c, err := p.Meter("scene").Int64Counter("scene.frames")
	require.NoError(t, err)
	c.Add(context.Background(), 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func TestNew_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "statesync-test", MetricWriter: &buf})
	require.NoError(t, err)

	c, err := p.Meter("scene").Int64Counter("scene.frames")
	require.NoError(t, err)
	c.Add(context.Background(), 1)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "scene.frames")
}

func TestNew_LogFileExport(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "statesync-test", LogWriter: &buf})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())

	var rec otellog.Record
	rec.SetBody(otellog.StringValue("anchor changed"))
	rec.SetSeverity(otellog.SeverityInfo)
	p.LoggerProvider().Logger("test").Emit(context.Background(), rec)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "anchor changed")
}

func TestNew_NoLogExport(t *testing.T) {
	p, err := New(Config{Enabled: true, ServiceName: "statesync-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	assert.Nil(t, p.LoggerProvider())
}
