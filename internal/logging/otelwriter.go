package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// OTelWriter re-emits zerolog JSON entries as OpenTelemetry log records.
type OTelWriter struct {
	logger otellog.Logger
}

func NewOTelWriter(lp otellog.LoggerProvider, scope string) *OTelWriter {
	return &OTelWriter{logger: lp.Logger(scope)}
}

func (w *OTelWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel converts one entry. The message becomes the body, the level
// the severity, and every other field an attribute.
func (w *OTelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		return 0, fmt.Errorf("otel writer: %w", err)
	}

	var rec otellog.Record
	rec.SetObservedTimestamp(time.Now())
	if ts, ok := fields[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(zerolog.TimeFieldFormat, ts); err == nil {
			rec.SetTimestamp(t)
		}
	}
	rec.SetSeverity(severity(level))
	rec.SetSeverityText(level.String())
	if msg, ok := fields[zerolog.MessageFieldName].(string); ok {
		rec.SetBody(otellog.StringValue(msg))
	}

	for _, k := range slices.Sorted(maps.Keys(fields)) {
		switch k {
		case zerolog.TimestampFieldName, zerolog.MessageFieldName, zerolog.LevelFieldName:
			continue
		}
		rec.AddAttributes(attribute(k, fields[k]))
	}

	w.logger.Emit(context.Background(), rec)
	return len(p), nil
}

func severity(level zerolog.Level) otellog.Severity {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.InfoLevel:
		return otellog.SeverityInfo
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityUndefined
	}
}

func attribute(key string, v any) otellog.KeyValue {
	switch v := v.(type) {
	case string:
		return otellog.String(key, v)
	case bool:
		return otellog.Bool(key, v)
	case float64:
		if v == float64(int64(v)) {
			return otellog.Int64(key, int64(v))
		}
		return otellog.Float64(key, v)
	default:
		raw, _ := json.Marshal(v)
		return otellog.String(key, string(raw))
	}
}
