package logging

import "github.com/rs/zerolog"

// DispatcherLogger lets the event dispatcher log through zerolog. Every
// entry carries component=dispatcher.
type DispatcherLogger struct {
	log zerolog.Logger
}

func NewDispatcherLogger(log zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{log: log.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.log.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	emit(l.log.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	emit(l.log.Error(), msg, keysAndValues)
}

// emit adds key/value pairs to e. Pairs with a non-string key and a
// trailing key without value are skipped; error values go through Err
// when keyed "error" so they land in zerolog's error field.
func emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case error:
			if key == zerolog.ErrorFieldName {
				e.Err(v)
			} else {
				e.AnErr(key, v)
			}
		default:
			e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
