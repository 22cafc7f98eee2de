package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", appName, sessionStart.Format("20060102_150405")),
	)
}

// ParseLevel converts a config level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Options configures Setup.
type Options struct {
	Level          string
	Console        io.Writer // defaults to os.Stdout
	File           io.Writer // optional, written without colors
	GraylogAddress string    // optional GELF UDP address
	Context        ContextProvider
	// OTel receives every entry as a log record when set.
	OTel otellog.LoggerProvider
}

// Manager owns the configured loggers and the writers behind them.
type Manager struct {
	Logger zerolog.Logger
	// Sampled throttles repetitive messages such as per-frame warnings.
	Sampled zerolog.Logger

	graylog *gelf.Writer
}

// Setup builds the multi-level logger.
func Setup(opts Options) (*Manager, error) {
	level := ParseLevel(opts.Level)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	writers := []io.Writer{
		// console format with colors to console
		zerolog.ConsoleWriter{
			Out:        console,
			TimeFormat: time.RFC3339,
		},
	}
	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}

	m := &Manager{}
	if opts.GraylogAddress != "" {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			return nil, fmt.Errorf("graylog writer: %w", err)
		}
		m.graylog = gw
		writers = append(writers, gw)
	}

	if opts.OTel != nil {
		writers = append(writers, NewOTelWriter(opts.OTel, "statesync"))
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
	if opts.Context != nil {
		logger = logger.Hook(NewContextHook(opts.Context))
	}
	m.Logger = logger

	m.Sampled = logger.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		// at most 5 entries per 10 seconds, then 1 in 100
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})

	m.Logger.Info().Str("loglevel", level.String()).Msg("Logging set up")
	return m, nil
}

// Close releases the Graylog connection if one was opened.
func (m *Manager) Close() error {
	if m.graylog == nil {
		return nil
	}
	return m.graylog.Close()
}
