// Command statesync runs the trackable reconciliation loop against a
// recorded tracker stream and records the results.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/arscene/statesync/internal/logging"
	intOtel "github.com/arscene/statesync/internal/otel"
	"github.com/arscene/statesync/internal/session"
	"github.com/rs/zerolog"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "statesync"
)

// global variables
var (
	// LogManager owns the configured loggers
	LogManager *logging.Manager

	// Logger is the main logger (convenience reference)
	Logger zerolog.Logger = zerolog.Nop()

	// OTelProvider handles OpenTelemetry metrics
	OTelProvider *intOtel.Provider

	// SessionContext holds the session being recorded, for log context and sinks
	SessionContext = session.NewContext()

	SessionStartTime time.Time = time.Now()

	logFile     *os.File
	otelLogFile *os.File
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
