package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/internal/logging"
	intOtel "github.com/arscene/statesync/internal/otel"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Global flag values.
var (
	flagConfigDir string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   AppName,
	Short: "Reconcile AR tracker frames with a scene and record the result",
	Long: `statesync feeds tracker frames through the reconciliation loop: it keeps
the found-trackable queue, resolves the anchor, places the viewer and every
visible trackable, and records poses, status changes and button events to
the configured storage backend.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: teardownApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", ".", "directory containing "+config.FileName)
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override logLevel from the config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateBackupsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// no config or logging needed
	PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
	PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
	},
}

// setupApp loads config, then sets up logging and OpenTelemetry.
func setupApp(cmd *cobra.Command, args []string) error {
	err := config.Load(flagConfigDir)
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return err
	}
	configMissing := err != nil

	level := config.GetString("logLevel")
	if flagLogLevel != "" {
		level = flagLogLevel
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, SessionStartTime)
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	// OTel first, so the log bridge can be handed to the logger
	otelCfg := config.GetOTelConfig()
	providerCfg := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ExportInterval: otelCfg.ExportInterval,
		LogEndpoint:    otelCfg.LogEndpoint,
		LogInsecure:    otelCfg.LogInsecure,
	}
	if otelCfg.Stdout {
		providerCfg.MetricWriter = cmd.OutOrStdout()
	}
	if otelCfg.Enabled && otelCfg.LogFile {
		otelLogFile, err = os.Create(filepath.Join(logsDir,
			fmt.Sprintf("%s.otel.%s.jsonl", AppName, SessionStartTime.Format("20060102_150405"))))
		if err != nil {
			return fmt.Errorf("failed to open otel log file: %w", err)
		}
		providerCfg.LogWriter = otelLogFile
	}
	var otelErr error
	OTelProvider, otelErr = intOtel.New(providerCfg)
	if otelErr != nil {
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	}

	opts := logging.Options{
		Level:   level,
		Console: cmd.ErrOrStderr(),
		File:    logFile,
		Context: SessionContext.LogContext,
		OTel:    OTelProvider.LoggerProvider(),
	}
	if config.GetBool("graylog.enabled") {
		opts.GraylogAddress = config.GetString("graylog.address")
	}
	LogManager, err = logging.Setup(opts)
	if err != nil {
		return err
	}
	Logger = LogManager.Logger
	if configMissing {
		Logger.Warn().Str("dir", flagConfigDir).Msg("No config file found, using defaults")
	}
	if otelErr != nil {
		Logger.Warn().Err(otelErr).Msg("Failed to set up OpenTelemetry, continuing without it")
	}

	Logger.Debug().Str("version", CurrentVersion).Str("logFile", logPath).Msg("Started")
	return nil
}

func teardownApp(cmd *cobra.Command, args []string) error {
	var errs []error
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, OTelProvider.Shutdown(ctx))
	}
	if LogManager != nil {
		errs = append(errs, LogManager.Close())
	}
	for _, f := range []*os.File{logFile, otelLogFile} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}
