package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/arscene/statesync/internal/api"
	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/internal/dispatcher"
	"github.com/arscene/statesync/internal/frameloop"
	"github.com/arscene/statesync/internal/geo"
	"github.com/arscene/statesync/internal/influx"
	"github.com/arscene/statesync/internal/logging"
	"github.com/arscene/statesync/internal/model"
	"github.com/arscene/statesync/internal/monitor"
	"github.com/arscene/statesync/internal/scene"
	"github.com/arscene/statesync/internal/status"
	"github.com/arscene/statesync/internal/storage"
	"github.com/arscene/statesync/internal/tracker"
	"github.com/arscene/statesync/internal/worker"
	"github.com/arscene/statesync/pkg/core"
	"github.com/spf13/cobra"
)

var replayFlags struct {
	name      string
	tag       string
	mode      string
	manifest  string
	interval  time.Duration
	record    string
	maxErrors int
	storage   string
	simulate  bool
	center    int
}

var replayCmd = &cobra.Command{
	Use:   "replay <frames.jsonl>",
	Short: "Run the reconciliation loop over a recorded frame stream",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayFlags.name, "name", "", "session name (defaults to the frame file name)")
	f.StringVar(&replayFlags.tag, "tag", "", "session tag (defaults to defaultTag)")
	f.StringVar(&replayFlags.mode, "mode", "", "world center mode: none, user or auto")
	f.StringVar(&replayFlags.manifest, "manifest", "", "dataset manifest (TOML)")
	f.DurationVar(&replayFlags.interval, "interval", -1, "delay between frames, 0 runs back to back (defaults to frameInterval)")
	f.StringVar(&replayFlags.record, "record", "", "write the polled frames to this JSON Lines file")
	f.IntVar(&replayFlags.maxErrors, "max-errors", 0, "stop after this many consecutive failed frames (0 never stops)")
	f.StringVar(&replayFlags.storage, "storage", "", "override storage.type")
	f.BoolVar(&replayFlags.simulate, "simulate", false, "mark every enabled trackable tracked before the first frame")
	f.IntVar(&replayFlags.center, "world-center", core.NoAnchor, "explicit world center trackable id (defaults to worldCenter)")
}

// worldCenterID is the --world-center flag when given, else the worldCenter
// config key.
func worldCenterID(cmd *cobra.Command) int {
	if f := cmd.Flags().Lookup("world-center"); f != nil && f.Changed {
		return replayFlags.center
	}
	return config.GetInt("worldCenter")
}

// sinks are the optional consumers of scene notifications.
type sinks struct {
	influx *influx.Manager
	status *status.Server
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode, err := core.ParseWorldCenterMode(firstNonEmpty(replayFlags.mode, config.GetString("worldCenterMode")))
	if err != nil {
		return err
	}
	d, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	sc, err := newScene(sceneSetup{
		Mode:        mode,
		Manifest:    firstNonEmpty(replayFlags.manifest, config.GetString("manifest")),
		Publisher:   d,
		Logger:      LogManager.Sampled,
		WorldCenter: worldCenterID(cmd),
	}, Logger)
	if err != nil {
		d.Close()
		return err
	}

	geoRef, err := geoReference()
	if err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	if replayFlags.storage != "" {
		storageCfg.Type = replayFlags.storage
	}
	store, err := createStorageBackend(storageCfg, config.GetDBConfig(), geoRef, SessionStartTime, Logger)
	if err != nil {
		return err
	}
	if err := store.backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	name := firstNonEmpty(replayFlags.name, sessionName(args[0]))
	sess := core.NewSession(name, firstNonEmpty(replayFlags.tag, config.GetString("defaultTag")), mode)
	sess.StartTime = SessionStartTime
	if err := store.backend.StartSession(sess); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to start session: %w", err)
	}
	SessionContext.Set(sess)
	Logger.Info().Str("session", sess.ID.String()).Str("storage", storageCfg.Type).Msg("Session started")

	workers := worker.NewManager(store.backend, Logger)
	workers.RegisterHandlers(d)
	if err := workers.AddTrackables(registeredTrackables(sc)); err != nil {
		Logger.Warn().Err(err).Msg("Failed to record trackables")
	}
	d.Register(core.EventFrameReconcile, func(e dispatcher.Event) error {
		SessionContext.SetFrame(e.Frame)
		return nil
	})

	out := startSinks(ctx, d, sc)

	deps := monitor.Dependencies{
		Scene:      sc,
		Session:    SessionContext,
		Writes:     workers,
		StatusFile: filepath.Join(config.GetString("logsDir"), AppName+".status.json"),
		Interval:   time.Second,
		Logger:     Logger,
	}
	if store.sql != nil {
		deps.Recorder = store.sql
	}
	if out.influx != nil {
		deps.Points = func(session string, s model.FrameStat) error {
			return out.influx.WritePoint(influx.PerformanceBucket, influx.PerformancePoint(session, s))
		}
	}
	mon := monitor.NewService(deps)
	mon.Start()

	frames, runErr := runFrames(ctx, args[0], sc)

	mon.Stop()
	d.Close()
	ended := SessionContext.End(time.Now())
	Logger.Info().Uint64("frames", frames).Dur("duration", ended.EndTime.Sub(ended.StartTime)).Msg("Frame loop finished")

	errs := []error{runErr}
	if err := store.backend.EndSession(); err != nil {
		errs = append(errs, fmt.Errorf("failed to end session: %w", err))
	}
	if err := store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	out.close()

	if u, ok := store.backend.(storage.Uploadable); ok && u.GetExportedFilePath() != "" {
		uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		defer cancel()
		errs = append(errs, upload(uploadCtx, u))
	}

	// a cancelled run still saved everything it reconciled
	err = errors.Join(errs...)
	if errors.Is(err, context.Canceled) {
		Logger.Warn().Msg("Interrupted")
		return nil
	}
	return err
}

func runFrames(ctx context.Context, path string, sc *scene.Context) (uint64, error) {
	replay, err := tracker.OpenReplay(path)
	if err != nil {
		return 0, err
	}
	defer replay.Close()

	var t tracker.Tracker = replay
	if replayFlags.record != "" {
		f, err := os.Create(replayFlags.record)
		if err != nil {
			return 0, fmt.Errorf("failed to create record file: %w", err)
		}
		defer f.Close()
		t = tracker.Tee{Tracker: replay, W: tracker.NewWriter(f)}
	}

	if replayFlags.simulate {
		changes := sc.SimulateAllTracked()
		Logger.Info().Int("trackables", len(changes)).Msg("Simulated tracking for all enabled trackables")
	}

	loop := frameloop.New(t, sc, Logger)
	loop.MaxConsecutiveErrors = replayFlags.maxErrors
	return loop.Run(ctx, interval(replayFlags.interval))
}

func interval(flag time.Duration) time.Duration {
	if flag < 0 {
		return config.GetDuration("frameInterval")
	}
	return flag
}

// startSinks connects InfluxDB and the status server when enabled. A sink
// that fails to start is logged and skipped.
func startSinks(ctx context.Context, d *dispatcher.Dispatcher, sc *scene.Context) sinks {
	var out sinks

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		backup := filepath.Join(config.GetString("logsDir"),
			fmt.Sprintf("%s_influx_%s.gz", AppName, SessionStartTime.Format("20060102_150405")))
		m := influx.NewManager(influxCfg, Logger, backup)
		if err := m.Connect(ctx); err != nil {
			Logger.Error().Err(err).Msg("Failed to set up InfluxDB")
		} else {
			m.RegisterHandlers(d, SessionContext.Name)
			out.influx = m
		}
	}

	statusCfg := config.GetStatusConfig()
	if statusCfg.Enabled {
		srv, err := status.NewServer(statusCfg.Address, sc, Logger)
		if err == nil {
			if _, err = srv.Start(); err == nil {
				out.status = srv
			}
		}
		if err != nil {
			Logger.Error().Err(err).Msg("Failed to start status server")
		}
	}
	return out
}

func (s sinks) close() {
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			Logger.Warn().Err(err).Msg("Failed to close InfluxDB")
		}
	}
	if s.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.status.Shutdown(ctx); err != nil {
			Logger.Warn().Err(err).Msg("Failed to shut down status server")
		}
	}
}

// upload sends the exported session to the API server and S3, whichever
// are configured.
func upload(ctx context.Context, u storage.Uploadable) error {
	path := u.GetExportedFilePath()
	meta := u.GetExportMetadata()

	var uploaders []api.Uploader
	if apiCfg := config.GetAPIConfig(); apiCfg.ServerURL != "" {
		uploaders = append(uploaders, api.New(apiCfg.ServerURL, apiCfg.APIKey))
	}
	if s3Cfg := config.GetS3Config(); s3Cfg.Enabled {
		s3u, err := api.NewS3Uploader(ctx, s3Cfg)
		if err != nil {
			return fmt.Errorf("failed to create S3 uploader: %w", err)
		}
		uploaders = append(uploaders, s3u)
	}

	var errs []error
	for _, up := range uploaders {
		if err := up.Upload(ctx, path, meta); err != nil {
			Logger.Error().Err(err).Str("file", path).Msg("Upload failed, export kept on disk")
			errs = append(errs, err)
			continue
		}
		Logger.Info().Str("file", path).Str("session", meta.SessionName).Msg("Session uploaded")
	}
	return errors.Join(errs...)
}

func geoReference() (*geo.Reference, error) {
	geoCfg := config.GetGeoConfig()
	if !geoCfg.Enabled {
		return nil, nil
	}
	ref, err := geo.NewReference(geoCfg.Lon, geoCfg.Lat, geoCfg.Alt)
	if err != nil {
		return nil, fmt.Errorf("invalid geo origin: %w", err)
	}
	return ref, nil
}

func registeredTrackables(sc *scene.Context) []core.Trackable {
	views := sc.Registry().Snapshot()
	out := make([]core.Trackable, 0, len(views))
	for _, v := range views {
		out = append(out, core.Trackable{ID: v.ID, Name: v.Name, Kind: v.Kind, DataSet: v.DataSet})
	}
	return out
}

// sessionName derives a session name from the frame file: "runs/lab.jsonl" gives "lab".
func sessionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
