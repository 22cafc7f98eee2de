// Package sqlstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine. It serves both
// Postgres and SQLite; an in-memory SQLite database can be dumped to disk
// periodically via VACUUM INTO.
package sqlstorage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arscene/statesync/internal/database"
	"github.com/arscene/statesync/internal/geo"
	"github.com/arscene/statesync/internal/model"
	"github.com/arscene/statesync/internal/queue"
	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoSession is returned when trackables are added before StartSession.
var ErrNoSession = errors.New("no active session")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Geo    *geo.Reference // optional; fills PoseSample.GeoPosition
	Logger zerolog.Logger
}

// Config tunes batching and disk dumps.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	DumpInterval  time.Duration
	DumpPath      string // Path for periodic VACUUM INTO dumps (in-memory SQLite only)
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Poses    *queue.Queue[model.PoseSample]
	Statuses *queue.Queue[model.StatusChange]
	Buttons  *queue.Queue[model.ButtonEvent]
	Anchors  *queue.Queue[model.AnchorChange]
}

func newQueues() *queues {
	return &queues{
		Poses:    queue.New[model.PoseSample](),
		Statuses: queue.New[model.StatusChange](),
		Buttons:  queue.New[model.ButtonEvent](),
		Anchors:  queue.New[model.AnchorChange](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	cfg    Config
	queues *queues

	sessionID atomic.Uint64
	lastFrame atomic.Uint64
	// last flush duration in microseconds
	lastWrite atomic.Int64

	trajMu       sync.Mutex
	trajectories map[int][]core.Vec3

	flushMu  sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new GORM storage backend.
func New(deps Dependencies, cfg Config) *Backend {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Backend{
		deps:         deps,
		cfg:          cfg,
		queues:       newQueues(),
		trajectories: make(map[int][]core.Vec3),
	}
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("sql backend: no database")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.wg.Add(1)
	go b.writeLoop()

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the background goroutines and flushes what is left.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.wg.Wait()
		b.stopChan = nil
	}
	if b.deps.DB == nil {
		return nil
	}
	return b.Flush()
}

// StartSession inserts the session row.
func (b *Backend) StartSession(session *core.Session) error {
	cfg, err := json.Marshal(map[string]any{
		"worldCenterMode": session.WorldCenterMode,
		"batchSize":       b.cfg.BatchSize,
		"flushInterval":   b.cfg.FlushInterval.String(),
		"geoReference":    b.deps.Geo != nil,
	})
	if err != nil {
		return fmt.Errorf("marshal session config: %w", err)
	}

	row := model.Session{
		UUID:            session.ID.String(),
		Name:            session.Name,
		Tag:             session.Tag,
		WorldCenterMode: string(session.WorldCenterMode),
		StartTime:       session.StartTime,
		Config:          datatypes.JSON(cfg),
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	b.sessionID.Store(uint64(row.ID))
	b.lastFrame.Store(0)
	b.trajMu.Lock()
	b.trajectories = make(map[int][]core.Vec3)
	b.trajMu.Unlock()

	b.deps.Logger.Info().Uint("sessionId", row.ID).Str("uuid", row.UUID).Msg("Session started")
	return nil
}

// SessionID returns the database id of the active session, 0 if none.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// EndSession flushes all queues, stores trajectories and closes the session row.
func (b *Backend) EndSession() error {
	sid := b.SessionID()
	if sid == 0 {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}

	b.trajMu.Lock()
	trajectories := b.trajectories
	b.trajectories = make(map[int][]core.Vec3)
	b.trajMu.Unlock()

	ids := make([]int, 0, len(trajectories))
	for id := range trajectories {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		points := trajectories[id]
		ls, err := geo.Trajectory(points)
		if err != nil {
			// a trackable that never moved has no trajectory
			continue
		}
		err = b.deps.DB.Model(&model.Trackable{}).
			Where("session_id = ? AND trackable_id = ?", sid, id).
			Updates(map[string]any{"trajectory": ls.AsGeometry(), "samples": len(points)}).Error
		if err != nil {
			return fmt.Errorf("failed to store trajectory of %d: %w", id, err)
		}
	}

	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", sid).Updates(map[string]any{
		"end_time": sql.NullTime{Time: time.Now(), Valid: true},
		"frames":   b.lastFrame.Load(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}

	b.sessionID.Store(0)
	b.deps.Logger.Info().Uint("sessionId", sid).Int("trajectories", len(ids)).Msg("Session ended")
	return nil
}

// AddTrackable upserts the trackable row synchronously. Trackables are
// low-volume and later trajectory updates need the row to exist.
func (b *Backend) AddTrackable(t core.Trackable) error {
	sid := b.SessionID()
	if sid == 0 {
		return ErrNoSession
	}
	row := model.Trackable{
		SessionID:   sid,
		TrackableID: t.ID,
		Name:        t.Name,
		Kind:        string(t.Kind),
		DataSet:     t.DataSet,
	}
	err := b.deps.DB.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "trackable_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "kind", "data_set", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to insert trackable %d: %w", t.ID, err)
	}
	return nil
}

// RecordPose converts and queues a pose sample.
func (b *Backend) RecordPose(p *core.PoseUpdate) error {
	b.seen(p.Frame)
	pos, rot := p.World.Position, p.World.Orientation
	row := model.PoseSample{
		Time:         time.Now(),
		CaptureFrame: p.Frame,
		TrackableID:  p.ID,
		Position:     geo.ScenePoint(pos),
		Elevation:    pos.Z,
		Orientation:  model.Orientation{W: rot.W, X: rot.X, Y: rot.Y, Z: rot.Z},
	}
	if b.deps.Geo != nil {
		row.GeoPosition = b.deps.Geo.Point4326(pos)
	}
	b.queues.Poses.Push(row)

	if p.ID != core.ViewerID {
		b.trajMu.Lock()
		b.trajectories[p.ID] = append(b.trajectories[p.ID], pos)
		b.trajMu.Unlock()
	}
	return nil
}

// RecordStatusChange converts and queues a status change.
func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	b.seen(c.Frame)
	b.queues.Statuses.Push(model.StatusChange{
		Time:         time.Now(),
		CaptureFrame: c.Frame,
		TrackableID:  c.ID,
		Previous:     c.Previous.String(),
		Current:      c.Current.String(),
	})
	return nil
}

// RecordButtonEvent converts and queues a button edge.
func (b *Backend) RecordButtonEvent(e *core.ButtonEvent) error {
	b.seen(e.Frame)
	b.queues.Buttons.Push(model.ButtonEvent{
		Time:         time.Now(),
		CaptureFrame: e.Frame,
		ButtonID:     e.ButtonID,
		OwnerID:      e.OwnerID,
		Name:         e.Name,
		Pressed:      e.Pressed,
		Synthetic:    e.Synthetic,
	})
	return nil
}

// RecordAnchorChange converts and queues an anchor change.
func (b *Backend) RecordAnchorChange(a *core.AnchorChange) error {
	b.seen(a.Frame)
	b.queues.Anchors.Push(model.AnchorChange{
		Time:         time.Now(),
		CaptureFrame: a.Frame,
		Previous:     a.Previous,
		Current:      a.Current,
	})
	return nil
}

// RecordFrameStat inserts a health sample synchronously.
func (b *Backend) RecordFrameStat(s model.FrameStat) error {
	sid := b.SessionID()
	if sid == 0 {
		return ErrNoSession
	}
	s.SessionID = sid
	return b.deps.DB.Omit(clause.Associations).Create(&s).Error
}

// QueueLengths reports the pending rows per queue.
func (b *Backend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{
		PoseSamples:   b.queues.Poses.Len(),
		StatusChanges: b.queues.Statuses.Len(),
		ButtonEvents:  b.queues.Buttons.Len(),
		AnchorChanges: b.queues.Anchors.Len(),
	}
}

// LastWriteDuration returns how long the last flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load()) * time.Microsecond
}

func (b *Backend) seen(frame uint64) {
	for {
		cur := b.lastFrame.Load()
		if frame <= cur || b.lastFrame.CompareAndSwap(cur, frame) {
			return
		}
	}
}

// Flush drains every queue into the database.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	sid := b.SessionID()
	db, n := b.deps.DB, b.cfg.BatchSize

	err := errors.Join(
		writeQueue(db, b.queues.Anchors, n, func(items []model.AnchorChange) {
			for i := range items {
				items[i].SessionID = sid
			}
		}),
		writeQueue(db, b.queues.Poses, n, func(items []model.PoseSample) {
			for i := range items {
				items[i].SessionID = sid
			}
		}),
		writeQueue(db, b.queues.Statuses, n, func(items []model.StatusChange) {
			for i := range items {
				items[i].SessionID = sid
			}
		}),
		writeQueue(db, b.queues.Buttons, n, func(items []model.ButtonEvent) {
			for i := range items {
				items[i].SessionID = sid
			}
		}),
	)
	b.lastWrite.Store(time.Since(start).Microseconds())
	return err
}

// writeQueue writes all items from a queue to the database, one transaction
// per batch. A failed batch is pushed back and the error returned.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], batch int, stamp func([]T)) error {
	for q.Len() > 0 {
		items := q.Drain(batch)
		if len(items) == 0 {
			return nil
		}
		stamp(items)
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Omit(clause.Associations).Create(&items).Error
		})
		if err != nil {
			q.Push(items...)
			var zero T
			return fmt.Errorf("error creating %T rows: %w", zero, err)
		}
	}
	return nil
}

// writeLoop periodically drains queues into the DB.
func (b *Backend) writeLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if b.SessionID() == 0 {
				continue
			}
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("DB write failed")
			}
		}
	}
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.VacuumInto(b.deps.DB, b.cfg.DumpPath); err != nil {
				b.deps.Logger.Error().Err(err).Msg("Error dumping to disk")
			} else {
				b.deps.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped to disk")
			}
		}
	}
}
