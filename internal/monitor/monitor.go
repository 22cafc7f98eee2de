// Package monitor samples process health once per interval and writes it to
// a status file, the database and InfluxDB.
package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/arscene/statesync/internal/model"
	"github.com/arscene/statesync/internal/scene"
	"github.com/arscene/statesync/internal/session"
	"github.com/rs/zerolog"
)

// SnapshotSource provides the reconciliation state.
type SnapshotSource interface {
	Snapshot() scene.Snapshot
}

// WriteStats exposes the storage backend's write queues.
type WriteStats interface {
	WriteStats() (model.WriteQueueLengths, time.Duration, bool)
}

// StatRecorder persists a sample, e.g. the SQL backend.
type StatRecorder interface {
	RecordFrameStat(s model.FrameStat) error
}

// PointWriter forwards a sample to a metrics sink, e.g. InfluxDB.
type PointWriter func(session string, s model.FrameStat) error

// Dependencies holds all dependencies for the monitor service. Everything
// except Scene and Session is optional.
type Dependencies struct {
	Scene      SnapshotSource
	Session    *session.Context
	Writes     WriteStats
	Recorder   StatRecorder
	Points     PointWriter
	StatusFile string
	Interval   time.Duration
	Logger     zerolog.Logger
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Sample builds the current health sample.
func (s *Service) Sample() model.FrameStat {
	snap := s.deps.Scene.Snapshot()
	stat := model.FrameStat{
		Time:             time.Now(),
		CaptureFrame:     snap.Frame,
		Anchor:           snap.Anchor,
		FoundQueueLength: len(snap.FoundQueue),
		Registered:       len(snap.Trackables),
	}
	if s.deps.Writes != nil {
		if lengths, last, ok := s.deps.Writes.WriteStats(); ok {
			stat.WriteQueueLengths = lengths
			stat.LastWriteDuration = float32(last.Microseconds()) / 1000
		}
	}
	return stat
}

// Tick takes one sample and writes it everywhere configured. It does nothing
// while no session is active.
func (s *Service) Tick() error {
	name := s.deps.Session.Name()
	if name == "" {
		return nil
	}
	stat := s.Sample()

	var errs []error
	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, stat); err != nil {
			errs = append(errs, err)
		}
	}
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordFrameStat(stat); err != nil {
			errs = append(errs, fmt.Errorf("error writing frame stat: %w", err))
		}
	}
	if s.deps.Points != nil {
		if err := s.deps.Points(name, stat); err != nil {
			errs = append(errs, fmt.Errorf("error writing frame stat point: %w", err))
		}
	}
	return errors.Join(errs...)
}

func writeStatusFile(path string, stat model.FrameStat) error {
	data, err := json.MarshalIndent(stat, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.run(s.stopChan, s.done)
}

func (s *Service) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	log := s.deps.Logger
	log.Debug().Dur("interval", s.deps.Interval).Msg("Starting status monitor")

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				log.Error().Err(err).Msg("Status monitor sample failed")
			}
		}
	}
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
