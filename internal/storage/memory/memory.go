package memory

import (
	"sync"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/pkg/core"
)

// TrackableRecord groups a trackable with all its time-series data
type TrackableRecord struct {
	Trackable core.Trackable
	Poses     []core.PoseUpdate
	Statuses  []core.StatusChange
}

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	trackables map[int]*TrackableRecord // keyed by trackable id
	viewer     []core.PoseUpdate
	buttons    []core.ButtonEvent
	anchors    []core.AnchorChange
	lastFrame  uint64

	lastExportPath string
	lastExportMeta core.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:        cfg,
		trackables: make(map[int]*TrackableRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(session *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = session

	// Reset all collections
	b.trackables = make(map[int]*TrackableRecord)
	b.viewer = nil
	b.buttons = nil
	b.anchors = nil
	b.lastFrame = 0

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	if b.session.EndTime.IsZero() {
		b.session.EndTime = timeNow()
	}
	return b.exportJSON()
}

// AddTrackable registers a trackable; a second call updates its description.
func (b *Backend) AddTrackable(t core.Trackable) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(t.ID).Trackable = t
	return nil
}

// record returns the record for id, creating a bare one if needed.
func (b *Backend) record(id int) *TrackableRecord {
	r, ok := b.trackables[id]
	if !ok {
		r = &TrackableRecord{Trackable: core.Trackable{ID: id}}
		b.trackables[id] = r
	}
	return r
}

// GetTrackable looks up a trackable by id
func (b *Backend) GetTrackable(id int) (*core.Trackable, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if r, ok := b.trackables[id]; ok {
		t := r.Trackable
		return &t, true
	}
	return nil, false
}

// RecordPose records a world pose; ViewerID goes to the viewer track.
func (b *Backend) RecordPose(p *core.PoseUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seen(p.Frame)
	if p.ID == core.ViewerID {
		b.viewer = append(b.viewer, *p)
		return nil
	}
	r := b.record(p.ID)
	r.Poses = append(r.Poses, *p)
	return nil
}

// RecordStatusChange records a status transition
func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seen(c.Frame)
	r := b.record(c.ID)
	r.Statuses = append(r.Statuses, *c)
	return nil
}

// RecordButtonEvent records a button edge
func (b *Backend) RecordButtonEvent(e *core.ButtonEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seen(e.Frame)
	b.buttons = append(b.buttons, *e)
	return nil
}

// RecordAnchorChange records an anchor switch
func (b *Backend) RecordAnchorChange(a *core.AnchorChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seen(a.Frame)
	b.anchors = append(b.anchors, *a)
	return nil
}

func (b *Backend) seen(frame uint64) {
	if frame > b.lastFrame {
		b.lastFrame = frame
	}
}

// GetExportedFilePath returns the path of the last export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns metadata for the last export.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMeta
}
