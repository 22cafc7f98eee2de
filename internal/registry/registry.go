// Package registry tracks every trackable the host scene knows about,
// keyed by the integer id the tracker reports.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arscene/statesync/pkg/core"
)

var (
	// ErrNotFound is returned for ids that are not registered.
	ErrNotFound = errors.New("trackable not registered")
	// ErrInvalidState is returned when an operation is not allowed in the record's current state.
	ErrInvalidState = errors.New("invalid trackable state")
)

// Registry is the set of registered trackables. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	records map[int]*Record
}

// Record is the handle to one registered trackable. Reads go through the
// owning registry's lock; writes go through Registry methods.
type Record struct {
	reg *Registry

	id         int
	name       string
	kind       core.Kind
	dataSet    string
	status     core.Status
	enabled    bool
	reported   bool
	removed    bool
	positioned bool
	cameraPose core.Pose
	worldPose  core.Pose
}

// RecordView is a read-only copy of a record.
type RecordView struct {
	ID         int         `json:"id"`
	Name       string      `json:"name,omitempty"`
	Kind       core.Kind   `json:"kind,omitempty"`
	DataSet    string      `json:"dataSet,omitempty"`
	Status     core.Status `json:"status"`
	Enabled    bool        `json:"enabled"`
	Positioned bool        `json:"positioned"`
	CameraPose core.Pose   `json:"cameraPose"`
	WorldPose  core.Pose   `json:"worldPose"`
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[int]*Record),
	}
}

// Register adds id with the given initial status, enabled. Registering an
// id twice returns the existing record untouched and created=false.
func (r *Registry) Register(id int, initial core.Status) (rec *Record, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[id]; ok {
		return existing, false
	}
	rec = &Record{
		reg:       r,
		id:        id,
		status:    initial,
		enabled:   true,
		worldPose: core.IdentityPose(),
	}
	r.records[id] = rec
	return rec, true
}

// Unregister removes id. Unknown ids are a no-op returning false.
func (r *Registry) Unregister(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return false
	}
	rec.removed = true
	delete(r.records, id)
	return true
}

// Get returns the record for id.
func (r *Registry) Get(id int) (*Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id int) bool {
	_, ok := r.Get(id)
	return ok
}

// Len returns the number of registered trackables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Enabled reports whether id is registered and enabled.
func (r *Registry) Enabled(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return ok && rec.enabled
}

// SetEnabled toggles participation in per-frame updates. Status is left as is.
func (r *Registry) SetEnabled(id int, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("set enabled %d: %w", id, ErrNotFound)
	}
	rec.enabled = enabled
	return nil
}

// Describe sets the descriptive metadata of a record. Only allowed until
// the tracker has reported the trackable for the first time.
func (r *Registry) Describe(id int, name string, kind core.Kind, dataSet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("describe %d: %w", id, ErrNotFound)
	}
	if rec.reported {
		return fmt.Errorf("describe %d after first tracker report: %w", id, ErrInvalidState)
	}
	rec.name = name
	rec.kind = kind
	rec.dataSet = dataSet
	return nil
}

// SetStatus stores the status reported for this frame and returns the
// previous one. Marks the record as reported.
func (r *Registry) SetStatus(id int, status core.Status) (previous core.Status, changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return core.StatusUnknown, false, fmt.Errorf("set status %d: %w", id, ErrNotFound)
	}
	previous = rec.status
	rec.status = status
	rec.reported = true
	return previous, previous != status, nil
}

// SetCameraPose stores the latest viewer-relative pose without positioning.
func (r *Registry) SetCameraPose(id int, rel core.Pose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("set camera pose %d: %w", id, ErrNotFound)
	}
	rec.cameraPose = rel
	return nil
}

// SetWorldPose stores the world transform computed for this frame.
func (r *Registry) SetWorldPose(id int, world core.Pose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("set world pose %d: %w", id, ErrNotFound)
	}
	rec.worldPose = world
	rec.positioned = true
	return nil
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Snapshot returns copies of all records ordered by id.
func (r *Registry) Snapshot() []RecordView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	views := make([]RecordView, 0, len(r.records))
	for _, rec := range r.records {
		views = append(views, rec.view())
	}
	slices.SortFunc(views, func(a, b RecordView) int { return a.ID - b.ID })
	return views
}

// ForEach calls fn for every record in id order. fn receives a copy and
// may call back into the registry.
func (r *Registry) ForEach(fn func(RecordView)) {
	for _, v := range r.Snapshot() {
		fn(v)
	}
}

// ForEachEnabled is ForEach restricted to enabled records.
func (r *Registry) ForEachEnabled(fn func(RecordView)) {
	for _, v := range r.Snapshot() {
		if v.Enabled {
			fn(v)
		}
	}
}

// InDataSet returns the ids of records loaded from dataSet, ascending.
func (r *Registry) InDataSet(dataSet string) []int {
	var ids []int
	for _, v := range r.Snapshot() {
		if v.DataSet == dataSet {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

func (rec *Record) view() RecordView {
	return RecordView{
		ID:         rec.id,
		Name:       rec.name,
		Kind:       rec.kind,
		DataSet:    rec.dataSet,
		Status:     rec.status,
		Enabled:    rec.enabled,
		Positioned: rec.positioned,
		CameraPose: rec.cameraPose,
		WorldPose:  rec.worldPose,
	}
}

// View returns a copy of the record's current state.
func (rec *Record) View() RecordView {
	rec.reg.mu.RLock()
	defer rec.reg.mu.RUnlock()
	return rec.view()
}

// ID returns the tracker id.
func (rec *Record) ID() int { return rec.id }

// Status returns the last propagated status.
func (rec *Record) Status() core.Status {
	rec.reg.mu.RLock()
	defer rec.reg.mu.RUnlock()
	return rec.status
}

// Enabled reports whether the record participates in per-frame updates.
func (rec *Record) Enabled() bool {
	rec.reg.mu.RLock()
	defer rec.reg.mu.RUnlock()
	return rec.enabled
}

// WorldPose returns the last world transform.
func (rec *Record) WorldPose() core.Pose {
	rec.reg.mu.RLock()
	defer rec.reg.mu.RUnlock()
	return rec.worldPose
}

// Registered is false once the record has been unregistered.
func (rec *Record) Registered() bool {
	rec.reg.mu.RLock()
	defer rec.reg.mu.RUnlock()
	return !rec.removed
}
