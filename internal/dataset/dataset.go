// Package dataset groups trackables into loadable units that are enabled
// and disabled together.
package dataset

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arscene/statesync/internal/registry"
	"github.com/arscene/statesync/internal/vbutton"
	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound is returned for unknown dataset names.
	ErrNotFound = errors.New("dataset not found")
	// ErrExists is returned when loading a name twice.
	ErrExists = errors.New("dataset already loaded")
	// ErrInvalidState is returned when destroying the trackables of an active dataset.
	ErrInvalidState = registry.ErrInvalidState
)

// Scene is the part of the reconciliation context the manager drives.
type Scene interface {
	RegisterTrackable(t core.Trackable, enabled bool) (*registry.Record, error)
	Unregister(id int) bool
	SetEnabled(id int, enabled bool) error
	SetWorldCenter(id int) error
	PlaceTrackable(id int, world core.Pose) error
	Registry() *registry.Registry
	Buttons() *vbutton.Set
	SetEditLock(fn vbutton.LockFunc)
}

// DataSet is a named group of trackables and their virtual buttons.
type DataSet struct {
	Name       string           `json:"name"`
	Path       string           `json:"path,omitempty"`
	Active     bool             `json:"active"`
	Trackables []core.Trackable `json:"trackables"`
	Buttons    []vbutton.Button `json:"buttons,omitempty"`
}

// Manager owns the dataset lifecycle.
type Manager struct {
	mu     sync.RWMutex
	sets   map[string]*DataSet
	owners map[int]string

	scene Scene
	log   zerolog.Logger
}

// NewManager creates a manager and installs its activity check as the
// scene's virtual button edit lock.
func NewManager(scene Scene, log zerolog.Logger) *Manager {
	m := &Manager{
		sets:   make(map[string]*DataSet),
		owners: make(map[int]string),
		scene:  scene,
		log:    log,
	}
	scene.SetEditLock(m.ActiveFor)
	return m
}

// Load registers the trackables of a new, inactive dataset. Its trackables
// stay disabled until Activate. A trackable id already owned by another
// dataset is rejected with ErrExists before anything is registered, and a
// load that fails partway is rolled back.
func (m *Manager) Load(name string, trackables []core.Trackable, buttons []vbutton.Button) error {
	for _, b := range buttons {
		if err := b.Area.Validate(); err != nil {
			return fmt.Errorf("load %q: button %d: %w", name, b.ID, err)
		}
	}

	m.mu.Lock()
	if _, ok := m.sets[name]; ok {
		m.mu.Unlock()
		return fmt.Errorf("load %q: %w", name, ErrExists)
	}
	claimed := make(map[int]bool, len(trackables))
	for _, t := range trackables {
		if owner, ok := m.owners[t.ID]; ok {
			m.mu.Unlock()
			return fmt.Errorf("load %q: trackable %d owned by dataset %q: %w", name, t.ID, owner, ErrExists)
		}
		if claimed[t.ID] {
			m.mu.Unlock()
			return fmt.Errorf("load %q: trackable %d listed twice: %w", name, t.ID, ErrExists)
		}
		claimed[t.ID] = true
	}
	ds := &DataSet{Name: name}
	m.sets[name] = ds
	for id := range claimed {
		m.owners[id] = name
	}
	m.mu.Unlock()

	reg := m.scene.Registry()
	var (
		created []int
		added   []int
		prior   = make(map[int]registry.RecordView)
	)
	rollback := func(err error) error {
		for _, id := range added {
			_ = m.scene.Buttons().Remove(id)
		}
		for _, id := range created {
			m.scene.Unregister(id)
		}
		for id, v := range prior {
			_ = reg.Describe(id, v.Name, v.Kind, v.DataSet)
			_ = m.scene.SetEnabled(id, v.Enabled)
		}
		m.mu.Lock()
		delete(m.sets, name)
		for id := range claimed {
			delete(m.owners, id)
		}
		m.mu.Unlock()
		return err
	}

	for _, t := range trackables {
		t.DataSet = name
		if rec, ok := reg.Get(t.ID); ok {
			prior[t.ID] = rec.View()
		} else {
			created = append(created, t.ID)
		}
		if _, err := m.scene.RegisterTrackable(t, false); err != nil {
			return rollback(fmt.Errorf("load %q: trackable %d: %w", name, t.ID, err))
		}
		m.mu.Lock()
		ds.Trackables = append(ds.Trackables, t)
		m.mu.Unlock()
	}

	for _, b := range buttons {
		if err := m.scene.Buttons().Add(b); err != nil {
			return rollback(fmt.Errorf("load %q: button %d: %w", name, b.ID, err))
		}
		added = append(added, b.ID)
		m.mu.Lock()
		ds.Buttons = append(ds.Buttons, b)
		m.mu.Unlock()
	}

	m.log.Info().Str("dataset", name).Int("trackables", len(trackables)).Int("buttons", len(buttons)).
		Msg("Dataset loaded")
	return nil
}

// Activate enables every trackable of the dataset. Activating twice is a no-op.
func (m *Manager) Activate(name string) error {
	ids, err := m.setActive(name, true)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	for _, id := range ids {
		if err := m.scene.SetEnabled(id, true); err != nil {
			return fmt.Errorf("activate %q: %w", name, err)
		}
	}
	m.log.Info().Str("dataset", name).Msg("Dataset activated")
	return nil
}

// Deactivate disables every trackable of the dataset without destroying it.
// Pressed buttons of those trackables are released.
func (m *Manager) Deactivate(name string) error {
	ids, err := m.setActive(name, false)
	if err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	for _, id := range ids {
		if err := m.scene.SetEnabled(id, false); err != nil {
			return fmt.Errorf("deactivate %q: %w", name, err)
		}
	}
	m.log.Info().Str("dataset", name).Msg("Dataset deactivated")
	return nil
}

func (m *Manager) setActive(name string, active bool) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.sets[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	ds.Active = active
	return trackableIDs(ds), nil
}

// DestroyTrackables unregisters every trackable of an inactive dataset.
// The dataset itself stays loaded, empty.
func (m *Manager) DestroyTrackables(name string) (int, error) {
	m.mu.Lock()
	ds, ok := m.sets[name]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("destroy trackables: %q: %w", name, ErrNotFound)
	}
	if ds.Active {
		m.mu.Unlock()
		return 0, fmt.Errorf("destroy trackables of active dataset %q: %w", name, ErrInvalidState)
	}
	ids := trackableIDs(ds)
	ds.Trackables = nil
	ds.Buttons = nil
	for _, id := range ids {
		delete(m.owners, id)
	}
	m.mu.Unlock()

	n := 0
	for _, id := range ids {
		if m.scene.Unregister(id) {
			n++
		}
	}
	m.log.Info().Str("dataset", name).Int("destroyed", n).Msg("Dataset trackables destroyed")
	return n, nil
}

// Destroy removes the trackables of an inactive dataset and forgets it.
func (m *Manager) Destroy(name string) error {
	if _, err := m.DestroyTrackables(name); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sets, name)
	m.mu.Unlock()
	return nil
}

// IsActive reports whether name is loaded and active.
func (m *Manager) IsActive(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.sets[name]
	return ok && ds.Active
}

// ActiveFor reports whether trackableID belongs to an active dataset.
func (m *Manager) ActiveFor(trackableID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.owners[trackableID]
	if !ok {
		return false
	}
	return m.sets[name].Active
}

// Get returns a copy of a dataset.
func (m *Manager) Get(name string) (DataSet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.sets[name]
	if !ok {
		return DataSet{}, false
	}
	cp := *ds
	cp.Trackables = slices.Clone(ds.Trackables)
	cp.Buttons = slices.Clone(ds.Buttons)
	return cp, true
}

// Names returns the loaded dataset names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.sets))
	for name := range m.sets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func trackableIDs(ds *DataSet) []int {
	ids := make([]int, 0, len(ds.Trackables))
	for _, t := range ds.Trackables {
		ids = append(ids, t.ID)
	}
	return ids
}
