// Package vbutton turns per-frame virtual button results into press and
// release edges.
package vbutton

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/arscene/statesync/pkg/core"
)

var (
	// ErrNotFound is returned for unknown button ids.
	ErrNotFound = errors.New("virtual button not found")
	// ErrInvalidState is returned when a button is edited while its owner's dataset is active.
	ErrInvalidState = errors.New("virtual button owner dataset is active")
	// ErrInvalidArea is returned for degenerate button rectangles.
	ErrInvalidArea = errors.New("invalid virtual button area")
	// ErrExists is returned when adding a button id twice.
	ErrExists = errors.New("virtual button already exists")
)

// Sensitivity controls how readily the tracker reports a press.
type Sensitivity string

const (
	SensitivityHigh   Sensitivity = "high"
	SensitivityMedium Sensitivity = "medium"
	SensitivityLow    Sensitivity = "low"
)

// DefaultSensitivity is used when a button does not name one.
const DefaultSensitivity = SensitivityLow

// ParseSensitivity validates a sensitivity name. Empty means DefaultSensitivity.
func ParseSensitivity(s string) (Sensitivity, error) {
	switch v := Sensitivity(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return DefaultSensitivity, nil
	case SensitivityHigh, SensitivityMedium, SensitivityLow:
		return v, nil
	}
	return "", fmt.Errorf("unknown sensitivity %q", s)
}

// Area is the button rectangle in the owner's target plane.
type Area struct {
	LeftTopX     float64 `json:"leftTopX" toml:"left_top_x"`
	LeftTopY     float64 `json:"leftTopY" toml:"left_top_y"`
	RightBottomX float64 `json:"rightBottomX" toml:"right_bottom_x"`
	RightBottomY float64 `json:"rightBottomY" toml:"right_bottom_y"`
}

// Validate checks left < right and top > bottom.
func (a Area) Validate() error {
	if a.LeftTopX >= a.RightBottomX || a.LeftTopY <= a.RightBottomY {
		return fmt.Errorf("%w: %+v", ErrInvalidArea, a)
	}
	return nil
}

// Button is a virtual button attached to an image target.
type Button struct {
	ID          int         `json:"id"`
	Name        string      `json:"name"`
	OwnerID     int         `json:"ownerId"`
	Area        Area        `json:"area"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Enabled     bool        `json:"enabled"`
}

type state struct {
	Button
	pressed bool
}

// LockFunc reports whether buttons owned by ownerID are frozen for editing.
type LockFunc func(ownerID int) bool

// Set holds every virtual button and its last reported pressed state.
type Set struct {
	mu      sync.Mutex
	buttons map[int]*state
	locked  LockFunc
}

// NewSet creates an empty set. locked may be nil.
func NewSet(locked LockFunc) *Set {
	if locked == nil {
		locked = func(int) bool { return false }
	}
	return &Set{
		buttons: make(map[int]*state),
		locked:  locked,
	}
}

// Add registers a button. It starts released and, unless told otherwise, enabled.
func (s *Set) Add(b Button) error {
	if err := b.Area.Validate(); err != nil {
		return err
	}
	if b.Sensitivity == "" {
		b.Sensitivity = DefaultSensitivity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buttons[b.ID]; ok {
		return fmt.Errorf("add button %d: %w", b.ID, ErrExists)
	}
	if s.locked(b.OwnerID) {
		return fmt.Errorf("add button %d: %w", b.ID, ErrInvalidState)
	}
	s.buttons[b.ID] = &state{Button: b}
	return nil
}

// Remove deletes a button.
func (s *Set) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.editable(id)
	if err != nil {
		return fmt.Errorf("remove button: %w", err)
	}
	delete(s.buttons, st.ID)
	return nil
}

// SetArea replaces the button rectangle.
func (s *Set) SetArea(id int, area Area) error {
	if err := area.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.editable(id)
	if err != nil {
		return fmt.Errorf("set area: %w", err)
	}
	st.Area = area
	return nil
}

// SetSensitivity changes the press sensitivity.
func (s *Set) SetSensitivity(id int, sens Sensitivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.editable(id)
	if err != nil {
		return fmt.Errorf("set sensitivity: %w", err)
	}
	st.Sensitivity = sens
	return nil
}

// SetButtonEnabled toggles whether the tracker evaluates the button.
func (s *Set) SetButtonEnabled(id int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.editable(id)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	st.Enabled = enabled
	return nil
}

// editable must be called with s.mu held.
func (s *Set) editable(id int) (*state, error) {
	st, ok := s.buttons[id]
	if !ok {
		return nil, fmt.Errorf("button %d: %w", id, ErrNotFound)
	}
	if s.locked(st.OwnerID) {
		return nil, fmt.Errorf("button %d: %w", id, ErrInvalidState)
	}
	return st, nil
}

// Get returns a button and whether it is currently pressed.
func (s *Set) Get(id int) (b Button, pressed bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.buttons[id]
	if !ok {
		return Button{}, false, false
	}
	return st.Button, st.pressed, true
}

// Buttons returns all buttons ordered by id.
func (s *Set) Buttons() []Button {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Button, 0, len(s.buttons))
	for _, st := range s.buttons {
		out = append(out, st.Button)
	}
	slices.SortFunc(out, func(a, b Button) int { return a.ID - b.ID })
	return out
}

// Len returns the number of buttons.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buttons)
}

// Update applies one frame of button results. Only enabled buttons whose
// owner is enabled are evaluated; a button absent from results counts as
// released. Events are returned only for state changes, ordered by button id.
func (s *Set) Update(frame uint64, results []core.ButtonResult, ownerEnabled func(ownerID int) bool) []core.ButtonEvent {
	pressed := make(map[int]bool, len(results))
	for _, r := range results {
		pressed[r.ID] = r.Pressed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var events []core.ButtonEvent
	for _, id := range s.sortedIDs() {
		st := s.buttons[id]
		if !st.Enabled || !ownerEnabled(st.OwnerID) {
			continue
		}
		now := pressed[id]
		if now == st.pressed {
			continue
		}
		st.pressed = now
		events = append(events, core.ButtonEvent{
			Frame:    frame,
			ButtonID: id,
			Name:     st.Name,
			OwnerID:  st.OwnerID,
			Pressed:  now,
		})
	}
	return events
}

// OwnerDisabled releases every pressed button of ownerID with exactly one
// synthetic release event each.
func (s *Set) OwnerDisabled(ownerID int, frame uint64) []core.ButtonEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []core.ButtonEvent
	for _, id := range s.sortedIDs() {
		st := s.buttons[id]
		if st.OwnerID != ownerID || !st.pressed {
			continue
		}
		st.pressed = false
		events = append(events, core.ButtonEvent{
			Frame:     frame,
			ButtonID:  id,
			Name:      st.Name,
			OwnerID:   ownerID,
			Pressed:   false,
			Synthetic: true,
		})
	}
	return events
}

// RemoveOwner drops every button owned by ownerID regardless of lock state.
// Used when the owner itself is destroyed.
func (s *Set) RemoveOwner(ownerID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.buttons {
		if st.OwnerID == ownerID {
			delete(s.buttons, id)
			n++
		}
	}
	return n
}

func (s *Set) sortedIDs() []int {
	ids := make([]int, 0, len(s.buttons))
	for id := range s.buttons {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
