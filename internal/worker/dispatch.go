package worker

import (
	"fmt"

	"github.com/arscene/statesync/internal/dispatcher"
	"github.com/arscene/statesync/pkg/core"
)

// RegisterHandlers registers the recording handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Edges are rare and must not be lost - blocking
	d.Register(core.EventAnchorChanged, m.handleAnchorChange, dispatcher.Buffered(100), dispatcher.Blocking(), dispatcher.Logged(), dispatcher.Named("store.anchor"))
	d.Register(core.EventStatusChanged, m.handleStatusChange, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged(), dispatcher.Named("store.status"))
	d.Register(core.EventButtonChanged, m.handleButtonEvent, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged(), dispatcher.Named("store.button"))

	// High-volume pose updates - buffered, dropped when full
	d.Register(core.EventViewerUpdated, m.handlePose, dispatcher.Buffered(10000), dispatcher.Logged(), dispatcher.Named("store.viewer"))
	d.Register(core.EventPoseUpdated, m.handlePose, dispatcher.Buffered(10000), dispatcher.Logged(), dispatcher.Named("store.pose"))
}

func (m *Manager) handlePose(e dispatcher.Event) error {
	p, err := payload[core.PoseUpdate](e.Kind, e.Payload)
	if err != nil {
		return err
	}
	if err := m.backend.RecordPose(&p); err != nil {
		return fmt.Errorf("failed to record pose of %d: %w", p.ID, err)
	}
	return nil
}

func (m *Manager) handleStatusChange(e dispatcher.Event) error {
	c, err := payload[core.StatusChange](e.Kind, e.Payload)
	if err != nil {
		return err
	}
	if err := m.backend.RecordStatusChange(&c); err != nil {
		return fmt.Errorf("failed to record status of %d: %w", c.ID, err)
	}
	return nil
}

func (m *Manager) handleButtonEvent(e dispatcher.Event) error {
	b, err := payload[core.ButtonEvent](e.Kind, e.Payload)
	if err != nil {
		return err
	}
	if err := m.backend.RecordButtonEvent(&b); err != nil {
		return fmt.Errorf("failed to record button %d: %w", b.ButtonID, err)
	}
	return nil
}

func (m *Manager) handleAnchorChange(e dispatcher.Event) error {
	a, err := payload[core.AnchorChange](e.Kind, e.Payload)
	if err != nil {
		return err
	}
	if err := m.backend.RecordAnchorChange(&a); err != nil {
		return fmt.Errorf("failed to record anchor change: %w", err)
	}
	m.log.Debug().Uint64("frame", a.Frame).Int("previous", a.Previous).Int("current", a.Current).Msg("Anchor changed")
	return nil
}

// AddTrackables registers every known trackable with the backend. It is
// called after StartSession and whenever a dataset is loaded.
func (m *Manager) AddTrackables(trackables []core.Trackable) error {
	for _, t := range trackables {
		if err := m.backend.AddTrackable(t); err != nil {
			return fmt.Errorf("failed to add trackable %d: %w", t.ID, err)
		}
	}
	return nil
}
