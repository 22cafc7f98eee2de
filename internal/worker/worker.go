// Package worker connects scene notifications to the configured storage backend.
package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/arscene/statesync/internal/model"
	"github.com/arscene/statesync/internal/storage"
	"github.com/rs/zerolog"
)

// ErrUnexpectedPayload is returned when an event carries a payload of the wrong type.
var ErrUnexpectedPayload = errors.New("unexpected event payload")

// Manager feeds dispatcher events into a storage backend.
type Manager struct {
	backend storage.Backend
	log     zerolog.Logger
}

// NewManager creates a new worker manager.
func NewManager(backend storage.Backend, log zerolog.Logger) *Manager {
	return &Manager{
		backend: backend,
		log:     log,
	}
}

// WriteStatsProvider is an optional interface that backends can implement
// to expose their write queues for monitoring.
type WriteStatsProvider interface {
	QueueLengths() model.WriteQueueLengths
	LastWriteDuration() time.Duration
}

// WriteStats returns the backend's queue lengths and last write duration.
// ok is false if the backend doesn't support this.
func (m *Manager) WriteStats() (lengths model.WriteQueueLengths, last time.Duration, ok bool) {
	p, ok := m.backend.(WriteStatsProvider)
	if !ok {
		return model.WriteQueueLengths{}, 0, false
	}
	return p.QueueLengths(), p.LastWriteDuration(), true
}

func payload[T any](kind string, v any) (T, error) {
	switch p := v.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s: %w %T", kind, ErrUnexpectedPayload, v)
}
