package worker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arscene/statesync/internal/dispatcher"
	"github.com/arscene/statesync/internal/model"
	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements dispatcher.Logger for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) Debug(msg string, keysAndValues ...any) { l.add(msg) }
func (l *mockLogger) Info(msg string, keysAndValues ...any)  { l.add(msg) }
func (l *mockLogger) Error(msg string, keysAndValues ...any) { l.add(msg) }

func (l *mockLogger) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

// mockBackend implements storage.Backend for testing
type mockBackend struct {
	mu sync.Mutex

	trackables []core.Trackable
	poses      []core.PoseUpdate
	statuses   []core.StatusChange
	buttons    []core.ButtonEvent
	anchors    []core.AnchorChange
	failPoses  error
}

func (b *mockBackend) Init() error                        { return nil }
func (b *mockBackend) Close() error                       { return nil }
func (b *mockBackend) StartSession(s *core.Session) error { return nil }
func (b *mockBackend) EndSession() error                  { return nil }

func (b *mockBackend) AddTrackable(t core.Trackable) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackables = append(b.trackables, t)
	return nil
}

func (b *mockBackend) RecordPose(p *core.PoseUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPoses != nil {
		return b.failPoses
	}
	b.poses = append(b.poses, *p)
	return nil
}

func (b *mockBackend) RecordStatusChange(c *core.StatusChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, *c)
	return nil
}

func (b *mockBackend) RecordButtonEvent(e *core.ButtonEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buttons = append(b.buttons, *e)
	return nil
}

func (b *mockBackend) RecordAnchorChange(a *core.AnchorChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.anchors = append(b.anchors, *a)
	return nil
}

// statsBackend adds the optional write stats.
type statsBackend struct {
	mockBackend
}

func (b *statsBackend) QueueLengths() model.WriteQueueLengths {
	return model.WriteQueueLengths{PoseSamples: 7}
}

func (b *statsBackend) LastWriteDuration() time.Duration { return 3 * time.Millisecond }

func newTestDispatcher(t *testing.T) (*dispatcher.Dispatcher, *mockLogger) {
	t.Helper()
	logger := &mockLogger{}
	d, err := dispatcher.New(logger)
	require.NoError(t, err)
	return d, logger
}

func TestRegisterHandlers_RegistersAllKinds(t *testing.T) {
	d, _ := newTestDispatcher(t)
	defer d.Close()
	NewManager(&mockBackend{}, zerolog.Nop()).RegisterHandlers(d)

	for _, kind := range []string{
		core.EventAnchorChanged,
		core.EventViewerUpdated,
		core.EventPoseUpdated,
		core.EventStatusChanged,
		core.EventButtonChanged,
	} {
		assert.True(t, d.HasHandler(kind), "expected handler for %s", kind)
	}
	assert.False(t, d.HasHandler(core.EventFrameReconcile))
}

func TestHandlers_FeedBackend(t *testing.T) {
	d, _ := newTestDispatcher(t)
	backend := &mockBackend{}
	NewManager(backend, zerolog.Nop()).RegisterHandlers(d)

	events := []dispatcher.Event{
		{Kind: core.EventAnchorChanged, Frame: 1, Payload: core.AnchorChange{Frame: 1, Previous: core.NoAnchor, Current: 2}},
		{Kind: core.EventViewerUpdated, Frame: 1, Payload: core.PoseUpdate{Frame: 1, ID: core.ViewerID, World: core.IdentityPose()}},
		{Kind: core.EventPoseUpdated, Frame: 1, Payload: &core.PoseUpdate{Frame: 1, ID: 5, World: core.IdentityPose()}},
		{Kind: core.EventStatusChanged, Frame: 1, Payload: core.StatusChange{Frame: 1, ID: 5, Previous: core.StatusUnknown, Current: core.StatusTracked}},
		{Kind: core.EventButtonChanged, Frame: 1, Payload: core.ButtonEvent{Frame: 1, ButtonID: 9, OwnerID: 5, Pressed: true}},
	}
	for _, e := range events {
		require.NoError(t, d.Dispatch(e))
	}
	d.Close()

	assert.Equal(t, []core.AnchorChange{{Frame: 1, Previous: core.NoAnchor, Current: 2}}, backend.anchors)
	require.Len(t, backend.poses, 2)
	assert.ElementsMatch(t, []int{core.ViewerID, 5}, []int{backend.poses[0].ID, backend.poses[1].ID})
	require.Len(t, backend.statuses, 1)
	assert.Equal(t, core.StatusTracked, backend.statuses[0].Current)
	require.Len(t, backend.buttons, 1)
	assert.True(t, backend.buttons[0].Pressed)
}

func TestHandlers_WrongPayload(t *testing.T) {
	m := NewManager(&mockBackend{}, zerolog.Nop())
	err := m.handlePose(dispatcher.Event{Kind: core.EventPoseUpdated, Payload: "nope"})
	assert.ErrorIs(t, err, ErrUnexpectedPayload)

	err = m.handleStatusChange(dispatcher.Event{Kind: core.EventStatusChanged, Payload: (*core.StatusChange)(nil)})
	assert.ErrorIs(t, err, ErrUnexpectedPayload)
}

func TestHandlers_BackendErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)
	backend := &mockBackend{failPoses: errors.New("disk full")}
	NewManager(backend, zerolog.Nop()).RegisterHandlers(d)

	require.NoError(t, d.Dispatch(dispatcher.Event{Kind: core.EventPoseUpdated, Payload: core.PoseUpdate{ID: 1}}))
	d.Close()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Contains(t, logger.messages, "event failed")
}

func TestAddTrackables(t *testing.T) {
	backend := &mockBackend{}
	m := NewManager(backend, zerolog.Nop())
	require.NoError(t, m.AddTrackables([]core.Trackable{{ID: 1}, {ID: 2}}))
	assert.Len(t, backend.trackables, 2)
}

func TestWriteStats(t *testing.T) {
	_, _, ok := NewManager(&mockBackend{}, zerolog.Nop()).WriteStats()
	assert.False(t, ok)

	lengths, last, ok := NewManager(&statsBackend{}, zerolog.Nop()).WriteStats()
	require.True(t, ok)
	assert.Equal(t, 7, lengths.PoseSamples)
	assert.Equal(t, 3*time.Millisecond, last)
}
