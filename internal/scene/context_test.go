package scene

import (
	"sync"
	"testing"

	"github.com/arscene/statesync/internal/dispatcher"
	"github.com/arscene/statesync/internal/spatial"
	"github.com/arscene/statesync/internal/vbutton"
	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Publisher that keeps every event in order.
type recorder struct {
	mu     sync.Mutex
	events []dispatcher.Event
}

func (r *recorder) Dispatch(e dispatcher.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func (r *recorder) ofKind(kind string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func newTestContext(t *testing.T, mode core.WorldCenterMode, ids ...int) (*Context, *recorder) {
	t.Helper()
	rec := &recorder{}
	c, err := New(Options{Mode: mode, Publisher: rec, Logger: zerolog.Nop()})
	require.NoError(t, err)
	for _, id := range ids {
		c.Register(id, core.StatusUnknown)
	}
	return c, rec
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, core.WorldCenterAuto, c.WorldCenterMode())
	assert.Equal(t, core.NoAnchor, c.WorldCenter())
	assert.Equal(t, core.NoAnchor, c.Anchor())
	assert.Equal(t, core.IdentityPose(), c.Viewer())
}

func TestRegister_SeedsFromUnclaimed(t *testing.T) {
	c, rec := newTestContext(t, core.WorldCenterAuto)
	rel := core.Pose{Position: core.Vec3{Z: 3}, Orientation: core.IdentityQuat()}

	_, err := c.Reconcile(frame(1, tracked(42, rel)))
	require.NoError(t, err)
	assert.Empty(t, c.FoundQueue())
	require.Len(t, c.Unclaimed(), 1)
	assert.Empty(t, rec.ofKind(core.EventStatusChanged))

	r := c.Register(42, core.StatusUnknown)
	assert.Equal(t, rel, r.View().CameraPose)
	assert.Empty(t, c.Unclaimed())
}

func TestUnregister_ClearsQueueAndWorldCenter(t *testing.T) {
	c, _ := newTestContext(t, core.WorldCenterUser, 1, 2)
	require.NoError(t, c.SetWorldCenter(1))
	_, err := c.Reconcile(frame(1, tracked(1, nearPose()), tracked(2, nearPose())))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, c.FoundQueue())

	assert.True(t, c.Unregister(1))
	assert.Equal(t, []int{2}, c.FoundQueue())
	assert.Equal(t, core.NoAnchor, c.WorldCenter())
	assert.False(t, c.Unregister(1))
}

func TestUnregister_ReleasesPressedButtons(t *testing.T) {
	c, rec := newTestContext(t, core.WorldCenterAuto, 3)
	require.NoError(t, c.Buttons().Add(vbutton.Button{
		ID: 30, OwnerID: 3, Enabled: true,
		Area: vbutton.Area{LeftTopX: 0, LeftTopY: 1, RightBottomX: 1, RightBottomY: 0},
	}))
	f := frame(4, tracked(3, nearPose()))
	f.Buttons = []core.ButtonResult{{ID: 30, Pressed: true}}
	_, err := c.Reconcile(f)
	require.NoError(t, err)
	rec.reset()

	require.True(t, c.Unregister(3))
	events := rec.ofKind(core.EventButtonChanged)
	require.Len(t, events, 1)
	ev := events[0].(core.ButtonEvent)
	assert.Equal(t, 30, ev.ButtonID)
	assert.Equal(t, uint64(4), ev.Frame)
	assert.False(t, ev.Pressed)
	assert.True(t, ev.Synthetic)
	assert.Equal(t, 0, c.Buttons().Len())
}

func TestSetWorldCenter_Unknown(t *testing.T) {
	c, _ := newTestContext(t, core.WorldCenterUser, 1)
	assert.ErrorIs(t, c.SetWorldCenter(5), ErrNotFound)
	assert.NoError(t, c.SetWorldCenter(core.NoAnchor))
}

func TestSetEnabled_ReleasesButtonsAndKeepsStatus(t *testing.T) {
	c, rec := newTestContext(t, core.WorldCenterAuto, 10)
	require.NoError(t, c.Buttons().Add(vbutton.Button{
		ID: 100, OwnerID: 10, Enabled: true,
		Area: vbutton.Area{LeftTopX: 0, LeftTopY: 1, RightBottomX: 1, RightBottomY: 0},
	}))

	f := frame(1, tracked(10, nearPose()))
	f.Buttons = []core.ButtonResult{{ID: 100, Pressed: true}}
	_, err := c.Reconcile(f)
	require.NoError(t, err)
	rec.reset()

	require.NoError(t, c.SetEnabled(10, false))
	events := rec.ofKind(core.EventButtonChanged)
	require.Len(t, events, 1)
	ev := events[0].(core.ButtonEvent)
	assert.False(t, ev.Pressed)
	assert.True(t, ev.Synthetic)

	r, _ := c.Registry().Get(10)
	assert.Equal(t, core.StatusTracked, r.Status())
	assert.Empty(t, c.FoundQueue())

	assert.ErrorIs(t, c.SetEnabled(77, true), ErrNotFound)
}

func TestSimulateAllTracked(t *testing.T) {
	c, rec := newTestContext(t, core.WorldCenterAuto, 1, 2)
	require.NoError(t, c.SetEnabled(2, false))

	changes := c.SimulateAllTracked()
	require.Len(t, changes, 1)
	assert.Equal(t, 1, changes[0].ID)
	assert.Equal(t, core.StatusTracked, changes[0].Current)
	assert.Len(t, rec.ofKind(core.EventStatusChanged), 1)
	assert.Equal(t, []int{1}, c.ActiveTrackables())
	assert.Equal(t, core.IdentityPose(), c.Viewer())
}

func TestSnapshot(t *testing.T) {
	c, _ := newTestContext(t, core.WorldCenterAuto, 1)
	_, err := c.Reconcile(frame(9, tracked(1, nearPose())))
	require.NoError(t, err)

	s := c.Snapshot()
	assert.Equal(t, uint64(9), s.Frame)
	assert.Equal(t, 1, s.Anchor)
	assert.Equal(t, []int{1}, s.FoundQueue)
	require.Len(t, s.Trackables, 1)
	assert.Equal(t, core.StatusTracked, s.Trackables[0].Status)
}

func TestPlaceTrackable(t *testing.T) {
	c, _ := newTestContext(t, core.WorldCenterUser, 1)
	world := core.Pose{Position: core.Vec3{X: 5}, Orientation: core.IdentityQuat()}
	require.NoError(t, c.PlaceTrackable(1, world))
	require.NoError(t, c.SetWorldCenter(1))

	rel := nearPose()
	_, err := c.Reconcile(frame(1, tracked(1, rel)))
	require.NoError(t, err)

	assert.True(t, spatial.ApproxEqual(c.Viewer(), spatial.ViewerFromAnchor(world, rel), 1e-9))
	assert.ErrorIs(t, c.PlaceTrackable(9, world), ErrNotFound)
}
