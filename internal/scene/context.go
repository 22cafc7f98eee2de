// Package scene reconciles tracker frames with the host scene: it keeps the
// found-trackable FIFO, resolves the anchor, places the viewer and every
// other visible trackable, and emits status and button edges.
package scene

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arscene/statesync/internal/dispatcher"
	"github.com/arscene/statesync/internal/queue"
	"github.com/arscene/statesync/internal/registry"
	"github.com/arscene/statesync/internal/vbutton"
	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrTracker is returned by Reconcile when the tracker reported a failure.
	ErrTracker = errors.New("tracker error")
	// ErrNotFound mirrors registry.ErrNotFound for callers of this package.
	ErrNotFound = registry.ErrNotFound
)

// Publisher receives the notifications of a reconciliation pass.
type Publisher interface {
	Dispatch(e dispatcher.Event) error
}

// Options configures a Context.
type Options struct {
	Mode      core.WorldCenterMode
	Publisher Publisher
	Logger    zerolog.Logger
	// Viewer is the initial viewer transform. Zero means identity.
	Viewer core.Pose
}

// Context is the reconciliation state shared by every frame.
type Context struct {
	mu sync.Mutex

	reg     *registry.Registry
	found   *queue.Ordered[int]
	buttons *vbutton.Set

	mode        core.WorldCenterMode
	worldCenter int
	anchor      int
	viewer      core.Pose
	active      []int
	unclaimed   map[int]core.TrackableResult
	lastFrame   uint64

	lockMu   sync.RWMutex
	editLock vbutton.LockFunc

	pub Publisher
	log zerolog.Logger

	frames        metric.Int64Counter
	anchorChanges metric.Int64Counter
	duration      metric.Float64Histogram
	queueLen      metric.Int64ObservableGauge
}

// New creates a reconciliation context.
func New(opts Options) (*Context, error) {
	mode := opts.Mode
	if mode == "" {
		mode = core.WorldCenterAuto
	}
	viewer := opts.Viewer
	if viewer.IsZero() {
		viewer = core.IdentityPose()
	}

	c := &Context{
		reg:         registry.New(),
		found:       queue.NewOrdered[int](),
		mode:        mode,
		worldCenter: core.NoAnchor,
		anchor:      core.NoAnchor,
		viewer:      viewer,
		unclaimed:   make(map[int]core.TrackableResult),
		pub:         opts.Publisher,
		log:         opts.Logger,
	}
	c.buttons = vbutton.NewSet(c.ownerLocked)

	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Context) initMetrics() error {
	m := meter()
	var err error

	c.frames, err = m.Int64Counter(
		"scene.frames",
		metric.WithDescription("Total reconciled frames"),
	)
	if err != nil {
		return fmt.Errorf("creating frames counter: %w", err)
	}

	c.anchorChanges, err = m.Int64Counter(
		"scene.anchor.changes",
		metric.WithDescription("Number of times the resolved anchor changed"),
	)
	if err != nil {
		return fmt.Errorf("creating anchor counter: %w", err)
	}

	c.duration, err = m.Float64Histogram(
		"scene.reconcile.duration",
		metric.WithDescription("Reconciliation pass duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	c.queueLen, err = m.Int64ObservableGauge(
		"scene.found_queue.length",
		metric.WithDescription("Current number of found trackables"),
	)
	if err != nil {
		return fmt.Errorf("creating found queue gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(c.queueLen, int64(c.found.Len()))
			return nil
		},
		c.queueLen,
	)
	if err != nil {
		return fmt.Errorf("registering found queue callback: %w", err)
	}
	return nil
}

// SetEditLock installs the predicate that freezes virtual button edits,
// typically "the owner's dataset is active".
func (c *Context) SetEditLock(fn vbutton.LockFunc) {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	c.editLock = fn
}

func (c *Context) ownerLocked(ownerID int) bool {
	c.lockMu.RLock()
	defer c.lockMu.RUnlock()
	return c.editLock != nil && c.editLock(ownerID)
}

// Registry exposes the trackable registry.
func (c *Context) Registry() *registry.Registry { return c.reg }

// Buttons exposes the virtual button set.
func (c *Context) Buttons() *vbutton.Set { return c.buttons }

// Register adds id to the registry. A pending unclaimed result for id seeds
// the new record's camera-relative pose.
func (c *Context) Register(id int, initial core.Status) *registry.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registerLocked(id, initial)
}

func (c *Context) registerLocked(id int, initial core.Status) *registry.Record {
	rec, created := c.reg.Register(id, initial)
	if created {
		if r, ok := c.unclaimed[id]; ok {
			_ = c.reg.SetCameraPose(id, r.Pose)
			delete(c.unclaimed, id)
		}
		c.log.Debug().Int("id", id).Str("status", initial.String()).Msg("Trackable registered")
	}
	return rec
}

// RegisterTrackable registers and describes a dataset trackable.
func (c *Context) RegisterTrackable(t core.Trackable, enabled bool) (*registry.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.registerLocked(t.ID, core.StatusUnknown)
	if err := c.reg.Describe(t.ID, t.Name, t.Kind, t.DataSet); err != nil {
		return rec, err
	}
	if err := c.reg.SetEnabled(t.ID, enabled); err != nil {
		return rec, err
	}
	if !enabled {
		c.found.Remove(t.ID)
	}
	return rec, nil
}

// Unregister removes id from the registry, the found queue and, if it was
// the explicit world center, clears that too. Pressed buttons of id are
// released before they are dropped. Unknown ids are a no-op.
func (c *Context) Unregister(id int) bool {
	c.mu.Lock()
	if !c.reg.Unregister(id) {
		c.mu.Unlock()
		return false
	}
	c.found.Remove(id)
	if c.worldCenter == id {
		c.worldCenter = core.NoAnchor
	}
	c.active = slices.DeleteFunc(c.active, func(v int) bool { return v == id })
	releases := c.buttons.OwnerDisabled(id, c.lastFrame)
	c.buttons.RemoveOwner(id)
	c.mu.Unlock()

	for _, ev := range releases {
		c.publish(core.EventButtonChanged, ev.Frame, ev)
	}
	c.log.Debug().Int("id", id).Msg("Trackable unregistered")
	return true
}

// SetEnabled toggles participation in updates. Disabling drops the id from
// the found queue and releases its pressed buttons. Status is kept.
func (c *Context) SetEnabled(id int, enabled bool) error {
	c.mu.Lock()
	if err := c.reg.SetEnabled(id, enabled); err != nil {
		c.mu.Unlock()
		return err
	}
	var releases []core.ButtonEvent
	if !enabled {
		c.found.Remove(id)
		c.active = slices.DeleteFunc(c.active, func(v int) bool { return v == id })
		releases = c.buttons.OwnerDisabled(id, c.lastFrame)
	}
	c.mu.Unlock()

	for _, ev := range releases {
		c.publish(core.EventButtonChanged, ev.Frame, ev)
	}
	return nil
}

// PlaceTrackable sets the world transform of a registered trackable, used
// to position an explicit world center in the scene.
func (c *Context) PlaceTrackable(id int, world core.Pose) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reg.SetWorldPose(id, world)
}

// SetWorldCenterMode selects how the anchor is resolved from the next frame on.
func (c *Context) SetWorldCenterMode(mode core.WorldCenterMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

// WorldCenterMode returns the active mode.
func (c *Context) WorldCenterMode() core.WorldCenterMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetWorldCenter designates the explicit anchor used in user mode.
// core.NoAnchor clears it.
func (c *Context) SetWorldCenter(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != core.NoAnchor && !c.reg.Contains(id) {
		return fmt.Errorf("set world center %d: %w", id, ErrNotFound)
	}
	c.worldCenter = id
	return nil
}

// WorldCenter returns the explicit anchor id or core.NoAnchor.
func (c *Context) WorldCenter() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worldCenter
}

// Anchor returns the anchor resolved by the last pass.
func (c *Context) Anchor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anchor
}

// Viewer returns the current viewer transform.
func (c *Context) Viewer() core.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewer
}

// SetViewer overrides the viewer transform, e.g. to restore a saved camera.
func (c *Context) SetViewer(p core.Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewer = p
}

// FoundQueue returns a copy of the found-trackable FIFO.
func (c *Context) FoundQueue() []int {
	return c.found.Items()
}

// ActiveTrackables returns the enabled trackables that were visible in the last pass.
func (c *Context) ActiveTrackables() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.active)
}

// Unclaimed returns the latest result of every id the tracker reported
// that is not registered, ordered by id.
func (c *Context) Unclaimed() []core.TrackableResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.TrackableResult, 0, len(c.unclaimed))
	for _, r := range c.unclaimed {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b core.TrackableResult) int { return a.ID - b.ID })
	return out
}

// LastFrame returns the index of the last reconciled frame.
func (c *Context) LastFrame() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFrame
}

// SimulateAllTracked marks every enabled trackable as tracked without
// positioning anything, for running without a tracker.
func (c *Context) SimulateAllTracked() []core.StatusChange {
	c.mu.Lock()
	var changes []core.StatusChange
	c.active = c.active[:0]
	c.reg.ForEachEnabled(func(v registry.RecordView) {
		c.active = append(c.active, v.ID)
		prev, changed, err := c.reg.SetStatus(v.ID, core.StatusTracked)
		if err != nil || !changed {
			return
		}
		changes = append(changes, core.StatusChange{
			Frame: c.lastFrame, ID: v.ID, Name: v.Name, Previous: prev, Current: core.StatusTracked,
		})
	})
	c.mu.Unlock()

	for _, ch := range changes {
		c.publish(core.EventStatusChanged, ch.Frame, ch)
	}
	return changes
}

func (c *Context) publish(kind string, frame uint64, payload any) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Dispatch(dispatcher.Event{Kind: kind, Frame: frame, Payload: payload}); err != nil {
		c.log.Warn().Err(err).Str("kind", kind).Uint64("frame", frame).Msg("Notification handler failed")
	}
}
