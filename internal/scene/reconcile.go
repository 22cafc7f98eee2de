package scene

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/arscene/statesync/internal/registry"
	"github.com/arscene/statesync/internal/spatial"
	"github.com/arscene/statesync/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FrameResult is everything one pass changed.
type FrameResult struct {
	Frame         uint64
	Anchor        int
	AnchorChange  *core.AnchorChange
	Viewer        core.Pose
	ViewerMoved   bool
	Poses         []core.PoseUpdate
	StatusChanges []core.StatusChange
	ButtonEvents  []core.ButtonEvent
	FoundQueue    []int
	TrackerFailed bool
	Duration      time.Duration
}

// Reconcile runs one pass over frame: queue maintenance, anchor resolution,
// viewer placement, entity placement, status propagation and button edges.
// Notifications are published only after the pass has completed.
//
// A failed frame skips viewer and entity placement only. Whatever results
// the tracker still delivered drive the found queue, statuses and buttons;
// a failed poll with no results drops every enabled trackable to NotFound.
// The returned error wraps ErrTracker.
func (c *Context) Reconcile(frame core.Frame) (FrameResult, error) {
	start := time.Now()

	c.mu.Lock()
	res := c.reconcileLocked(frame)
	c.mu.Unlock()

	res.Duration = time.Since(start)
	c.notify(res)

	attrs := metric.WithAttributes(attribute.Bool("tracker_failed", res.TrackerFailed))
	c.frames.Add(context.Background(), 1, attrs)
	c.duration.Record(context.Background(), float64(res.Duration.Microseconds())/1000, attrs)
	if res.AnchorChange != nil {
		c.anchorChanges.Add(context.Background(), 1)
	}

	c.log.Trace().
		Uint64("frame", res.Frame).
		Int("anchor", res.Anchor).
		Ints("foundQueue", res.FoundQueue).
		Int("positioned", len(res.Poses)).
		Int("statusChanges", len(res.StatusChanges)).
		Dur("duration", res.Duration).
		Msg("Frame reconciled")

	if res.TrackerFailed {
		return res, fmt.Errorf("frame %d: %w (status %d)", frame.Index, ErrTracker, frame.TrackerStatus)
	}
	return res, nil
}

func (c *Context) reconcileLocked(frame core.Frame) FrameResult {
	res := FrameResult{Frame: frame.Index, TrackerFailed: frame.Failed()}
	c.lastFrame = frame.Index

	// Later duplicates of an id win.
	results := make(map[int]core.TrackableResult, len(frame.Trackables))
	order := make([]int, 0, len(frame.Trackables))
	for _, r := range frame.Trackables {
		if _, seen := results[r.ID]; !seen {
			order = append(order, r.ID)
		}
		results[r.ID] = r
	}

	c.updateFoundQueue(results, order)
	res.FoundQueue = c.found.Items()

	res.Anchor = c.resolveAnchor()
	if res.Anchor != c.anchor {
		res.AnchorChange = &core.AnchorChange{Frame: frame.Index, Previous: c.anchor, Current: res.Anchor}
		c.anchor = res.Anchor
	}

	if !res.TrackerFailed {
		res.ViewerMoved = c.placeViewer(res.Anchor, results)
		res.Poses = c.placeEntities(frame.Index, res.Anchor, results, order)
	}
	res.Viewer = c.viewer

	res.StatusChanges = c.propagateStatus(frame.Index, results)
	res.ButtonEvents = c.buttons.Update(frame.Index, frame.Buttons, c.reg.Enabled)

	return res
}

// updateFoundQueue appends newly visible ids, drops ids that are no longer
// visible or were not reported, then drops every disabled id.
func (c *Context) updateFoundQueue(results map[int]core.TrackableResult, order []int) {
	for _, id := range order {
		r := results[id]
		if !c.reg.Contains(id) {
			c.unclaimed[id] = r
			continue
		}
		if r.Status.Visible() {
			c.found.Append(id)
		} else {
			c.found.Remove(id)
		}
	}

	c.found.RemoveFunc(func(id int) bool {
		r, ok := results[id]
		return !ok || !r.Status.Visible() || !c.reg.Enabled(id)
	})
}

func (c *Context) resolveAnchor() int {
	switch c.mode {
	case core.WorldCenterUser:
		return c.worldCenter
	case core.WorldCenterAuto:
		if head, ok := c.found.Head(); ok {
			return head
		}
	}
	return core.NoAnchor
}

// placeViewer moves the viewer so the anchor keeps its world transform.
// Returns false and leaves the viewer alone when the anchor cannot be used.
func (c *Context) placeViewer(anchor int, results map[int]core.TrackableResult) bool {
	if anchor == core.NoAnchor {
		return false
	}
	r, ok := results[anchor]
	if !ok || !r.Status.Visible() {
		return false
	}
	rec, ok := c.reg.Get(anchor)
	if !ok || !rec.Enabled() {
		return false
	}
	_ = c.reg.SetCameraPose(anchor, r.Pose)
	c.viewer = spatial.ViewerFromAnchor(rec.WorldPose(), r.Pose)
	return true
}

func (c *Context) placeEntities(frame uint64, anchor int, results map[int]core.TrackableResult, order []int) []core.PoseUpdate {
	var updates []core.PoseUpdate
	ids := slices.Clone(order)
	slices.Sort(ids)
	for _, id := range ids {
		if id == anchor {
			continue
		}
		r := results[id]
		if !r.Status.Visible() {
			continue
		}
		rec, ok := c.reg.Get(id)
		if !ok || !rec.Enabled() {
			continue
		}
		world := spatial.EntityFromViewer(c.viewer, r.Pose)
		_ = c.reg.SetCameraPose(id, r.Pose)
		_ = c.reg.SetWorldPose(id, world)
		updates = append(updates, core.PoseUpdate{Frame: frame, ID: id, Name: rec.View().Name, World: world})
	}
	return updates
}

// propagateStatus copies the frame status onto every enabled record, or
// NotFound when the record was not reported. Disabled records keep theirs.
func (c *Context) propagateStatus(frame uint64, results map[int]core.TrackableResult) []core.StatusChange {
	var changes []core.StatusChange
	c.active = c.active[:0]
	c.reg.ForEachEnabled(func(v registry.RecordView) {
		status := core.StatusNotFound
		if r, ok := results[v.ID]; ok {
			status = r.Status
		}
		if status.Visible() {
			c.active = append(c.active, v.ID)
		}
		prev, changed, err := c.reg.SetStatus(v.ID, status)
		if err != nil || !changed {
			return
		}
		changes = append(changes, core.StatusChange{
			Frame: frame, ID: v.ID, Name: v.Name, Previous: prev, Current: status,
		})
	})
	return changes
}

func (c *Context) notify(res FrameResult) {
	if res.AnchorChange != nil {
		c.publish(core.EventAnchorChanged, res.Frame, *res.AnchorChange)
	}
	if res.ViewerMoved {
		c.publish(core.EventViewerUpdated, res.Frame, core.PoseUpdate{Frame: res.Frame, ID: core.ViewerID, World: res.Viewer})
	}
	for _, p := range res.Poses {
		c.publish(core.EventPoseUpdated, res.Frame, p)
	}
	for _, ch := range res.StatusChanges {
		c.publish(core.EventStatusChanged, res.Frame, ch)
	}
	for _, ev := range res.ButtonEvents {
		c.publish(core.EventButtonChanged, res.Frame, ev)
	}
	c.publish(core.EventFrameReconcile, res.Frame, core.FrameSummary{
		Frame:         res.Frame,
		Anchor:        res.Anchor,
		FoundQueue:    res.FoundQueue,
		ViewerMoved:   res.ViewerMoved,
		Positioned:    len(res.Poses),
		TrackerFailed: res.TrackerFailed,
		Duration:      res.Duration,
	})
}
