package influx

import (
	"strconv"
	"time"

	"github.com/arscene/statesync/internal/dispatcher"
	"github.com/arscene/statesync/internal/model"
	"github.com/arscene/statesync/pkg/core"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// FramePoint builds the per-frame summary point.
func FramePoint(session string, s core.FrameSummary, t time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"frame",
		map[string]string{"session": session},
		map[string]any{
			"frame":          int64(s.Frame),
			"anchor":         s.Anchor,
			"found":          len(s.FoundQueue),
			"positioned":     s.Positioned,
			"viewer_moved":   s.ViewerMoved,
			"tracker_failed": s.TrackerFailed,
			"duration_us":    s.Duration.Microseconds(),
		},
		t,
	)
}

// PosePoint builds a world pose point for a trackable or the viewer.
func PosePoint(session string, p core.PoseUpdate, t time.Time) *influxdb2_write.Point {
	id := strconv.Itoa(p.ID)
	if p.ID == core.ViewerID {
		id = "viewer"
	}
	pos, rot := p.World.Position, p.World.Orientation
	return influxdb2_write.NewPoint(
		"pose",
		map[string]string{"session": session, "trackable": id},
		map[string]any{
			"frame": int64(p.Frame),
			"x":     pos.X,
			"y":     pos.Y,
			"z":     pos.Z,
			"qw":    rot.W,
			"qx":    rot.X,
			"qy":    rot.Y,
			"qz":    rot.Z,
		},
		t,
	)
}

// PerformancePoint builds a process health point from a frame stat sample.
func PerformancePoint(session string, s model.FrameStat) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"performance",
		map[string]string{"session": session},
		map[string]any{
			"frame":                int64(s.CaptureFrame),
			"registered":           s.Registered,
			"found_queue":          s.FoundQueueLength,
			"queue_pose_samples":   s.WriteQueueLengths.PoseSamples,
			"queue_status_changes": s.WriteQueueLengths.StatusChanges,
			"last_write_ms":        s.LastWriteDuration,
		},
		s.Time,
	)
}

// RegisterHandlers subscribes frame summaries and poses to the frame bucket.
// session is read on every event so a new session is picked up.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher, session func() string) {
	d.Register(core.EventFrameReconcile, func(e dispatcher.Event) error {
		s, ok := e.Payload.(core.FrameSummary)
		if !ok {
			return nil
		}
		return m.WritePoint(m.FrameBucket(), FramePoint(session(), s, e.Timestamp))
	}, dispatcher.Buffered(1000), dispatcher.Named("influx.frame"))

	pose := func(e dispatcher.Event) error {
		p, ok := e.Payload.(core.PoseUpdate)
		if !ok {
			return nil
		}
		return m.WritePoint(m.FrameBucket(), PosePoint(session(), p, e.Timestamp))
	}
	d.Register(core.EventPoseUpdated, pose, dispatcher.Buffered(10000), dispatcher.Named("influx.pose"))
	d.Register(core.EventViewerUpdated, pose, dispatcher.Buffered(1000), dispatcher.Named("influx.viewer"))
}
