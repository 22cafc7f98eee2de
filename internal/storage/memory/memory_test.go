package memory

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(name string) *core.Session {
	s := core.NewSession(name, "lab", core.WorldCenterAuto)
	s.StartTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return s
}

func pose(frame uint64, id int, x float64) *core.PoseUpdate {
	p := core.IdentityPose()
	p.Position.X = x
	return &core.PoseUpdate{Frame: frame, ID: id, World: p}
}

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: "/tmp/test", CompressOutput: true})
	require.NotNil(t, b)
	assert.Equal(t, "/tmp/test", b.cfg.OutputDir)
	assert.NotNil(t, b.trackables)
	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestStartSessionResets(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.AddTrackable(core.Trackable{ID: 1, Name: "old"}))
	require.NoError(t, b.RecordPose(pose(4, core.ViewerID, 0)))

	require.NoError(t, b.StartSession(newSession("fresh")))

	_, ok := b.GetTrackable(1)
	assert.False(t, ok)
	assert.Empty(t, b.viewer)
	assert.Zero(t, b.lastFrame)
}

func TestRecordRoutesByID(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(newSession("route")))
	require.NoError(t, b.AddTrackable(core.Trackable{ID: 7, Name: "chips", Kind: core.KindImageTarget}))

	require.NoError(t, b.RecordPose(pose(1, 7, 1)))
	require.NoError(t, b.RecordPose(pose(1, core.ViewerID, 2)))
	require.NoError(t, b.RecordStatusChange(&core.StatusChange{Frame: 1, ID: 7, Previous: core.StatusUnknown, Current: core.StatusTracked}))
	// unknown id gets a bare record
	require.NoError(t, b.RecordPose(pose(3, 9, 0)))

	assert.Len(t, b.trackables[7].Poses, 1)
	assert.Len(t, b.trackables[7].Statuses, 1)
	assert.Len(t, b.viewer, 1)
	tr, ok := b.GetTrackable(9)
	require.True(t, ok)
	assert.Equal(t, 9, tr.ID)
	assert.Equal(t, uint64(3), b.lastFrame)
}

func TestEndSessionExports(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "gzip"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: compress})

			s := newSession("bench run: 1")
			require.NoError(t, b.StartSession(s))
			require.NoError(t, b.AddTrackable(core.Trackable{ID: 2, Name: "tarmac", Kind: core.KindImageTarget, DataSet: "lab"}))
			require.NoError(t, b.AddTrackable(core.Trackable{ID: 1, Name: "stones", Kind: core.KindImageTarget, DataSet: "lab"}))
			require.NoError(t, b.RecordAnchorChange(&core.AnchorChange{Frame: 1, Previous: core.NoAnchor, Current: 1}))
			require.NoError(t, b.RecordPose(pose(1, core.ViewerID, 0.5)))
			require.NoError(t, b.RecordPose(pose(2, 2, 1.5)))
			require.NoError(t, b.RecordStatusChange(&core.StatusChange{Frame: 2, ID: 2, Current: core.StatusDetected}))
			require.NoError(t, b.RecordButtonEvent(&core.ButtonEvent{Frame: 5, ButtonID: 10, OwnerID: 1, Pressed: true}))
			s.EndTime = s.StartTime.Add(90 * time.Second)

			require.NoError(t, b.EndSession())

			path := b.GetExportedFilePath()
			assert.Equal(t, dir, filepath.Dir(path))
			assert.True(t, strings.HasPrefix(filepath.Base(path), "bench_run__1_20260301_093000.json"))
			assert.Equal(t, compress, strings.HasSuffix(path, ".gz"))

			meta := b.GetExportMetadata()
			assert.Equal(t, "bench run: 1", meta.SessionName)
			assert.Equal(t, "lab", meta.Tag)
			assert.InDelta(t, 90, meta.Duration, 1e-9)
			assert.Equal(t, uint64(5), meta.Frames)

			exp, err := ReadExport(path)
			require.NoError(t, err)
			assert.Equal(t, ExportVersion, exp.Version)
			assert.Equal(t, s.ID.String(), exp.SessionID)
			assert.Equal(t, "auto", exp.WorldCenterMode)
			assert.Equal(t, uint64(5), exp.EndFrame)
			require.Len(t, exp.Trackables, 2)
			assert.Equal(t, 1, exp.Trackables[0].ID)
			assert.Equal(t, "tarmac", exp.Trackables[1].Name)
			require.Len(t, exp.Trackables[1].Poses, 1)
			assert.Equal(t, []any{float64(2), []any{1.5, float64(0), float64(0)}, []any{float64(1), float64(0), float64(0), float64(0)}}, exp.Trackables[1].Poses[0])
			assert.Equal(t, []any{float64(2), "DETECTED"}, exp.Trackables[1].Statuses[0])
			assert.Len(t, exp.Viewer, 1)
			assert.Equal(t, []any{float64(5), float64(10), float64(1), true, false}, exp.Buttons[0])
			assert.Equal(t, []any{float64(1), float64(-1), float64(1)}, exp.Anchors[0])
		})
	}
}

func TestEndSessionWithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.EndSession())
	assert.Empty(t, b.GetExportedFilePath())
}

func TestConcurrentRecording(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(newSession("concurrent")))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = b.RecordPose(pose(uint64(i+1), w, float64(i)))
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, r := range b.trackables {
		total += len(r.Poses)
	}
	assert.Equal(t, 800, total)
	assert.Equal(t, uint64(100), b.lastFrame)
}
