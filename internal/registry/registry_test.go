package registry

import (
	"testing"

	"github.com/arscene/statesync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	r := New()

	first, created := r.Register(4, core.StatusUnknown)
	require.True(t, created)
	require.NoError(t, r.SetEnabled(4, false))

	second, created := r.Register(4, core.StatusTracked)
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, core.StatusUnknown, second.Status())
	assert.False(t, second.Enabled())
	assert.Equal(t, 1, r.Len())
}

func TestUnregister_UnknownIsNoop(t *testing.T) {
	r := New()
	assert.False(t, r.Unregister(12))

	rec, _ := r.Register(12, core.StatusUnknown)
	assert.True(t, r.Unregister(12))
	assert.False(t, rec.Registered())
	assert.False(t, r.Contains(12))
}

func TestSetEnabled_DoesNotTouchStatus(t *testing.T) {
	r := New()
	rec, _ := r.Register(1, core.StatusUnknown)
	_, _, err := r.SetStatus(1, core.StatusTracked)
	require.NoError(t, err)

	require.NoError(t, r.SetEnabled(1, false))
	assert.Equal(t, core.StatusTracked, rec.Status())
	assert.False(t, r.Enabled(1))

	err = r.SetEnabled(99, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus_ReportsChange(t *testing.T) {
	r := New()
	r.Register(2, core.StatusUnknown)

	prev, changed, err := r.SetStatus(2, core.StatusDetected)
	require.NoError(t, err)
	assert.Equal(t, core.StatusUnknown, prev)
	assert.True(t, changed)

	prev, changed, err = r.SetStatus(2, core.StatusDetected)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDetected, prev)
	assert.False(t, changed)

	_, _, err = r.SetStatus(3, core.StatusDetected)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDescribe_OnlyBeforeFirstReport(t *testing.T) {
	r := New()
	r.Register(5, core.StatusUnknown)

	require.NoError(t, r.Describe(5, "stones", core.KindImageTarget, "demo"))
	view, _ := r.Get(5)
	assert.Equal(t, "stones", view.View().Name)

	_, _, _ = r.SetStatus(5, core.StatusTracked)
	err := r.Describe(5, "chips", core.KindImageTarget, "demo")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPoses(t *testing.T) {
	r := New()
	rec, _ := r.Register(6, core.StatusUnknown)
	assert.Equal(t, core.IdentityPose(), rec.WorldPose())

	rel := core.Pose{Position: core.Vec3{Z: 2}, Orientation: core.IdentityQuat()}
	require.NoError(t, r.SetCameraPose(6, rel))
	world := core.Pose{Position: core.Vec3{X: 1}, Orientation: core.IdentityQuat()}
	require.NoError(t, r.SetWorldPose(6, world))

	v := rec.View()
	assert.Equal(t, rel, v.CameraPose)
	assert.Equal(t, world, v.WorldPose)
	assert.True(t, v.Positioned)
}

func TestForEachEnabled_OrderedByID(t *testing.T) {
	r := New()
	for _, id := range []int{9, 3, 7, 1} {
		r.Register(id, core.StatusUnknown)
	}
	require.NoError(t, r.SetEnabled(7, false))

	var seen []int
	r.ForEachEnabled(func(v RecordView) { seen = append(seen, v.ID) })
	assert.Equal(t, []int{1, 3, 9}, seen)
	assert.Equal(t, []int{1, 3, 7, 9}, r.IDs())
}

func TestForEach_CallbackMayMutate(t *testing.T) {
	r := New()
	r.Register(1, core.StatusUnknown)
	r.Register(2, core.StatusUnknown)

	r.ForEach(func(v RecordView) {
		_, _, err := r.SetStatus(v.ID, core.StatusNotFound)
		assert.NoError(t, err)
	})

	for _, v := range r.Snapshot() {
		assert.Equal(t, core.StatusNotFound, v.Status)
	}
}

func TestInDataSet(t *testing.T) {
	r := New()
	r.Register(1, core.StatusUnknown)
	r.Register(2, core.StatusUnknown)
	require.NoError(t, r.Describe(1, "a", core.KindMarker, "alpha"))
	require.NoError(t, r.Describe(2, "b", core.KindMarker, "beta"))

	assert.Equal(t, []int{1}, r.InDataSet("alpha"))
	assert.Empty(t, r.InDataSet("gamma"))
}
