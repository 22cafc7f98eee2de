package vbutton

import (
	"testing"

	"github.com/arscene/statesync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitArea = Area{LeftTopX: -1, LeftTopY: 1, RightBottomX: 1, RightBottomY: -1}

func allEnabled(int) bool { return true }

func newTestSet(t *testing.T, locked LockFunc, buttons ...Button) *Set {
	t.Helper()
	s := NewSet(locked)
	for _, b := range buttons {
		require.NoError(t, s.Add(b))
	}
	return s
}

func TestUpdate_EdgeTriggered(t *testing.T) {
	s := newTestSet(t, nil, Button{ID: 1, Name: "play", OwnerID: 10, Area: unitArea, Enabled: true})

	// pressed, pressed, pressed, released: exactly two notifications
	inputs := []bool{true, true, true, false}
	var events []core.ButtonEvent
	for i, p := range inputs {
		events = append(events, s.Update(uint64(i), []core.ButtonResult{{ID: 1, Pressed: p}}, allEnabled)...)
	}

	require.Len(t, events, 2)
	assert.True(t, events[0].Pressed)
	assert.Equal(t, uint64(0), events[0].Frame)
	assert.False(t, events[1].Pressed)
	assert.Equal(t, uint64(3), events[1].Frame)
	assert.Equal(t, 10, events[1].OwnerID)
}

func TestUpdate_MissingCountsAsReleased(t *testing.T) {
	s := newTestSet(t, nil, Button{ID: 1, OwnerID: 10, Area: unitArea, Enabled: true})

	require.Len(t, s.Update(1, []core.ButtonResult{{ID: 1, Pressed: true}}, allEnabled), 1)

	events := s.Update(2, nil, allEnabled)
	require.Len(t, events, 1)
	assert.False(t, events[0].Pressed)

	assert.Empty(t, s.Update(3, nil, allEnabled))
}

func TestUpdate_SkipsDisabled(t *testing.T) {
	s := newTestSet(t, nil,
		Button{ID: 1, OwnerID: 10, Area: unitArea, Enabled: false},
		Button{ID: 2, OwnerID: 20, Area: unitArea, Enabled: true},
	)
	ownerEnabled := func(owner int) bool { return owner != 20 }

	events := s.Update(1, []core.ButtonResult{{ID: 1, Pressed: true}, {ID: 2, Pressed: true}}, ownerEnabled)
	assert.Empty(t, events)
}

func TestOwnerDisabled_SingleSyntheticRelease(t *testing.T) {
	s := newTestSet(t, nil,
		Button{ID: 1, OwnerID: 10, Area: unitArea, Enabled: true},
		Button{ID: 2, OwnerID: 10, Area: unitArea, Enabled: true},
	)
	s.Update(1, []core.ButtonResult{{ID: 1, Pressed: true}}, allEnabled)

	events := s.OwnerDisabled(10, 2)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].ButtonID)
	assert.False(t, events[0].Pressed)
	assert.True(t, events[0].Synthetic)

	assert.Empty(t, s.OwnerDisabled(10, 3))

	// owner stays disabled: no further events while pressed is reported
	ownerOff := func(int) bool { return false }
	assert.Empty(t, s.Update(4, []core.ButtonResult{{ID: 1, Pressed: true}}, ownerOff))
}

func TestEdit_RejectedWhileLocked(t *testing.T) {
	active := false
	s := newTestSet(t, func(int) bool { return active },
		Button{ID: 1, OwnerID: 10, Area: unitArea, Enabled: true})

	active = true
	assert.ErrorIs(t, s.SetArea(1, unitArea), ErrInvalidState)
	assert.ErrorIs(t, s.SetSensitivity(1, SensitivityHigh), ErrInvalidState)
	assert.ErrorIs(t, s.SetButtonEnabled(1, false), ErrInvalidState)
	assert.ErrorIs(t, s.Remove(1), ErrInvalidState)
	assert.ErrorIs(t, s.Add(Button{ID: 2, OwnerID: 10, Area: unitArea}), ErrInvalidState)

	active = false
	require.NoError(t, s.SetSensitivity(1, SensitivityHigh))
	b, _, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, SensitivityHigh, b.Sensitivity)
}

func TestEdit_UnknownAndInvalid(t *testing.T) {
	s := newTestSet(t, nil, Button{ID: 1, OwnerID: 10, Area: unitArea})

	assert.ErrorIs(t, s.SetArea(5, unitArea), ErrNotFound)
	assert.ErrorIs(t, s.SetArea(1, Area{LeftTopX: 1, RightBottomX: -1}), ErrInvalidArea)
	assert.ErrorIs(t, s.Add(Button{ID: 1, OwnerID: 10, Area: unitArea}), ErrExists)
}

func TestAdd_DefaultSensitivity(t *testing.T) {
	s := newTestSet(t, nil, Button{ID: 3, OwnerID: 1, Area: unitArea})
	b, pressed, ok := s.Get(3)
	require.True(t, ok)
	assert.False(t, pressed)
	assert.Equal(t, SensitivityLow, b.Sensitivity)
}

func TestParseSensitivity(t *testing.T) {
	tests := []struct {
		in      string
		want    Sensitivity
		wantErr bool
	}{
		{"", SensitivityLow, false},
		{"HIGH", SensitivityHigh, false},
		{" medium ", SensitivityMedium, false},
		{"extreme", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSensitivity(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRemoveOwner(t *testing.T) {
	locked := false
	s := newTestSet(t, func(int) bool { return locked },
		Button{ID: 1, OwnerID: 10, Area: unitArea},
		Button{ID: 2, OwnerID: 11, Area: unitArea},
	)
	locked = true
	assert.Equal(t, 1, s.RemoveOwner(10))
	assert.Equal(t, 1, s.Len())
}
