package geo

import (
	"errors"
	"testing"

	"github.com/arscene/statesync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		in            string
		lon, lat, alt float64
		err           bool
	}{
		{in: "13.4,52.5", lon: 13.4, lat: 52.5},
		{in: "13.4, 52.5, 34", lon: 13.4, lat: 52.5, alt: 34},
		{in: "-0.1,-51", lon: -0.1, lat: -51},
		{in: "13.4", err: true},
		{in: "a,b", err: true},
		{in: "1,2,3,4", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lon, lat, alt, err := ParseOrigin(tt.in)
			if tt.err {
				assert.True(t, errors.Is(err, ErrInvalidCoordinates))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lon, lon)
			assert.Equal(t, tt.lat, lat)
			assert.Equal(t, tt.alt, alt)
		})
	}
}

func TestNewReference_Invalid(t *testing.T) {
	_, err := NewReference(200, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
	_, err = NewReference(0, 89, 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)
}

func TestReference_OriginMapsToItself(t *testing.T) {
	ref, err := NewReference(13.4, 52.5, 34)
	require.NoError(t, err)

	lon, lat, alt := ref.LonLat(core.Vec3{})
	assert.InDelta(t, 13.4, lon, 1e-9)
	assert.InDelta(t, 52.5, lat, 1e-9)
	assert.InDelta(t, 34, alt, 1e-9)
}

func TestReference_OffsetsAreGroundMeters(t *testing.T) {
	ref, err := NewReference(13.4, 52.5, 0)
	require.NoError(t, err)

	// 111.32 km per degree of latitude near the origin, give or take the ellipsoid
	_, lat, _ := ref.LonLat(core.Vec3{Y: 1000})
	assert.InDelta(t, 52.5+1000.0/111_320, lat, 2e-4)

	lon, _, alt := ref.LonLat(core.Vec3{X: 1000, Z: 2})
	assert.Greater(t, lon, 13.4)
	assert.InDelta(t, 2, alt, 1e-9)
}

func TestReference_Points(t *testing.T) {
	ref, err := NewReference(0, 0, 10)
	require.NoError(t, err)

	p := ref.Point4326(core.Vec3{Z: 1})
	c, ok := p.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 0, c.X, 1e-9)
	assert.InDelta(t, 0, c.Y, 1e-9)
	assert.InDelta(t, 11, c.Z, 1e-9)

	m := ref.WebMercator(core.Vec3{X: 5, Y: -5})
	c, ok = m.Coordinates()
	require.True(t, ok)
	assert.InDelta(t, 5, c.X, 1e-6)
	assert.InDelta(t, -5, c.Y, 1e-6)
}

func TestTrajectory(t *testing.T) {
	ls, err := Trajectory([]core.Vec3{{X: 0}, {X: 0}, {X: 1, Z: 2}, {X: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, ls.Coordinates().Length())

	pts, ok := TrajectoryPoints(ls.AsGeometry())
	require.True(t, ok)
	assert.Equal(t, []core.Vec3{{X: 0}, {X: 1, Z: 2}, {X: 2}}, pts)
}

func TestTrajectory_TooShort(t *testing.T) {
	_, err := Trajectory([]core.Vec3{{X: 1}, {X: 1}})
	assert.Error(t, err)
	_, err = Trajectory(nil)
	assert.Error(t, err)
}
