package geo

import (
	"fmt"

	"github.com/arscene/statesync/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Trajectory builds a LineStringZ from consecutive scene positions.
// Consecutive duplicates are dropped.
func Trajectory(points []core.Vec3) (geom.LineString, error) {
	flat := make([]float64, 0, len(points)*3)
	var last core.Vec3
	for i, p := range points {
		if i > 0 && p == last {
			continue
		}
		flat = append(flat, p.X, p.Y, p.Z)
		last = p
	}

	if len(flat) < 6 {
		return geom.LineString{}, fmt.Errorf("trajectory must have at least 2 distinct points, got %d", len(flat)/3)
	}

	seq := geom.NewSequence(flat, geom.DimXYZ)
	return geom.NewLineString(seq), nil
}

// TrajectoryPoints reads the positions back out of a trajectory geometry.
func TrajectoryPoints(g geom.Geometry) ([]core.Vec3, bool) {
	ls, ok := g.AsLineString()
	if !ok {
		return nil, false
	}
	seq := ls.Coordinates()
	out := make([]core.Vec3, seq.Length())
	for i := range out {
		c := seq.Get(i)
		out[i] = core.Vec3{X: c.X, Y: c.Y, Z: c.Z}
	}
	return out, true
}
