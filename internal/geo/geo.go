// Package geo places scene coordinates on the globe.
//
// Scene axes are X east, Y north, Z up, in meters, relative to a configured
// origin. Points are stored as EPSG:4326 (lon/lat) or EPSG:3857 in WKB.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/arscene/statesync/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParseOrigin parses "lon,lat" or "lon,lat,alt".
func ParseOrigin(coords string) (lon, lat, alt float64, err error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, ErrInvalidCoordinates
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, ErrInvalidCoordinates
		}
	}
	if len(vals) == 3 {
		alt = vals[2]
	}
	return vals[0], vals[1], alt, nil
}

// Reference converts scene positions relative to a geographic origin.
type Reference struct {
	lon, lat, alt float64

	originX, originY float64
	// meters in EPSG:3857 per ground meter at the origin latitude
	scale float64

	toGeo func(a, b, c float64) (float64, float64, float64)
}

// NewReference creates a reference for an origin in degrees and meters.
func NewReference(lon, lat, alt float64) (*Reference, error) {
	if lon < -180 || lon > 180 || lat <= -85 || lat >= 85 || math.IsNaN(lon) || math.IsNaN(lat) {
		return nil, ErrInvalidCoordinates
	}

	epsg := wgs84.EPSG()
	toMercator := epsg.Transform(4326, 3857)
	x, y, _ := toMercator(lon, lat, 0)

	return &Reference{
		lon:     lon,
		lat:     lat,
		alt:     alt,
		originX: x,
		originY: y,
		scale:   1 / math.Cos(lat*math.Pi/180),
		toGeo:   epsg.Transform(3857, 4326),
	}, nil
}

// Origin returns the configured origin.
func (r *Reference) Origin() (lon, lat, alt float64) {
	return r.lon, r.lat, r.alt
}

// WebMercator returns p as an EPSG:3857 point with altitude as Z.
func (r *Reference) WebMercator(p core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: r.originX + p.X*r.scale, Y: r.originY + p.Y*r.scale},
		Z:    r.alt + p.Z,
		Type: geom.CoordinatesType(geom.DimXYZ),
	})
}

// LonLat converts p to degrees and altitude.
func (r *Reference) LonLat(p core.Vec3) (lon, lat, alt float64) {
	lon, lat, _ = r.toGeo(r.originX+p.X*r.scale, r.originY+p.Y*r.scale, 0)
	return lon, lat, r.alt + p.Z
}

// Point4326 returns p as an EPSG:4326 point with altitude as Z.
func (r *Reference) Point4326(p core.Vec3) geom.Point {
	lon, lat, alt := r.LonLat(p)
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: lon, Y: lat},
		Z:    alt,
		Type: geom.CoordinatesType(geom.DimXYZ),
	})
}

// ScenePoint returns p as a local XY point; Z is carried separately.
func ScenePoint(p core.Vec3) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: p.X, Y: p.Y}})
}
