package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// WORLD COORDINATES
// The simulation runs in an abstract 2D plane with y growing downwards (screen convention).
// One world unit is treated as one metre when projecting onto the globe.

// ErrDegenerate is returned when geometry has no usable extent.
var ErrDegenerate = errors.New("degenerate geometry")

// Vec is a point or direction in world space.
type Vec struct {
	X float64
	Y float64
}

func (v Vec) Add(o Vec) Vec       { return Vec{v.X + o.X, v.Y + o.Y} }
func (v Vec) Sub(o Vec) Vec       { return Vec{v.X - o.X, v.Y - o.Y} }
func (v Vec) Scale(s float64) Vec { return Vec{v.X * s, v.Y * s} }
func (v Vec) Dot(o Vec) float64   { return v.X*o.X + v.Y*o.Y }
func (v Vec) Len() float64        { return math.Hypot(v.X, v.Y) }
func (v Vec) Dist(o Vec) float64  { return math.Hypot(v.X-o.X, v.Y-o.Y) }
func (v Vec) XY() geom.XY         { return geom.XY{X: v.X, Y: v.Y} }

// DistSq is the squared distance, for comparisons.
func (v Vec) DistSq(o Vec) float64 {
	dx, dy := v.X-o.X, v.Y-o.Y
	return dx*dx + dy*dy
}

// IsFinite reports whether both components are real numbers.
func (v Vec) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Lerp interpolates towards o.
func (v Vec) Lerp(o Vec, t float64) Vec {
	return Vec{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// Unit returns the normalised vector, or the zero vector for zero length.
func (v Vec) Unit() Vec {
	l := v.Len()
	if l == 0 {
		return Vec{}
	}
	return Vec{v.X / l, v.Y / l}
}

// HeadingDegrees is the direction of v in degrees, 0 along +X.
func (v Vec) HeadingDegrees() float64 {
	return math.Atan2(v.Y, v.X) * 180 / math.Pi
}

// FromHeading builds a unit vector pointing along heading (degrees).
func FromHeading(deg float64) Vec {
	r := deg * math.Pi / 180
	return Vec{math.Cos(r), math.Sin(r)}
}

// Projector places world coordinates on the globe around an anchor.
// The anchor is projected to EPSG:3857 and world offsets are applied in metres.
type Projector struct {
	anchorLon float64
	anchorLat float64
	originX   float64
	originY   float64
	toLonLat  func(a, b, c float64) (float64, float64, float64)
	enabled   bool
}

// NewProjector returns a projector anchored at lon/lat. A zero anchor disables projection.
func NewProjector(anchorLon, anchorLat float64) Projector {
	if anchorLon == 0 && anchorLat == 0 {
		return Projector{}
	}
	epsg := wgs84.EPSG()
	to3857 := epsg.Transform(4326, 3857)
	x, y, _ := to3857(anchorLon, anchorLat, 0)
	return Projector{
		anchorLon: anchorLon,
		anchorLat: anchorLat,
		originX:   x,
		originY:   y,
		toLonLat:  epsg.Transform(3857, 4326),
		enabled:   true,
	}
}

// Enabled reports whether the projector has an anchor.
func (p Projector) Enabled() bool {
	return p.enabled
}

// Anchor returns the lon/lat the world origin is pinned to.
func (p Projector) Anchor() (lon, lat float64) {
	return p.anchorLon, p.anchorLat
}

// LonLat converts a world position to longitude/latitude. Returns zeros when disabled.
func (p Projector) LonLat(v Vec) (lon, lat float64) {
	if !p.enabled {
		return 0, 0
	}
	// world y grows downward, mercator northing grows upward
	lon, lat, _ = p.toLonLat(p.originX+v.X, p.originY-v.Y, 0)
	return lon, lat
}

// Point returns the world position as a simplefeatures point.
func Point(v Vec) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: v.XY(), Type: geom.DimXY})
}
