package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// CatmullRom evaluates a uniform Catmull-Rom segment between p1 and p2 at t in [0,1].
func CatmullRom(p0, p1, p2, p3 Vec, t float64) Vec {
	t2, t3 := t*t, t*t*t
	x := 0.5 * ((2 * p1.X) + (-p0.X+p2.X)*t + (2*p0.X-5*p1.X+4*p2.X-p3.X)*t2 + (-p0.X+3*p1.X-3*p2.X+p3.X)*t3)
	y := 0.5 * ((2 * p1.Y) + (-p0.Y+p2.Y)*t + (2*p0.Y-5*p1.Y+4*p2.Y-p3.Y)*t2 + (-p0.Y+3*p1.Y-3*p2.Y+p3.Y)*t3)
	return Vec{x, y}
}

// SampleClosedSpline samples a closed Catmull-Rom loop through ctrl, perSegment points per control
// segment. The first sample equals ctrl[0]; the last sample does not repeat it.
func SampleClosedSpline(ctrl []Vec, perSegment int) []Vec {
	n := len(ctrl)
	if n < 3 || perSegment < 1 {
		return nil
	}
	out := make([]Vec, 0, n*perSegment)
	for i := 0; i < n; i++ {
		p0 := ctrl[(i-1+n)%n]
		p1 := ctrl[i]
		p2 := ctrl[(i+1)%n]
		p3 := ctrl[(i+2)%n]
		for s := 0; s < perSegment; s++ {
			out = append(out, CatmullRom(p0, p1, p2, p3, float64(s)/float64(perSegment)))
		}
	}
	return out
}

// ClosedPolyline is a loop of points backed by a simplefeatures LineString whose last vertex
// repeats the first.
type ClosedPolyline struct {
	points []Vec
	line   geom.LineString
}

// NewClosedPolyline closes points into a ring.
func NewClosedPolyline(points []Vec) (ClosedPolyline, error) {
	if len(points) < 3 {
		return ClosedPolyline{}, fmt.Errorf("polyline must have at least 3 points, got %d", len(points))
	}
	flat := make([]float64, 0, (len(points)+1)*2)
	for i, p := range points {
		if !p.IsFinite() {
			return ClosedPolyline{}, fmt.Errorf("point %d is not finite", i)
		}
		flat = append(flat, p.X, p.Y)
	}
	flat = append(flat, points[0].X, points[0].Y)

	seq := geom.NewSequence(flat, geom.DimXY)
	cp := make([]Vec, len(points))
	copy(cp, points)
	return ClosedPolyline{points: cp, line: geom.NewLineString(seq)}, nil
}

// Length is the perimeter of the loop.
func (c ClosedPolyline) Length() float64 {
	return c.line.Length()
}

// Points returns the open vertex list (no repeated closing vertex).
func (c ClosedPolyline) Points() []Vec {
	return c.points
}

// LineString exposes the closed ring geometry.
func (c ClosedPolyline) LineString() geom.LineString {
	return c.line
}

// Region is an axis-aligned rectangle in world space.
type Region struct {
	min, max Vec
}

// NewRegion builds the rectangle spanning the two corners in any order.
func NewRegion(a, b Vec) Region {
	lo := Vec{min(a.X, b.X), min(a.Y, b.Y)}
	hi := Vec{max(a.X, b.X), max(a.Y, b.Y)}
	return Region{min: lo, max: hi}
}

// RegionAround returns the bounding rectangle of points grown by pad on each side.
func RegionAround(points []Vec, pad float64) (Region, error) {
	if len(points) == 0 {
		return Region{}, ErrDegenerate
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = Vec{min(lo.X, p.X), min(lo.Y, p.Y)}
		hi = Vec{max(hi.X, p.X), max(hi.Y, p.Y)}
	}
	return NewRegion(lo.Sub(Vec{pad, pad}), hi.Add(Vec{pad, pad})), nil
}

// Contains reports whether p lies inside or on the boundary.
func (r Region) Contains(p Vec) bool {
	if r.min == r.max {
		return false
	}
	return p.X >= r.min.X && p.X <= r.max.X && p.Y >= r.min.Y && p.Y <= r.max.Y
}

// Clamp moves p to the nearest point inside the region.
func (r Region) Clamp(p Vec) Vec {
	return Vec{min(max(p.X, r.min.X), r.max.X), min(max(p.Y, r.min.Y), r.max.Y)}
}

func (r Region) Min() Vec      { return r.min }
func (r Region) Max() Vec      { return r.max }
func (r Region) IsEmpty() bool { return r.min == r.max }
func (r Region) Center() Vec   { return r.min.Add(r.max).Scale(0.5) }

// Polygon returns the rectangle as a closed simplefeatures ring, for storage.
func (r Region) Polygon() geom.Polygon {
	seq := geom.NewSequence([]float64{
		r.min.X, r.min.Y,
		r.max.X, r.min.Y,
		r.max.X, r.max.Y,
		r.min.X, r.max.Y,
		r.min.X, r.min.Y,
	}, geom.DimXY)
	return geom.NewPolygon([]geom.LineString{geom.NewLineString(seq)})
}
