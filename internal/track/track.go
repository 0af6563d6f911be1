// Package track holds immutable circuit geometry and the geometric queries the race needs.
package track

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/pkg/core"
)

const (
	// SamplesPerSegment is how many waypoints each control-point segment is split into.
	SamplesPerSegment = 40
	// DefaultWidth is the paved width of a circuit.
	DefaultWidth = 220.0
	// RunOffMargin is how far past the track edge a car may go before it counts as off track.
	RunOffMargin = 20.0
	// StraightRadius is the curvature radius above which a stretch counts as straight.
	StraightRadius = 1000.0
	// DRSMinLength is the minimum length of a derived straight that gets a DRS zone.
	DRSMinLength = 600.0
	// WorldWidth and WorldHeight are the minimum extent of the world rectangle.
	WorldWidth  = 3000.0
	WorldHeight = 2000.0
)

var (
	ErrTooFewWaypoints = errors.New("track needs at least 3 waypoints")
	ErrZeroLength      = errors.New("track has zero length")
	ErrInvalidWidth    = errors.New("track width must be positive")
	ErrUnknownPreset   = errors.New("unknown track preset")
)

// Kind classifies a section.
type Kind int

const (
	Straight Kind = iota
	Corner
)

func (k Kind) String() string {
	switch k {
	case Straight:
		return core.SectionStraight
	case Corner:
		return core.SectionCorner
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Section is a classified stretch of the loop, positioned by distance from the start line.
type Section struct {
	Kind   Kind
	Start  float64
	Length float64
	Radius float64 // zero for straights
	DRS    bool
}

// End is the distance at which the section stops.
func (s Section) End() float64 {
	return s.Start + s.Length
}

// SectionSpec is a section described by relative length only.
type SectionSpec struct {
	Kind   Kind
	Length float64
	Radius float64
	DRS    bool
}

// Spec describes a circuit to build. Exactly one of ControlPoints or Waypoints is used,
// ControlPoints taking precedence.
type Spec struct {
	Name          string
	ControlPoints []geo.Vec
	Waypoints     []geo.Vec
	Width         float64
	Sections      []SectionSpec
	PitLane       *geo.Region
}

// Track is an immutable closed circuit. All methods are safe for concurrent readers.
type Track struct {
	name       string
	waypoints  []geo.Vec
	line       geo.ClosedPolyline
	cumulative []float64 // distance from the start line to each waypoint
	length     float64
	width      float64
	sections   []Section
	pit        geo.Region
	world      geo.Region
	startDir   geo.Vec
}

// New validates spec and builds the track.
func New(spec Spec) (*Track, error) {
	points := spec.Waypoints
	if len(spec.ControlPoints) > 0 {
		if len(spec.ControlPoints) < 3 {
			return nil, fmt.Errorf("%w: got %d control points", ErrTooFewWaypoints, len(spec.ControlPoints))
		}
		points = geo.SampleClosedSpline(spec.ControlPoints, SamplesPerSegment)
	}
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewWaypoints, len(points))
	}

	width := spec.Width
	if width == 0 {
		width = DefaultWidth
	}
	if width < 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWidth, width)
	}

	line, err := geo.NewClosedPolyline(points)
	if err != nil {
		return nil, fmt.Errorf("invalid waypoints: %w", err)
	}
	length := line.Length()
	if !(length > 0) {
		return nil, ErrZeroLength
	}

	t := &Track{
		name:       spec.Name,
		waypoints:  line.Points(),
		line:       line,
		cumulative: make([]float64, len(points)),
		length:     length,
		width:      width,
	}
	for i := 1; i < len(t.waypoints); i++ {
		t.cumulative[i] = t.cumulative[i-1] + t.waypoints[i].Dist(t.waypoints[i-1])
	}

	n := len(t.waypoints)
	t.startDir = t.waypoints[1].Sub(t.waypoints[n-1]).Unit()
	if t.startDir == (geo.Vec{}) {
		t.startDir = t.waypoints[1].Sub(t.waypoints[0]).Unit()
	}
	if t.startDir == (geo.Vec{}) {
		t.startDir = geo.Vec{X: 1}
	}

	if len(spec.Sections) > 0 {
		t.sections = scaleSections(spec.Sections, length)
	} else {
		t.sections = t.deriveSections()
	}

	if spec.PitLane != nil && !spec.PitLane.IsEmpty() {
		t.pit = *spec.PitLane
	} else {
		t.pit = t.derivePitLane()
	}

	t.world = t.deriveWorld()
	return t, nil
}

// scaleSections lays relative section lengths end to end over the geometric loop length.
func scaleSections(specs []SectionSpec, length float64) []Section {
	var total float64
	for _, s := range specs {
		total += math.Max(s.Length, 0)
	}
	if total == 0 {
		return []Section{{Kind: Straight, Length: length}}
	}
	scale := length / total
	out := make([]Section, 0, len(specs))
	start := 0.0
	for _, s := range specs {
		l := math.Max(s.Length, 0) * scale
		if l == 0 {
			continue
		}
		sec := Section{Kind: s.Kind, Start: start, Length: l, DRS: s.DRS}
		if s.Kind == Corner {
			sec.Radius = s.Radius * scale
		}
		out = append(out, sec)
		start += l
	}
	return out
}

// circumradius of the triangle abc, +Inf when collinear or degenerate.
func circumradius(a, b, c geo.Vec) float64 {
	ab, bc, ca := a.Dist(b), b.Dist(c), c.Dist(a)
	cross := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	area2 := math.Abs(cross)
	if area2 < 1e-9 {
		return math.Inf(1)
	}
	return ab * bc * ca / (2 * area2)
}

// deriveSections classifies every segment by the curvature at its first waypoint and merges runs.
func (t *Track) deriveSections() []Section {
	n := len(t.waypoints)
	var out []Section
	for i := 0; i < n; i++ {
		r := circumradius(t.waypoints[(i-1+n)%n], t.waypoints[i], t.waypoints[(i+1)%n])
		kind := Straight
		if r <= StraightRadius {
			kind = Corner
		}
		segLen := t.segmentLength(i)
		if len(out) > 0 && out[len(out)-1].Kind == kind {
			last := &out[len(out)-1]
			last.Length += segLen
			if kind == Corner {
				last.Radius = math.Min(last.Radius, r)
			}
			continue
		}
		sec := Section{Kind: kind, Start: t.cumulative[i], Length: segLen}
		if kind == Corner {
			sec.Radius = r
		}
		out = append(out, sec)
	}
	for i := range out {
		if out[i].Kind == Straight && out[i].Length >= DRSMinLength {
			out[i].DRS = true
		}
	}
	return out
}

// derivePitLane puts the pit box over the middle half of the first straight.
func (t *Track) derivePitLane() geo.Region {
	from, to := 0.0, t.length*0.05
	for _, s := range t.sections {
		if s.Kind == Straight {
			from, to = s.Start+s.Length*0.25, s.Start+s.Length*0.75
			break
		}
	}
	var pts []geo.Vec
	for i, d := range t.cumulative {
		if d >= from && d <= to {
			pts = append(pts, t.waypoints[i])
		}
	}
	if len(pts) == 0 {
		pts = []geo.Vec{t.waypoints[0]}
	}
	r, _ := geo.RegionAround(pts, t.width/2)
	return r
}

// deriveWorld is the default world rectangle grown to hold the whole circuit.
func (t *Track) deriveWorld() geo.Region {
	pad := t.width + RunOffMargin
	box, _ := geo.RegionAround(t.waypoints, pad)
	lo := geo.Vec{X: math.Min(0, box.Min().X), Y: math.Min(0, box.Min().Y)}
	hi := geo.Vec{X: math.Max(WorldWidth, box.Max().X), Y: math.Max(WorldHeight, box.Max().Y)}
	return geo.NewRegion(lo, hi)
}

func (t *Track) segmentLength(i int) float64 {
	n := len(t.waypoints)
	return t.waypoints[i].Dist(t.waypoints[(i+1)%n])
}

func (t *Track) Name() string            { return t.name }
func (t *Track) Length() float64         { return t.length }
func (t *Track) Width() float64          { return t.width }
func (t *Track) WaypointCount() int      { return len(t.waypoints) }
func (t *Track) StartLine() geo.Vec      { return t.waypoints[0] }
func (t *Track) StartDirection() geo.Vec { return t.startDir }
func (t *Track) PitLane() geo.Region     { return t.pit }
func (t *Track) World() geo.Region       { return t.world }

// Waypoint returns waypoint i, wrapping around the loop.
func (t *Track) Waypoint(i int) geo.Vec {
	n := len(t.waypoints)
	return t.waypoints[((i%n)+n)%n]
}

// Waypoints returns a copy of the sampled centreline.
func (t *Track) Waypoints() []geo.Vec {
	out := make([]geo.Vec, len(t.waypoints))
	copy(out, t.waypoints)
	return out
}

// Sections returns a copy of the section list.
func (t *Track) Sections() []Section {
	out := make([]Section, len(t.sections))
	copy(out, t.sections)
	return out
}

// wrap maps any distance into [0, length).
func (t *Track) wrap(d float64) float64 {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	d = math.Mod(d, t.length)
	if d < 0 {
		d += t.length
	}
	if d >= t.length {
		d = 0
	}
	return d
}

// SectionAt classifies the loop at distance d from the start line. d is taken modulo the length.
func (t *Track) SectionAt(d float64) Section {
	d = t.wrap(d)
	i := sort.Search(len(t.sections), func(i int) bool { return t.sections[i].Start > d }) - 1
	if i < 0 {
		i = 0
	}
	return t.sections[i]
}

// NearestWaypointIndex returns the index of the waypoint closest to p.
func (t *Track) NearestWaypointIndex(p geo.Vec) int {
	best, bestD := 0, math.Inf(1)
	for i, w := range t.waypoints {
		if d := w.DistSq(p); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// project returns the progress distance and centreline distance of p on segment i.
// A zero-length segment contributes no progress.
func (t *Track) project(i int, p geo.Vec) (progress, dist float64) {
	a := t.waypoints[i]
	b := t.Waypoint(i + 1)
	seg := b.Sub(a)
	l2 := seg.Dot(seg)
	if l2 == 0 {
		return t.cumulative[i], p.Dist(a)
	}
	u := p.Sub(a).Dot(seg) / l2
	u = math.Max(0, math.Min(1, u))
	foot := a.Add(seg.Scale(u))
	return t.cumulative[i] + u*math.Sqrt(l2), p.Dist(foot)
}

// locate projects p onto the two segments touching its nearest waypoint.
func (t *Track) locate(p geo.Vec) (progress, dist float64) {
	n := len(t.waypoints)
	i := t.NearestWaypointIndex(p)
	pa, da := t.project((i-1+n)%n, p)
	pb, db := t.project(i, p)
	if da < db {
		return pa, da
	}
	return pb, db
}

// Progress is the distance along the loop from the start line to the projection of p, in [0, Length).
func (t *Track) Progress(p geo.Vec) float64 {
	if !p.IsFinite() {
		return 0
	}
	prog, _ := t.locate(p)
	return t.wrap(prog)
}

// Fraction is Progress divided by Length, in [0, 1).
func (t *Track) Fraction(p geo.Vec) float64 {
	return t.Progress(p) / t.length
}

// DistanceFromCenterline is how far p is from the sampled centreline.
func (t *Track) DistanceFromCenterline(p geo.Vec) float64 {
	if !p.IsFinite() {
		return math.Inf(1)
	}
	_, d := t.locate(p)
	return d
}

// OffTrack reports whether p is beyond the track edge plus run-off margin.
func (t *Track) OffTrack(p geo.Vec) bool {
	return t.DistanceFromCenterline(p) > t.width/2+RunOffMargin
}

// InPitLane reports whether p lies inside the pit-lane region.
func (t *Track) InPitLane(p geo.Vec) bool {
	return t.pit.Contains(p)
}

// StartLineOffset is the signed distance of p along the start direction, measured from the start line.
// Negative means behind the line.
func (t *Track) StartLineOffset(p geo.Vec) float64 {
	return p.Sub(t.StartLine()).Dot(t.startDir)
}

// HeadingAt is the direction of travel (degrees) at waypoint i.
func (t *Track) HeadingAt(i int) float64 {
	return t.Waypoint(i + 1).Sub(t.Waypoint(i)).HeadingDegrees()
}

// Circuit converts the track into its presentation form.
func (t *Track) Circuit() core.Circuit {
	c := core.Circuit{
		Name:       t.name,
		Waypoints:  make([]core.Position2D, len(t.waypoints)),
		Width:      t.width,
		Length:     t.length,
		StartLine:  core.Position2D{X: t.StartLine().X, Y: t.StartLine().Y},
		PitLaneMin: core.Position2D{X: t.pit.Min().X, Y: t.pit.Min().Y},
		PitLaneMax: core.Position2D{X: t.pit.Max().X, Y: t.pit.Max().Y},
		Sections:   make([]core.Section, len(t.sections)),
	}
	for i, w := range t.waypoints {
		c.Waypoints[i] = core.Position2D{X: w.X, Y: w.Y}
	}
	for i, s := range t.sections {
		c.Sections[i] = core.Section{Kind: s.Kind.String(), Start: s.Start, Length: s.Length, Radius: s.Radius, DRS: s.DRS}
	}
	return c
}
