// Package ai drives cars with a reactive waypoint-following policy.
package ai

import (
	"math"
	"math/rand/v2"

	"github.com/racecontrol/racesim/internal/car"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/params"
	"github.com/racecontrol/racesim/internal/track"
	"github.com/racecontrol/racesim/internal/util"
)

const (
	CaptureRadius   = 120.0
	SteerFullAngle  = 45.0 // heading error that gives full lock
	SharpTurnAngle  = 30.0
	TurnAroundAngle = 90.0
	BaseThrottle    = 0.9
	CrawlThrottle   = 0.4
	TurnBrake       = -0.6
	Jitter          = 0.05

	PitWearThreshold = 0.75
	PitFuelThreshold = 0.12
	ERSSpeedFraction = 0.7
	ERSMinBattery    = 0.3
	SaveFuelBelow    = 0.25

	MinSkill      = 0.85
	MinAggression = 0.8

	// RetargetWindow is how many waypoints past the nearest one the target may run before it is
	// pulled back.
	RetargetWindow = 12
	// CornerLookahead is how many waypoints past the target the driver looks for the next bend.
	CornerLookahead   = 25
	CornerSlowdown    = 1.5 // speed fraction given up per 180° of bend
	MinCornerSpeed    = 0.3
	CornerBrakeMargin = 0.05
	// PitApproach is how many waypoints before the pit box a driver with a stop pending starts
	// aiming for it.
	PitApproach = 40
)

// Controller is one AI driver. Its only memory is the target waypoint and the tire choice
// for a pending stop. Cars with a stop pending aim for the pit box on the approach.
type Controller struct {
	id         int
	rng        *rand.Rand
	skill      float64
	aggression float64
	target     int

	planned   bool
	nextTire  params.Compound
	stopsSeen int
}

// Option configures a Controller.
type Option func(*Controller)

// WithSkill fixes the skill instead of drawing it.
func WithSkill(v float64) Option {
	return func(c *Controller) { c.skill = util.Clamp01(v) }
}

// WithAggression fixes the aggression instead of drawing it.
func WithAggression(v float64) Option {
	return func(c *Controller) { c.aggression = util.Clamp01(v) }
}

// New creates a controller whose random source depends only on seed and id.
func New(id int, seed uint64, opts ...Option) *Controller {
	rng := rand.New(rand.NewPCG(seed, uint64(id)))
	c := &Controller{
		id:         id,
		rng:        rng,
		skill:      MinSkill + rng.Float64()*(1-MinSkill),
		aggression: MinAggression + rng.Float64()*(1-MinAggression),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ID() int             { return c.id }
func (c *Controller) Target() int         { return c.target }
func (c *Controller) Skill() float64      { return c.skill }
func (c *Controller) Aggression() float64 { return c.aggression }

// Decide produces the intent for this tick. The car is passed by value and is never modified.
func (c *Controller) Decide(v car.Car, t *track.Track) car.Intent {
	if v.Finished || t == nil {
		return car.Intent{}
	}

	nearest := t.NearestWaypointIndex(v.Position)
	c.retarget(v, t, nearest)

	in := car.Intent{RequestDRS: true}
	c.strategy(v, &in)

	aim := t.Waypoint(c.target)
	if (in.RequestPit || v.Pit.Requested) && !v.InPit() {
		if box, ok := pitBox(t, nearest); ok {
			aim = box
		}
	}

	speedFrac := v.Speed / car.MaxSpeed
	desired := aim.Sub(v.Position).HeadingDegrees()
	diff := util.HeadingDelta(v.Heading, desired)
	in.Steer = util.Clamp(diff/SteerFullAngle, -1, 1) * c.skill
	in.Throttle = c.throttle(math.Abs(diff), speedFrac, cornerLimit(t, c.target))
	in.RequestERS = v.Speed >= ERSSpeedFraction*car.MaxSpeed && v.ERSBattery >= ERSMinBattery

	mode := params.Race
	if v.Fuel < SaveFuelBelow {
		mode = params.Conservation
	}
	in.EngineMode = &mode
	return in
}

// retarget keeps the target just ahead of the car. A target behind the nearest waypoint or too
// far past it means the car left the line, so the search restarts from the nearest waypoint.
func (c *Controller) retarget(v car.Car, t *track.Track, nearest int) {
	n := t.WaypointCount()
	ahead := ((c.target-nearest)%n + n) % n
	if ahead > n/2 || ahead > RetargetWindow {
		c.target = (nearest + 1) % n
	}
	for i := 0; i < n && v.Position.Dist(t.Waypoint(c.target)) < CaptureRadius; i++ {
		c.target = (c.target + 1) % n
	}
}

// cornerLimit is the highest speed fraction at which the bend past target can still be taken.
func cornerLimit(t *track.Track, target int) float64 {
	bend := math.Abs(util.HeadingDelta(t.HeadingAt(target), t.HeadingAt(target+CornerLookahead)))
	return math.Max(MinCornerSpeed, 1-bend/180*CornerSlowdown)
}

// pitBox is the centre of the pit lane when it lies within PitApproach waypoints ahead.
func pitBox(t *track.Track, nearest int) (geo.Vec, bool) {
	lane := t.PitLane()
	if lane.IsEmpty() {
		return geo.Vec{}, false
	}
	box := lane.Center()
	n := t.WaypointCount()
	ahead := ((t.NearestWaypointIndex(box)-nearest)%n + n) % n
	return box, ahead > 0 && ahead <= PitApproach
}

func (c *Controller) throttle(absDiff, speedFrac, cornerLimit float64) float64 {
	var th float64
	switch {
	case absDiff > TurnAroundAngle && speedFrac > 0.25:
		th = TurnBrake
	case absDiff > TurnAroundAngle:
		th = CrawlThrottle
	case speedFrac > cornerLimit+CornerBrakeMargin:
		th = TurnBrake
	case speedFrac > cornerLimit:
		th = 0
	case absDiff > SharpTurnAngle:
		th = BaseThrottle * c.aggression * (1 - (absDiff-SharpTurnAngle)/(TurnAroundAngle-SharpTurnAngle)*0.6)
	default:
		th = BaseThrottle * c.aggression
	}
	th += (c.rng.Float64()*2 - 1) * Jitter
	return util.Clamp(th, -1, 1)
}

// strategy requests a stop once tires or fuel cross their thresholds and picks the next compound.
func (c *Controller) strategy(v car.Car, in *car.Intent) {
	if v.Pit.Stops != c.stopsSeen {
		c.stopsSeen = v.Pit.Stops
		c.planned = false
	}
	if v.TireWear < PitWearThreshold && v.Fuel > PitFuelThreshold {
		return
	}
	if !c.planned {
		all := params.Compounds()
		c.nextTire = all[c.rng.IntN(len(all))]
		c.planned = true
	}
	next := c.nextTire
	in.RequestPit = true
	in.NextCompound = &next
}
