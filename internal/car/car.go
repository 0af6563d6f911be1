// Package car owns the continuous state of a single car and the rule that advances it one tick.
package car

import (
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/params"
	"github.com/racecontrol/racesim/internal/track"
	"github.com/racecontrol/racesim/internal/util"
	"github.com/racecontrol/racesim/pkg/core"
)

// Fresh values a car starts with and returns to after a pit stop.
const (
	InitialTireTemp   = 45.0
	InitialBrakeTemp  = 40.0
	InitialEngineTemp = 85.0
	DefaultDownforce  = 5.0
	MaxDownforce      = 10.0
)

// Spec describes a car at creation.
type Spec struct {
	ID         int
	Name       string
	Team       string
	Color      string
	IsPlayer   bool
	Position   geo.Vec
	Heading    float64
	Compound   params.Compound
	EngineMode params.EngineMode
	Downforce  float64
}

// Car is the full state of one car. Only Update, Finish and the pit machine mutate it;
// readers get copies through Clone or State.
type Car struct {
	ID       int
	Name     string
	Team     string
	Color    string
	IsPlayer bool

	Position geo.Vec
	Heading  float64 // degrees, 0 along +X
	Speed    float64

	Fuel          float64
	TireWear      float64
	TireTemp      float64
	BrakeTemp     float64
	EngineTemp    float64
	ERSBattery    float64
	ERSDeployment float64
	DRSAvailable  bool
	DRSActive     bool
	DRSCooldown   float64
	Grip          float64

	Compound   params.Compound
	EngineMode params.EngineMode
	Downforce  float64

	Lap          int
	Finished     bool
	Rank         int
	TotalTime    float64
	LapTime      float64
	BestLap      *float64
	LastLap      *float64
	LastCrossing *float64

	WaypointIndex int
	Progress      float64 // distance along the loop from the start line
	OffTrack      bool
	GapAhead      float64 // seconds, 0 when nobody is ahead

	Pit Pit
}

// New builds a car with full fuel, fresh tires and a charged battery.
func New(s Spec) *Car {
	c := &Car{
		ID:         s.ID,
		Name:       s.Name,
		Team:       s.Team,
		Color:      s.Color,
		IsPlayer:   s.IsPlayer,
		Position:   s.Position,
		Heading:    s.Heading,
		Fuel:       1,
		TireTemp:   InitialTireTemp,
		BrakeTemp:  InitialBrakeTemp,
		EngineTemp: InitialEngineTemp,
		ERSBattery: 1,
		Compound:   s.Compound,
		EngineMode: s.EngineMode,
		Downforce:  clampDownforce(s.Downforce),
	}
	c.Grip = Grip(c.Compound.Params(), c.TireWear, c.TireTemp, c.Downforce)
	return c
}

func clampDownforce(v float64) float64 {
	return util.Clamp(util.CleanFloat(v, 0), 0, MaxDownforce)
}

// Locate refreshes the track-relative fields from the current position.
func (c *Car) Locate(t *track.Track) {
	c.WaypointIndex = t.NearestWaypointIndex(c.Position)
	c.Progress = t.Progress(c.Position)
	c.OffTrack = t.OffTrack(c.Position)
}

// Finish freezes the car. It cannot be undone.
func (c *Car) Finish() {
	c.Finished = true
	c.Speed = 0
	c.ERSDeployment = 0
	c.DRSActive = false
	c.DRSAvailable = false
}

// Clone returns a deep copy that shares nothing with c.
func (c *Car) Clone() Car {
	out := *c
	out.BestLap = copyFloat(c.BestLap)
	out.LastLap = copyFloat(c.LastLap)
	out.LastCrossing = copyFloat(c.LastCrossing)
	return out
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Identity is the static description used by recorders.
func (c *Car) Identity() core.Car {
	return core.Car{
		ID:       c.ID,
		Name:     c.Name,
		Team:     c.Team,
		Color:    c.Color,
		Compound: c.Compound.String(),
		IsPlayer: c.IsPlayer,
	}
}

// State converts the car into its presentation form. Pointers are copied.
func (c *Car) State() core.CarState {
	return core.CarState{
		CarID:         c.ID,
		Position:      core.Position2D{X: c.Position.X, Y: c.Position.Y},
		Heading:       c.Heading,
		Speed:         c.Speed,
		Fuel:          c.Fuel,
		TireWear:      c.TireWear,
		TireTemp:      c.TireTemp,
		BrakeTemp:     c.BrakeTemp,
		EngineTemp:    c.EngineTemp,
		ERSBattery:    c.ERSBattery,
		ERSDeployment: c.ERSDeployment,
		DRSAvailable:  c.DRSAvailable,
		DRSActive:     c.DRSActive,
		DRSCooldown:   c.DRSCooldown,
		Grip:          c.Grip,
		Compound:      c.Compound.String(),
		EngineMode:    c.EngineMode.String(),
		Downforce:     c.Downforce,
		Lap:           c.Lap,
		Rank:          c.Rank,
		Finished:      c.Finished,
		TotalTime:     c.TotalTime,
		LapTime:       c.LapTime,
		BestLap:       copyFloat(c.BestLap),
		LastLap:       copyFloat(c.LastLap),
		LastCrossing:  copyFloat(c.LastCrossing),
		WaypointIndex: c.WaypointIndex,
		Progress:      c.Progress,
		GapAhead:      c.GapAhead,
		PitPhase:      c.Pit.Phase.String(),
		PitTimer:      c.Pit.Timer,
		PitStops:      c.Pit.Stops,
		OffTrack:      c.OffTrack,
	}
}
