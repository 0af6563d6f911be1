package car

import (
	"fmt"

	"github.com/racecontrol/racesim/internal/params"
)

// Pit timing in seconds.
const (
	PitEntryTime   = 1.0
	PitServiceTime = 3.0
)

// PitPhase is the state of the pit sub-machine.
type PitPhase int

const (
	PitRacing PitPhase = iota
	PitEntering
	PitServicing
)

func (p PitPhase) String() string {
	switch p {
	case PitRacing:
		return "racing"
	case PitEntering:
		return "entering"
	case PitServicing:
		return "servicing"
	}
	return fmt.Sprintf("PitPhase(%d)", int(p))
}

// Pit is the per-car pit state. Requested stays latched until the stop happens.
type Pit struct {
	Phase          PitPhase
	Timer          float64
	Stops          int
	Requested      bool
	NextCompound   params.Compound
	ChangeCompound bool
	EnteredAt      float64 // total time when the car entered the lane
}

// InPit reports whether the car is in the lane.
func (c *Car) InPit() bool {
	return c.Pit.Phase != PitRacing
}

func (c *Car) pitStep(dt float64, ctx Context) {
	switch c.Pit.Phase {
	case PitRacing:
		if c.Pit.Requested && ctx.Track != nil && ctx.Track.InPitLane(c.Position) {
			c.Pit.Phase = PitEntering
			c.Pit.Timer = 0
			c.Pit.EnteredAt = c.TotalTime
			c.DRSActive, c.DRSAvailable = false, false
		}
	case PitEntering:
		c.Pit.Timer += dt
		if c.Pit.Timer >= PitEntryTime {
			c.Pit.Phase = PitServicing
			c.Pit.Timer = 0
			c.Speed = 0
		}
	case PitServicing:
		c.Speed = 0
		c.Pit.Timer += dt
		if c.Pit.Timer >= PitServiceTime {
			c.service()
		}
	}
}

// service refuels and refits the car and sends it back out.
func (c *Car) service() {
	c.Fuel = 1
	c.TireWear = 0
	c.TireTemp = InitialTireTemp
	c.BrakeTemp = InitialBrakeTemp
	c.EngineTemp = InitialEngineTemp
	c.ERSBattery = 1
	c.ERSDeployment = 0
	c.DRSCooldown = 0
	if c.Pit.ChangeCompound {
		c.Compound = c.Pit.NextCompound
	}
	c.Pit = Pit{Stops: c.Pit.Stops + 1}
	c.Grip = Grip(c.Compound.Params(), c.TireWear, c.TireTemp, c.Downforce)
}
