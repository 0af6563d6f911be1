package car

import (
	"github.com/racecontrol/racesim/internal/params"
	"github.com/racecontrol/racesim/internal/track"
	"github.com/racecontrol/racesim/internal/util"
)

// Intent is one tick of driver input.
type Intent struct {
	Throttle   float64 // -1 full brake .. 1 full throttle
	Steer      float64 // -1 left .. 1 right
	RequestPit bool
	RequestERS bool
	RequestDRS bool

	// Optional strategy changes. Nil leaves the current choice alone.
	NextCompound *params.Compound
	EngineMode   *params.EngineMode
}

// Clamped returns the intent with throttle and steer limited to [-1, 1]. NaN reads as zero.
func (in Intent) Clamped() Intent {
	in.Throttle = util.Clamp(util.CleanFloat(in.Throttle, 0), -1, 1)
	in.Steer = util.Clamp(util.CleanFloat(in.Steer, 0), -1, 1)
	return in
}

// Brake is the braking intensity in [0, 1].
func (in Intent) Brake() float64 {
	if in.Throttle < 0 {
		return -in.Throttle
	}
	return 0
}

// Context is the shared race information a car needs for one tick.
type Context struct {
	Track       *track.Track
	HasCarAhead bool
	GapAhead    float64 // seconds to the car ahead on the road
	SafetyCar   bool
}
