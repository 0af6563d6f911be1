package runner

import (
	"github.com/racecontrol/racesim/internal/ai"
	"github.com/racecontrol/racesim/internal/car"
	"github.com/racecontrol/racesim/internal/track"
)

// InputSource supplies the player car's intent once per tick. The car is a copy.
type InputSource interface {
	Intent(v car.Car, t *track.Track) car.Intent
}

// Autopilot drives the player car with the same controller the field uses, for headless runs.
type Autopilot struct {
	ctrl *ai.Controller
}

// NewAutopilot returns an AI driver for car id, seeded like the rest of the field.
func NewAutopilot(id int, seed uint64, opts ...ai.Option) *Autopilot {
	return &Autopilot{ctrl: ai.New(id, seed, opts...)}
}

func (a *Autopilot) Intent(v car.Car, t *track.Track) car.Intent {
	return a.ctrl.Decide(v, t)
}

// StaticInput repeats one intent every tick.
type StaticInput car.Intent

func (s StaticInput) Intent(car.Car, *track.Track) car.Intent {
	return car.Intent(s)
}
