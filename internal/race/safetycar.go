package race

import "math"

// SafetyCar is the neutralisation state. While active every car is held to the safety car speed
// and nobody gets DRS or a tow.
type SafetyCar struct {
	Rate        float64
	Duration    float64
	Active      bool
	Remaining   float64
	Deployments int
}

// Step advances the safety car by dt. roll is a uniform sample in [0, 1) that decides deployment.
func (s *SafetyCar) Step(dt, roll float64) (deployed, withdrawn bool) {
	if dt <= 0 {
		return false, false
	}
	if s.Active {
		s.Remaining -= dt
		if s.Remaining <= 0 {
			s.Active = false
			s.Remaining = 0
			return false, true
		}
		return false, false
	}
	if s.Rate <= 0 || s.Duration <= 0 {
		return false, false
	}
	if roll < 1-math.Exp(-s.Rate*dt) {
		s.Active = true
		s.Remaining = s.Duration
		s.Deployments++
		return true, false
	}
	return false, false
}
