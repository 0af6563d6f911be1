package race

// GateState is the state of a lap gate.
type GateState int

const (
	Armed GateState = iota
	Disarmed
)

func (s GateState) String() string {
	if s == Armed {
		return "armed"
	}
	return "disarmed"
}

// LapGate detects start-line crossings for one car. A crossing needs the car within Radius of
// the line and moving from behind it to on or past it, while the gate is armed. Only observations
// inside Radius update the remembered offset, so a car that goes wide over the line still counts
// once it is back inside. After a crossing the gate stays disarmed until more than Debounce seconds
// of race time have passed.
type LapGate struct {
	Radius   float64
	Debounce float64

	state      GateState
	last       float64
	prevOffset float64
	primed     bool
}

// NewLapGate returns an armed gate.
func NewLapGate(radius, debounce float64) LapGate {
	return LapGate{Radius: radius, Debounce: debounce}
}

// State reports whether the gate is armed at the given race clock.
func (g *LapGate) State(clock float64) GateState {
	if g.state == Disarmed && clock-g.last > g.Debounce {
		return Armed
	}
	return g.state
}

// Prime sets the starting offset so the first observation can already count.
func (g *LapGate) Prime(offset float64) {
	g.prevOffset = offset
	g.primed = true
}

// Observe feeds the car's distance to the line and its signed offset along the start direction.
// It returns true when this observation is a counted crossing.
func (g *LapGate) Observe(clock, distance, offset float64) bool {
	if distance >= g.Radius {
		return false
	}
	prev, primed := g.prevOffset, g.primed
	g.prevOffset, g.primed = offset, true

	g.state = g.State(clock)
	if g.state != Armed || !primed || !(prev < 0 && offset >= 0) {
		return false
	}
	g.state = Disarmed
	g.last = clock
	return true
}
