package car

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/params"
	"github.com/racecontrol/racesim/internal/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 1.0 / 60.0

// rectTrack is a 2400x1400 rectangle starting at (300,300) and running along +X first.
func rectTrack(t *testing.T) *track.Track {
	t.Helper()
	var pts []geo.Vec
	for x := 300.0; x < 2700; x += 100 {
		pts = append(pts, geo.Vec{X: x, Y: 300})
	}
	for y := 300.0; y < 1700; y += 100 {
		pts = append(pts, geo.Vec{X: 2700, Y: y})
	}
	for x := 2700.0; x > 300; x -= 100 {
		pts = append(pts, geo.Vec{X: x, Y: 1700})
	}
	for y := 1700.0; y > 300; y -= 100 {
		pts = append(pts, geo.Vec{X: 300, Y: y})
	}
	tr, err := track.New(track.Spec{Name: "rect", Waypoints: pts, Width: 220})
	require.NoError(t, err)
	return tr
}

func newTestCar(tr *track.Track, pos geo.Vec) *Car {
	c := New(Spec{ID: 1, Name: "Test", Position: pos, Compound: params.Medium, Downforce: DefaultDownforce})
	c.Locate(tr)
	return c
}

func drive(c *Car, in Intent, ctx Context, ticks int) {
	for i := 0; i < ticks; i++ {
		c.Update(tick, in, ctx)
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(Spec{ID: 3, Team: "Ferrari", Compound: params.Soft, Downforce: 50})
	assert.Equal(t, 1.0, c.Fuel)
	assert.Equal(t, 1.0, c.ERSBattery)
	assert.Equal(t, InitialTireTemp, c.TireTemp)
	assert.Equal(t, InitialBrakeTemp, c.BrakeTemp)
	assert.Equal(t, InitialEngineTemp, c.EngineTemp)
	assert.Equal(t, MaxDownforce, c.Downforce)
	assert.Equal(t, PitRacing, c.Pit.Phase)
	assert.Nil(t, c.BestLap)
	assert.Greater(t, c.Grip, 0.0)
}

func TestZeroStepLeavesStateUnchanged(t *testing.T) {
	tr := rectTrack(t)
	c := newTestCar(tr, geo.Vec{X: 600, Y: 300})
	drive(c, Intent{Throttle: 1, RequestERS: true}, Context{Track: tr}, 90)
	lap := 12.5
	c.BestLap = &lap

	before := c.Clone()
	c.Update(0, Intent{Throttle: 1, Steer: -1, RequestERS: true, RequestDRS: true}, Context{Track: tr, HasCarAhead: true, GapAhead: 0.1})
	if diff := cmp.Diff(before, c.Clone()); diff != "" {
		t.Errorf("zero step changed state (-before +after):\n%s", diff)
	}

	c.Update(math.NaN(), Intent{Throttle: 1}, Context{Track: tr})
	c.Update(-1, Intent{Throttle: 1}, Context{Track: tr})
	assert.Empty(t, cmp.Diff(before, c.Clone()))
}

func TestZeroStepLatchesStrategy(t *testing.T) {
	tr := rectTrack(t)
	c := newTestCar(tr, geo.Vec{X: 600, Y: 300})
	mode := params.Conservation
	hard := params.Hard
	c.Update(0, Intent{RequestPit: true, NextCompound: &hard, EngineMode: &mode}, Context{Track: tr})
	assert.True(t, c.Pit.Requested)
	assert.True(t, c.Pit.ChangeCompound)
	assert.Equal(t, params.Hard, c.Pit.NextCompound)
	assert.Equal(t, params.Conservation, c.EngineMode)

	bogus := params.EngineMode(42)
	c.Update(0, Intent{EngineMode: &bogus}, Context{Track: tr})
	assert.Equal(t, params.Conservation, c.EngineMode)
}

func TestFinishedCarIsFrozen(t *testing.T) {
	tr := rectTrack(t)
	c := newTestCar(tr, geo.Vec{X: 600, Y: 300})
	drive(c, Intent{Throttle: 1}, Context{Track: tr}, 60)
	c.Finish()
	before := c.Clone()
	drive(c, Intent{Throttle: 1, Steer: 1, RequestPit: true}, Context{Track: tr}, 60)
	assert.Empty(t, cmp.Diff(before, c.Clone()))
	assert.True(t, c.Finished)
	assert.Equal(t, 0.0, c.Speed)
}

func TestStateRangesHoldUnderRandomInput(t *testing.T) {
	tr := rectTrack(t)
	rng := rand.New(rand.NewPCG(7, 11))
	cars := []*Car{
		newTestCar(tr, geo.Vec{X: 400, Y: 300}),
		newTestCar(tr, geo.Vec{X: 2650, Y: 1000}),
		newTestCar(tr, geo.Vec{X: 10, Y: 10}),
	}
	cars[1].Compound = params.Soft
	cars[2].Fuel = 0.02

	for i := 0; i < 6000; i++ {
		for _, c := range cars {
			in := Intent{
				Throttle:   rng.Float64()*2.4 - 1.2,
				Steer:      rng.Float64()*2.4 - 1.2,
				RequestERS: rng.IntN(2) == 0,
				RequestDRS: rng.IntN(2) == 0,
				RequestPit: rng.IntN(500) == 0,
			}
			if i%997 == 0 {
				in.Throttle = math.NaN()
			}
			dt := rng.Float64() * 0.1
			ctx := Context{Track: tr, HasCarAhead: rng.IntN(2) == 0, GapAhead: rng.Float64() * 2, SafetyCar: i%1000 < 100}
			c.Update(dt, in, ctx)

			require.GreaterOrEqual(t, c.Speed, 0.0)
			require.False(t, math.IsNaN(c.Speed))
			require.True(t, c.Position.IsFinite())
			require.True(t, tr.World().Contains(c.Position))
			for name, v := range map[string]float64{
				"fuel": c.Fuel, "wear": c.TireWear, "ers": c.ERSBattery, "deploy": c.ERSDeployment,
			} {
				require.GreaterOrEqual(t, v, 0.0, name)
				require.LessOrEqual(t, v, 1.0, name)
			}
			require.GreaterOrEqual(t, c.TireTemp, MinTireTemp)
			require.LessOrEqual(t, c.TireTemp, MaxTireTemp)
			require.GreaterOrEqual(t, c.BrakeTemp, MinBrakeTemp)
			require.LessOrEqual(t, c.BrakeTemp, MaxBrakeTemp)
			require.GreaterOrEqual(t, c.EngineTemp, MinEngineTemp)
			require.LessOrEqual(t, c.EngineTemp, MaxEngineTemp)
			require.GreaterOrEqual(t, c.Grip, MinGrip)
			require.Equal(t, 0, c.Lap)
		}
	}
}

// Scenario A: a parked car with full fuel stays put and burns a little fuel.
func TestIdleCarStaysPut(t *testing.T) {
	tr := rectTrack(t)
	start := geo.Vec{X: 400, Y: 300}
	c := newTestCar(tr, start)

	prevFuel := c.Fuel
	for i := 0; i < 1000; i++ {
		c.Update(tick, Intent{}, Context{Track: tr})
		require.LessOrEqual(t, c.Fuel, prevFuel)
		prevFuel = c.Fuel
	}
	assert.InDelta(t, start.X, c.Position.X, 1e-9)
	assert.InDelta(t, start.Y, c.Position.Y, 1e-9)
	assert.Less(t, c.Fuel, 1.0)
	assert.Greater(t, c.Fuel, 0.99)
	assert.Equal(t, 0, c.Lap)
	assert.InDelta(t, 1000*tick, c.TotalTime, 1e-9)
}

// Scenario B: an almost empty car accelerates much more slowly.
func TestLowFuelSuppressesAcceleration(t *testing.T) {
	tr := rectTrack(t)
	full := newTestCar(tr, geo.Vec{X: 400, Y: 300})
	empty := newTestCar(tr, geo.Vec{X: 400, Y: 300})
	empty.Fuel = 0.01

	in := Intent{Throttle: 1}
	drive(full, in, Context{Track: tr}, 60)
	drive(empty, in, Context{Track: tr}, 60)

	assert.Greater(t, full.Speed, 0.0)
	assert.Less(t, empty.Speed, full.Speed*0.5)
	assert.Greater(t, empty.Fuel, 0.0)
}

// A car that runs dry keeps crawling instead of parking on track.
func TestEmptyTankLimps(t *testing.T) {
	tr := rectTrack(t)
	start := geo.Vec{X: 400, Y: 300}
	c := newTestCar(tr, start)
	c.Fuel = 0

	drive(c, Intent{Throttle: 1}, Context{Track: tr}, 120)
	assert.Greater(t, c.Speed, 0.0)
	assert.Greater(t, c.Position.Dist(start), 0.0)
	assert.Equal(t, 0.0, c.Fuel)

	full := newTestCar(tr, start)
	drive(full, Intent{Throttle: 1}, Context{Track: tr}, 120)
	assert.Less(t, c.Speed, full.Speed*0.5)
}

// Scenario D: worn tires mean less speed and less distance.
func TestWornTiresAreSlower(t *testing.T) {
	tr := rectTrack(t)
	start := geo.Vec{X: 400, Y: 300}
	fresh := newTestCar(tr, start)
	worn := newTestCar(tr, start)
	worn.TireWear = 0.9

	in := Intent{Throttle: 0.8}
	drive(fresh, in, Context{Track: tr}, 120)
	drive(worn, in, Context{Track: tr}, 120)

	assert.Less(t, worn.Speed, fresh.Speed)
	assert.Less(t, worn.Position.Dist(start), fresh.Position.Dist(start))
}

func TestBrakingSlowsAndHeatsBrakes(t *testing.T) {
	tr := rectTrack(t)
	c := newTestCar(tr, geo.Vec{X: 400, Y: 300})
	c.Speed = 300
	before := c.BrakeTemp
	battery := 0.5
	c.ERSBattery = battery
	drive(c, Intent{Throttle: -1}, Context{Track: tr}, 10)
	assert.Less(t, c.Speed, 300.0)
	assert.Greater(t, c.BrakeTemp, before)
	assert.Greater(t, c.ERSBattery, battery)
}

func TestSteeringNeedsSpeed(t *testing.T) {
	tr := rectTrack(t)
	parked := newTestCar(tr, geo.Vec{X: 400, Y: 300})
	drive(parked, Intent{Steer: 1}, Context{Track: tr}, 30)
	assert.Equal(t, 0.0, parked.Heading)

	moving := newTestCar(tr, geo.Vec{X: 400, Y: 300})
	moving.Speed = 200
	drive(moving, Intent{Steer: 1}, Context{Track: tr}, 30)
	assert.Greater(t, moving.Heading, 0.0)
}

func TestSpeedCaps(t *testing.T) {
	tr := rectTrack(t)
	c := newTestCar(tr, geo.Vec{X: 400, Y: 300})
	c.Speed = MaxSpeed
	c.Update(tick, Intent{Throttle: 1}, Context{Track: tr})
	assert.LessOrEqual(t, c.Speed, MaxSpeed*(1-DefaultDownforce*DownforceSpeedCoeff))

	c.Update(tick, Intent{Throttle: 1}, Context{Track: tr, SafetyCar: true})
	assert.LessOrEqual(t, c.Speed, SafetyCarSpeed)
}

func TestWorldBoundsClampAndPenalise(t *testing.T) {
	tr := rectTrack(t)
	w := tr.World()
	c := newTestCar(tr, geo.Vec{X: w.Min().X + 1, Y: 1000})
	c.Heading = 180
	c.Speed = 200
	c.Update(tick, Intent{}, Context{Track: tr})
	assert.Equal(t, w.Min().X, c.Position.X)
	assert.Less(t, c.Speed, 110.0)
}

func TestDRS(t *testing.T) {
	tr := rectTrack(t)
	require.True(t, tr.SectionAt(tr.Progress(geo.Vec{X: 800, Y: 300})).DRS)

	fast := func() *Car {
		c := newTestCar(tr, geo.Vec{X: 800, Y: 300})
		c.Speed = 0.8 * MaxSpeed
		return c
	}
	ahead := Context{Track: tr, HasCarAhead: true, GapAhead: 0.6}

	c := fast()
	c.Update(tick, Intent{Throttle: 1, RequestDRS: true}, ahead)
	assert.True(t, c.DRSAvailable)
	assert.True(t, c.DRSActive)

	// releasing DRS starts the cooldown
	c.Update(tick, Intent{Throttle: 1}, ahead)
	assert.False(t, c.DRSActive)
	assert.Equal(t, DRSCooldown, c.DRSCooldown)
	c.Update(tick, Intent{Throttle: 1, RequestDRS: true}, ahead)
	assert.False(t, c.DRSAvailable)

	tests := []struct {
		name string
		in   Intent
		ctx  Context
	}{
		{"no car ahead", Intent{Throttle: 1, RequestDRS: true}, Context{Track: tr}},
		{"gap too large", Intent{Throttle: 1, RequestDRS: true}, Context{Track: tr, HasCarAhead: true, GapAhead: 1.5}},
		{"steering", Intent{Throttle: 1, Steer: 0.5, RequestDRS: true}, ahead},
		{"safety car", Intent{Throttle: 1, RequestDRS: true}, Context{Track: tr, HasCarAhead: true, GapAhead: 0.2, SafetyCar: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fast()
			c.Update(tick, tt.in, tt.ctx)
			assert.False(t, c.DRSActive)
		})
	}

	slow := newTestCar(tr, geo.Vec{X: 800, Y: 300})
	slow.Speed = 100
	slow.Update(tick, Intent{Throttle: 1, RequestDRS: true}, ahead)
	assert.False(t, slow.DRSAvailable)
}

func TestIntentClamped(t *testing.T) {
	in := Intent{Throttle: 3, Steer: math.NaN()}.Clamped()
	assert.Equal(t, 1.0, in.Throttle)
	assert.Equal(t, 0.0, in.Steer)
	assert.Equal(t, 0.0, in.Brake())

	in = Intent{Throttle: -0.4, Steer: -7}.Clamped()
	assert.Equal(t, -1.0, in.Steer)
	assert.InDelta(t, 0.4, in.Brake(), 1e-12)
}

func TestCloneIsDeep(t *testing.T) {
	c := New(Spec{Compound: params.Hard})
	v := 80.0
	c.BestLap = &v
	cp := c.Clone()
	*cp.BestLap = 1
	assert.Equal(t, 80.0, *c.BestLap)
}

func TestState(t *testing.T) {
	c := New(Spec{ID: 4, Name: "Leclerc", Team: "Ferrari", Compound: params.Soft, Position: geo.Vec{X: 1, Y: 2}})
	last := 90.5
	c.LastLap = &last
	s := c.State()
	assert.Equal(t, 4, s.CarID)
	assert.Equal(t, "soft", s.Compound)
	assert.Equal(t, "race", s.EngineMode)
	assert.Equal(t, "racing", s.PitPhase)
	assert.Equal(t, 1.0, s.Position.X)
	require.NotNil(t, s.LastLap)
	*s.LastLap = 0
	assert.Equal(t, 90.5, *c.LastLap)

	id := c.Identity()
	assert.Equal(t, "Ferrari", id.Team)
	assert.Equal(t, "soft", id.Compound)
}
