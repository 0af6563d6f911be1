package car

import (
	"testing"

	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario E: a car parked in the pit lane for longer than the dwell time comes out serviced.
func TestPitStopServicesCar(t *testing.T) {
	tr := rectTrack(t)
	box := geo.Vec{X: 1500, Y: 300}
	require.True(t, tr.InPitLane(box))

	c := newTestCar(tr, box)
	c.Fuel = 0.3
	c.TireWear = 0.7
	c.TireTemp = 120
	c.ERSBattery = 0.2
	soft := params.Soft
	ctx := Context{Track: tr}

	c.Update(tick, Intent{RequestPit: true, NextCompound: &soft}, ctx)
	assert.Equal(t, PitEntering, c.Pit.Phase)
	assert.True(t, c.InPit())

	ticks := 1
	for c.Pit.Stops == 0 {
		c.Update(tick, Intent{Throttle: 1}, ctx)
		ticks++
		require.Less(t, ticks, 600, "car never left the pit")
		if c.Pit.Phase == PitServicing {
			assert.Equal(t, 0.0, c.Speed)
		}
		if c.Pit.Phase == PitEntering {
			assert.LessOrEqual(t, c.Speed, PitSpeedLimit)
		}
	}

	dwell := float64(ticks) * tick
	assert.GreaterOrEqual(t, dwell, PitEntryTime+PitServiceTime)
	assert.Less(t, dwell, PitEntryTime+PitServiceTime+4*tick)

	assert.Equal(t, 1.0, c.Fuel)
	assert.Equal(t, 0.0, c.TireWear)
	assert.Equal(t, InitialTireTemp, c.TireTemp)
	assert.Equal(t, 1.0, c.ERSBattery)
	assert.Equal(t, params.Soft, c.Compound)
	assert.Equal(t, 1, c.Pit.Stops)
	assert.Equal(t, PitRacing, c.Pit.Phase)
	assert.False(t, c.Pit.Requested)

	// without a new request the car drives straight through the lane
	c.Position = box
	drive(c, Intent{}, ctx, 10)
	assert.Equal(t, PitRacing, c.Pit.Phase)
	assert.Equal(t, 1, c.Pit.Stops)
}

func TestPitNeedsRequest(t *testing.T) {
	tr := rectTrack(t)
	c := newTestCar(tr, geo.Vec{X: 1500, Y: 300})
	drive(c, Intent{}, Context{Track: tr}, 300)
	assert.Equal(t, PitRacing, c.Pit.Phase)
	assert.Equal(t, 0, c.Pit.Stops)
}

func TestPitRequestStaysLatched(t *testing.T) {
	tr := rectTrack(t)
	c := newTestCar(tr, geo.Vec{X: 400, Y: 300})
	c.Update(tick, Intent{RequestPit: true}, Context{Track: tr})
	assert.True(t, c.Pit.Requested)
	assert.Equal(t, PitRacing, c.Pit.Phase)

	c.Position = geo.Vec{X: 1500, Y: 300}
	c.Update(tick, Intent{}, Context{Track: tr})
	assert.Equal(t, PitEntering, c.Pit.Phase)
	assert.False(t, c.Pit.ChangeCompound)
}

func TestPitPhaseString(t *testing.T) {
	assert.Equal(t, "servicing", PitServicing.String())
	assert.Equal(t, "PitPhase(9)", PitPhase(9).String())
}
