package car

import (
	"testing"

	"github.com/racecontrol/racesim/internal/params"
	"github.com/stretchr/testify/assert"
)

func TestGripWearIsMonotonic(t *testing.T) {
	p := params.Medium.Params()
	prev := Grip(p, 0, p.OptimalTemp, 0)
	for w := 0.1; w <= 1.0; w += 0.1 {
		g := Grip(p, w, p.OptimalTemp, 0)
		assert.LessOrEqual(t, g, prev)
		prev = g
	}
	// penalty is capped
	assert.InDelta(t, p.Grip*(1-MaxWearPenalty), Grip(p, 1, p.OptimalTemp, 0), 1e-12)
}

func TestGripTemperatureWindow(t *testing.T) {
	p := params.Soft.Params()
	inWindow := Grip(p, 0, p.OptimalTemp+p.TempBand, 0)
	assert.InDelta(t, p.Grip, inWindow, 1e-12)

	cold := Grip(p, 0, p.OptimalTemp-p.TempBand-10, 0)
	assert.InDelta(t, p.Grip*(1-10*TempPenaltySlope), cold, 1e-12)

	frozen := Grip(p, 0, -500, 0)
	assert.InDelta(t, p.Grip*(1-MaxTempPenalty), frozen, 1e-12)
}

func TestGripFloorAndDownforce(t *testing.T) {
	weak := params.CompoundParams{Grip: 0.1, OptimalTemp: 90, TempBand: 5}
	assert.Equal(t, MinGrip, Grip(weak, 1, 500, 0))

	p := params.Hard.Params()
	assert.InDelta(t, Grip(p, 0, p.OptimalTemp, 0)+5*DownforceGripBonus, Grip(p, 0, p.OptimalTemp, 5), 1e-12)
}

func TestPowerMultiplier(t *testing.T) {
	race := params.Race.Params()
	base := PowerMultiplier(race, 1, 0, false, false)
	assert.InDelta(t, 1.0, base, 1e-12)

	lighter := PowerMultiplier(race, 0.5, 0, false, false)
	assert.Greater(t, lighter, base)

	assert.InDelta(t, base+DRSBoost, PowerMultiplier(race, 1, 0, true, false), 1e-12)
	assert.InDelta(t, base+SlipstreamBoost, PowerMultiplier(race, 1, 0, false, true), 1e-12)
	assert.InDelta(t, base+ERSBoost, PowerMultiplier(race, 1, 1, false, false), 1e-12)

	starving := PowerMultiplier(race, LowFuelThreshold/2, 0, false, false)
	assert.Less(t, starving, base*0.6)
	// an empty tank still leaves enough to limp round
	assert.InDelta(t, LimpPower*ReferenceWeight/BaseWeight, PowerMultiplier(race, 0, 0, false, false), 1e-12)

	q := PowerMultiplier(params.Qualifying.Params(), 1, 0, false, false)
	assert.InDelta(t, 1.15, q, 1e-12)
}

func TestERSStep(t *testing.T) {
	battery, deploy := ersStep(1, 0, true, 0, 0.25)
	assert.InDelta(t, 0.5, deploy, 1e-12)
	assert.Less(t, battery, 1.0)

	battery, deploy = ersStep(ERSReserve, 0.5, true, 0, 0.1)
	assert.InDelta(t, 0.2, deploy, 1e-12)
	assert.Equal(t, ERSReserve, battery)

	battery, _ = ersStep(0.99, 0, false, 1, 1)
	assert.Equal(t, 1.0, battery)

	battery, deploy = ersStep(0.7, 0.3, true, 0.5, 0)
	assert.Equal(t, 0.7, battery)
	assert.Equal(t, 0.3, deploy)
}

func TestLongitudinal(t *testing.T) {
	assert.Equal(t, 100.0, longitudinal(100, 1, 1, 1, 0))
	assert.Greater(t, longitudinal(100, 1, 1, 1, tick), 100.0)
	assert.Less(t, longitudinal(100, 0, 1, 1, tick), 100.0)
	assert.Equal(t, 0.0, longitudinal(1, -1, 1, 1, tick))

	// traction is capped at 1 so extra grip does not add thrust
	assert.Equal(t, longitudinal(50, 1, 1, 1, tick), longitudinal(50, 1, 1, 1.3, tick))
	assert.Less(t, longitudinal(50, 1, 1, 0.5, tick), longitudinal(50, 1, 1, 1, tick))
}

func TestLateral(t *testing.T) {
	assert.Equal(t, 10.0, lateral(10, 1, 1, 1, 0))
	assert.InDelta(t, TurnRate, lateral(0, 1, 1, 1, 1), 1e-9)
	assert.InDelta(t, TurnRate/2, lateral(0, 1, 1, 0.5, 1), 1e-9)
	assert.InDelta(t, -170.0, lateral(170, 1, 1, 1, 20.0/TurnRate), 1e-9)

	// crawling cars still turn, parked ones do not
	assert.InDelta(t, TurnRate*MinSteerResponse, lateral(0, 1, 0.01, 1, 1), 1e-9)
	assert.InDelta(t, TurnRate*0.5, lateral(0, 1, FullSteerSpeedFraction/2, 1, 1), 1e-9)
	assert.Equal(t, 0.0, lateral(0, 1, 0, 1, 1))
}

func TestThermalSteps(t *testing.T) {
	p := params.Medium.Params()
	temp, wear := tireStep(p, 80, 0.1, 0.5, 1, 1, 0)
	assert.Equal(t, 80.0, temp)
	assert.Equal(t, 0.1, wear)

	hot, _ := tireStep(p, 80, 0, 1, 1, 1, 1)
	assert.Greater(t, hot, 80.0)
	cool, _ := tireStep(p, 80, 0, 0, 0, 0, 1)
	assert.Less(t, cool, 80.0)
	assert.Greater(t, cool, AmbientTemp)

	_, normal := tireStep(p, p.OptimalTemp, 0, 0, 0, 0, 1)
	_, overheated := tireStep(p, MaxTireTemp, 0, 0, 0, 0, 1)
	assert.InDelta(t, normal*OverheatWearFactor, overheated, 1e-12)

	assert.Greater(t, brakeStep(100, 1, 1, tick), 100.0)
	assert.Less(t, brakeStep(500, 0, 0, tick), 500.0)
	assert.Equal(t, MaxBrakeTemp, brakeStep(999, 1, 1, 1))
	assert.Equal(t, MaxEngineTemp, engineStep(129, 10, 10))
	assert.Less(t, engineStep(120, 0, 1), 120.0)
}

func TestFuelStep(t *testing.T) {
	race := params.Race.Params()
	cons := params.Conservation.Params()
	assert.Equal(t, 0.5, fuelStep(0.5, race, 1, 1, 0))
	assert.Less(t, fuelStep(0.5, race, 1, 1, 1), fuelStep(0.5, cons, 1, 1, 1))
	assert.Less(t, fuelStep(0.5, race, 1, 1, 1), fuelStep(0.5, race, 0, 0, 1))
	assert.Equal(t, 0.0, fuelStep(0.0001, race, 1, 1, 10))
}
