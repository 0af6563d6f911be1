package car

import (
	"math"

	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/params"
	"github.com/racecontrol/racesim/internal/util"
)

// Longitudinal and lateral tuning. Speeds are world units per second.
const (
	MaxSpeed               = 420.0
	AccelRate              = 160.0
	BrakeRate              = 360.0
	Drag                   = 0.995 // retained speed per reference tick
	DownforceSpeedCoeff    = 0.02
	DownforceGripBonus     = 0.01
	TurnRate               = 120.0 // degrees per second at full steer and grip 1
	FullSteerSpeedFraction = 0.35
	MinSteerResponse       = 0.25 // turn response of a rolling car below FullSteerSpeedFraction
	OffTrackDrag           = 0.985
	WallSpeedPenalty       = 0.5
	SafetyCarSpeed         = 160.0
	PitSpeedLimit          = 80.0
)

// Grip model.
const (
	MinGrip          = 0.2
	WearGripPenalty  = 0.55
	MaxWearPenalty   = 0.5
	TempPenaltySlope = 0.01
	MaxTempPenalty   = 0.35
)

// Power, weight and fuel.
const (
	BaseWeight         = 740.0
	FuelWeight         = 110.0
	ReferenceWeight    = BaseWeight + FuelWeight
	FuelBurnRate       = 0.004 // fraction per second at speed fraction 1 before weights
	FuelBase           = 0.1
	FuelThrottleWeight = 0.5
	LowFuelThreshold   = 0.05
	LowFuelDrag        = 0.97
	LimpPower          = 0.3 // engine power left on an empty tank
)

// ERS, DRS and slipstream.
const (
	ERSReserve       = 0.05
	ERSRampRate      = 2.0
	ERSDecayRate     = 3.0
	ERSDrainRate     = 0.15
	ERSRechargeRate  = 0.08
	ERSBoost         = 0.12
	DRSBoost         = 0.08
	DRSSpeedFraction = 0.75
	DRSSteerLimit    = 0.15
	DRSGap           = 1.0 // seconds
	DRSCooldown      = 2.0
	SlipstreamBoost  = 0.04
	SlipstreamGap    = 0.5
)

// Thermal model. Temperatures in °C.
const (
	AmbientTemp        = 25.0
	MinTireTemp        = 20.0
	MaxTireTemp        = 150.0
	TireHeatRate       = 11.7
	TireHeatBase       = 0.2
	TireCornerWeight   = 3.0
	TireThrottleWeight = 0.5
	TireRetention      = 0.998
	OverheatMargin     = 10.0
	OverheatWearFactor = 1.5
	TireWearRate       = 0.002
	CornerWearWeight   = 2.0

	MinBrakeTemp   = 20.0
	MaxBrakeTemp   = 1000.0
	BrakeHeatRate  = 600.0
	BrakeRetention = 0.995

	MinEngineTemp   = 60.0
	MaxEngineTemp   = 130.0
	EngineHeatRate  = 4.0
	EngineRetention = 0.999
)

// Update advances the car by dt seconds. A finished car is left untouched, and a zero or
// invalid dt only latches the strategy requests in the intent.
func (c *Car) Update(dt float64, in Intent, ctx Context) {
	if c.Finished {
		return
	}
	in = in.Clamped()
	c.latch(in)
	if math.IsNaN(dt) || dt <= 0 {
		return
	}

	if c.Pit.Phase != PitRacing {
		// no strategy boosts in the lane
		in.RequestDRS, in.RequestERS = false, false
	}

	// 1. DRS
	c.DRSCooldown = math.Max(0, c.DRSCooldown-dt)
	c.DRSAvailable = c.drsEligible(in.Steer, ctx)
	active := c.DRSAvailable && in.RequestDRS
	if c.DRSActive && !active {
		c.DRSCooldown = DRSCooldown
	}
	c.DRSActive = active

	// 2. ERS
	c.ERSBattery, c.ERSDeployment = ersStep(c.ERSBattery, c.ERSDeployment, in.RequestERS, in.Brake(), dt)

	// 3. grip and 4. power, threaded through the rest of the step
	cp := c.Compound.Params()
	grip := Grip(cp, c.TireWear, c.TireTemp, c.Downforce)
	c.Grip = grip
	slip := ctx.HasCarAhead && ctx.GapAhead < SlipstreamGap && !ctx.SafetyCar && c.Pit.Phase == PitRacing
	power := PowerMultiplier(c.EngineMode.Params(), c.Fuel, c.ERSDeployment, c.DRSActive, slip)

	// 5. longitudinal
	c.Speed = longitudinal(c.Speed, in.Throttle, power, grip, dt)
	if c.OffTrack {
		c.Speed *= util.PerTick(OffTrackDrag, dt)
	}
	c.Speed = math.Min(c.Speed, c.speedCap(ctx))
	speedFrac := util.Clamp01(c.Speed / MaxSpeed)

	// 6. lateral
	c.Heading = lateral(c.Heading, in.Steer, speedFrac, grip, dt)

	// 7. position
	c.Position = c.Position.Add(geo.FromHeading(c.Heading).Scale(c.Speed * dt))

	// 8. thermal and wear
	c.TireTemp, c.TireWear = tireStep(cp, c.TireTemp, c.TireWear, in.Steer, in.Throttle, speedFrac, dt)
	c.BrakeTemp = brakeStep(c.BrakeTemp, in.Brake(), speedFrac, dt)
	c.EngineTemp = engineStep(c.EngineTemp, math.Max(in.Throttle, 0)*power, dt)

	// 9. fuel
	c.Fuel = fuelStep(c.Fuel, c.EngineMode.Params(), speedFrac, in.Throttle, dt)
	if c.Fuel < LowFuelThreshold {
		c.Speed *= util.PerTick(LowFuelDrag, dt)
	}

	// 10. world bounds and track position
	if ctx.Track != nil {
		world := ctx.Track.World()
		if !world.Contains(c.Position) {
			c.Position = world.Clamp(c.Position)
			c.Speed *= WallSpeedPenalty
		}
		c.Locate(ctx.Track)
	}

	// 11. timers
	c.TotalTime += dt
	c.LapTime += dt

	c.pitStep(dt, ctx)
}

// latch applies the time-independent parts of an intent.
func (c *Car) latch(in Intent) {
	if in.EngineMode != nil && in.EngineMode.Valid() {
		c.EngineMode = *in.EngineMode
	}
	if in.RequestPit && c.Pit.Phase == PitRacing {
		c.Pit.Requested = true
		if in.NextCompound != nil && in.NextCompound.Valid() {
			c.Pit.NextCompound = *in.NextCompound
			c.Pit.ChangeCompound = true
		}
	}
}

func (c *Car) drsEligible(steer float64, ctx Context) bool {
	if ctx.Track == nil || ctx.SafetyCar || c.Pit.Phase != PitRacing {
		return false
	}
	return ctx.Track.SectionAt(c.Progress).DRS &&
		math.Abs(steer) < DRSSteerLimit &&
		c.Speed > DRSSpeedFraction*MaxSpeed &&
		ctx.HasCarAhead && ctx.GapAhead < DRSGap &&
		c.DRSCooldown == 0
}

func (c *Car) speedCap(ctx Context) float64 {
	limit := MaxSpeed * (1 - c.Downforce*DownforceSpeedCoeff)
	if ctx.SafetyCar {
		limit = math.Min(limit, SafetyCarSpeed)
	}
	switch c.Pit.Phase {
	case PitEntering:
		limit = math.Min(limit, PitSpeedLimit)
	case PitServicing:
		limit = 0
	}
	return limit
}

// Grip is the traction multiplier for the given tire state. It never drops below MinGrip.
func Grip(p params.CompoundParams, wear, temp, downforce float64) float64 {
	wearPenalty := math.Min(WearGripPenalty*util.Clamp01(wear), MaxWearPenalty)
	tempPenalty := 0.0
	if dev := math.Abs(temp-p.OptimalTemp) - p.TempBand; dev > 0 {
		tempPenalty = math.Min(dev*TempPenaltySlope, MaxTempPenalty)
	}
	g := p.Grip*(1-wearPenalty)*(1-tempPenalty) + downforce*DownforceGripBonus
	return math.Max(util.CleanFloat(g, MinGrip), MinGrip)
}

// PowerMultiplier combines engine mode, weight, ERS, DRS and slipstream. Below LowFuelThreshold
// the engine is starved in proportion to the remaining fuel, down to LimpPower.
func PowerMultiplier(mode params.EngineParams, fuel, ersDeployment float64, drs, slipstream bool) float64 {
	fuel = util.Clamp01(fuel)
	weight := BaseWeight + FuelWeight*fuel
	p := mode.Power*(ReferenceWeight/weight) + ERSBoost*util.Clamp01(ersDeployment)
	if drs {
		p += DRSBoost
	}
	if slipstream {
		p += SlipstreamBoost
	}
	if fuel < LowFuelThreshold {
		p *= math.Max(fuel/LowFuelThreshold, LimpPower)
	}
	return p
}

func ersStep(battery, deployment float64, requested bool, brake, dt float64) (float64, float64) {
	if requested && battery > ERSReserve {
		deployment = util.Approach(deployment, 1, ERSRampRate*dt)
		battery -= ERSDrainRate * deployment * dt
	} else {
		deployment = util.Approach(deployment, 0, ERSDecayRate*dt)
	}
	battery += ERSRechargeRate * brake * dt
	return util.Clamp01(battery), util.Clamp01(deployment)
}

// longitudinal applies throttle or brake and drag. Acceleration is limited by traction.
func longitudinal(speed, throttle, power, grip, dt float64) float64 {
	switch {
	case throttle > 0:
		speed += throttle * AccelRate * power * math.Min(grip, 1) * dt
	case throttle < 0:
		speed += throttle * BrakeRate * grip * dt
	}
	speed *= util.PerTick(Drag, dt)
	return util.Clamp(util.CleanFloat(speed, 0), 0, MaxSpeed)
}

// lateral turns the car. Turn rate grows with speed up to FullSteerSpeedFraction and scales with grip.
// A moving car always gets at least MinSteerResponse; a parked one cannot turn.
func lateral(heading, steer, speedFrac, grip, dt float64) float64 {
	responsiveness := math.Min(1, speedFrac/FullSteerSpeedFraction)
	if speedFrac > 0 {
		responsiveness = math.Max(responsiveness, MinSteerResponse)
	}
	heading += steer * TurnRate * responsiveness * grip * dt
	return util.NormalizeDegrees(util.CleanFloat(heading, 0))
}

func tireStep(p params.CompoundParams, temp, wear, steer, throttle, speedFrac, dt float64) (float64, float64) {
	corner := math.Abs(steer)
	heat := TireHeatRate * p.HeatRate * (TireHeatBase + TireCornerWeight*corner + TireThrottleWeight*math.Abs(throttle)) * speedFrac * dt
	temp = AmbientTemp + (temp+heat-AmbientTemp)*util.PerTick(TireRetention, dt)
	temp = util.Clamp(temp, MinTireTemp, MaxTireTemp)

	rate := TireWearRate * p.WearRate * (1 + CornerWearWeight*corner + speedFrac)
	if temp > p.OptimalTemp+p.TempBand+OverheatMargin {
		rate *= OverheatWearFactor
	}
	return temp, util.Clamp01(wear + rate*dt)
}

func brakeStep(temp, brake, speedFrac, dt float64) float64 {
	temp += BrakeHeatRate * brake * speedFrac * dt
	temp = InitialBrakeTemp + (temp-InitialBrakeTemp)*util.PerTick(BrakeRetention, dt)
	return util.Clamp(temp, MinBrakeTemp, MaxBrakeTemp)
}

func engineStep(temp, load, dt float64) float64 {
	temp += EngineHeatRate * load * dt
	temp = InitialEngineTemp + (temp-InitialEngineTemp)*util.PerTick(EngineRetention, dt)
	return util.Clamp(temp, MinEngineTemp, MaxEngineTemp)
}

func fuelStep(fuel float64, mode params.EngineParams, speedFrac, throttle, dt float64) float64 {
	burn := FuelBurnRate * mode.FuelRate * (FuelBase + speedFrac + FuelThrottleWeight*math.Abs(throttle)) * dt
	return util.Clamp01(fuel - burn)
}
