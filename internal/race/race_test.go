package race

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/racecontrol/racesim/internal/car"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/params"
	"github.com/racecontrol/racesim/internal/track"
	"github.com/racecontrol/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 1.0 / 60.0

var (
	fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	fixedID   = uuid.MustParse("6f1c2b9e-8d4a-4e61-9d43-0c1f7a2b3c4d")
)

func grandPrix(t *testing.T) *track.Track {
	t.Helper()
	tr, err := track.Preset("grandprix")
	require.NoError(t, err)
	return tr
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRace(t *testing.T, cfg Config) *Race {
	t.Helper()
	r, err := New(grandPrix(t), cfg,
		WithLogger(quiet()),
		WithClock(func() time.Time { return fixedTime }),
		WithID(fixedID),
	)
	require.NoError(t, err)
	return r
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PlayerCar = false
	cfg.AICars = 4
	cfg.Countdown = 0
	cfg.SafetyCarRate = 0
	return cfg
}

func kinds(events []core.RaceEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.PlayerCar, cfg.AICars = false, 0
	_, err = New(grandPrix(t), cfg)
	assert.ErrorIs(t, err, ErrNoCars)

	cfg = DefaultConfig()
	cfg.TotalLaps = 0
	_, err = New(grandPrix(t), cfg)
	assert.ErrorIs(t, err, ErrInvalidLaps)
}

func TestGridIsBehindTheLine(t *testing.T) {
	r := newRace(t, DefaultConfig())
	tr := r.Track()
	cars := r.Cars()
	require.Len(t, cars, 6)

	assert.Equal(t, 0, r.PlayerID())
	assert.True(t, cars[0].IsPlayer)
	assert.Equal(t, "Player", cars[0].Name)
	assert.Equal(t, "Ferrari", cars[1].Team)

	for i, c := range cars {
		assert.Equal(t, i, c.ID)
		assert.Less(t, tr.StartLineOffset(c.Position), 0.0, "car %d", i)
		assert.Equal(t, 0, c.Lap)
		assert.True(t, c.Compound.Valid())
		row := i / 2
		assert.Contains(t, []int{2*row + 1, 2*row + 2}, c.Rank, "car %d starts in row %d", i, row)
	}
	// side by side in pairs
	assert.InDelta(t, tr.StartLineOffset(cars[0].Position), tr.StartLineOffset(cars[1].Position), 1e-9)
	assert.InDelta(t, GridLateral, cars[0].Position.Dist(cars[1].Position), 1e-9)
}

func TestGridSlotsOverrideDefaults(t *testing.T) {
	hard := params.Hard
	cfg := testConfig()
	cfg.Grid = []GridSlot{
		{Name: "Ace", Team: "Williams", Color: "#005aff", Compound: &hard},
		{Player: true},
	}
	r := newRace(t, cfg)
	cars := r.Cars()
	require.Len(t, cars, 2)
	assert.Equal(t, "Ace", cars[0].Name)
	assert.Equal(t, "Williams", cars[0].Team)
	assert.Equal(t, params.Hard, cars[0].Compound)
	assert.Equal(t, 1, r.PlayerID())
}

func TestCountdownHoldsCars(t *testing.T) {
	cfg := testConfig()
	cfg.Countdown = 1
	r := newRace(t, cfg)
	assert.Equal(t, []string{core.EventRaceStart}, kinds(r.Events()))
	before := r.Cars()

	for i := 0; i < 30; i++ {
		r.Step(tick, car.Intent{Throttle: 1})
	}
	assert.Equal(t, core.StateCountdown, r.State())
	assert.InDelta(t, 0.5, r.Countdown(), 1e-9)
	assert.Empty(t, cmp.Diff(before, r.Cars()))
	assert.Equal(t, 0.0, r.Clock())

	for i := 0; i < 31; i++ {
		r.Step(tick, car.Intent{})
	}
	assert.Equal(t, core.StateRacing, r.State())
	assert.Equal(t, 0.0, r.Countdown())
	assert.Contains(t, kinds(r.Events()), core.EventLightsOut)
}

func TestZeroCountdownStartsRacing(t *testing.T) {
	r := newRace(t, testConfig())
	assert.Equal(t, core.StateRacing, r.State())
	assert.Equal(t, []string{core.EventRaceStart, core.EventLightsOut}, kinds(r.Events()))
	assert.Empty(t, r.Events(), "events are drained")
}

func TestStepClampsDelta(t *testing.T) {
	r := newRace(t, testConfig())
	r.Step(5, car.Intent{})
	assert.InDelta(t, r.Config().MaxStep, r.Clock(), 1e-12)

	before := r.Cars()
	r.Step(0, car.Intent{})
	r.Step(-1, car.Intent{})
	assert.Empty(t, cmp.Diff(before, r.Cars()))
	assert.Equal(t, uint64(1), r.Tick())
}

func TestPlayerIntentDrivesPlayerCar(t *testing.T) {
	cfg := testConfig()
	cfg.PlayerCar = true
	cfg.AICars = 1
	r := newRace(t, cfg)
	for i := 0; i < 60; i++ {
		r.Step(tick, car.Intent{Throttle: 1})
	}
	player, ok := r.Car(0)
	require.True(t, ok)
	assert.Greater(t, player.Speed, 50.0)

	r2 := newRace(t, cfg)
	for i := 0; i < 60; i++ {
		r2.Step(tick, car.Intent{})
	}
	parked, _ := r2.Car(0)
	assert.Equal(t, 0.0, parked.Speed)

	_, ok = r.Car(5)
	assert.False(t, ok)
}

// cross moves a car from just behind the line to just past it at the given clock.
func cross(r *Race, id int, clock float64) {
	c := r.cars[id]
	start, dir := r.track.StartLine(), r.track.StartDirection()
	r.clock = clock - 0.01
	c.Position = start.Sub(dir.Scale(5))
	r.checkLap(id, c)
	r.clock = clock
	c.Position = start.Add(dir.Scale(5))
	c.TotalTime = clock
	r.checkLap(id, c)
}

func TestFinishesExactlyWhenLapsRunOut(t *testing.T) {
	cfg := testConfig()
	cfg.AICars = 1
	cfg.TotalLaps = 3
	r := newRace(t, cfg)
	r.Events()
	c := r.cars[0]

	cross(r, 0, 1) // leaves the grid, lap 1 starts
	assert.Equal(t, 1, c.Lap)
	assert.Nil(t, c.LastLap)

	for lap := 1; lap <= cfg.TotalLaps; lap++ {
		assert.False(t, c.Finished, "lap %d", lap)
		c.LapTime = 30 + float64(lap)
		cross(r, 0, 1+float64(lap)*31)
		assert.Equal(t, lap+1, c.Lap)
	}
	assert.True(t, c.Finished)
	assert.Equal(t, 0.0, c.Speed)
	require.NotNil(t, c.BestLap)
	assert.Equal(t, 31.0, *c.BestLap)
	assert.Equal(t, 33.0, *c.LastLap)
	assert.Equal(t, []core.Finish{{Rank: 1, CarID: 0, TotalTime: 94}}, r.FinishingOrder())
	assert.Equal(t, []float64{31, 32, 33}, r.LapTimes(0))

	// further crossings change nothing
	cross(r, 0, 200)
	assert.Equal(t, cfg.TotalLaps+1, c.Lap)
	assert.Len(t, r.FinishingOrder(), 1)

	ev := kinds(r.Events())
	assert.Equal(t, 3, count(ev, core.EventLap))
	assert.Equal(t, 1, count(ev, core.EventFastestLap))
	assert.Equal(t, 1, count(ev, core.EventFinish))

	stats := r.Results().LapStats[0]
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 32.0, stats.Mean, 1e-9)
}

func count(list []string, kind string) int {
	n := 0
	for _, k := range list {
		if k == kind {
			n++
		}
	}
	return n
}

func TestCrossingInsideDebounceIsIgnored(t *testing.T) {
	cfg := testConfig()
	cfg.AICars = 1
	r := newRace(t, cfg)
	c := r.cars[0]
	cross(r, 0, 1)
	cross(r, 0, 5)
	cross(r, 0, 10.5)
	assert.Equal(t, 1, c.Lap)
	cross(r, 0, 11.5)
	assert.Equal(t, 2, c.Lap)
}

func TestRaceEndsWhenAllFinished(t *testing.T) {
	cfg := testConfig()
	cfg.AICars = 2
	cfg.TotalLaps = 1
	r := newRace(t, cfg)
	for id := range r.cars {
		cross(r, id, 1)
		cross(r, id, 40+float64(id))
	}
	r.checkEnd()
	assert.Equal(t, core.StateFinished, r.State())
	res := r.Results()
	assert.True(t, res.Completed)
	assert.Equal(t, fixedID, res.Race.ID)
	assert.Len(t, res.FinishingOrder, 2)
	assert.Contains(t, kinds(r.Events()), core.EventRaceEnd)

	// no more movement
	before := r.Cars()
	r.Step(tick, car.Intent{Throttle: 1})
	assert.Empty(t, cmp.Diff(before, r.Cars()))
}

func TestTimeLimitEndsRace(t *testing.T) {
	cfg := testConfig()
	cfg.TimeLimit = 1
	r := newRace(t, cfg)
	for i := 0; i < 200 && r.State() != core.StateFinished; i++ {
		r.Step(tick, car.Intent{})
	}
	assert.Equal(t, core.StateFinished, r.State())
	assert.False(t, r.Results().Completed)
	assert.InDelta(t, 1.0, r.Clock(), tick)
}

func TestDeterministicReplay(t *testing.T) {
	cfg := testConfig()
	cfg.SafetyCarRate = 0.2
	a, b := newRace(t, cfg), newRace(t, cfg)
	for i := 0; i < 900; i++ {
		a.Step(tick, car.Intent{})
		b.Step(tick, car.Intent{})
	}
	assert.Empty(t, cmp.Diff(a.Cars(), b.Cars()))
	assert.Empty(t, cmp.Diff(a.Snapshot(), b.Snapshot()))
	assert.Empty(t, cmp.Diff(a.Events(), b.Events()))
}

// Over a real race every tick keeps the lap, finish and ranking invariants.
func TestRaceInvariants(t *testing.T) {
	cfg := testConfig()
	cfg.TotalLaps = 1
	cfg.TimeLimit = 120
	cfg.SafetyCarRate = 0.02
	r := newRace(t, cfg)

	laps := make([]int, len(r.cars))
	finished := make([]bool, len(r.cars))
	for r.State() != core.StateFinished {
		r.Step(tick, car.Intent{})
		snap := r.Snapshot()
		for i, c := range snap.Cars {
			assert.GreaterOrEqual(t, c.Lap, laps[i])
			assert.True(t, c.Finished || !finished[i])
			laps[i], finished[i] = c.Lap, c.Finished

			assert.GreaterOrEqual(t, c.Speed, 0.0)
			for _, f := range []float64{c.Fuel, c.TireWear, c.ERSBattery} {
				assert.GreaterOrEqual(t, f, 0.0)
				assert.LessOrEqual(t, f, 1.0)
			}
		}
		st := snap.Standings
		for i := 1; i < len(st); i++ {
			a, b := st[i-1], st[i]
			switch {
			case a.Finished && b.Finished:
				assert.LessOrEqual(t, a.TotalTime, b.TotalTime)
			case !a.Finished:
				assert.False(t, b.Finished, "finished cars lead")
				if a.Lap == b.Lap {
					assert.GreaterOrEqual(t, a.Progress, b.Progress)
				} else {
					assert.Greater(t, a.Lap, b.Lap)
				}
			}
		}
	}

	seen := map[int]bool{}
	for _, f := range r.FinishingOrder() {
		assert.False(t, seen[f.CarID], "car %d finished twice", f.CarID)
		seen[f.CarID] = true
	}
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	r := newRace(t, testConfig())
	for id := range r.cars {
		cross(r, id, 1)
		r.cars[id].LapTime = 20
		cross(r, id, 30)
	}
	r.rank()
	snap := r.Snapshot()
	require.NotNil(t, snap.Cars[0].BestLap)
	*snap.Cars[0].BestLap = 1
	*snap.Standings[0].BestLap = 1
	snap.Cars[0].Position = core.Position2D{}
	assert.Equal(t, 20.0, *r.cars[0].BestLap)
	assert.NotEqual(t, geo.Vec{}, r.cars[0].Position)
	assert.Equal(t, fixedTime, snap.Cars[0].Time)
}

func TestIdentitiesAndInfo(t *testing.T) {
	r := newRace(t, DefaultConfig())
	ids := r.Identities()
	require.Len(t, ids, 6)
	assert.Equal(t, 1, ids[0].GridSlot)
	assert.True(t, ids[0].IsPlayer)
	assert.Equal(t, fixedTime, ids[0].JoinTime)

	info := r.Info()
	assert.Equal(t, "Grand Prix Circuit", info.Circuit)
	assert.Equal(t, 6, info.CarCount)
	assert.Equal(t, int64(1), info.Seed)
	assert.Equal(t, info.Circuit, r.Circuit().Name)
}
