package leaderboard

import (
	"math/rand/v2"
	"testing"

	"github.com/racecontrol/racesim/internal/car"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const length = 1000.0

func mk(id, lap int, progress float64) *car.Car {
	return &car.Car{ID: id, Lap: lap, Progress: progress}
}

func finished(id int, total float64) *car.Car {
	return &car.Car{ID: id, Lap: 6, Finished: true, TotalTime: total}
}

func ids(cars []*car.Car) []int {
	out := make([]int, len(cars))
	for i, c := range cars {
		out[i] = c.ID
	}
	return out
}

func TestRankOrdering(t *testing.T) {
	cars := []*car.Car{
		mk(0, 2, 100),
		finished(1, 95.5),
		mk(2, 3, 50),
		mk(3, 2, 900),
		finished(4, 93.1),
		mk(5, 3, 50),
	}
	ranked := Rank(cars, length)
	assert.Equal(t, []int{4, 1, 2, 5, 3, 0}, ids(ranked))
	// input untouched
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, ids(cars))
}

func TestRankGridBehindLine(t *testing.T) {
	// lap 0 cars on the grid sit at the end of the loop
	cars := []*car.Car{mk(0, 0, 990), mk(1, 0, 940), mk(2, 0, 20), mk(3, 1, 5)}
	assert.Equal(t, []int{3, 2, 0, 1}, ids(Rank(cars, length)))
}

func TestRankIsTotalOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		var cars []*car.Car
		for i := 0; i < 8; i++ {
			c := mk(i, rng.IntN(4), float64(rng.IntN(4))*250)
			if rng.IntN(4) == 0 {
				c = finished(i, float64(90+rng.IntN(3)))
			}
			cars = append(cars, c)
		}
		ranked := Rank(cars, length)
		require.Len(t, ranked, len(cars))
		for i := 0; i+1 < len(ranked); i++ {
			a, b := ranked[i], ranked[i+1]
			require.True(t, Less(a, b, length), "round %d: %d should precede %d", round, a.ID, b.ID)
			require.False(t, Less(b, a, length))
			if b.Finished {
				require.True(t, a.Finished, "finished cars come first")
			}
		}
	}
}

func TestDistanceAndGap(t *testing.T) {
	lead := mk(0, 2, 300)
	chase := mk(1, 2, 100)
	chase.Speed = 100
	assert.InDelta(t, 2300.0, Distance(lead, length), 1e-9)
	assert.InDelta(t, 2.0, Gap(lead, chase, length), 1e-12)

	parked := mk(2, 2, 290)
	assert.InDelta(t, 10.0, Gap(lead, parked, length), 1e-12)

	assert.InDelta(t, -10.0, Distance(mk(3, 0, 990), length), 1e-9)

	a, b := finished(4, 90), finished(5, 92.5)
	assert.Equal(t, 2.5, Gap(a, b, length))
	assert.Equal(t, 0.0, Gap(b, a, length))
}

func TestStandings(t *testing.T) {
	best := 31.2
	a := mk(0, 3, 500)
	a.Name, a.Team = "Verstappen", "Red Bull"
	a.BestLap = &best
	b := mk(1, 3, 400)
	b.Speed = 50
	rows := Standings(Rank([]*car.Car{b, a}, length), length)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 0, rows[0].CarID)
	assert.Equal(t, "Red Bull", rows[0].Team)
	assert.Equal(t, 0.0, rows[0].Interval)
	require.NotNil(t, rows[0].BestLap)
	assert.Equal(t, 31.2, *rows[0].BestLap)
	assert.InDelta(t, 2.0, rows[1].Interval, 1e-12)
	assert.InDelta(t, 0.4, rows[1].Progress, 1e-12)
}

func TestLapStats(t *testing.T) {
	assert.Equal(t, 0, LapStats(nil).Count)

	one := LapStats([]float64{30})
	assert.Equal(t, 30.0, one.Mean)
	assert.Equal(t, 0.0, one.StdDev)

	s := LapStats([]float64{30, 32, 34})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 30.0, s.Best)
	assert.Equal(t, 34.0, s.Worst)
	assert.InDelta(t, 32.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.0, s.StdDev, 1e-12)
}
