// Package leaderboard ranks cars. Everything here is a pure function of the cars passed in.
package leaderboard

import (
	"math"
	"sort"

	"github.com/racecontrol/racesim/internal/car"
	"github.com/racecontrol/racesim/pkg/core"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// minGapSpeed keeps time gaps finite for parked cars.
const minGapSpeed = 1.0

// lapFraction is the progress proxy used to order cars on the same lap. A car that has not
// started its first lap and sits in the second half of the loop is still behind the line.
func lapFraction(c *car.Car, length float64) float64 {
	if length <= 0 {
		return 0
	}
	f := c.Progress / length
	if c.Lap == 0 && f > 0.5 {
		f -= 1
	}
	return f
}

// Distance is how far the car has come, in world units, on a scale shared by all cars.
func Distance(c *car.Car, length float64) float64 {
	return (float64(c.Lap) + lapFraction(c, length)) * length
}

// Gap is the time in seconds the car behind needs to reach the car ahead's position.
func Gap(ahead, behind *car.Car, length float64) float64 {
	if ahead.Finished && behind.Finished {
		return math.Max(behind.TotalTime-ahead.TotalTime, 0)
	}
	d := Distance(ahead, length) - Distance(behind, length)
	return math.Max(d, 0) / math.Max(behind.Speed, minGapSpeed)
}

// Less reports whether a is ahead of b.
func Less(a, b *car.Car, length float64) bool {
	switch {
	case a.Finished != b.Finished:
		return a.Finished
	case a.Finished:
		if a.TotalTime != b.TotalTime {
			return a.TotalTime < b.TotalTime
		}
	default:
		if a.Lap != b.Lap {
			return a.Lap > b.Lap
		}
		fa, fb := lapFraction(a, length), lapFraction(b, length)
		if fa != fb {
			return fa > fb
		}
	}
	return a.ID < b.ID
}

// Rank returns a new slice with the cars in race order. The input is not reordered.
func Rank(cars []*car.Car, length float64) []*car.Car {
	out := make([]*car.Car, len(cars))
	copy(out, cars)
	sort.SliceStable(out, func(i, j int) bool { return Less(out[i], out[j], length) })
	return out
}

// Standings turns an already ranked slice into leaderboard rows.
func Standings(ranked []*car.Car, length float64) []core.Standing {
	out := make([]core.Standing, len(ranked))
	for i, c := range ranked {
		s := core.Standing{
			Rank:      i + 1,
			CarID:     c.ID,
			Name:      c.Name,
			Team:      c.Team,
			Lap:       c.Lap,
			Progress:  lapFraction(c, length),
			Finished:  c.Finished,
			TotalTime: c.TotalTime,
			PitStops:  c.Pit.Stops,
		}
		if c.BestLap != nil {
			v := *c.BestLap
			s.BestLap = &v
		}
		if i > 0 {
			s.Interval = Gap(ranked[i-1], c, length)
		}
		out[i] = s
	}
	return out
}

// LapStats summarises a list of lap times.
func LapStats(laps []float64) core.LapStats {
	if len(laps) == 0 {
		return core.LapStats{}
	}
	mean, std := stat.MeanStdDev(laps, nil)
	if len(laps) < 2 {
		std = 0
	}
	return core.LapStats{
		Count:  len(laps),
		Best:   floats.Min(laps),
		Worst:  floats.Max(laps),
		Mean:   mean,
		StdDev: std,
	}
}
