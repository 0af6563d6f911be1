package v1

import (
	"math"
	"sort"
	"time"

	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/pkg/core"
)

// RaceData contains all the data needed to build an export
type RaceData struct {
	Race      *core.Race
	Circuit   *core.Circuit
	Result    *core.RaceResult
	Cars      map[int]*CarRecord
	Events    []core.RaceEvent
	Projector geo.Projector
}

// CarRecord groups a car with all its time-series data
type CarRecord struct {
	Car      core.Car
	States   []core.CarState
	Laps     []core.LapEvent
	PitStops []core.PitStopEvent
}

// Build creates an Export from the race data
func Build(data *RaceData) Export {
	export := Export{
		FormatVersion:  FormatVersion,
		Cars:           make([]Car, 0),
		Events:         make([][]any, 0, len(data.Events)),
		FinishingOrder: make([][]any, 0),
	}
	if data.Race != nil {
		export.RaceID = data.Race.ID.String()
		export.Version = data.Race.Version
		export.TotalLaps = data.Race.TotalLaps
		export.Seed = data.Race.Seed
		export.StartTime = data.Race.StartTime.UTC().Format(time.RFC3339)
	}
	if data.Circuit != nil {
		export.Circuit = buildCircuit(data.Circuit)
	}
	if data.Projector.Enabled() {
		lon, lat := data.Projector.Anchor()
		export.Geo = &GeoFrame{AnchorLon: lon, AnchorLat: lat}
	}

	// Cars sit at the index matching their id
	maxID := -1
	for id := range data.Cars {
		if id > maxID {
			maxID = id
		}
	}
	if maxID >= 0 {
		export.Cars = make([]Car, maxID+1)
	}

	var lastClock float64
	for id, record := range data.Cars {
		car := Car{
			ID:        record.Car.ID,
			Name:      record.Car.Name,
			Team:      record.Car.Team,
			Color:     record.Car.Color,
			IsPlayer:  boolToInt(record.Car.IsPlayer),
			GridSlot:  record.Car.GridSlot,
			Positions: make([][]any, 0, len(record.States)),
			Laps:      make([]float64, 0, len(record.Laps)),
			PitStops:  make([][]any, 0, len(record.PitStops)),
		}

		// [raceClock, [x, y], heading, speed, lap, rank, pitPhase, offTrack, [lon, lat]?]
		for _, state := range record.States {
			pos := []any{
				round(state.RaceClock, 3),
				[]float64{round(state.Position.X, 2), round(state.Position.Y, 2)},
				round(state.Heading, 1),
				round(state.Speed, 1),
				state.Lap,
				state.Rank,
				state.PitPhase,
				boolToInt(state.OffTrack),
			}
			if data.Projector.Enabled() {
				lon, lat := data.Projector.LonLat(geo.Vec{X: state.Position.X, Y: state.Position.Y})
				pos = append(pos, []float64{lon, lat})
			}
			car.Positions = append(car.Positions, pos)
			lastClock = math.Max(lastClock, state.RaceClock)
		}

		for _, lap := range record.Laps {
			car.Laps = append(car.Laps, round(lap.LapTime, 3))
		}

		// [raceClock, lap, stop, oldCompound, newCompound, duration]
		for _, stop := range record.PitStops {
			car.PitStops = append(car.PitStops, []any{
				round(stop.RaceClock, 3),
				stop.Lap,
				stop.Stop,
				stop.OldCompound,
				stop.NewCompound,
				round(stop.Duration, 3),
			})
		}

		if data.Result != nil {
			if stats, ok := data.Result.LapStats[id]; ok && stats.Count > 0 {
				car.Stats = &LapSummary{
					Count:  stats.Count,
					Best:   stats.Best,
					Worst:  stats.Worst,
					Mean:   stats.Mean,
					StdDev: stats.StdDev,
				}
			}
		}

		export.Cars[id] = car
	}

	// [raceClock, kind, carId, otherCarId, message]
	events := make([]core.RaceEvent, len(data.Events))
	copy(events, data.Events)
	sort.SliceStable(events, func(i, j int) bool { return events[i].RaceClock < events[j].RaceClock })
	for _, evt := range events {
		export.Events = append(export.Events, []any{
			round(evt.RaceClock, 3),
			evt.Kind,
			evt.CarID,
			evt.OtherCarID,
			evt.Message,
		})
		lastClock = math.Max(lastClock, evt.RaceClock)
	}

	export.Duration = round(lastClock, 3)
	if data.Result != nil {
		export.Duration = round(data.Result.RaceClock, 3)
		export.Completed = data.Result.Completed
		if !data.Result.EndTime.IsZero() {
			export.EndTime = data.Result.EndTime.UTC().Format(time.RFC3339)
		}
		// [rank, carId, totalTime]
		for _, f := range data.Result.FinishingOrder {
			export.FinishingOrder = append(export.FinishingOrder, []any{f.Rank, f.CarID, round(f.TotalTime, 3)})
		}
	}

	return export
}

func buildCircuit(c *core.Circuit) Circuit {
	out := Circuit{
		Name:      c.Name,
		Length:    round(c.Length, 2),
		Width:     c.Width,
		Waypoints: make([][]float64, 0, len(c.Waypoints)),
		StartLine: []float64{c.StartLine.X, c.StartLine.Y},
		PitLane: [][]float64{
			{c.PitLaneMin.X, c.PitLaneMin.Y},
			{c.PitLaneMax.X, c.PitLaneMax.Y},
		},
		Sections: make([][]any, 0, len(c.Sections)),
	}
	for _, wp := range c.Waypoints {
		out.Waypoints = append(out.Waypoints, []float64{round(wp.X, 2), round(wp.Y, 2)})
	}
	// [kind, start, length, radius, drs]
	for _, s := range c.Sections {
		out.Sections = append(out.Sections, []any{s.Kind, round(s.Start, 2), round(s.Length, 2), s.Radius, boolToInt(s.DRS)})
	}
	return out
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
