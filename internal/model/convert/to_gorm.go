// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/model"
	"github.com/racecontrol/racesim/pkg/core"
	"gorm.io/datatypes"
)

// position2DToPoint converts a core.Position2D to a geom.Point
func position2DToPoint(p core.Position2D) geom.Point {
	return geo.Point(geo.Vec{X: p.X, Y: p.Y})
}

// toJSON marshals v for a JSON column, falling back to empty when nil.
func toJSON(v any, empty string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// CoreToRace converts a core.Race to a GORM model.Race.
func CoreToRace(r core.Race) model.Race {
	return model.Race{
		ID:        r.ID,
		Circuit:   r.Circuit,
		TotalLaps: r.TotalLaps,
		Seed:      r.Seed,
		CarCount:  r.CarCount,
		Version:   r.Version,
		StartTime: r.StartTime,
	}
}

// CoreToCircuit converts a core.Circuit to a GORM model.Circuit.
// The centerline is closed back onto the first waypoint.
func CoreToCircuit(raceID uuid.UUID, c core.Circuit) model.Circuit {
	points := make([]geo.Vec, len(c.Waypoints))
	for i, wp := range c.Waypoints {
		points[i] = geo.Vec{X: wp.X, Y: wp.Y}
	}
	var centerline geom.LineString
	if loop, err := geo.NewClosedPolyline(points); err == nil {
		centerline = loop.LineString()
	}
	pit := geo.NewRegion(
		geo.Vec{X: c.PitLaneMin.X, Y: c.PitLaneMin.Y},
		geo.Vec{X: c.PitLaneMax.X, Y: c.PitLaneMax.Y},
	)

	return model.Circuit{
		RaceID:     raceID,
		Name:       c.Name,
		Length:     c.Length,
		Width:      c.Width,
		StartLine:  position2DToPoint(c.StartLine),
		Centerline: centerline,
		PitLane:    pit.Polygon(),
		Waypoints:  toJSON(c.Waypoints, "[]"),
		Sections:   toJSON(c.Sections, "[]"),
	}
}

// CoreToCar converts a core.Car to a GORM model.Car.
// core.Car.ID maps to GORM Car.CarID.
func CoreToCar(raceID uuid.UUID, c core.Car) model.Car {
	return model.Car{
		RaceID:   raceID,
		CarID:    c.ID,
		JoinTime: c.JoinTime,
		Name:     c.Name,
		Team:     c.Team,
		Color:    c.Color,
		Compound: c.Compound,
		IsPlayer: c.IsPlayer,
		GridSlot: c.GridSlot,
	}
}

// CoreToCarState converts a core.CarState to a GORM model.CarState.
func CoreToCarState(raceID uuid.UUID, s core.CarState) model.CarState {
	return model.CarState{
		RaceID:        raceID,
		CarID:         s.CarID,
		Time:          s.Time,
		RaceClock:     s.RaceClock,
		Position:      position2DToPoint(s.Position),
		Heading:       s.Heading,
		Speed:         s.Speed,
		Fuel:          s.Fuel,
		TireWear:      s.TireWear,
		TireTemp:      s.TireTemp,
		BrakeTemp:     s.BrakeTemp,
		EngineTemp:    s.EngineTemp,
		ERSBattery:    s.ERSBattery,
		ERSDeployment: s.ERSDeployment,
		DRSActive:     s.DRSActive,
		Grip:          s.Grip,
		Compound:      s.Compound,
		EngineMode:    s.EngineMode,
		Downforce:     s.Downforce,
		Lap:           s.Lap,
		Rank:          s.Rank,
		Progress:      s.Progress,
		GapAhead:      s.GapAhead,
		Finished:      s.Finished,
		PitPhase:      s.PitPhase,
		PitStops:      s.PitStops,
		OffTrack:      s.OffTrack,
	}
}

// CoreToLap converts a core.LapEvent to a GORM model.Lap.
func CoreToLap(raceID uuid.UUID, l core.LapEvent) model.Lap {
	return model.Lap{
		RaceID:       raceID,
		CarID:        l.CarID,
		Time:         l.Time,
		Lap:          l.Lap,
		LapTime:      l.LapTime,
		RaceClock:    l.RaceClock,
		PersonalBest: l.Personal,
	}
}

// CoreToPitStop converts a core.PitStopEvent to a GORM model.PitStop.
func CoreToPitStop(raceID uuid.UUID, p core.PitStopEvent) model.PitStop {
	return model.PitStop{
		RaceID:      raceID,
		CarID:       p.CarID,
		Time:        p.Time,
		Stop:        p.Stop,
		Lap:         p.Lap,
		OldCompound: p.OldCompound,
		NewCompound: p.NewCompound,
		Duration:    p.Duration,
		RaceClock:   p.RaceClock,
	}
}

// CoreToRaceEvent converts a core.RaceEvent to a GORM model.RaceEvent.
func CoreToRaceEvent(raceID uuid.UUID, e core.RaceEvent) model.RaceEvent {
	return model.RaceEvent{
		RaceID:     raceID,
		Time:       e.Time,
		RaceClock:  e.RaceClock,
		Kind:       e.Kind,
		CarID:      e.CarID,
		OtherCarID: e.OtherCarID,
		Message:    e.Message,
		ExtraData:  toJSON(e.ExtraData, "{}"),
	}
}

// CoreToResults flattens a race result into one row per car, ordered by car id.
// Cars that have lap stats but no finish get Rank 0.
func CoreToResults(r core.RaceResult) []model.Result {
	rows := make(map[int]*model.Result)
	row := func(id int) *model.Result {
		if res, ok := rows[id]; ok {
			return res
		}
		res := &model.Result{RaceID: r.Race.ID, CarID: id}
		rows[id] = res
		return res
	}

	for _, f := range r.FinishingOrder {
		res := row(f.CarID)
		res.Rank = f.Rank
		res.Finished = true
		res.TotalTime = f.TotalTime
	}
	for id, stats := range r.LapStats {
		res := row(id)
		res.LapCount = stats.Count
		res.BestLap = stats.Best
		res.WorstLap = stats.Worst
		res.MeanLap = stats.Mean
		res.StdDevLap = stats.StdDev
	}

	out := make([]model.Result, 0, len(rows))
	for _, res := range rows {
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarID < out[j].CarID })
	return out
}
