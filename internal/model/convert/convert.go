package convert

import (
	"encoding/json"
	"sort"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/racecontrol/racesim/internal/model"
	"github.com/racecontrol/racesim/pkg/core"
)

// pointToPosition2D converts a geom.Point to a core.Position2D
func pointToPosition2D(p geom.Point) core.Position2D {
	xy, ok := p.XY()
	if !ok {
		return core.Position2D{}
	}
	return core.Position2D{X: xy.X, Y: xy.Y}
}

// RaceToCore converts a GORM Race to a core.Race.
func RaceToCore(r model.Race) core.Race {
	return core.Race{
		ID:        r.ID,
		Circuit:   r.Circuit,
		TotalLaps: r.TotalLaps,
		Seed:      r.Seed,
		StartTime: r.StartTime,
		CarCount:  r.CarCount,
		Version:   r.Version,
	}
}

// CircuitToCore converts a GORM Circuit to a core.Circuit. The pit lane is
// read back from the bounds of the stored polygon.
func CircuitToCore(c model.Circuit) core.Circuit {
	out := core.Circuit{
		Name:      c.Name,
		Width:     c.Width,
		Length:    c.Length,
		StartLine: pointToPosition2D(c.StartLine),
	}
	if len(c.Waypoints) > 0 {
		_ = json.Unmarshal(c.Waypoints, &out.Waypoints)
	}
	if len(c.Sections) > 0 {
		_ = json.Unmarshal(c.Sections, &out.Sections)
	}
	out.PitLaneMin, out.PitLaneMax = ringBounds(c.PitLane.ExteriorRing())
	return out
}

// ringBounds returns the corners of the bounding box of a ring.
func ringBounds(ring geom.LineString) (lo, hi core.Position2D) {
	seq := ring.Coordinates()
	if seq.Length() == 0 {
		return lo, hi
	}
	first := seq.GetXY(0)
	lo = core.Position2D{X: first.X, Y: first.Y}
	hi = lo
	for i := 1; i < seq.Length(); i++ {
		pt := seq.GetXY(i)
		lo = core.Position2D{X: min(lo.X, pt.X), Y: min(lo.Y, pt.Y)}
		hi = core.Position2D{X: max(hi.X, pt.X), Y: max(hi.Y, pt.Y)}
	}
	return lo, hi
}

// CarToCore converts a GORM Car to a core.Car.
// GORM Car.CarID maps to core Car.ID.
func CarToCore(c model.Car) core.Car {
	return core.Car{
		ID:       c.CarID,
		Name:     c.Name,
		Team:     c.Team,
		Color:    c.Color,
		Compound: c.Compound,
		IsPlayer: c.IsPlayer,
		GridSlot: c.GridSlot,
		JoinTime: c.JoinTime,
	}
}

// CarStateToCore converts a GORM CarState to a core.CarState.
func CarStateToCore(s model.CarState) core.CarState {
	return core.CarState{
		CarID:         s.CarID,
		Time:          s.Time,
		RaceClock:     s.RaceClock,
		Position:      pointToPosition2D(s.Position),
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

// LapToCore converts a GORM Lap to a core.LapEvent.
func LapToCore(l model.Lap) core.LapEvent {
	return core.LapEvent{
		CarID:     l.CarID,
		Lap:       l.Lap,
		LapTime:   l.LapTime,
		RaceClock: l.RaceClock,
		Personal:  l.PersonalBest,
		Time:      l.Time,
	}
}

// PitStopToCore converts a GORM PitStop to a core.PitStopEvent.
func PitStopToCore(p model.PitStop) core.PitStopEvent {
	return core.PitStopEvent{
		CarID:       p.CarID,
		Stop:        p.Stop,
		Lap:         p.Lap,
		OldCompound: p.OldCompound,
		NewCompound: p.NewCompound,
		Duration:    p.Duration,
		RaceClock:   p.RaceClock,
		Time:        p.Time,
	}
}

// RaceEventToCore converts a GORM RaceEvent to a core.RaceEvent.
func RaceEventToCore(e model.RaceEvent) core.RaceEvent {
	out := core.RaceEvent{
		Kind:       e.Kind,
		CarID:      e.CarID,
		OtherCarID: e.OtherCarID,
		Message:    e.Message,
		RaceClock:  e.RaceClock,
		Time:       e.Time,
	}
	if len(e.ExtraData) > 0 {
		var extra map[string]any
		if err := json.Unmarshal(e.ExtraData, &extra); err == nil && len(extra) > 0 {
			out.ExtraData = extra
		}
	}
	return out
}

// ResultsToCore rebuilds a race result from its stored race row and result rows.
func ResultsToCore(r model.Race, rows []model.Result) core.RaceResult {
	out := core.RaceResult{
		Race:           RaceToCore(r),
		RaceClock:      r.RaceClock,
		Completed:      r.Completed,
		FinishingOrder: make([]core.Finish, 0),
		LapStats:       make(map[int]core.LapStats, len(rows)),
	}
	if r.EndTime != nil {
		out.EndTime = *r.EndTime
	}
	for _, row := range rows {
		if row.Finished {
			out.FinishingOrder = append(out.FinishingOrder, core.Finish{
				Rank:      row.Rank,
				CarID:     row.CarID,
				TotalTime: row.TotalTime,
			})
		}
		out.LapStats[row.CarID] = core.LapStats{
			Count:  row.LapCount,
			Best:   row.BestLap,
			Worst:  row.WorstLap,
			Mean:   row.MeanLap,
			StdDev: row.StdDevLap,
		}
	}
	sort.Slice(out.FinishingOrder, func(i, j int) bool {
		return out.FinishingOrder[i].Rank < out.FinishingOrder[j].Rank
	})
	return out
}
