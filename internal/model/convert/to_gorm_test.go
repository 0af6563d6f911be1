package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/racecontrol/racesim/internal/model"
	"github.com/racecontrol/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var raceID = uuid.MustParse("a3d9c5e0-42b4-4f1e-8d61-0d7b6c1f9e55")

func testCircuit() core.Circuit {
	return core.Circuit{
		Name:       "Grand Prix Circuit",
		Waypoints:  []core.Position2D{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 100}, {X: 0, Y: 100}},
		Width:      80,
		Length:     600,
		StartLine:  core.Position2D{X: 0, Y: 0},
		PitLaneMin: core.Position2D{X: 20, Y: 110},
		PitLaneMax: core.Position2D{X: 180, Y: 140},
		Sections: []core.Section{
			{Kind: core.SectionStraight, Start: 0, Length: 200, DRS: true},
			{Kind: core.SectionCorner, Start: 200, Length: 400, Radius: 50},
		},
	}
}

func TestCoreToRace(t *testing.T) {
	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	got := CoreToRace(core.Race{ID: raceID, Circuit: "Grand Prix Circuit", TotalLaps: 5, Seed: 3, StartTime: start, CarCount: 6, Version: "v1"})

	assert.Equal(t, raceID, got.ID)
	assert.Equal(t, "Grand Prix Circuit", got.Circuit)
	assert.Equal(t, 5, got.TotalLaps)
	assert.Equal(t, int64(3), got.Seed)
	assert.Equal(t, 6, got.CarCount)
	assert.Equal(t, start, got.StartTime)
	assert.Nil(t, got.EndTime)
}

func TestCoreToCircuit(t *testing.T) {
	got := CoreToCircuit(raceID, testCircuit())

	assert.Equal(t, raceID, got.RaceID)
	assert.Equal(t, 600.0, got.Length)

	xy, ok := got.StartLine.XY()
	require.True(t, ok)
	assert.Equal(t, 0.0, xy.X)

	// closed ring repeats the first vertex
	assert.Equal(t, 5, got.Centerline.Coordinates().Length())
	assert.InDelta(t, 600.0, got.Centerline.Length(), 1e-9)

	assert.InDelta(t, 160*30, got.PitLane.Area(), 1e-9)

	var waypoints []core.Position2D
	require.NoError(t, json.Unmarshal(got.Waypoints, &waypoints))
	assert.Len(t, waypoints, 4)
}

func TestCoreToCircuit_TooFewWaypoints(t *testing.T) {
	c := testCircuit()
	c.Waypoints = c.Waypoints[:2]

	got := CoreToCircuit(raceID, c)
	assert.True(t, got.Centerline.IsEmpty())
}

func TestCircuitRoundTrip(t *testing.T) {
	in := testCircuit()
	out := CircuitToCore(CoreToCircuit(raceID, in))

	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("circuit mismatch (-want +got):\n%s", diff)
	}
}

func TestCarRoundTrip(t *testing.T) {
	in := core.Car{ID: 2, Name: "Mercedes #2", Team: "Mercedes", Color: "#00D2BE", Compound: "medium", GridSlot: 3, JoinTime: time.Unix(100, 0).UTC()}

	row := CoreToCar(raceID, in)
	assert.Equal(t, 2, row.CarID)
	assert.Equal(t, raceID, row.RaceID)

	if diff := cmp.Diff(in, CarToCore(row)); diff != "" {
		t.Errorf("car mismatch (-want +got):\n%s", diff)
	}
}

func TestCarStateRoundTrip(t *testing.T) {
	in := core.CarState{
		CarID: 1, Time: time.Unix(200, 0).UTC(), RaceClock: 12.5,
		Position: core.Position2D{X: 120.5, Y: -40}, Heading: 45, Speed: 210,
		Fuel: 0.8, TireWear: 0.1, TireTemp: 95, BrakeTemp: 400, EngineTemp: 100,
		ERSBattery: 0.5, ERSDeployment: 0.2, DRSActive: true, Grip: 1.1,
		Compound: "soft", EngineMode: "race", Downforce: 5,
		Lap: 2, Rank: 3, Progress: 0.4, GapAhead: 1.2, PitPhase: "none", PitStops: 1, OffTrack: true,
	}

	out := CarStateToCore(CoreToCarState(raceID, in))

	// fields that are not persisted stay zero
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("car state mismatch (-want +got):\n%s", diff)
	}
}

func TestLapAndPitStopRoundTrip(t *testing.T) {
	lap := core.LapEvent{CarID: 1, Lap: 3, LapTime: 31.2, RaceClock: 95, Personal: true, Time: time.Unix(300, 0).UTC()}
	if diff := cmp.Diff(lap, LapToCore(CoreToLap(raceID, lap))); diff != "" {
		t.Errorf("lap mismatch (-want +got):\n%s", diff)
	}

	stop := core.PitStopEvent{CarID: 4, Stop: 1, Lap: 2, OldCompound: "soft", NewCompound: "hard", Duration: 4.1, RaceClock: 70, Time: time.Unix(400, 0).UTC()}
	if diff := cmp.Diff(stop, PitStopToCore(CoreToPitStop(raceID, stop))); diff != "" {
		t.Errorf("pit stop mismatch (-want +got):\n%s", diff)
	}
}

func TestRaceEventConversion(t *testing.T) {
	in := core.RaceEvent{Kind: core.EventOvertake, CarID: 2, OtherCarID: 1, Message: "pass", RaceClock: 40}

	row := CoreToRaceEvent(raceID, in)
	assert.Equal(t, "{}", string(row.ExtraData))
	assert.Equal(t, in, RaceEventToCore(row))

	in.ExtraData = map[string]any{"lap": float64(2)}
	row = CoreToRaceEvent(raceID, in)
	assert.JSONEq(t, `{"lap":2}`, string(row.ExtraData))
	assert.Equal(t, in, RaceEventToCore(row))
}

func TestCoreToResults(t *testing.T) {
	result := core.RaceResult{
		Race: core.Race{ID: raceID},
		FinishingOrder: []core.Finish{
			{Rank: 1, CarID: 2, TotalTime: 150},
			{Rank: 2, CarID: 0, TotalTime: 152},
		},
		LapStats: map[int]core.LapStats{
			0: {Count: 5, Best: 29, Worst: 32, Mean: 30.4, StdDev: 1},
			1: {Count: 3, Best: 31, Worst: 33, Mean: 32, StdDev: 0.8},
			2: {Count: 5, Best: 28.5, Worst: 31, Mean: 30, StdDev: 0.9},
		},
	}

	rows := CoreToResults(result)

	want := []model.Result{
		{RaceID: raceID, CarID: 0, Rank: 2, Finished: true, TotalTime: 152, LapCount: 5, BestLap: 29, WorstLap: 32, MeanLap: 30.4, StdDevLap: 1},
		{RaceID: raceID, CarID: 1, LapCount: 3, BestLap: 31, WorstLap: 33, MeanLap: 32, StdDevLap: 0.8},
		{RaceID: raceID, CarID: 2, Rank: 1, Finished: true, TotalTime: 150, LapCount: 5, BestLap: 28.5, WorstLap: 31, MeanLap: 30, StdDevLap: 0.9},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestResultsToCore(t *testing.T) {
	end := time.Date(2026, 4, 1, 12, 5, 0, 0, time.UTC)
	race := model.Race{ID: raceID, Circuit: "Grand Prix Circuit", EndTime: &end, RaceClock: 160, Completed: true}
	rows := []model.Result{
		{RaceID: raceID, CarID: 0, Rank: 2, Finished: true, TotalTime: 152, LapCount: 5},
		{RaceID: raceID, CarID: 1, LapCount: 3},
		{RaceID: raceID, CarID: 2, Rank: 1, Finished: true, TotalTime: 150, LapCount: 5},
	}

	got := ResultsToCore(race, rows)

	assert.Equal(t, end, got.EndTime)
	assert.True(t, got.Completed)
	assert.Equal(t, []core.Finish{{Rank: 1, CarID: 2, TotalTime: 150}, {Rank: 2, CarID: 0, TotalTime: 152}}, got.FinishingOrder)
	assert.Len(t, got.LapStats, 3)
	assert.Equal(t, 3, got.LapStats[1].Count)
}
