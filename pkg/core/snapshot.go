// pkg/core/snapshot.go
package core

// Race states
const (
	StateCountdown = "countdown"
	StateRacing    = "racing"
	StateFinished  = "finished"
)

// Standing is one row of the leaderboard.
type Standing struct {
	Rank      int      `json:"rank"`
	CarID     int      `json:"carId"`
	Name      string   `json:"name"`
	Team      string   `json:"team"`
	Lap       int      `json:"lap"`
	Progress  float64  `json:"progress"`
	Interval  float64  `json:"interval"` // seconds to the car ahead, 0 for the leader
	Finished  bool     `json:"finished"`
	TotalTime float64  `json:"totalTime"`
	BestLap   *float64 `json:"bestLap"`
	PitStops  int      `json:"pitStops"`
}

// LapStats summarises a car's timed laps.
type LapStats struct {
	Count  int     `json:"count"`
	Best   float64 `json:"best"`
	Worst  float64 `json:"worst"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// Snapshot is a read-only copy of the race after a tick. Nothing in it aliases simulation state.
type Snapshot struct {
	Tick           uint64     `json:"tick"`
	State          string     `json:"state"`
	Clock          float64    `json:"clock"`
	Countdown      float64    `json:"countdown"`
	TotalLaps      int        `json:"totalLaps"`
	SafetyCar      bool       `json:"safetyCar"`
	Cars           []CarState `json:"cars"`
	Standings      []Standing `json:"standings"`
	FinishingOrder []Finish   `json:"finishingOrder"`
	Circuit        *Circuit   `json:"circuit,omitempty"`
}

// Leader returns the leader's standing, or false when there are no cars.
func (s Snapshot) Leader() (Standing, bool) {
	if len(s.Standings) == 0 {
		return Standing{}, false
	}
	return s.Standings[0], true
}

// Car returns the state of the car with the given id.
func (s Snapshot) Car(id int) (CarState, bool) {
	for _, c := range s.Cars {
		if c.CarID == id {
			return c, true
		}
	}
	return CarState{}, false
}
