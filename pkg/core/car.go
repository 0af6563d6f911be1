// pkg/core/car.go
package core

import "time"

// Car is the static identity of one entrant.
// ID is the creation index within the race and never changes.
type Car struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Team     string    `json:"team"`
	Color    string    `json:"color"`
	Compound string    `json:"compound"`
	IsPlayer bool      `json:"isPlayer"`
	GridSlot int       `json:"gridSlot"`
	JoinTime time.Time `json:"joinTime"`
}

// CarState is the full per-tick state of a car as seen by readers.
type CarState struct {
	CarID     int       `json:"carId"`
	Time      time.Time `json:"time"`
	RaceClock float64   `json:"raceClock"`

	Position Position2D `json:"position"`
	Lon      float64    `json:"lon,omitempty"`
	Lat      float64    `json:"lat,omitempty"`
	Heading  float64    `json:"heading"`
	Speed    float64    `json:"speed"`

	Fuel          float64 `json:"fuel"`
	TireWear      float64 `json:"tireWear"`
	TireTemp      float64 `json:"tireTemp"`
	BrakeTemp     float64 `json:"brakeTemp"`
	EngineTemp    float64 `json:"engineTemp"`
	ERSBattery    float64 `json:"ersBattery"`
	ERSDeployment float64 `json:"ersDeployment"`
	DRSAvailable  bool    `json:"drsAvailable"`
	DRSActive     bool    `json:"drsActive"`
	DRSCooldown   float64 `json:"drsCooldown"`
	Grip          float64 `json:"grip"`
	Compound      string  `json:"compound"`
	EngineMode    string  `json:"engineMode"`
	Downforce     float64 `json:"downforce"`

	Lap           int      `json:"lap"`
	Rank          int      `json:"rank"`
	Finished      bool     `json:"finished"`
	TotalTime     float64  `json:"totalTime"`
	LapTime       float64  `json:"lapTime"`
	BestLap       *float64 `json:"bestLap"`
	LastLap       *float64 `json:"lastLap"`
	LastCrossing  *float64 `json:"lastCrossing"`
	WaypointIndex int      `json:"waypointIndex"`
	Progress      float64  `json:"progress"`
	GapAhead      float64  `json:"gapAhead"`

	PitPhase string  `json:"pitPhase"`
	PitTimer float64 `json:"pitTimer"`
	PitStops int     `json:"pitStops"`
	OffTrack bool    `json:"offTrack"`
}
