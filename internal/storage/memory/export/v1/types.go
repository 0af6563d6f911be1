// Package v1 contains the v1 replay format for recorded races.
// Cars are stored in an array indexed by car id so viewers can address them directly.
package v1

// FormatVersion is written into every export.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion  int       `json:"formatVersion"`
	RaceID         string    `json:"raceId"`
	Version        string    `json:"version"`
	Circuit        Circuit   `json:"circuit"`
	TotalLaps      int       `json:"totalLaps"`
	Seed           int64     `json:"seed"`
	StartTime      string    `json:"startTime"`
	EndTime        string    `json:"endTime,omitempty"`
	Duration       float64   `json:"duration"`
	Completed      bool      `json:"completed"`
	Cars           []Car     `json:"cars"`
	Events         [][]any   `json:"events"`
	FinishingOrder [][]any   `json:"finishingOrder"`
	Geo            *GeoFrame `json:"geo,omitempty"`
}

// Circuit is the drawable track. Points are [x, y] pairs in world units.
type Circuit struct {
	Name      string      `json:"name"`
	Length    float64     `json:"length"`
	Width     float64     `json:"width"`
	Waypoints [][]float64 `json:"waypoints"`
	StartLine []float64   `json:"startLine"`
	PitLane   [][]float64 `json:"pitLane"`
	Sections  [][]any     `json:"sections"`
}

// Car is one entrant with its sampled trajectory.
type Car struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	Team      string      `json:"team"`
	Color     string      `json:"color"`
	IsPlayer  int         `json:"isPlayer"`
	GridSlot  int         `json:"gridSlot"`
	Positions [][]any     `json:"positions"`
	Laps      []float64   `json:"laps"`
	PitStops  [][]any     `json:"pitStops"`
	Stats     *LapSummary `json:"stats,omitempty"`
}

// LapSummary mirrors the per-car lap statistics of the race result.
type LapSummary struct {
	Count  int     `json:"count"`
	Best   float64 `json:"best"`
	Worst  float64 `json:"worst"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// GeoFrame records the anchor used to derive lon/lat positions.
type GeoFrame struct {
	AnchorLon float64 `json:"anchorLon"`
	AnchorLat float64 `json:"anchorLat"`
}
