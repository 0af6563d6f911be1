// pkg/core/race.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Position2D is a point in world space. Y grows downwards.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Section kinds
const (
	SectionStraight = "straight"
	SectionCorner   = "corner"
)

// Section is a stretch of the circuit measured along the racing loop.
type Section struct {
	Kind   string  `json:"kind"`
	Start  float64 `json:"start"`
	Length float64 `json:"length"`
	Radius float64 `json:"radius,omitempty"` // corners only
	DRS    bool    `json:"drs"`
}

// Circuit is the drawable description of a track.
type Circuit struct {
	Name       string       `json:"name"`
	Waypoints  []Position2D `json:"waypoints"`
	Width      float64      `json:"width"`
	Length     float64      `json:"length"`
	StartLine  Position2D   `json:"startLine"`
	PitLaneMin Position2D   `json:"pitLaneMin"`
	PitLaneMax Position2D   `json:"pitLaneMax"`
	Sections   []Section    `json:"sections"`
}

// Race describes one race session.
type Race struct {
	ID        uuid.UUID `json:"id"`
	Circuit   string    `json:"circuit"`
	TotalLaps int       `json:"totalLaps"`
	Seed      int64     `json:"seed"`
	StartTime time.Time `json:"startTime"`
	CarCount  int       `json:"carCount"`
	Version   string    `json:"version"`
}

// Finish is one entry of the finishing order, recorded when the car crosses the line for the last time.
type Finish struct {
	Rank      int     `json:"rank"`
	CarID     int     `json:"carId"`
	TotalTime float64 `json:"totalTime"`
}

// RaceResult is the summary written at the end of a race.
type RaceResult struct {
	Race           Race             `json:"race"`
	EndTime        time.Time        `json:"endTime"`
	RaceClock      float64          `json:"raceClock"`
	FinishingOrder []Finish         `json:"finishingOrder"`
	LapStats       map[int]LapStats `json:"lapStats"`
	Completed      bool             `json:"completed"`
}

// UploadMetadata describes an exported replay for the results server.
type UploadMetadata struct {
	RaceID       string  `json:"raceId"`
	Circuit      string  `json:"circuit"`
	RaceDuration float64 `json:"raceDuration"`
	Winner       string  `json:"winner"`
	Tag          string  `json:"tag"`
}
