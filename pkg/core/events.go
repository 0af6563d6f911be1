// pkg/core/events.go
package core

import (
	"time"
)

// Race event kinds
const (
	EventRaceStart         = "race_start"
	EventRaceEnd           = "race_end"
	EventLightsOut         = "lights_out"
	EventOvertake          = "overtake"
	EventLap               = "lap"
	EventFinish            = "finish"
	EventPitEntry          = "pit_entry"
	EventPitExit           = "pit_exit"
	EventFastestLap        = "fastest_lap"
	EventSafetyCarDeployed = "safety_car_deployed"
	EventSafetyCarIn       = "safety_car_in"
)

// LapEvent is emitted when a car completes a timed lap.
type LapEvent struct {
	CarID     int       `json:"carId"`
	Lap       int       `json:"lap"` // the lap that was completed
	LapTime   float64   `json:"lapTime"`
	RaceClock float64   `json:"raceClock"`
	Personal  bool      `json:"personalBest"`
	Time      time.Time `json:"time"`
}

// PitStopEvent is emitted when a car leaves the pit box.
type PitStopEvent struct {
	CarID       int       `json:"carId"`
	Stop        int       `json:"stop"`
	Lap         int       `json:"lap"`
	OldCompound string    `json:"oldCompound"`
	NewCompound string    `json:"newCompound"`
	Duration    float64   `json:"duration"`
	RaceClock   float64   `json:"raceClock"`
	Time        time.Time `json:"time"`
}

// RaceEvent is a discrete race occurrence.
// CarID and OtherCarID are -1 when not applicable.
type RaceEvent struct {
	Kind       string         `json:"kind"`
	CarID      int            `json:"carId"`
	OtherCarID int            `json:"otherCarId"`
	Message    string         `json:"message"`
	RaceClock  float64        `json:"raceClock"`
	Time       time.Time      `json:"time"`
	ExtraData  map[string]any `json:"extraData,omitempty"`
	Lap        *LapEvent      `json:"lap,omitempty"`
	PitStop    *PitStopEvent  `json:"pitStop,omitempty"`
}
