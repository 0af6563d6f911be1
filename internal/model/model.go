package model

import (
	"time"

	"github.com/google/uuid"
	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Race{},
	&Circuit{},
	&Car{},
	&CarState{},
	&Lap{},
	&PitStop{},
	&RaceEvent{},
	&Result{},
}

////////////////////////
// RACE MODELS
////////////////////////

// Race is one simulated race session
type Race struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	Circuit   string         `json:"circuit" gorm:"size:127"`
	TotalLaps int            `json:"totalLaps"`
	Seed      int64          `json:"seed"`
	CarCount  int            `json:"carCount"`
	Version   string         `json:"version" gorm:"size:64"`
	StartTime time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_race_start"`
	EndTime   *time.Time     `json:"endTime" gorm:"type:timestamptz"`
	RaceClock float64        `json:"raceClock"`
	Completed bool           `json:"completed" gorm:"default:false"`
	Tag       string         `json:"tag" gorm:"size:127"`

	Circuits []Circuit
	Cars     []Car
	Laps     []Lap
	PitStops []PitStop
	Events   []RaceEvent
	Results  []Result
}

func (*Race) TableName() string {
	return "races"
}

// Circuit is the track a race ran on. Geometry is kept both as PostGIS-compatible
// shapes and as JSON for viewers that do not speak WKB.
type Circuit struct {
	ID         uint            `json:"id" gorm:"primarykey"`
	RaceID     uuid.UUID       `json:"raceId" gorm:"type:uuid;uniqueIndex:idx_circuit_race"`
	Race       Race            `gorm:"foreignkey:RaceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Name       string          `json:"name" gorm:"size:127"`
	Length     float64         `json:"length"`
	Width      float64         `json:"width"`
	StartLine  geom.Point      `json:"startLine"`
	Centerline geom.LineString `json:"centerline"`
	PitLane    geom.Polygon    `json:"pitLane"`
	Waypoints  datatypes.JSON  `json:"waypoints" gorm:"type:jsonb;default:'[]'"`
	Sections   datatypes.JSON  `json:"sections" gorm:"type:jsonb;default:'[]'"`
}

func (*Circuit) TableName() string {
	return "circuits"
}

// Car is one entrant. Uses composite primary key (RaceID, CarID) where CarID is the
// creation index inside the race.
type Car struct {
	RaceID    uuid.UUID `json:"raceId" gorm:"type:uuid;primaryKey;autoIncrement:false"`
	CarID     int       `json:"carId" gorm:"primaryKey;autoIncrement:false"`
	Race      Race      `gorm:"foreignkey:RaceID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt time.Time `json:"createdAt"`
	JoinTime  time.Time `json:"joinTime" gorm:"type:timestamptz;NOT NULL"`
	Name      string    `json:"name" gorm:"size:64"`
	Team      string    `json:"team" gorm:"size:64"`
	Color     string    `json:"color" gorm:"size:16"`
	Compound  string    `json:"compound" gorm:"size:16"` // starting compound
	IsPlayer  bool      `json:"isPlayer" gorm:"default:false"`
	GridSlot  int       `json:"gridSlot"`
}

func (*Car) TableName() string {
	return "cars"
}

// CarState is a sampled snapshot of one car
type CarState struct {
	ID        uint       `json:"id" gorm:"primarykey;autoIncrement"`
	RaceID    uuid.UUID  `json:"raceId" gorm:"type:uuid;index:idx_carstate_race_car,priority:1"`
	CarID     int        `json:"carId" gorm:"index:idx_carstate_race_car,priority:2"`
	Time      time.Time  `json:"time" gorm:"type:timestamptz;"`
	RaceClock float64    `json:"raceClock" gorm:"index:idx_carstate_clock"`
	Position  geom.Point `json:"position"`
	Heading   float64    `json:"heading"`
	Speed     float64    `json:"speed"`

	Fuel          float64 `json:"fuel"`
	TireWear      float64 `json:"tireWear"`
	TireTemp      float64 `json:"tireTemp"`
	BrakeTemp     float64 `json:"brakeTemp"`
	EngineTemp    float64 `json:"engineTemp"`
	ERSBattery    float64 `json:"ersBattery"`
	ERSDeployment float64 `json:"ersDeployment"`
	DRSActive     bool    `json:"drsActive"`
	Grip          float64 `json:"grip"`
	Compound      string  `json:"compound" gorm:"size:16"`
	EngineMode    string  `json:"engineMode" gorm:"size:16"`
	Downforce     float64 `json:"downforce"`

	Lap      int     `json:"lap"`
	Rank     int     `json:"rank"`
	Progress float64 `json:"progress"`
	GapAhead float64 `json:"gapAhead"`
	Finished bool    `json:"finished"`
	PitPhase string  `json:"pitPhase" gorm:"size:16"`
	PitStops int     `json:"pitStops"`
	OffTrack bool    `json:"offTrack"`
}

func (*CarState) TableName() string {
	return "car_states"
}

// Lap is one completed timed lap
type Lap struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement"`
	RaceID       uuid.UUID `json:"raceId" gorm:"type:uuid;index:idx_lap_race_car,priority:1"`
	CarID        int       `json:"carId" gorm:"index:idx_lap_race_car,priority:2"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	Lap          int       `json:"lap"`
	LapTime      float64   `json:"lapTime"`
	RaceClock    float64   `json:"raceClock"`
	PersonalBest bool      `json:"personalBest"`
}

func (*Lap) TableName() string {
	return "laps"
}

// PitStop is one completed pit stop
type PitStop struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement"`
	RaceID      uuid.UUID `json:"raceId" gorm:"type:uuid;index:idx_pitstop_race"`
	CarID       int       `json:"carId"`
	Time        time.Time `json:"time" gorm:"type:timestamptz;"`
	Stop        int       `json:"stop"`
	Lap         int       `json:"lap"`
	OldCompound string    `json:"oldCompound" gorm:"size:16"`
	NewCompound string    `json:"newCompound" gorm:"size:16"`
	Duration    float64   `json:"duration"`
	RaceClock   float64   `json:"raceClock"`
}

func (*PitStop) TableName() string {
	return "pit_stops"
}

// RaceEvent is a discrete race occurrence (overtake, safety car, finish, ...)
type RaceEvent struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement"`
	RaceID     uuid.UUID      `json:"raceId" gorm:"type:uuid;index:idx_raceevent_race"`
	Time       time.Time      `json:"time" gorm:"type:timestamptz;"`
	RaceClock  float64        `json:"raceClock"`
	Kind       string         `json:"kind" gorm:"size:32;index:idx_raceevent_kind"`
	CarID      int            `json:"carId"`      // -1 for race-level events
	OtherCarID int            `json:"otherCarId"` // -1 unless overtake
	Message    string         `json:"message" gorm:"size:255"`
	ExtraData  datatypes.JSON `json:"extraData" gorm:"type:jsonb;default:'{}'"`
}

func (*RaceEvent) TableName() string {
	return "race_events"
}

// Result is a car's classification at the end of the race. Rank is 0 for cars that did not finish.
type Result struct {
	RaceID    uuid.UUID `json:"raceId" gorm:"type:uuid;primaryKey;autoIncrement:false"`
	CarID     int       `json:"carId" gorm:"primaryKey;autoIncrement:false"`
	Rank      int       `json:"rank"`
	Finished  bool      `json:"finished"`
	TotalTime float64   `json:"totalTime"`
	LapCount  int       `json:"lapCount"`
	BestLap   float64   `json:"bestLap"`
	WorstLap  float64   `json:"worstLap"`
	MeanLap   float64   `json:"meanLap"`
	StdDevLap float64   `json:"stdDevLap"`
}

func (*Result) TableName() string {
	return "results"
}
