// Package memory keeps a whole race in memory and exports it as a JSON replay when the race ends.
package memory

import (
	"sync"

	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/geo"
	v1 "github.com/racecontrol/racesim/internal/storage/memory/export/v1"
	"github.com/racecontrol/racesim/pkg/core"
)

// Option configures the memory backend
type Option func(*Backend)

// WithProjector adds lon/lat to every exported position.
func WithProjector(p geo.Projector) Option {
	return func(b *Backend) {
		b.projector = p
	}
}

// WithTag sets the tag reported with the upload metadata.
func WithTag(tag string) Option {
	return func(b *Backend) {
		b.tag = tag
	}
}

// Backend stores race data in memory and exports to JSON
type Backend struct {
	cfg       config.MemoryConfig
	projector geo.Projector
	tag       string

	race    *core.Race
	circuit *core.Circuit
	result  *core.RaceResult

	cars   map[int]*v1.CarRecord // keyed by car id
	events []core.RaceEvent

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, opts ...Option) *Backend {
	b := &Backend{
		cfg:  cfg,
		cars: make(map[int]*v1.CarRecord),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRace begins recording a new race
func (b *Backend) StartRace(race *core.Race, circuit *core.Circuit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.race = race
	b.circuit = circuit
	b.result = nil

	b.cars = make(map[int]*v1.CarRecord)
	b.events = nil
	b.lastExportPath = ""

	return nil
}

// EndRace stores the result and exports the replay
func (b *Backend) EndRace(result *core.RaceResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.result = result
	return b.exportJSON()
}

// AddCar registers a new car
func (b *Backend) AddCar(c *core.Car) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cars[c.ID] = &v1.CarRecord{
		Car:    *c,
		States: make([]core.CarState, 0),
	}
	return nil
}

// GetCar looks up a registered car
func (b *Backend) GetCar(id int) (*core.Car, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if record, ok := b.cars[id]; ok {
		return &record.Car, true
	}
	return nil, false
}

// RecordCarState records a car state sample
func (b *Backend) RecordCarState(s *core.CarState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.cars[s.CarID]; ok {
		record.States = append(record.States, *s)
	}
	return nil // silently ignore if car not found
}

// RecordLap records a completed lap
func (b *Backend) RecordLap(l *core.LapEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.cars[l.CarID]; ok {
		record.Laps = append(record.Laps, *l)
	}
	return nil
}

// RecordPitStop records a completed pit stop
func (b *Backend) RecordPitStop(p *core.PitStopEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.cars[p.CarID]; ok {
		record.PitStops = append(record.PitStops, *p)
	}
	return nil
}

// RecordRaceEvent records a discrete race event
func (b *Backend) RecordRaceEvent(e *core.RaceEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, *e)
	return nil
}

// GetExportedFilePath returns the path of the last export, empty before the first one.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	meta := core.UploadMetadata{Tag: b.tag}
	if b.race != nil {
		meta.RaceID = b.race.ID.String()
		meta.Circuit = b.race.Circuit
	}
	if b.result != nil {
		meta.RaceDuration = b.result.RaceClock
		if len(b.result.FinishingOrder) > 0 {
			if record, ok := b.cars[b.result.FinishingOrder[0].CarID]; ok {
				meta.Winner = record.Car.Name
			}
		}
	}
	return meta
}
