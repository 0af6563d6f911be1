// Package storage defines the interface implemented by every race recording backend.
package storage

import (
	"errors"

	"github.com/racecontrol/racesim/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Race management
	StartRace(race *core.Race, circuit *core.Circuit) error
	EndRace(result *core.RaceResult) error

	// Entity registration
	AddCar(c *core.Car) error

	// State recording
	RecordCarState(s *core.CarState) error

	// Event recording
	RecordLap(l *core.LapEvent) error
	RecordPitStop(p *core.PitStopEvent) error
	RecordRaceEvent(e *core.RaceEvent) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the results server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Multi fans every call out to a set of backends. Every backend is called even
// when an earlier one fails; the errors are joined.
type Multi []Backend

var _ Backend = Multi(nil)

func (m Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Init() error  { return m.each(Backend.Init) }
func (m Multi) Close() error { return m.each(Backend.Close) }

func (m Multi) StartRace(race *core.Race, circuit *core.Circuit) error {
	return m.each(func(b Backend) error { return b.StartRace(race, circuit) })
}

func (m Multi) EndRace(result *core.RaceResult) error {
	return m.each(func(b Backend) error { return b.EndRace(result) })
}

func (m Multi) AddCar(c *core.Car) error {
	return m.each(func(b Backend) error { return b.AddCar(c) })
}

func (m Multi) RecordCarState(s *core.CarState) error {
	return m.each(func(b Backend) error { return b.RecordCarState(s) })
}

func (m Multi) RecordLap(l *core.LapEvent) error {
	return m.each(func(b Backend) error { return b.RecordLap(l) })
}

func (m Multi) RecordPitStop(p *core.PitStopEvent) error {
	return m.each(func(b Backend) error { return b.RecordPitStop(p) })
}

func (m Multi) RecordRaceEvent(e *core.RaceEvent) error {
	return m.each(func(b Backend) error { return b.RecordRaceEvent(e) })
}

// Uploadable returns the first member that produces an upload file.
func (m Multi) Uploadable() (Uploadable, bool) {
	for _, b := range m {
		if u, ok := b.(Uploadable); ok {
			return u, true
		}
	}
	return nil, false
}
