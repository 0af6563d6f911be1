package worker

import (
	"fmt"

	"github.com/racecontrol/racesim/internal/dispatcher"
	"github.com/racecontrol/racesim/pkg/core"
)

// Commands raised by the runner. Each payload is the matching core type, by value or pointer.
const (
	CmdRaceStart = ":RACE:START:" // StartPayload
	CmdCarNew    = ":CAR:NEW:"    // core.Car
	CmdCarState  = ":CAR:STATE:"  // core.CarState
	CmdLap       = ":LAP:"        // core.LapEvent
	CmdPitStop   = ":PIT:"        // core.PitStopEvent
	CmdRaceEvent = ":RACE:EVENT:" // core.RaceEvent
	CmdRaceEnd   = ":RACE:END:"   // core.RaceResult
)

// StartPayload opens a race in storage.
type StartPayload struct {
	Race    core.Race
	Circuit core.Circuit
}

// RegisterHandlers registers all event handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Race lifecycle and car creation - sync (storage must know the race and car before states arrive)
	d.Register(CmdRaceStart, m.handleRaceStart, dispatcher.Logged())
	d.Register(CmdCarNew, m.handleNewCar, dispatcher.Logged())
	d.Register(CmdRaceEnd, m.handleRaceEnd, dispatcher.Logged())

	// High-volume state updates - buffered, dropped under pressure
	d.Register(CmdCarState, m.handleCarState, dispatcher.Buffered(10000), dispatcher.Logged())

	// Timing records - buffered, never dropped
	d.Register(CmdLap, m.handleLap, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(CmdPitStop, m.handlePitStop, dispatcher.Buffered(500), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(CmdRaceEvent, m.handleRaceEvent, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
}

func (m *Manager) handleRaceStart(e dispatcher.Event) (any, error) {
	p, err := payload[StartPayload](e.Command, e.Payload)
	if err != nil {
		return nil, err
	}

	m.deps.Cars.Reset()
	m.deps.StatesRecorded.Set(0)

	if err := m.backend.StartRace(&p.Race, &p.Circuit); err != nil {
		return nil, fmt.Errorf("failed to start race: %w", err)
	}
	m.writeLog(":RACE:START:", fmt.Sprintf("Recording race %s on %s", p.Race.ID, p.Race.Circuit), "INFO")
	return nil, nil
}

func (m *Manager) handleNewCar(e dispatcher.Event) (any, error) {
	c, err := payload[core.Car](e.Command, e.Payload)
	if err != nil {
		return nil, err
	}

	// Always cache for state handler lookups
	m.deps.Cars.Add(c)

	if err := m.backend.AddCar(&c); err != nil {
		return nil, fmt.Errorf("failed to log new car: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleCarState(e dispatcher.Event) (any, error) {
	s, err := payload[core.CarState](e.Command, e.Payload)
	if err != nil {
		return nil, err
	}

	car, err := m.deps.Cars.Require(s.CarID)
	if err != nil {
		return nil, fmt.Errorf("car state for %d: %w", s.CarID, err)
	}
	if s.Compound == "" {
		s.Compound = car.Compound
	}

	if err := m.backend.RecordCarState(&s); err != nil {
		return nil, fmt.Errorf("failed to log car state: %w", err)
	}
	m.deps.StatesRecorded.Inc()
	return nil, nil
}

func (m *Manager) handleLap(e dispatcher.Event) (any, error) {
	l, err := payload[core.LapEvent](e.Command, e.Payload)
	if err != nil {
		return nil, err
	}
	if _, err := m.deps.Cars.Require(l.CarID); err != nil {
		return nil, fmt.Errorf("lap for %d: %w", l.CarID, err)
	}
	if err := m.backend.RecordLap(&l); err != nil {
		return nil, fmt.Errorf("failed to log lap: %w", err)
	}
	return nil, nil
}

func (m *Manager) handlePitStop(e dispatcher.Event) (any, error) {
	p, err := payload[core.PitStopEvent](e.Command, e.Payload)
	if err != nil {
		return nil, err
	}
	if _, err := m.deps.Cars.Require(p.CarID); err != nil {
		return nil, fmt.Errorf("pit stop for %d: %w", p.CarID, err)
	}
	if err := m.backend.RecordPitStop(&p); err != nil {
		return nil, fmt.Errorf("failed to log pit stop: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleRaceEvent(e dispatcher.Event) (any, error) {
	ev, err := payload[core.RaceEvent](e.Command, e.Payload)
	if err != nil {
		return nil, err
	}
	if err := m.backend.RecordRaceEvent(&ev); err != nil {
		return nil, fmt.Errorf("failed to log race event: %w", err)
	}
	return nil, nil
}

func (m *Manager) handleRaceEnd(e dispatcher.Event) (any, error) {
	r, err := payload[core.RaceResult](e.Command, e.Payload)
	if err != nil {
		return nil, err
	}
	if err := m.backend.EndRace(&r); err != nil {
		return nil, fmt.Errorf("failed to end race: %w", err)
	}
	m.writeLog(":RACE:END:", fmt.Sprintf("Race %s recorded, %d finishers", r.Race.ID, len(r.FinishingOrder)), "INFO")
	return nil, nil
}
