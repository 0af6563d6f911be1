package session

import (
	"log/slog"
	"sync"

	"github.com/racecontrol/racesim/pkg/core"
)

// Context holds the current race and its latest snapshot. One goroutine publishes, any number read.
type Context struct {
	mu       sync.RWMutex
	race     core.Race
	circuit  core.Circuit
	snapshot core.Snapshot
}

// NewContext creates a new Context with placeholder values
func NewContext() *Context {
	return &Context{
		race:     core.Race{Circuit: "No race loaded"},
		snapshot: core.Snapshot{State: core.StateCountdown},
	}
}

// GetRace returns the current race description
func (c *Context) GetRace() core.Race {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.race
}

// GetCircuit returns the current circuit
func (c *Context) GetCircuit() core.Circuit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.circuit
}

// SetRace sets the current race and circuit and clears the snapshot
func (c *Context) SetRace(race core.Race, circuit core.Circuit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.race = race
	c.circuit = circuit
	c.snapshot = core.Snapshot{State: core.StateCountdown, TotalLaps: race.TotalLaps}
}

// Publish replaces the latest snapshot. The snapshot must not be modified afterwards.
func (c *Context) Publish(s core.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = s
}

// Snapshot returns the latest published snapshot
func (c *Context) Snapshot() core.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// LogAttrs is a logging.ContextProvider that tags records with the race state.
func (c *Context) LogAttrs() []slog.Attr {
	s := c.Snapshot()
	attrs := []slog.Attr{
		slog.String("race_state", s.State),
		slog.Float64("race_clock", s.Clock),
	}
	if leader, ok := s.Leader(); ok {
		attrs = append(attrs, slog.Int("leader_lap", leader.Lap))
	}
	return attrs
}
