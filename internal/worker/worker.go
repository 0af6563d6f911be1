package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/racecontrol/racesim/internal/cache"
	"github.com/racecontrol/racesim/internal/logging"
	"github.com/racecontrol/racesim/internal/storage"
)

// ErrBadPayload is returned when an event carries the wrong payload type
var ErrBadPayload = errors.New("unexpected payload type")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Cars       *cache.CarCache
	LogManager *logging.SlogManager
	// StatesRecorded counts car states handed to the backend
	StatesRecorded *cache.SafeCounter
}

// Manager routes recording events from the dispatcher to the storage backend
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Cars == nil {
		deps.Cars = cache.NewCarCache()
	}
	if deps.StatesRecorded == nil {
		deps.StatesRecorded = &cache.SafeCounter{}
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// QueueLengthProvider is an optional interface for backends that buffer rows before writing.
type QueueLengthProvider interface {
	QueueLengths() map[string]int
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	if multi, ok := m.backend.(storage.Multi); ok {
		var longest time.Duration
		for _, b := range multi {
			if p, ok := b.(DBWriteDurationProvider); ok {
				longest = max(longest, p.GetLastDBWriteDuration())
			}
		}
		return longest
	}
	return 0
}

// QueueLengths returns the pending rows per table, or nil when nothing is buffered.
func (m *Manager) QueueLengths() map[string]int {
	if p, ok := m.backend.(QueueLengthProvider); ok {
		return p.QueueLengths()
	}
	multi, ok := m.backend.(storage.Multi)
	if !ok {
		return nil
	}
	var out map[string]int
	for _, b := range multi {
		p, ok := b.(QueueLengthProvider)
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]int)
		}
		for k, v := range p.QueueLengths() {
			out[k] += v
		}
	}
	return out
}

// StatesRecorded is the number of car states passed to the backend.
func (m *Manager) StatesRecorded() int {
	return m.deps.StatesRecorded.Value()
}

// Cars returns the cars registered for the current race.
func (m *Manager) Cars() *cache.CarCache {
	return m.deps.Cars
}

func (m *Manager) writeLog(function, msg, level string) {
	if m.deps.LogManager != nil {
		m.deps.LogManager.WriteLog(function, msg, level)
	}
}

// payload extracts a value of type T from an event, accepting T or *T.
func payload[T any](cmd string, p any) (T, error) {
	var zero T
	switch v := p.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	return zero, fmt.Errorf("%s: %w %T", cmd, ErrBadPayload, p)
}
