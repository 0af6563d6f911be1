// Package gormstorage implements the storage.Backend interface on any GORM database
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/racecontrol/racesim/internal/database"
	"github.com/racecontrol/racesim/internal/logging"
	"github.com/racecontrol/racesim/internal/model"
	"github.com/racecontrol/racesim/internal/model/convert"
	"github.com/racecontrol/racesim/internal/queue"
	"github.com/racecontrol/racesim/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval is how often queued rows are written when not configured.
const DefaultFlushInterval = 2 * time.Second

// ErrNoRace is returned by EndRace when no race was started.
var ErrNoRace = errors.New("no race started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is used as is when set.
	DB *gorm.DB
	// Open is called by Init when DB is nil. With neither set the backend only queues.
	Open       func() (*gorm.DB, error)
	LogManager *logging.SlogManager
}

// Config tunes the background writer.
type Config struct {
	FlushInterval time.Duration
	// BatchSize caps rows per insert transaction; 0 writes each queue in one go.
	BatchSize int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Cars      *queue.Queue[model.Car]
	CarStates *queue.Queue[model.CarState]
	Laps      *queue.Queue[model.Lap]
	PitStops  *queue.Queue[model.PitStop]
	Events    *queue.Queue[model.RaceEvent]
}

func newQueues() *queues {
	return &queues{
		Cars:      queue.New[model.Car](),
		CarStates: queue.New[model.CarState](),
		Laps:      queue.New[model.Lap](),
		PitStops:  queue.New[model.PitStop](),
		Events:    queue.New[model.RaceEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	cfg    Config
	queues *queues

	raceID    atomic.Pointer[uuid.UUID]
	lastWrite atomic.Int64 // nanoseconds

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies, cfg Config) *Backend {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:   deps,
		cfg:    cfg,
		queues: newQueues(),
	}
}

// DB exposes the connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init opens the database if needed, runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil && b.deps.Open != nil {
		db, err := b.deps.Open()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		b.deps.DB = db
	}

	if b.deps.DB != nil {
		if err := database.Migrate(b.deps.DB); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
		b.log("Init", "Database setup complete", "INFO")
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writeLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
	default:
		close(b.stopChan)
	}
	<-b.done
	return nil
}

func (b *Backend) log(function, msg, level string) {
	if b.deps.LogManager != nil {
		b.deps.LogManager.WriteLog(function, msg, level)
	}
}

func (b *Backend) currentRace() uuid.UUID {
	if id := b.raceID.Load(); id != nil {
		return *id
	}
	return uuid.Nil
}

// StartRace inserts the race and its circuit synchronously; both are needed
// before any queued row can reference them.
func (b *Backend) StartRace(race *core.Race, circuit *core.Circuit) error {
	id := race.ID
	b.raceID.Store(&id)

	if b.deps.DB == nil {
		return nil
	}

	gormRace := convert.CoreToRace(*race)
	if err := b.deps.DB.Create(&gormRace).Error; err != nil {
		return fmt.Errorf("failed to insert race: %w", err)
	}
	if circuit != nil {
		gormCircuit := convert.CoreToCircuit(id, *circuit)
		if err := b.deps.DB.Create(&gormCircuit).Error; err != nil {
			return fmt.Errorf("failed to insert circuit: %w", err)
		}
	}
	return nil
}

// EndRace flushes all queues, then stores the final classification.
func (b *Backend) EndRace(result *core.RaceResult) error {
	raceID := b.currentRace()
	if raceID == uuid.Nil {
		return ErrNoRace
	}
	if err := b.Flush(); err != nil {
		return err
	}
	if b.deps.DB == nil {
		return nil
	}

	updates := map[string]any{
		"end_time":   result.EndTime,
		"race_clock": result.RaceClock,
		"completed":  result.Completed,
	}
	if err := b.deps.DB.Model(&model.Race{}).Where("id = ?", raceID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update race: %w", err)
	}

	rows := convert.CoreToResults(*result)
	for i := range rows {
		rows[i].RaceID = raceID
	}
	if len(rows) > 0 {
		if err := b.deps.DB.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}
	}
	return nil
}

// AddCar converts a core car to GORM and pushes to the write queue.
func (b *Backend) AddCar(c *core.Car) error {
	b.queues.Cars.Push(convert.CoreToCar(b.currentRace(), *c))
	return nil
}

// RecordCarState converts and queues a car state.
func (b *Backend) RecordCarState(s *core.CarState) error {
	b.queues.CarStates.Push(convert.CoreToCarState(b.currentRace(), *s))
	return nil
}

// RecordLap converts and queues a lap.
func (b *Backend) RecordLap(l *core.LapEvent) error {
	b.queues.Laps.Push(convert.CoreToLap(b.currentRace(), *l))
	return nil
}

// RecordPitStop converts and queues a pit stop.
func (b *Backend) RecordPitStop(p *core.PitStopEvent) error {
	b.queues.PitStops.Push(convert.CoreToPitStop(b.currentRace(), *p))
	return nil
}

// RecordRaceEvent converts and queues a race event.
func (b *Backend) RecordRaceEvent(e *core.RaceEvent) error {
	b.queues.Events.Push(convert.CoreToRaceEvent(b.currentRace(), *e))
	return nil
}

// QueueLengths reports the rows waiting per table.
func (b *Backend) QueueLengths() map[string]int {
	return map[string]int{
		"cars":        b.queues.Cars.Len(),
		"car_states":  b.queues.CarStates.Len(),
		"laps":        b.queues.Laps.Len(),
		"pit_stops":   b.queues.PitStops.Len(),
		"race_events": b.queues.Events.Len(),
	}
}

// GetLastDBWriteDuration returns the duration of the last flush.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// writeQueue writes items from a queue to the database, one transaction per batch.
// A failed batch is put back at the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], batchSize int, name string, log func(string, string, string)) error {
	for !q.Empty() {
		items := q.DrainN(batchSize)
		if len(items) == 0 {
			return nil
		}
		tx := db.Begin()
		if err := tx.Create(&items).Error; err != nil {
			log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
			tx.Rollback()
			q.Requeue(items...)
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := tx.Commit().Error; err != nil {
			q.Requeue(items...)
			return fmt.Errorf("failed to commit %s: %w", name, err)
		}
	}
	return nil
}

// Flush writes every queue now. Cars go first so states never reference a missing car.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	db, n := b.deps.DB, b.cfg.BatchSize
	err := errors.Join(
		writeQueue(db, b.queues.Cars, n, "cars", b.log),
		writeQueue(db, b.queues.CarStates, n, "car states", b.log),
		writeQueue(db, b.queues.Laps, n, "laps", b.log),
		writeQueue(db, b.queues.PitStops, n, "pit stops", b.log),
		writeQueue(db, b.queues.Events, n, "race events", b.log),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// writeLoop periodically drains queues into the DB until Close.
func (b *Backend) writeLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			if err := b.Flush(); err != nil {
				b.log(":DB:WRITER:", fmt.Sprintf("Final flush failed: %v", err), "ERROR")
			}
			return
		case <-ticker.C:
			// errors are logged per queue and retried next tick
			_ = b.Flush()
		}
	}
}
