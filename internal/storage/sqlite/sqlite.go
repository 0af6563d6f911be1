// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific parts are the in-memory DB,
// the dump loop and the final dump when the race ends.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/database"
	"github.com/racecontrol/racesim/internal/logging"
	gormstorage "github.com/racecontrol/racesim/internal/storage/gorm"
	"github.com/racecontrol/racesim/pkg/core"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	tag      string
	log      *logging.SlogManager
	stopChan chan struct{}
	done     chan struct{}

	dumpMu sync.Mutex

	mu       sync.Mutex
	race     *core.Race
	names    map[int]string
	result   *core.RaceResult
	lastDump string
}

// New creates a new SQLite storage backend on a private in-memory database.
func New(cfg config.SQLiteConfig, tag string, logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.OpenSQLiteMemory("racesim_" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		LogManager: logManager,
	}, gormstorage.Config{})

	return &Backend{
		Backend: gormBackend,
		db:      db,
		cfg:     cfg,
		tag:     tag,
		log:     logManager,
		names:   make(map[int]string),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.OutputPath != "" && b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		select {
		case <-b.stopChan:
		default:
			close(b.stopChan)
		}
		<-b.done
	}
	return b.Backend.Close()
}

// StartRace records the race for upload metadata and forwards to the GORM backend.
func (b *Backend) StartRace(race *core.Race, circuit *core.Circuit) error {
	b.mu.Lock()
	r := *race
	b.race = &r
	b.names = make(map[int]string)
	b.result = nil
	b.mu.Unlock()
	return b.Backend.StartRace(race, circuit)
}

// AddCar remembers the car name for the winner lookup.
func (b *Backend) AddCar(c *core.Car) error {
	b.mu.Lock()
	b.names[c.ID] = c.Name
	b.mu.Unlock()
	return b.Backend.AddCar(c)
}

// EndRace stores the result and writes a final dump.
func (b *Backend) EndRace(result *core.RaceResult) error {
	if err := b.Backend.EndRace(result); err != nil {
		return err
	}
	b.mu.Lock()
	r := *result
	b.result = &r
	b.mu.Unlock()

	if b.cfg.OutputPath == "" {
		return nil
	}
	return b.dump()
}

func (b *Backend) dump() error {
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()

	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.OutputPath); err != nil {
		return err
	}
	b.mu.Lock()
	b.lastDump = b.cfg.OutputPath
	b.mu.Unlock()
	b.writeLog("sqlite:dump", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
	return nil
}

func (b *Backend) writeLog(function, msg, level string) {
	if b.log != nil {
		b.log.WriteLog(function, msg, level)
	}
}

// GetExportedFilePath returns the path of the last dump, empty before the first one.
func (b *Backend) GetExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastDump
}

// GetExportMetadata describes the dumped race for upload.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()

	meta := core.UploadMetadata{Tag: b.tag}
	if b.race != nil {
		meta.RaceID = b.race.ID.String()
		meta.Circuit = b.race.Circuit
	}
	if b.result != nil {
		meta.RaceDuration = b.result.RaceClock
		if len(b.result.FinishingOrder) > 0 {
			meta.Winner = b.names[b.result.FinishingOrder[0].CarID]
		}
	}
	return meta
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Backend.Flush(); err != nil {
				b.writeLog("sqlite:dumpLoop", fmt.Sprintf("Error flushing queues: %v", err), "WARN")
			}
			if err := b.dump(); err != nil {
				b.writeLog("sqlite:dumpLoop", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
			}
		}
	}
}
