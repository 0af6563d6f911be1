package main

import (
	"fmt"
	"path/filepath"

	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/database"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/logging"
	"github.com/racecontrol/racesim/internal/runner"
	"github.com/racecontrol/racesim/internal/storage"
	gormstorage "github.com/racecontrol/racesim/internal/storage/gorm"
	influxstorage "github.com/racecontrol/racesim/internal/storage/influx"
	"github.com/racecontrol/racesim/internal/storage/memory"
	sqlitestorage "github.com/racecontrol/racesim/internal/storage/sqlite"
	wsstorage "github.com/racecontrol/racesim/internal/storage/websocket"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// storageOptions carries what the backends need beyond their config sections.
type storageOptions struct {
	Tag       string
	LogsDir   string
	Projector geo.Projector
	Logs      *logging.SlogManager
	ZeroLog   zerolog.Logger
}

// createStorageBackend builds the primary backend named by storage.type and adds the
// influx and stream backends when they are enabled. Snapshot sinks are returned separately
// for the runner.
func createStorageBackend(
	storageCfg config.StorageConfig,
	influxCfg config.InfluxConfig,
	streamCfg config.StreamConfig,
	opts storageOptions,
) (storage.Backend, []runner.SnapshotSink, error) {
	logger := opts.Logs.Logger()

	var primary storage.Backend
	switch storageCfg.Type {
	case "postgres":
		dbCfg := config.GetDBConfig()
		primary = gormstorage.New(gormstorage.Dependencies{
			Open:       func() (*gorm.DB, error) { return database.OpenPostgres(dbCfg) },
			LogManager: opts.Logs,
		}, gormstorage.Config{})
		logger.Info("Postgres storage backend initialized", "host", dbCfg.Host, "database", dbCfg.Database)

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, opts.Tag, opts.Logs)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		primary = backend
		logger.Info("SQLite storage backend initialized", "outputPath", storageCfg.SQLite.OutputPath)

	case "memory", "":
		primary = memory.New(storageCfg.Memory,
			memory.WithProjector(opts.Projector),
			memory.WithTag(opts.Tag),
		)
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)

	default:
		return nil, nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}

	backends := storage.Multi{primary}
	var sinks []runner.SnapshotSink

	if influxCfg.Enabled {
		backupPath := filepath.Join(opts.LogsDir, "influx_backup")
		backends = append(backends, influxstorage.New(influxCfg, opts.ZeroLog, backupPath, opts.Projector))
		logger.Info("InfluxDB telemetry enabled", "url", influxCfg.URL(), "bucket", influxCfg.Bucket)
	}

	if streamCfg.Enabled {
		ws := wsstorage.New(wsstorage.Config{
			URL:    streamCfg.URL,
			Secret: streamCfg.Secret,
		}, logger)
		backends = append(backends, ws)
		sinks = append(sinks, ws)
		logger.Info("Live stream enabled", "url", streamCfg.URL)
	}

	if len(backends) == 1 {
		return primary, sinks, nil
	}
	return backends, sinks, nil
}

// uploadable finds the backend that exported a replay, if any.
func uploadable(b storage.Backend) (storage.Uploadable, bool) {
	switch v := b.(type) {
	case storage.Multi:
		return v.Uploadable()
	case storage.Uploadable:
		return v, true
	}
	return nil, false
}
