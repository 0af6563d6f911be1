// Package database opens, migrates and dumps the GORM databases used for race recordings.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/model"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlitePragmas tune SQLite for bulk inserts from a single writer
var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
	"PRAGMA page_size = 32768;",
}

// Manager handles database connections and operations.
type Manager struct {
	DB              *gorm.DB
	SqlDB           *sql.DB
	IsValid         bool
	ShouldSaveLocal bool
	SqliteFilePath  string
	Logger          zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		Logger: log,
	}
}

// Connect establishes a Postgres connection, falling back to the SQLite file at
// SqliteFilePath (or memory when unset) if Postgres is unreachable.
func (m *Manager) Connect(cfg config.DBConfig) error {
	var err error

	m.DB, err = OpenPostgres(cfg)
	if err == nil {
		m.SqlDB, err = m.DB.DB()
		if err == nil {
			err = m.SqlDB.Ping()
		}
	}
	if err != nil {
		m.Logger.Error().Err(err).Msg("Failed to connect to Postgres DB, trying SQLite")
		return m.connectLocal()
	}

	m.Logger.Info().Str("host", cfg.Host).Msg("Connected to database")
	m.SqlDB.SetMaxOpenConns(10)
	m.IsValid = true
	return nil
}

// ConnectSQLite opens the SQLite file at path directly.
func (m *Manager) ConnectSQLite(path string) error {
	m.SqliteFilePath = path
	return m.connectLocal()
}

func (m *Manager) connectLocal() error {
	var err error
	m.ShouldSaveLocal = true
	if m.SqliteFilePath != "" {
		m.DB, err = OpenSQLite(m.SqliteFilePath)
	} else {
		m.DB, err = OpenSQLiteMemory("racesim")
	}
	if err != nil || m.DB == nil {
		m.IsValid = false
		return fmt.Errorf("failed to get local SQLite DB: %w", err)
	}
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	m.Logger.Info().Str("path", m.SqliteFilePath).Msg("Using local SQLite DB")
	m.IsValid = true
	return nil
}

// Setup migrates tables.
func (m *Manager) Setup() error {
	m.Logger.Info().Msg("Migrating schema")
	if err := Migrate(m.DB); err != nil {
		m.IsValid = false
		return err
	}
	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// DumpMemoryToDisk vacuums the database to SqliteFilePath.
func (m *Manager) DumpMemoryToDisk() error {
	start := time.Now()
	if err := DumpMemoryDBToDisk(m.DB, m.SqliteFilePath); err != nil {
		return err
	}
	m.Logger.Debug().Dur("duration", time.Since(start)).Msg("Dumped memory DB to disk")
	return nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	return m.SqlDB.Close()
}

// Standalone functions for direct usage without Manager

// OpenPostgres returns a connection to the Postgres database.
func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        10000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite returns a connection to a SQLite database file.
func OpenSQLite(path string) (*gorm.DB, error) {
	return openSQLite(path)
}

// OpenSQLiteMemory returns a named shared-cache in-memory SQLite database.
// Connections opened with the same name see the same data.
func OpenSQLiteMemory(name string) (*gorm.DB, error) {
	return openSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

func openSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}

// Migrate creates or updates every race table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// DumpMemoryDBToDisk vacuums the in-memory database to a disk file.
func DumpMemoryDBToDisk(db *gorm.DB, sqliteFilePath string) error {
	if sqliteFilePath == "" {
		return fmt.Errorf("sqlite file path not set")
	}

	if dir := filepath.Dir(sqliteFilePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating dump directory: %w", err)
		}
	}

	// VACUUM INTO refuses to overwrite
	if _, err := os.Stat(sqliteFilePath); err == nil {
		if err := os.Remove(sqliteFilePath); err != nil {
			return fmt.Errorf("error removing existing DB file: %w", err)
		}
	}

	quoted := strings.ReplaceAll(sqliteFilePath, "'", "''")
	err := db.Exec("VACUUM INTO '" + quoted + "';").Error
	if err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}

	return nil
}

// GetBackupDBPaths returns paths to all .db files in the given directory.
func GetBackupDBPaths(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var dbPaths []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".db") {
			dbPaths = append(dbPaths, filepath.Join(dir, file.Name()))
		}
	}
	return dbPaths, nil
}
