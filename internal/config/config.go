package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "racesim.cfg.json"

// RaceConfig holds the session settings read at startup.
type RaceConfig struct {
	Circuit           string        `json:"circuit" mapstructure:"circuit"`
	Laps              int           `json:"laps" mapstructure:"laps"`
	AICars            int           `json:"aiCars" mapstructure:"aiCars"`
	PlayerCar         bool          `json:"playerCar" mapstructure:"playerCar"`
	Countdown         time.Duration `json:"countdown" mapstructure:"countdown"`
	Seed              uint64        `json:"seed" mapstructure:"seed"`
	TickRate          int           `json:"tickRate" mapstructure:"tickRate"`
	MaxStep           time.Duration `json:"maxStep" mapstructure:"maxStep"`
	CaptureInterval   time.Duration `json:"captureInterval" mapstructure:"captureInterval"`
	Realtime          bool          `json:"realtime" mapstructure:"realtime"`
	Debounce          time.Duration `json:"debounce" mapstructure:"debounce"`
	CaptureRadius     float64       `json:"captureRadius" mapstructure:"captureRadius"`
	SafetyCarRate     float64       `json:"safetyCarRate" mapstructure:"safetyCarRate"`
	SafetyCarDuration time.Duration `json:"safetyCarDuration" mapstructure:"safetyCarDuration"`
	Downforce         float64       `json:"downforce" mapstructure:"downforce"`
	TimeLimit         time.Duration `json:"timeLimit" mapstructure:"timeLimit"`
	AnchorLat         float64       `json:"anchorLat" mapstructure:"anchorLat"`
	AnchorLon         float64       `json:"anchorLon" mapstructure:"anchorLon"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend
type SQLiteConfig struct {
	OutputPath   string        `json:"outputPath" mapstructure:"outputPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN formats the settings as a libpq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// InfluxConfig holds InfluxDB telemetry settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL is the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// StreamConfig holds the live websocket stream settings
type StreamConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Secret  string `json:"secret" mapstructure:"secret"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("race.circuit", "grandprix")
	viper.SetDefault("race.laps", 5)
	viper.SetDefault("race.aiCars", 5)
	viper.SetDefault("race.playerCar", true)
	viper.SetDefault("race.countdown", "5s")
	viper.SetDefault("race.seed", 1)
	viper.SetDefault("race.tickRate", 60)
	viper.SetDefault("race.maxStep", "100ms")
	viper.SetDefault("race.captureInterval", "250ms")
	viper.SetDefault("race.realtime", true)
	viper.SetDefault("race.debounce", "10s")
	viper.SetDefault("race.captureRadius", 120)
	viper.SetDefault("race.safetyCarRate", 0.005)
	viper.SetDefault("race.safetyCarDuration", "8s")
	viper.SetDefault("race.downforce", 5)
	viper.SetDefault("race.timeLimit", "0s")
	viper.SetDefault("race.anchorLat", 0)
	viper.SetDefault("race.anchorLon", 0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.outputPath", "./recordings/racesim.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "racesim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "racesim")
	viper.SetDefault("influx.bucket", "telemetry")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5000/api/stream")
	viper.SetDefault("stream.secret", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "racesim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetRaceConfig returns the race section.
func GetRaceConfig() RaceConfig {
	return RaceConfig{
		Circuit:           viper.GetString("race.circuit"),
		Laps:              viper.GetInt("race.laps"),
		AICars:            viper.GetInt("race.aiCars"),
		PlayerCar:         viper.GetBool("race.playerCar"),
		Countdown:         viper.GetDuration("race.countdown"),
		Seed:              viper.GetUint64("race.seed"),
		TickRate:          viper.GetInt("race.tickRate"),
		MaxStep:           viper.GetDuration("race.maxStep"),
		CaptureInterval:   viper.GetDuration("race.captureInterval"),
		Realtime:          viper.GetBool("race.realtime"),
		Debounce:          viper.GetDuration("race.debounce"),
		CaptureRadius:     viper.GetFloat64("race.captureRadius"),
		SafetyCarRate:     viper.GetFloat64("race.safetyCarRate"),
		SafetyCarDuration: viper.GetDuration("race.safetyCarDuration"),
		Downforce:         viper.GetFloat64("race.downforce"),
		TimeLimit:         viper.GetDuration("race.timeLimit"),
		AnchorLat:         viper.GetFloat64("race.anchorLat"),
		AnchorLon:         viper.GetFloat64("race.anchorLon"),
	}
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			OutputPath:   viper.GetString("storage.sqlite.outputPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetDBConfig returns the PostgreSQL section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetInfluxConfig returns the InfluxDB section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetStreamConfig returns the live stream section.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
		Secret:  viper.GetString("stream.secret"),
	}
}

// GetOTelConfig returns the OpenTelemetry section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
