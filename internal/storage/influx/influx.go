// Package influx implements a telemetry storage.Backend writing race time series to InfluxDB.
// When the server is unreachable, points go to a gzipped line protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/pkg/core"
	"github.com/rs/zerolog"
)

const (
	MeasurementCarState  = "car_state"
	MeasurementLap       = "lap"
	MeasurementPitStop   = "pit_stop"
	MeasurementRaceEvent = "race_event"

	retentionSeconds = 60 * 60 * 24 * 90 // 90 days
	pingTimeout      = 5 * time.Second
)

// Backend writes race telemetry points to one InfluxDB bucket.
type Backend struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	projector  geo.Projector
	backupFile *os.File

	mu     sync.Mutex
	raceID string
}

// New creates a telemetry backend. backupPath receives line protocol when the server is down.
func New(cfg config.InfluxConfig, log zerolog.Logger, backupPath string, projector geo.Projector) *Backend {
	return &Backend{
		cfg:        cfg,
		Logger:     log,
		BackupPath: backupPath,
		projector:  projector,
	}
}

// Init connects to InfluxDB, falling back to the backup file.
func (b *Backend) Init() error {
	b.Client = influxdb2.NewClientWithOptions(
		b.cfg.URL(),
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	running, err := b.Client.Ping(ctx)
	cancel()

	if err != nil || !running {
		b.IsValid = false
		b.Logger.Info().Str("backupPath", b.BackupPath).
			Msg("Failed to initialize InfluxDB client, writing to backup file")
		if err := b.openBackup(); err != nil {
			return err
		}
		return nil
	}

	b.IsValid = true
	if err := b.setupOrganizationAndBucket(); err != nil {
		return err
	}
	b.createWriter()
	b.Logger.Info().Str("bucket", b.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (b *Backend) openBackup() error {
	if b.BackupWriter != nil {
		return nil
	}
	if b.BackupPath == "" {
		return fmt.Errorf("influxDB unreachable and no backup path set")
	}
	if err := os.MkdirAll(filepath.Dir(b.BackupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup directory: %w", err)
	}
	file, err := os.OpenFile(b.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	b.backupFile = file
	b.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (b *Backend) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := b.cfg.Org

	// ensure org exists
	org, err := b.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		b.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		org, err = b.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			b.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	if _, err = b.Client.BucketsAPI().FindBucketByName(ctx, b.cfg.Bucket); err != nil {
		b.Logger.Info().Str("bucket", b.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = b.Client.BucketsAPI().CreateBucketWithName(ctx, org, b.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			b.Logger.Error().Err(err).Str("bucket", b.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (b *Backend) createWriter() {
	b.Writer = b.Client.WriteAPI(b.cfg.Org, b.cfg.Bucket)

	errorsCh := b.Writer.Errors()
	go func(bucket string) {
		for writeErr := range errorsCh {
			b.Logger.Error().Err(writeErr).Str("bucket", bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(b.cfg.Bucket)
}

// Close flushes pending points and releases the client and backup file.
func (b *Backend) Close() error {
	if b.Writer != nil {
		b.Writer.Flush()
	}
	if b.Client != nil {
		b.Client.Close()
	}
	var err error
	if b.BackupWriter != nil {
		err = b.BackupWriter.Close()
		b.BackupWriter = nil
	}
	if b.backupFile != nil {
		if cerr := b.backupFile.Close(); err == nil {
			err = cerr
		}
		b.backupFile = nil
	}
	return err
}

// WritePoint writes a point to InfluxDB or the backup file.
func (b *Backend) WritePoint(point *influxdb2_write.Point) error {
	if b.IsValid {
		if b.Writer == nil {
			return fmt.Errorf("influxDB writer for bucket '%s' not created", b.cfg.Bucket)
		}
		b.Writer.WritePoint(point)
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := b.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

func (b *Backend) currentRace() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.raceID
}

// StartRace tags all following points with the race id.
func (b *Backend) StartRace(race *core.Race, _ *core.Circuit) error {
	b.mu.Lock()
	b.raceID = race.ID.String()
	b.mu.Unlock()
	return nil
}

// EndRace flushes buffered points.
func (b *Backend) EndRace(_ *core.RaceResult) error {
	if b.Writer != nil {
		b.Writer.Flush()
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.BackupWriter != nil {
		return b.BackupWriter.Flush()
	}
	return nil
}

// AddCar has no time series of its own.
func (b *Backend) AddCar(_ *core.Car) error {
	return nil
}

func (b *Backend) RecordCarState(s *core.CarState) error {
	return b.WritePoint(CarStatePoint(b.currentRace(), s, b.projector))
}

func (b *Backend) RecordLap(l *core.LapEvent) error {
	return b.WritePoint(LapPoint(b.currentRace(), l))
}

func (b *Backend) RecordPitStop(p *core.PitStopEvent) error {
	return b.WritePoint(PitStopPoint(b.currentRace(), p))
}

func (b *Backend) RecordRaceEvent(e *core.RaceEvent) error {
	return b.WritePoint(RaceEventPoint(b.currentRace(), e))
}

func carTags(raceID string, carID int) map[string]string {
	tags := map[string]string{"car_id": strconv.Itoa(carID)}
	setTag(tags, "race_id", raceID)
	return tags
}

// setTag skips empty values, which line protocol cannot carry.
func setTag(tags map[string]string, key, value string) {
	if value != "" {
		tags[key] = value
	}
}

// CarStatePoint builds the per-tick telemetry point for one car.
func CarStatePoint(raceID string, s *core.CarState, projector geo.Projector) *influxdb2_write.Point {
	tags := carTags(raceID, s.CarID)
	setTag(tags, "compound", s.Compound)
	setTag(tags, "pit_phase", s.PitPhase)

	fields := map[string]interface{}{
		"race_clock":     s.RaceClock,
		"x":              s.Position.X,
		"y":              s.Position.Y,
		"heading":        s.Heading,
		"speed":          s.Speed,
		"fuel":           s.Fuel,
		"tire_wear":      s.TireWear,
		"tire_temp":      s.TireTemp,
		"brake_temp":     s.BrakeTemp,
		"engine_temp":    s.EngineTemp,
		"ers_battery":    s.ERSBattery,
		"ers_deployment": s.ERSDeployment,
		"drs_active":     s.DRSActive,
		"grip":           s.Grip,
		"downforce":      s.Downforce,
		"lap":            s.Lap,
		"rank":           s.Rank,
		"gap_ahead":      s.GapAhead,
		"off_track":      s.OffTrack,
	}
	if projector.Enabled() {
		lon, lat := projector.LonLat(geo.Vec{X: s.Position.X, Y: s.Position.Y})
		fields["lon"] = lon
		fields["lat"] = lat
	}
	return influxdb2_write.NewPoint(MeasurementCarState, tags, fields, s.Time)
}

// LapPoint builds the point for one completed lap.
func LapPoint(raceID string, l *core.LapEvent) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(MeasurementLap, carTags(raceID, l.CarID), map[string]interface{}{
		"lap":           l.Lap,
		"lap_time":      l.LapTime,
		"race_clock":    l.RaceClock,
		"personal_best": l.Personal,
	}, l.Time)
}

// PitStopPoint builds the point for one completed stop.
func PitStopPoint(raceID string, p *core.PitStopEvent) *influxdb2_write.Point {
	tags := carTags(raceID, p.CarID)
	setTag(tags, "new_compound", p.NewCompound)
	return influxdb2_write.NewPoint(MeasurementPitStop, tags, map[string]interface{}{
		"stop":         p.Stop,
		"lap":          p.Lap,
		"duration":     p.Duration,
		"race_clock":   p.RaceClock,
		"old_compound": p.OldCompound,
	}, p.Time)
}

// RaceEventPoint builds the point for a race event, tagged by kind.
func RaceEventPoint(raceID string, e *core.RaceEvent) *influxdb2_write.Point {
	tags := carTags(raceID, e.CarID)
	setTag(tags, "kind", e.Kind)
	return influxdb2_write.NewPoint(MeasurementRaceEvent, tags, map[string]interface{}{
		"other_car_id": e.OtherCarID,
		"message":      e.Message,
		"race_clock":   e.RaceClock,
	}, e.Time)
}
