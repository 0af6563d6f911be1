package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/racecontrol/racesim/internal/logging"
	"github.com/racecontrol/racesim/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/racecontrol/racesim/internal/monitor"

// StatusFileName is written into the status directory once per interval.
const StatusFileName = "status.txt"

// StorageStats is implemented by worker.Manager.
type StorageStats interface {
	GetLastDBWriteDuration() time.Duration
	QueueLengths() map[string]int
	StatesRecorded() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Session    *session.Context
	Storage    StorageStats
	StatusDir  string
	Interval   time.Duration
}

// Status is one report of the running race and its recording pipeline.
type Status struct {
	Time                time.Time      `json:"time"`
	RaceID              string         `json:"raceId"`
	Circuit             string         `json:"circuit"`
	State               string         `json:"state"`
	Tick                uint64         `json:"tick"`
	Clock               float64        `json:"clock"`
	LeaderName          string         `json:"leaderName,omitempty"`
	LeaderLap           int            `json:"leaderLap"`
	TotalLaps           int            `json:"totalLaps"`
	Finished            int            `json:"finished"`
	StatesRecorded      int            `json:"statesRecorded"`
	WriteQueueLengths   map[string]int `json:"writeQueueLengths,omitempty"`
	LastWriteDurationMs float64        `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status, plus its JSON sections as text lines.
func (s *Service) GetProgramStatus(writeQueues, lastWrite bool) (output []string, status Status) {
	race := s.deps.Session.GetRace()
	snap := s.deps.Session.Snapshot()

	status = Status{
		Time:      time.Now(),
		Circuit:   race.Circuit,
		State:     snap.State,
		Tick:      snap.Tick,
		Clock:     snap.Clock,
		TotalLaps: race.TotalLaps,
		Finished:  len(snap.FinishingOrder),
	}
	if race.ID != uuid.Nil {
		status.RaceID = race.ID.String()
	}
	if leader, ok := snap.Leader(); ok {
		status.LeaderName = leader.Name
		status.LeaderLap = leader.Lap
	}
	if s.deps.Storage != nil {
		status.StatesRecorded = s.deps.Storage.StatesRecorded()
		status.WriteQueueLengths = s.deps.Storage.QueueLengths()
		status.LastWriteDurationMs = float64(s.deps.Storage.GetLastDBWriteDuration().Microseconds()) / 1000
	}

	raceStr, err := json.MarshalIndent(struct {
		RaceID    string  `json:"raceId"`
		Circuit   string  `json:"circuit"`
		State     string  `json:"state"`
		Clock     float64 `json:"clock"`
		Leader    string  `json:"leader"`
		LeaderLap int     `json:"leaderLap"`
		TotalLaps int     `json:"totalLaps"`
	}{status.RaceID, status.Circuit, status.State, status.Clock, status.LeaderName, status.LeaderLap, status.TotalLaps}, "", "  ")
	if err != nil {
		raceStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, string(raceStr))

	if writeQueues {
		writeQueuesStr, err := json.MarshalIndent(status.WriteQueueLengths, "", "  ")
		if err != nil {
			writeQueuesStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(writeQueuesStr))
	}
	if lastWrite {
		lastWriteStr, err := json.MarshalIndent(status.LastWriteDurationMs, "", "  ")
		if err != nil {
			lastWriteStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(lastWriteStr))
	}

	return output, status
}

// RegisterMetrics exposes the recording pipeline as observable OTel gauges.
// A nil meter uses the global provider.
func (s *Service) RegisterMetrics(m metric.Meter) error {
	if m == nil {
		m = otel.Meter(instrumentationName)
	}

	queueSize, err := m.Int64ObservableGauge(
		"storage.queue.size",
		metric.WithDescription("Rows waiting to be written per table"),
	)
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}
	writeDuration, err := m.Float64ObservableGauge(
		"storage.write.duration",
		metric.WithDescription("Duration of the last storage flush"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating write duration gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			_, status := s.GetProgramStatus(false, false)
			for table, n := range status.WriteQueueLengths {
				o.ObserveInt64(queueSize, int64(n), metric.WithAttributes(attribute.String("table", table)))
			}
			o.ObserveFloat64(writeDuration, status.LastWriteDurationMs)
			return nil
		},
		queueSize, writeDuration,
	)
	if err != nil {
		return fmt.Errorf("registering status callback: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusDir != "" {
		if err := os.MkdirAll(s.deps.StatusDir, 0755); err != nil {
			return fmt.Errorf("error creating status directory: %w", err)
		}
		f, err := os.Create(filepath.Join(s.deps.StatusDir, StatusFileName))
		if err != nil {
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done

	go func() {
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if s.deps.Session.GetRace().ID == uuid.Nil {
					continue
				}

				statusStr, status := s.GetProgramStatus(true, true)
				if statusFile != nil {
					if err := writeStatus(statusFile, statusStr); err != nil {
						logger.Error("Error writing status file", "error", err)
					}
				}
				logger.Debug("Race status", "state", status.State, "clock", status.Clock, "leader_lap", status.LeaderLap)
			}
		}
	}()

	return nil
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager != nil {
		return s.deps.LogManager.Logger()
	}
	return slog.New(slog.DiscardHandler)
}

func writeStatus(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the status monitor and waits for it to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	done := s.done
	s.mu.Unlock()
	<-done
}
