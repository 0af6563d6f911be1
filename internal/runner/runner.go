// Package runner drives a race in real time or as fast as possible and feeds the recording pipeline.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/racecontrol/racesim/internal/car"
	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/dispatcher"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/race"
	"github.com/racecontrol/racesim/internal/session"
	"github.com/racecontrol/racesim/internal/worker"
	"github.com/racecontrol/racesim/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/racecontrol/racesim/internal/runner"

// DefaultTickRate is used when Config.TickRate is not positive.
const DefaultTickRate = 60

// Recorder receives recording commands. *dispatcher.Dispatcher implements it.
type Recorder interface {
	Dispatch(e dispatcher.Event) (any, error)
	// Wait blocks until every queued command has been handled.
	Wait()
}

// SnapshotSink receives a snapshot at every capture, e.g. a live stream.
type SnapshotSink interface {
	PublishSnapshot(s core.Snapshot) error
}

// Config sets the loop cadence.
type Config struct {
	TickRate        int
	CaptureInterval time.Duration
	// Realtime paces ticks on a wall-clock ticker; otherwise the race runs flat out.
	Realtime bool
}

// FromSettings builds the loop and race configs from the race settings section.
func FromSettings(rc config.RaceConfig) (Config, race.Config) {
	cfg := race.DefaultConfig()
	cfg.TotalLaps = rc.Laps
	cfg.AICars = rc.AICars
	cfg.PlayerCar = rc.PlayerCar
	cfg.Countdown = rc.Countdown.Seconds()
	cfg.Seed = rc.Seed
	cfg.Debounce = rc.Debounce.Seconds()
	if rc.CaptureRadius > 0 {
		cfg.CaptureRadius = rc.CaptureRadius
	}
	cfg.SafetyCarRate = rc.SafetyCarRate
	cfg.SafetyCarDuration = rc.SafetyCarDuration.Seconds()
	cfg.TimeLimit = rc.TimeLimit.Seconds()
	if rc.MaxStep > 0 {
		cfg.MaxStep = rc.MaxStep.Seconds()
	}
	if rc.Downforce > 0 {
		cfg.Downforce = rc.Downforce
	}
	return Config{
		TickRate:        rc.TickRate,
		CaptureInterval: rc.CaptureInterval,
		Realtime:        rc.Realtime,
	}, cfg
}

// Option configures a Runner.
type Option func(*Runner)

// WithInput sets the player's input source. Without one the player car coasts.
func WithInput(in InputSource) Option {
	return func(r *Runner) { r.input = in }
}

// WithSession publishes every snapshot to s.
func WithSession(s *session.Context) Option {
	return func(r *Runner) { r.session = s }
}

// WithRecorder forwards race records as dispatcher commands.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithSnapshotSink adds a receiver for captured snapshots.
func WithSnapshotSink(s SnapshotSink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, s) }
}

// WithProjector fills lon/lat on captured car states.
func WithProjector(p geo.Projector) Option {
	return func(r *Runner) { r.projector = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMeter overrides the global meter.
func WithMeter(m metric.Meter) Option {
	return func(r *Runner) { r.meter = m }
}

// Runner owns the loop around one race. Only Run touches the race.
type Runner struct {
	race      *race.Race
	cfg       Config
	input     InputSource
	session   *session.Context
	recorder  Recorder
	sinks     []SnapshotSink
	projector geo.Projector
	logger    *slog.Logger
	meter     metric.Meter

	lastCapture float64
	captured    bool

	ticks        metric.Int64Counter
	tickDuration metric.Float64Histogram
	laps         metric.Int64Counter
	clamped      metric.Int64Counter
}

// New prepares a runner for r.
func New(r *race.Race, cfg Config, opts ...Option) (*Runner, error) {
	if r == nil {
		return nil, errors.New("runner needs a race")
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	ru := &Runner{
		race:   r,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ru)
	}
	if ru.meter == nil {
		ru.meter = otel.Meter(instrumentationName)
	}
	if err := ru.initMetrics(); err != nil {
		return nil, err
	}
	return ru, nil
}

func (ru *Runner) initMetrics() error {
	var err error
	ru.ticks, err = ru.meter.Int64Counter(
		"race.ticks",
		metric.WithDescription("Simulation ticks run"),
	)
	if err != nil {
		return fmt.Errorf("creating ticks counter: %w", err)
	}
	ru.tickDuration, err = ru.meter.Float64Histogram(
		"race.tick.duration",
		metric.WithDescription("Wall time spent in one tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating tick duration histogram: %w", err)
	}
	ru.laps, err = ru.meter.Int64Counter(
		"race.laps",
		metric.WithDescription("Timed laps completed"),
	)
	if err != nil {
		return fmt.Errorf("creating laps counter: %w", err)
	}
	ru.clamped, err = ru.meter.Int64Counter(
		"race.step.clamped",
		metric.WithDescription("Ticks whose wall-clock delta exceeded the maximum step"),
	)
	if err != nil {
		return fmt.Errorf("creating clamped counter: %w", err)
	}
	return nil
}

// Step returns the fixed tick length.
func (ru *Runner) Step() float64 {
	return 1 / float64(ru.cfg.TickRate)
}

// Run drives the race until it finishes or ctx is cancelled and returns the final result.
// The race is closed in storage either way; a cancelled race is returned with ctx.Err().
func (ru *Runner) Run(ctx context.Context) (core.RaceResult, error) {
	ru.start()

	var err error
	if ru.cfg.Realtime {
		err = ru.runRealtime(ctx)
	} else {
		err = ru.runFlatOut(ctx)
	}

	result := ru.finish()
	return result, err
}

func (ru *Runner) runRealtime(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(float64(time.Second) * ru.Step()))
	defer ticker.Stop()

	last := time.Now()
	for ru.race.State() != core.StateFinished {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			ru.tick(ctx, dt)
		}
	}
	return nil
}

func (ru *Runner) runFlatOut(ctx context.Context) error {
	dt := ru.Step()
	for ru.race.State() != core.StateFinished {
		if err := ctx.Err(); err != nil {
			return err
		}
		ru.tick(ctx, dt)
	}
	return nil
}

// tick advances the race once and publishes everything it produced.
func (ru *Runner) tick(ctx context.Context, dt float64) {
	start := time.Now()
	if dt > ru.race.Config().MaxStep {
		ru.clamped.Add(ctx, 1)
	}

	ru.race.Step(dt, ru.playerIntent())

	snap := ru.race.Snapshot()
	if ru.session != nil {
		ru.session.Publish(snap)
	}
	ru.forwardEvents(ctx)
	ru.capture(snap, false)

	ru.ticks.Add(ctx, 1)
	ru.tickDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
}

func (ru *Runner) playerIntent() car.Intent {
	id := ru.race.PlayerID()
	if id < 0 || ru.input == nil {
		return car.Intent{}
	}
	v, ok := ru.race.Car(id)
	if !ok {
		return car.Intent{}
	}
	return ru.input.Intent(v, ru.race.Track())
}

func (ru *Runner) dispatch(cmd string, payload any) {
	if ru.recorder == nil {
		return
	}
	if _, err := ru.recorder.Dispatch(dispatcher.Event{Command: cmd, Payload: payload}); err != nil {
		ru.logger.Warn("Failed to record", "command", cmd, "error", err)
	}
}

// start announces the race and its cars before the first tick.
func (ru *Runner) start() {
	info := ru.race.Info()
	circuit := ru.race.Circuit()
	if ru.session != nil {
		ru.session.SetRace(info, circuit)
		ru.session.Publish(ru.race.Snapshot())
	}

	ru.dispatch(worker.CmdRaceStart, worker.StartPayload{Race: info, Circuit: circuit})
	for _, c := range ru.race.Identities() {
		ru.dispatch(worker.CmdCarNew, c)
	}
	ru.forwardEvents(context.Background())
	ru.capture(ru.race.Snapshot(), true)

	ru.logger.Info("Race started",
		"id", info.ID,
		"circuit", info.Circuit,
		"cars", info.CarCount,
		"laps", info.TotalLaps,
		"realtime", ru.cfg.Realtime,
	)
}

func (ru *Runner) forwardEvents(ctx context.Context) {
	for _, e := range ru.race.Events() {
		if e.Lap != nil {
			ru.laps.Add(ctx, 1)
			ru.dispatch(worker.CmdLap, *e.Lap)
		}
		if e.PitStop != nil {
			ru.dispatch(worker.CmdPitStop, *e.PitStop)
		}
		ru.dispatch(worker.CmdRaceEvent, e)
	}
}

// capture records every car state when CaptureInterval of race time has passed since the
// previous capture, or when forced.
func (ru *Runner) capture(snap core.Snapshot, force bool) {
	interval := ru.cfg.CaptureInterval.Seconds()
	if !force && ru.captured && snap.Clock-ru.lastCapture < interval {
		return
	}
	ru.captured = true
	ru.lastCapture = snap.Clock

	for _, s := range snap.Cars {
		if ru.projector.Enabled() {
			s.Lon, s.Lat = ru.projector.LonLat(geo.Vec{X: s.Position.X, Y: s.Position.Y})
		}
		ru.dispatch(worker.CmdCarState, s)
	}
	for _, sink := range ru.sinks {
		if err := sink.PublishSnapshot(snap); err != nil {
			ru.logger.Warn("Failed to publish snapshot", "error", err)
		}
	}
}

// finish records the final states and closes the race once queued records are written.
func (ru *Runner) finish() core.RaceResult {
	snap := ru.race.Snapshot()
	if ru.session != nil {
		ru.session.Publish(snap)
	}
	ru.forwardEvents(context.Background())
	ru.capture(snap, true)

	result := ru.race.Results()
	if ru.recorder != nil {
		ru.recorder.Wait()
	}
	ru.dispatch(worker.CmdRaceEnd, result)

	ru.logger.Info("Race ended",
		"id", result.Race.ID,
		"clock", result.RaceClock,
		"completed", result.Completed,
		"finishers", len(result.FinishingOrder),
	)
	return result
}
