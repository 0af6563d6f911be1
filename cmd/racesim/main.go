package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/racecontrol/racesim/internal/api"
	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/dispatcher"
	"github.com/racecontrol/racesim/internal/geo"
	"github.com/racecontrol/racesim/internal/logging"
	"github.com/racecontrol/racesim/internal/monitor"
	intOtel "github.com/racecontrol/racesim/internal/otel"
	"github.com/racecontrol/racesim/internal/race"
	"github.com/racecontrol/racesim/internal/runner"
	"github.com/racecontrol/racesim/internal/session"
	"github.com/racecontrol/racesim/internal/storage"
	"github.com/racecontrol/racesim/internal/track"
	"github.com/racecontrol/racesim/internal/worker"
	"github.com/racecontrol/racesim/pkg/core"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// BuildDate and Version can be set at build time via ldflags
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"
)

const appName = "racesim"

// global variables
var (
	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	OTelPipeline *intOtel.Pipeline

	SessionStartTime time.Time = time.Now()

	logFile *os.File
)

func main() {
	flags := pflag.NewFlagSet(appName, pflag.ExitOnError)
	configDir := flags.String("config", ".", "directory containing "+config.FileName)
	tag := flags.String("tag", "", "tag stored with the race and its upload")
	sqlitePath := flags.String("sqlite", "", "read results from this SQLite file instead of Postgres")
	flags.String("circuit", "", "circuit preset ("+strings.Join(track.PresetNames(), ", ")+")")
	flags.Int("laps", 0, "laps to finish")
	flags.Int("ai-cars", 0, "number of AI cars")
	flags.Uint64("seed", 0, "random seed")
	flags.Bool("realtime", true, "pace the race on the wall clock")
	flags.Bool("player", true, "add a player car driven by the autopilot")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [run | results <race-id>... | circuits]\n", appName)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	for key, name := range map[string]string{
		"race.circuit":   "circuit",
		"race.laps":      "laps",
		"race.aiCars":    "ai-cars",
		"race.seed":      "seed",
		"race.realtime":  "realtime",
		"race.playerCar": "player",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", *configDir)
	}

	args := flags.Args()
	command := "run"
	if len(args) > 0 {
		command = strings.ToLower(args[0])
	}

	var err error
	switch command {
	case "run":
		err = run(*tag)
	case "results":
		err = showResults(os.Stdout, *sqlitePath, args[1:])
	case "circuits":
		for _, name := range track.PresetNames() {
			fmt.Println(name)
		}
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		Logger.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

// setupLogging switches logging to the session log file, with OTel and Graylog when enabled.
func setupLogging(sess *session.Context) {
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}

	logPath := logging.LogFilePath(logsDir, appName, SessionStartTime)
	if _, err := os.Stat(logPath); err == nil {
		os.Rename(logPath, logPath+".old")
	}

	var err error
	logFile, err = os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", logPath)
		logFile = nil
	} else {
		Logger.Info("Begin logging in logs directory", "path", logPath)
	}

	otelCfg := config.GetOTelConfig()
	pipeCfg := intOtel.FromConfig(otelCfg, config.GetRaceConfig(), Version, logWriter())
	OTelPipeline, err = intOtel.Open(context.Background(), pipeCfg)
	if err != nil {
		Logger.Error("Failed to initialize OTel pipeline", "error", err)
		OTelPipeline = nil
	} else if otelCfg.Enabled {
		Logger.Info("OTel pipeline initialized", "sinks", OTelPipeline.Sinks(), "endpoint", otelCfg.Endpoint)
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelPipeline != nil {
		otelLogProvider = OTelPipeline.Logs()
	}

	opts := []logging.SetupOption{logging.WithContext(sess.LogAttrs)}
	if config.GetBool("graylog.enabled") {
		addr := config.GetString("graylog.address")
		gelfHandler, err := logging.NewGELFHandler(addr, nil)
		if err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err, "address", addr)
		} else {
			opts = append(opts, logging.WithHandler(gelfHandler))
		}
	}

	var file io.Writer
	if logFile != nil {
		file = logFile
	}
	SlogManager.Setup(file, config.GetString("logLevel"), otelLogProvider, opts...)
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)
}

func logWriter() io.Writer {
	if logFile != nil {
		return logFile
	}
	return os.Stdout
}

// run drives one race from the config and records it.
func run(tag string) (err error) {
	sess := session.NewContext()
	setupLogging(sess)
	defer func() {
		if OTelPipeline != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := OTelPipeline.Close(ctx); err != nil {
				Logger.Warn("OTel close failed", "error", err)
			}
		}
		if logFile != nil {
			logFile.Close()
		}
	}()

	rc := config.GetRaceConfig()
	Logger.Info("Starting up...", "version", Version, "buildDate", BuildDate, "circuit", rc.Circuit)

	tr, err := track.Preset(rc.Circuit)
	if err != nil {
		return err
	}
	loopCfg, raceCfg := runner.FromSettings(rc)
	r, err := race.New(tr, raceCfg, race.WithLogger(Logger), race.WithVersion(Version))
	if err != nil {
		return fmt.Errorf("failed to create race: %w", err)
	}
	projector := geo.NewProjector(rc.AnchorLon, rc.AnchorLat)

	zl := zerolog.New(logWriter()).With().Timestamp().Str("component", "storage").Logger()
	backend, sinks, err := createStorageBackend(
		config.GetStorageConfig(),
		config.GetInfluxConfig(),
		config.GetStreamConfig(),
		storageOptions{
			Tag:       tag,
			LogsDir:   viper.GetString("logsDir"),
			Projector: projector,
			Logs:      SlogManager,
			ZeroLog:   zl,
		},
	)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(Logger))
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	workerManager := worker.NewManager(worker.Dependencies{LogManager: SlogManager}, backend)
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Debug("Worker handlers registered with dispatcher")

	monitorService := monitor.NewService(monitor.Dependencies{
		LogManager: SlogManager,
		Session:    sess,
		Storage:    workerManager,
		StatusDir:  viper.GetString("logsDir"),
	})
	if err := monitorService.RegisterMetrics(nil); err != nil {
		Logger.Warn("Failed to register storage metrics", "error", err)
	}
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}

	opts := []runner.Option{
		runner.WithSession(sess),
		runner.WithRecorder(eventDispatcher),
		runner.WithProjector(projector),
		runner.WithLogger(Logger),
	}
	if id := r.PlayerID(); id >= 0 {
		opts = append(opts, runner.WithInput(runner.NewAutopilot(id, rc.Seed)))
	}
	for _, s := range sinks {
		opts = append(opts, runner.WithSnapshotSink(s))
	}
	ru, err := runner.New(r, loopCfg, opts...)
	if err != nil {
		monitorService.Stop()
		eventDispatcher.Close()
		backend.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := ru.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		Logger.Warn("Race aborted", "clock", result.RaceClock)
		runErr = nil
	}

	monitorService.Stop()
	eventDispatcher.Close()
	if err := backend.Close(); err != nil {
		Logger.Error("Failed to close storage backend", "error", err)
	}
	if OTelPipeline != nil {
		if err := OTelPipeline.Flush(context.Background()); err != nil {
			Logger.Warn("OTel flush failed", "error", err)
		}
	}

	printStandings(os.Stdout, result, r.Identities())
	uploadReplay(backend)
	return runErr
}

// uploadReplay sends the exported replay to the results server when the api section is enabled.
func uploadReplay(backend storage.Backend) {
	if !config.GetBool("api.enabled") {
		return
	}
	up, ok := uploadable(backend)
	if !ok {
		Logger.Info("Storage backend does not export a replay, skipping upload")
		return
	}
	path := up.GetExportedFilePath()
	if path == "" {
		Logger.Warn("No replay was exported, skipping upload")
		return
	}

	client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		Logger.Warn("Results server is not reachable", "error", err)
		return
	}
	meta := up.GetExportMetadata()
	if err := client.Upload(path, meta); err != nil {
		Logger.Error("Failed to upload replay", "error", err, "path", path)
		return
	}
	Logger.Info("Uploaded replay", "path", path, "raceId", meta.RaceID)
}

func printStandings(w io.Writer, result core.RaceResult, cars []core.Car) {
	names := make(map[int]string, len(cars))
	for _, c := range cars {
		names[c.ID] = c.Name
	}
	writeResult(w, result, names)
}
