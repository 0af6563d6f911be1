// Package otel exports the session's log records through OpenTelemetry. Each race run builds one
// Pipeline whose resource carries the race it belongs to, so records from different sessions can
// be told apart in a shared collector.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/racecontrol/racesim/internal/config"
)

// Race resource keys.
const (
	CircuitKey = attribute.Key("race.circuit")
	LapsKey    = attribute.Key("race.laps")
	SeedKey    = attribute.Key("race.seed")
	FieldKey   = attribute.Key("race.field")
)

// Config selects the sinks of a Pipeline. A sink is active when its destination is set: LogWriter
// for the session's OTel log file, Endpoint for an OTLP collector.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	BatchTimeout   time.Duration
	LogWriter      io.Writer
	Endpoint       string
	Insecure       bool
	Race           []attribute.KeyValue
}

// FromConfig builds the pipeline config for one race run.
func FromConfig(c config.OTelConfig, rc config.RaceConfig, version string, logWriter io.Writer) Config {
	return Config{
		Enabled:        c.Enabled,
		ServiceName:    c.ServiceName,
		ServiceVersion: version,
		BatchTimeout:   c.BatchTimeout,
		LogWriter:      logWriter,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		Race:           RaceAttributes(rc),
	}
}

// RaceAttributes describes a race for the telemetry resource. The seed is a string because
// attribute values are signed.
func RaceAttributes(rc config.RaceConfig) []attribute.KeyValue {
	field := rc.AICars
	if rc.PlayerCar {
		field++
	}
	return []attribute.KeyValue{
		CircuitKey.String(rc.Circuit),
		LapsKey.Int(rc.Laps),
		SeedKey.String(strconv.FormatUint(rc.Seed, 10)),
		FieldKey.Int(field),
	}
}

type sink struct {
	name string
	// open returns a nil exporter when the sink is not configured.
	open func(context.Context, Config) (sdklog.Exporter, error)
}

var sinks = []sink{
	{name: "file", open: openFile},
	{name: "otlp", open: openOTLP},
}

func openFile(_ context.Context, cfg Config) (sdklog.Exporter, error) {
	if cfg.LogWriter == nil {
		return nil, nil
	}
	return stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
}

func openOTLP(ctx context.Context, cfg Config) (sdklog.Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, nil
	}
	opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	return otlploghttp.New(ctx, opts...)
}

// Pipeline is the OTel log pipeline of one race run. The zero value and a disabled pipeline are
// no-ops.
type Pipeline struct {
	logs    *sdklog.LoggerProvider
	active  []string
	res     *resource.Resource
	version string
}

// Open builds the pipeline. An enabled config with no sink configured is an error.
func Open(ctx context.Context, cfg Config) (*Pipeline, error) {
	p := &Pipeline{version: cfg.ServiceVersion}
	if !cfg.Enabled {
		return p, nil
	}

	attrs := append([]attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}, cfg.Race...)
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, s := range sinks {
		exp, err := s.open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s log sink: %w", s.name, err)
		}
		if exp == nil {
			continue
		}
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))))
		p.active = append(p.active, s.name)
	}
	if len(p.active) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}

	p.res = res
	p.logs = sdklog.NewLoggerProvider(opts...)
	return p, nil
}

// Logs returns the provider for the otelslog bridge, or nil when disabled.
func (p *Pipeline) Logs() *sdklog.LoggerProvider {
	return p.logs
}

// Sinks names the active sinks in export order.
func (p *Pipeline) Sinks() []string {
	return p.active
}

// Resource returns the race resource, or nil when disabled.
func (p *Pipeline) Resource() *resource.Resource {
	return p.res
}

// Meter returns a meter from the global meter provider, versioned like the service. It is a
// no-op until an SDK meter provider is registered with otel.SetMeterProvider.
func (p *Pipeline) Meter(name string) metric.Meter {
	var opts []metric.MeterOption
	if p.version != "" {
		opts = append(opts, metric.WithInstrumentationVersion(p.version))
	}
	return otel.GetMeterProvider().Meter(name, opts...)
}

// Flush exports pending records. Called when a race ends so its logs land before the results.
func (p *Pipeline) Flush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Close flushes and shuts the pipeline down. It is safe to call on a disabled pipeline.
func (p *Pipeline) Close(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	flushErr := p.Flush(ctx)
	var shutdownErr error
	if err := p.logs.Shutdown(ctx); err != nil {
		shutdownErr = fmt.Errorf("log shutdown failed: %w", err)
	}
	p.logs = nil
	return errors.Join(flushErr, shutdownErr)
}
