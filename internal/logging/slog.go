package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// swapped by tests
var (
	osStdout = os.Stdout
	osPipe   = os.Pipe
)

// ServiceName is the instrumentation scope of the OTel bridge.
const ServiceName = "racesim"

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// ContextProvider returns the race attributes stamped on every record, e.g. race_state and
// leader_lap from the live session.
type ContextProvider func() []slog.Attr

// fanout sends each record to every sink it is enabled for. The race attributes are taken once per
// record so every sink sees the same values.
type fanout struct {
	sinks []slog.Handler
	race  ContextProvider
}

func newFanout(race ContextProvider, sinks ...slog.Handler) *fanout {
	valid := make([]slog.Handler, 0, len(sinks))
	for _, h := range sinks {
		if h != nil {
			valid = append(valid, h)
		}
	}
	return &fanout{sinks: valid, race: race}
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to every enabled sink. A failing sink does not stop the others; their errors
// are joined.
func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var stamp []slog.Attr
	if f.race != nil {
		stamp = f.race()
	}
	var errs []error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		rec := r.Clone()
		rec.AddAttrs(stamp...)
		if err := h.Handle(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) derive(fn func(slog.Handler) slog.Handler) *fanout {
	sinks := make([]slog.Handler, len(f.sinks))
	for i, h := range f.sinks {
		sinks[i] = fn(h)
	}
	return &fanout{sinks: sinks, race: f.race}
}

// SetupOption adds handlers or context to Setup.
type SetupOption func(*setupOptions)

type setupOptions struct {
	extra   []slog.Handler
	context ContextProvider
}

// WithHandler adds another sink, e.g. a GELF handler.
func WithHandler(h slog.Handler) SetupOption {
	return func(o *setupOptions) { o.extra = append(o.extra, h) }
}

// WithContext attaches dynamic attributes to every record.
func WithContext(p ContextProvider) SetupOption {
	return func(o *setupOptions) { o.context = p }
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Records go to file when one is given, otherwise to
// stdout. If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) {
	var o setupOptions
	for _, opt := range opts {
		opt(&o)
	}

	lvl := parseLevel(level)
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, o.extra...)

	m.logger = slog.New(newFanout(o.context, handlers...))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a log entry attributed to a function name.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), parseLevel(level), data, "function", functionName)
}
