package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Graylog2/go-gelf/gelf"
)

// MessageWriter is the part of gelf.Writer the handler uses.
type MessageWriter interface {
	WriteMessage(m *gelf.Message) error
}

// GELFHandler sends records to Graylog as GELF messages. Attributes become additional fields.
type GELFHandler struct {
	w      MessageWriter
	level  slog.Leveler
	host   string
	attrs  []slog.Attr
	prefix string
}

// NewGELFHandler dials the Graylog UDP input at addr.
func NewGELFHandler(addr string, level slog.Leveler) (*GELFHandler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer: %w", err)
	}
	return NewGELFHandlerWithWriter(w, level), nil
}

// NewGELFHandlerWithWriter wraps an existing writer.
func NewGELFHandlerWithWriter(w MessageWriter, level slog.Leveler) *GELFHandler {
	host, _ := os.Hostname()
	if level == nil {
		level = slog.LevelInfo
	}
	return &GELFHandler{w: w, level: level, host: host}
}

// Enabled reports whether the level passes the handler threshold.
func (h *GELFHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// syslog severities
func gelfLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}

// Handle converts the record and writes it.
func (h *GELFHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addExtra(extra, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addExtra(extra, h.prefix, a)
		return true
	})
	msg := &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    gelfLevel(r.Level),
		Facility: ServiceName,
		Extra:    extra,
	}
	return h.w.WriteMessage(msg)
}

func addExtra(extra map[string]interface{}, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := prefix + a.Key
	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			addExtra(extra, key+".", g)
		}
		return
	}
	// additional fields carry a leading underscore and _id is reserved
	key = strings.ReplaceAll(key, " ", "_")
	if key == "id" {
		key = "record_id"
	}
	extra["_"+key] = a.Value.Any()
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *GELFHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	out.attrs = append(out.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		out.attrs = append(out.attrs, a)
	}
	return &out
}

// WithGroup prefixes later attribute keys with name.
func (h *GELFHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	out.prefix = h.prefix + name + "."
	return &out
}
