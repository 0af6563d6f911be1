package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/racecontrol/racesim/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestOpen_Disabled(t *testing.T) {
	p, err := Open(context.Background(), Config{Enabled: false, ServiceVersion: "1.2.3"})
	require.NoError(t, err)
	assert.Nil(t, p.Logs())
	assert.Nil(t, p.Resource())
	assert.Empty(t, p.Sinks())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
	assert.NotNil(t, p.Meter("racesim"))
}

func TestOpen_EnabledWithoutSink(t *testing.T) {
	_, err := Open(context.Background(), Config{Enabled: true, ServiceName: "racesim"})
	assert.EqualError(t, err, "OTel enabled but no log writer or endpoint configured")
}

func TestOpen_FileSink(t *testing.T) {
	var buf bytes.Buffer
	p, err := Open(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "racesim",
		ServiceVersion: "1.2.3",
		BatchTimeout:   time.Second,
		LogWriter:      &buf,
		Race:           []attribute.KeyValue{CircuitKey.String("oval")},
	})
	require.NoError(t, err)
	require.NotNil(t, p.Logs())
	assert.Equal(t, []string{"file"}, p.Sinks())

	set := p.Resource().Set()
	circuit, ok := set.Value(CircuitKey)
	require.True(t, ok)
	assert.Equal(t, "oval", circuit.AsString())
	version, ok := set.Value("service.version")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", version.AsString())

	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Close(context.Background()))
	assert.Nil(t, p.Logs())
	assert.NoError(t, p.Close(context.Background()), "second close is a no-op")
}

func TestOpen_BothSinks(t *testing.T) {
	var buf bytes.Buffer
	p, err := Open(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "racesim",
		BatchTimeout: time.Second,
		LogWriter:    &buf,
		Endpoint:     "127.0.0.1:4318",
		Insecure:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"file", "otlp"}, p.Sinks())
}

func TestRaceAttributes(t *testing.T) {
	attrs := RaceAttributes(config.RaceConfig{Circuit: "grandprix", Laps: 3, Seed: 1 << 63, AICars: 5, PlayerCar: true})
	set := attribute.NewSet(attrs...)

	v, _ := set.Value(CircuitKey)
	assert.Equal(t, "grandprix", v.AsString())
	v, _ = set.Value(LapsKey)
	assert.Equal(t, int64(3), v.AsInt64())
	v, _ = set.Value(SeedKey)
	assert.Equal(t, "9223372036854775808", v.AsString())
	v, _ = set.Value(FieldKey)
	assert.Equal(t, int64(6), v.AsInt64())
}

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	c := FromConfig(config.OTelConfig{
		Enabled:      true,
		ServiceName:  "svc",
		BatchTimeout: 2 * time.Second,
		Endpoint:     "collector:4318",
		Insecure:     true,
	}, config.RaceConfig{Circuit: "oval", Laps: 2}, "0.0.1", &buf)
	assert.True(t, c.Enabled)
	assert.Equal(t, "svc", c.ServiceName)
	assert.Equal(t, "0.0.1", c.ServiceVersion)
	assert.Equal(t, 2*time.Second, c.BatchTimeout)
	assert.Equal(t, "collector:4318", c.Endpoint)
	assert.True(t, c.Insecure)
	assert.Same(t, &buf, c.LogWriter)
	assert.Len(t, c.Race, 4)
}
