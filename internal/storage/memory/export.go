package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/racecontrol/racesim/internal/storage/memory/export/v1"
)

// ErrNoRace is returned when exporting before StartRace.
var ErrNoRace = errors.New("no race started")

// exportJSON writes the race data to a JSON file, gzipped when configured
func (b *Backend) exportJSON() error {
	if b.race == nil {
		return ErrNoRace
	}

	export := v1.Build(&v1.RaceData{
		Race:      b.race,
		Circuit:   b.circuit,
		Result:    b.result,
		Cars:      b.cars,
		Events:    b.events,
		Projector: b.projector,
	})

	outputPath := filepath.Join(b.cfg.OutputDir, b.exportFileName())

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

// exportFileName is <circuit>_<start>_<short id>.json[.gz]
func (b *Backend) exportFileName() string {
	circuit := strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(b.race.Circuit)
	if circuit == "" {
		circuit = "race"
	}
	timestamp := b.race.StartTime.Format("20060102_150405")
	id := b.race.ID.String()[:8]

	name := fmt.Sprintf("%s_%s_%s.json", circuit, timestamp, id)
	if b.cfg.CompressOutput {
		name += ".gz"
	}
	return name
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
