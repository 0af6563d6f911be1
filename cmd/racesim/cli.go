package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/racecontrol/racesim/internal/config"
	"github.com/racecontrol/racesim/internal/database"
	"github.com/racecontrol/racesim/internal/model"
	"github.com/racecontrol/racesim/internal/model/convert"
	"github.com/racecontrol/racesim/pkg/core"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// recentRaces is how many races `results` lists without ids.
const recentRaces = 10

// showResults prints stored results for each race id, or the latest races when none are given.
func showResults(w io.Writer, sqlitePath string, ids []string) error {
	dbm := database.NewManager(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger())
	if sqlitePath != "" {
		if err := dbm.ConnectSQLite(sqlitePath); err != nil {
			return err
		}
	} else {
		if err := dbm.Connect(config.GetDBConfig()); err != nil {
			return err
		}
		if dbm.ShouldSaveLocal {
			dbm.Close()
			return errors.New("postgres is not reachable, pass --sqlite to read a local file")
		}
	}
	defer dbm.Close()

	if len(ids) == 0 {
		return listRaces(w, dbm.DB, recentRaces)
	}
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid race id %q: %w", raw, err)
		}
		result, names, err := loadResults(dbm.DB, id)
		if err != nil {
			return err
		}
		writeResult(w, result, names)
	}
	return nil
}

// loadResults rebuilds a stored race result with the car names of its entrants.
func loadResults(db *gorm.DB, id uuid.UUID) (core.RaceResult, map[int]string, error) {
	var r model.Race
	if err := db.First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.RaceResult{}, nil, fmt.Errorf("race %s not found", id)
		}
		return core.RaceResult{}, nil, fmt.Errorf("failed to load race: %w", err)
	}

	var rows []model.Result
	if err := db.Where("race_id = ?", id).Find(&rows).Error; err != nil {
		return core.RaceResult{}, nil, fmt.Errorf("failed to load results: %w", err)
	}
	var cars []model.Car
	if err := db.Where("race_id = ?", id).Find(&cars).Error; err != nil {
		return core.RaceResult{}, nil, fmt.Errorf("failed to load cars: %w", err)
	}

	names := make(map[int]string, len(cars))
	for _, c := range cars {
		names[c.CarID] = c.Name
	}
	return convert.ResultsToCore(r, rows), names, nil
}

func listRaces(w io.Writer, db *gorm.DB, limit int) error {
	var races []model.Race
	if err := db.Order("start_time desc").Limit(limit).Find(&races).Error; err != nil {
		return fmt.Errorf("failed to list races: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCIRCUIT\tLAPS\tCARS\tSTARTED\tCOMPLETED")
	for _, r := range races {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%t\n",
			r.ID, r.Circuit, r.TotalLaps, r.CarCount, r.StartTime.UTC().Format(time.RFC3339), r.Completed)
	}
	return tw.Flush()
}

// writeResult prints the finishing order followed by the cars that did not finish.
func writeResult(w io.Writer, result core.RaceResult, names map[int]string) {
	fmt.Fprintf(w, "Race %s on %s: %d laps, %s\n",
		result.Race.ID, result.Race.Circuit, result.Race.TotalLaps, formatClock(result.RaceClock))
	if !result.Completed {
		fmt.Fprintln(w, "Race did not complete")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tCAR\tTIME\tGAP\tLAPS\tBEST\tMEAN")

	finished := make(map[int]bool, len(result.FinishingOrder))
	var winnerTime float64
	for i, f := range result.FinishingOrder {
		finished[f.CarID] = true
		gap := "-"
		if i == 0 {
			winnerTime = f.TotalTime
		} else {
			gap = fmt.Sprintf("+%.3f", f.TotalTime-winnerTime)
		}
		stats := result.LapStats[f.CarID]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			f.Rank, carName(names, f.CarID), formatClock(f.TotalTime), gap,
			stats.Count, formatLap(stats.Best), formatLap(stats.Mean))
	}

	var dnf []int
	for id := range result.LapStats {
		if !finished[id] {
			dnf = append(dnf, id)
		}
	}
	sort.Ints(dnf)
	for _, id := range dnf {
		stats := result.LapStats[id]
		fmt.Fprintf(tw, "DNF\t%s\t-\t-\t%d\t%s\t%s\n",
			carName(names, id), stats.Count, formatLap(stats.Best), formatLap(stats.Mean))
	}
	tw.Flush()
}

func carName(names map[int]string, id int) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("car %d", id)
}

// formatClock renders seconds as m:ss.mmm.
func formatClock(s float64) string {
	d := time.Duration(s * float64(time.Second)).Round(time.Millisecond)
	m := int(d / time.Minute)
	rest := d - time.Duration(m)*time.Minute
	return fmt.Sprintf("%d:%06.3f", m, rest.Seconds())
}

func formatLap(s float64) string {
	if s <= 0 {
		return "-"
	}
	return formatClock(s)
}
