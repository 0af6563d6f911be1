package race

import (
	"errors"
	"fmt"
	"math"

	"github.com/racecontrol/racesim/internal/car"
	"github.com/racecontrol/racesim/internal/params"
)

var (
	ErrNoCars        = errors.New("race needs at least one car")
	ErrInvalidLaps   = errors.New("race needs at least one lap")
	ErrInvalidConfig = errors.New("invalid race configuration")
)

// Grid layout behind the start line.
const (
	GridSetback    = 20.0
	GridRowSpacing = 60.0
	GridLateral    = 45.0
)

// Team is a livery entry.
type Team struct {
	Name  string
	Color string
}

// Teams are assigned to grid slots in order, wrapping when there are more cars than teams.
var Teams = []Team{
	{"Red Bull", "#1e41ae"},
	{"Ferrari", "#dc0000"},
	{"Mercedes", "#00d2be"},
	{"McLaren", "#ff8700"},
	{"Aston Martin", "#006f62"},
	{"Alpine", "#2293d1"},
}

// GridSlot pins down one entrant. Zero values are filled from Teams and the seeded source.
type GridSlot struct {
	Name     string
	Team     string
	Color    string
	Player   bool
	Compound *params.Compound
}

// Config holds race parameters. Times are in seconds.
type Config struct {
	TotalLaps         int
	Countdown         float64
	Debounce          float64
	CaptureRadius     float64
	MaxStep           float64
	TimeLimit         float64 // 0 means no limit
	PlayerCar         bool
	AICars            int
	Seed              uint64
	Grid              []GridSlot // overrides PlayerCar and AICars when set
	SafetyCarRate     float64    // deployments per simulated second
	SafetyCarDuration float64
	Downforce         float64
}

// DefaultConfig is a five-lap race of six cars with the player on pole.
func DefaultConfig() Config {
	return Config{
		TotalLaps:         5,
		Countdown:         5,
		Debounce:          10,
		CaptureRadius:     120,
		MaxStep:           0.1,
		PlayerCar:         true,
		AICars:            5,
		Seed:              1,
		SafetyCarRate:     0.005,
		SafetyCarDuration: 8,
		Downforce:         car.DefaultDownforce,
	}
}

// slots expands the config into one entry per car.
func (c Config) slots() []GridSlot {
	if len(c.Grid) > 0 {
		out := make([]GridSlot, len(c.Grid))
		copy(out, c.Grid)
		return out
	}
	var out []GridSlot
	if c.PlayerCar {
		out = append(out, GridSlot{Player: true})
	}
	for i := 0; i < c.AICars; i++ {
		out = append(out, GridSlot{})
	}
	return out
}

func finiteNonNeg(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// Validate checks the config before any tick runs.
func (c Config) Validate() error {
	if c.TotalLaps < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidLaps, c.TotalLaps)
	}
	if c.AICars < 0 {
		return fmt.Errorf("%w: negative AI car count", ErrInvalidConfig)
	}
	slots := c.slots()
	if len(slots) == 0 {
		return ErrNoCars
	}
	players := 0
	for i, s := range slots {
		if s.Player {
			players++
		}
		if s.Compound != nil && !s.Compound.Valid() {
			return fmt.Errorf("%w: slot %d has unknown compound", ErrInvalidConfig, i)
		}
	}
	if players > 1 {
		return fmt.Errorf("%w: %d player cars", ErrInvalidConfig, players)
	}
	switch {
	case !finiteNonNeg(c.Countdown):
		return fmt.Errorf("%w: countdown %v", ErrInvalidConfig, c.Countdown)
	case !finiteNonNeg(c.Debounce):
		return fmt.Errorf("%w: debounce %v", ErrInvalidConfig, c.Debounce)
	case !finiteNonNeg(c.CaptureRadius) || c.CaptureRadius == 0:
		return fmt.Errorf("%w: capture radius %v", ErrInvalidConfig, c.CaptureRadius)
	case !finiteNonNeg(c.MaxStep) || c.MaxStep == 0:
		return fmt.Errorf("%w: max step %v", ErrInvalidConfig, c.MaxStep)
	case !finiteNonNeg(c.TimeLimit):
		return fmt.Errorf("%w: time limit %v", ErrInvalidConfig, c.TimeLimit)
	case !finiteNonNeg(c.SafetyCarRate) || !finiteNonNeg(c.SafetyCarDuration):
		return fmt.Errorf("%w: safety car %v/%v", ErrInvalidConfig, c.SafetyCarRate, c.SafetyCarDuration)
	case !finiteNonNeg(c.Downforce) || c.Downforce > car.MaxDownforce:
		return fmt.Errorf("%w: downforce %v", ErrInvalidConfig, c.Downforce)
	}
	return nil
}
