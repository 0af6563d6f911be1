// Package params holds the fixed tire compound and engine mode tables.
package params

import (
	"fmt"
	"strings"
)

// Compound is a tire compound. The set is closed.
type Compound int

const (
	Soft Compound = iota
	Medium
	Hard
)

// CompoundParams are the immutable coefficients of a compound.
type CompoundParams struct {
	Grip        float64 // base grip multiplier
	WearRate    float64 // relative wear per second
	OptimalTemp float64 // centre of the working window, °C
	TempBand    float64 // half width of the window, °C
	HeatRate    float64 // relative heat generation
}

var compoundTable = [...]CompoundParams{
	Soft:   {Grip: 1.25, WearRate: 1.6, OptimalTemp: 90, TempBand: 10, HeatRate: 1.2},
	Medium: {Grip: 1.0, WearRate: 1.0, OptimalTemp: 95, TempBand: 12, HeatRate: 1.0},
	Hard:   {Grip: 0.85, WearRate: 0.6, OptimalTemp: 105, TempBand: 15, HeatRate: 0.8},
}

var compoundNames = [...]string{Soft: "soft", Medium: "medium", Hard: "hard"}

// Valid reports whether c is one of the known compounds.
func (c Compound) Valid() bool {
	return c >= Soft && c <= Hard
}

// Params returns the table entry. An unknown compound is a programming error and panics.
func (c Compound) Params() CompoundParams {
	if !c.Valid() {
		panic(fmt.Sprintf("params: unknown tire compound %d", int(c)))
	}
	return compoundTable[c]
}

func (c Compound) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Compound(%d)", int(c))
	}
	return compoundNames[c]
}

// Compounds lists every compound in declaration order.
func Compounds() []Compound {
	return []Compound{Soft, Medium, Hard}
}

// ParseCompound reads a compound name, case-insensitively.
func ParseCompound(s string) (Compound, error) {
	for i, n := range compoundNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return Compound(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tire compound %q", s)
}

// EngineMode is an engine map. The set is closed.
type EngineMode int

const (
	Race EngineMode = iota
	Qualifying
	Conservation
)

// EngineParams are the immutable coefficients of an engine mode.
type EngineParams struct {
	Power    float64
	FuelRate float64
}

var engineTable = [...]EngineParams{
	Race:         {Power: 1.0, FuelRate: 1.0},
	Qualifying:   {Power: 1.15, FuelRate: 1.4},
	Conservation: {Power: 0.8, FuelRate: 0.7},
}

var engineNames = [...]string{Race: "race", Qualifying: "qualifying", Conservation: "conservation"}

// Valid reports whether m is one of the known modes.
func (m EngineMode) Valid() bool {
	return m >= Race && m <= Conservation
}

// Params returns the table entry. An unknown mode is a programming error and panics.
func (m EngineMode) Params() EngineParams {
	if !m.Valid() {
		panic(fmt.Sprintf("params: unknown engine mode %d", int(m)))
	}
	return engineTable[m]
}

func (m EngineMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("EngineMode(%d)", int(m))
	}
	return engineNames[m]
}

// EngineModes lists every mode in declaration order.
func EngineModes() []EngineMode {
	return []EngineMode{Race, Qualifying, Conservation}
}

// ParseEngineMode reads a mode name, case-insensitively.
func ParseEngineMode(s string) (EngineMode, error) {
	for i, n := range engineNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return EngineMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown engine mode %q", s)
}
