package session

import (
	"sync"
	"testing"

	"github.com/racecontrol/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()
	assert.Equal(t, "No race loaded", ctx.GetRace().Circuit)
	assert.Equal(t, core.StateCountdown, ctx.Snapshot().State)
}

func TestContext_SetRaceResetsSnapshot(t *testing.T) {
	ctx := NewContext()
	ctx.Publish(core.Snapshot{Tick: 9, State: core.StateRacing})
	ctx.SetRace(core.Race{Circuit: "Grand Prix Circuit", TotalLaps: 5}, core.Circuit{Name: "Grand Prix Circuit"})

	assert.Equal(t, "Grand Prix Circuit", ctx.GetRace().Circuit)
	assert.Equal(t, "Grand Prix Circuit", ctx.GetCircuit().Name)
	snap := ctx.Snapshot()
	assert.Equal(t, uint64(0), snap.Tick)
	assert.Equal(t, 5, snap.TotalLaps)
}

func TestContext_LogAttrs(t *testing.T) {
	ctx := NewContext()
	attrs := ctx.LogAttrs()
	assert.Len(t, attrs, 2)

	ctx.Publish(core.Snapshot{State: core.StateRacing, Clock: 12.5, Standings: []core.Standing{{Rank: 1, Lap: 3}}})
	attrs = ctx.LogAttrs()
	assert.Len(t, attrs, 3)
	assert.Equal(t, "racing", attrs[0].Value.String())
	assert.Equal(t, 12.5, attrs[1].Value.Float64())
	assert.Equal(t, int64(3), attrs[2].Value.Int64())
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			ctx.Publish(core.Snapshot{Tick: uint64(i), State: core.StateRacing})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = ctx.Snapshot()
			_ = ctx.LogAttrs()
		}
	}()
	wg.Wait()
	assert.Equal(t, uint64(999), ctx.Snapshot().Tick)
}
