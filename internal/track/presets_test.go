package track

import (
	"testing"

	"github.com/racecontrol/racesim/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresets(t *testing.T) {
	names := PresetNames()
	assert.Equal(t, []string{"alpine", "desert", "forest", "grandprix", "night"}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			tr, err := Preset(name)
			require.NoError(t, err)
			assert.Greater(t, tr.Length(), 0.0)
			assert.Equal(t, len(presets[name].path)*SamplesPerSegment, tr.WaypointCount())
			assert.False(t, tr.PitLane().IsEmpty())

			var total float64
			for _, s := range tr.Sections() {
				total += s.Length
			}
			assert.InDelta(t, tr.Length(), total, 1e-6)

			w := tr.World()
			for _, p := range tr.Waypoints() {
				assert.True(t, w.Contains(p), "waypoint %v outside world", p)
			}
			// spline passes through the first control point
			first := presets[name].path[0]
			assert.InDelta(t, first[0]*presets[name].scale, tr.StartLine().X, 1e-9)
		})
	}
}

func TestGrandPrixPitLane(t *testing.T) {
	tr, err := Preset("grandprix")
	require.NoError(t, err)
	assert.Equal(t, geo.Vec{X: 1800, Y: 1500}, tr.PitLane().Min())
	assert.Equal(t, geo.Vec{X: 2200, Y: 1600}, tr.PitLane().Max())
	assert.Equal(t, geo.Vec{X: WorldWidth, Y: WorldHeight}, tr.World().Max())
}

func TestUnknownPreset(t *testing.T) {
	_, err := Preset("monaco")
	require.ErrorIs(t, err, ErrUnknownPreset)
}
