package track

import (
	"fmt"
	"sort"

	"github.com/racecontrol/racesim/internal/geo"
)

// presetScale stretches the compact layouts onto the 3000x2000 world.
const presetScale = 2.2

type preset struct {
	title    string
	path     [][2]float64
	scale    float64
	width    float64
	sections []SectionSpec
	pit      *[4]float64 // x, y, w, h before scaling
}

func straight(l float64, drs bool) SectionSpec {
	return SectionSpec{Kind: Straight, Length: l, DRS: drs}
}
func corner(l, r float64) SectionSpec { return SectionSpec{Kind: Corner, Length: l, Radius: r} }

var presets = map[string]preset{
	"grandprix": {
		title: "Grand Prix Circuit",
		path: [][2]float64{
			{500, 1600}, {1500, 1600}, {2100, 1450}, {2250, 1000},
			{2100, 600}, {1500, 400}, {900, 450}, {700, 750},
			{800, 1100}, {600, 1300}, {500, 1450},
		},
		scale: 1,
		width: DefaultWidth,
		pit:   &[4]float64{1800, 1500, 400, 100},
	},
	"desert": {
		title: "Bahrain International Circuit",
		path: [][2]float64{
			{1150, 750}, {300, 750}, {180, 680}, {180, 500}, {250, 430}, {400, 480}, {500, 420},
			{550, 280}, {500, 200}, {950, 200}, {1050, 250}, {1120, 350}, {1120, 500}, {1050, 600}, {1000, 680},
		},
		scale: presetScale,
		width: DefaultWidth,
		sections: []SectionSpec{
			straight(850, true), corner(200, 90), corner(200, 90), straight(200, false), corner(150, 60),
			corner(200, 80), corner(300, 100), straight(450, false), corner(300, 70), straight(500, false),
			corner(400, 120), straight(600, true),
		},
	},
	"forest": {
		title: "Circuit de Spa-Francorchamps",
		path: [][2]float64{
			{200, 450}, {500, 200}, {800, 200}, {1050, 450}, {1050, 650}, {800, 800}, {400, 800}, {200, 650},
		},
		scale: presetScale,
		width: DefaultWidth,
		sections: []SectionSpec{
			corner(400, 150), straight(300, false), corner(400, 150), straight(200, false), corner(300, 100),
			straight(400, true), corner(300, 100), straight(200, true),
		},
	},
	"alpine": {
		title: "Red Bull Ring",
		path: [][2]float64{
			{300, 700}, {1000, 700}, {1100, 600}, {1100, 300}, {1000, 200}, {400, 200}, {300, 300}, {450, 450}, {300, 550},
		},
		scale: presetScale,
		width: DefaultWidth,
		sections: []SectionSpec{
			straight(700, true), corner(200, 90), straight(300, false), corner(200, 90), straight(600, true),
			corner(200, 80), corner(200, 70), corner(200, 90), straight(150, false),
		},
	},
	"night": {
		title: "Marina Bay Street Circuit",
		path: [][2]float64{
			{250, 250}, {1050, 250}, {1050, 450}, {850, 450}, {850, 650}, {1050, 650},
			{1050, 750}, {250, 750}, {250, 550}, {450, 550}, {450, 350}, {250, 350},
		},
		scale: presetScale,
		width: 180,
		sections: []SectionSpec{
			straight(800, true), corner(100, 50), straight(200, false), corner(100, 50), straight(200, false),
			corner(100, 50), straight(200, false), corner(100, 50), straight(800, true), corner(100, 50),
			straight(200, false), corner(100, 50), straight(200, false), corner(100, 50),
		},
	},
}

// Preset builds one of the bundled circuits by name.
func Preset(name string) (*Track, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	ctrl := make([]geo.Vec, len(p.path))
	for i, xy := range p.path {
		ctrl[i] = geo.Vec{X: xy[0] * p.scale, Y: xy[1] * p.scale}
	}
	spec := Spec{
		Name:          p.title,
		ControlPoints: ctrl,
		Width:         p.width,
		Sections:      p.sections,
	}
	if p.pit != nil {
		r := geo.NewRegion(
			geo.Vec{X: p.pit[0] * p.scale, Y: p.pit[1] * p.scale},
			geo.Vec{X: (p.pit[0] + p.pit[2]) * p.scale, Y: (p.pit[1] + p.pit[3]) * p.scale},
		)
		spec.PitLane = &r
	}
	return New(spec)
}

// PresetNames lists the bundled circuits in a stable order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
