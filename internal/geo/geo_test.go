package geo

import (
	"math"
	"testing"
)

func TestVecBasics(t *testing.T) {
	a := Vec{3, 4}
	if a.Len() != 5 {
		t.Errorf("expected length 5, got %f", a.Len())
	}
	if d := a.Dist(Vec{}); d != 5 {
		t.Errorf("expected distance 5, got %f", d)
	}
	if d := a.DistSq(Vec{}); d != 25 {
		t.Errorf("expected squared distance 25, got %f", d)
	}
	u := a.Unit()
	if math.Abs(u.Len()-1) > 1e-12 {
		t.Errorf("expected unit length, got %f", u.Len())
	}
	if z := (Vec{}).Unit(); z != (Vec{}) {
		t.Errorf("expected zero vector, got %+v", z)
	}
}

func TestHeadingRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, 179, -90, -135} {
		got := FromHeading(deg).HeadingDegrees()
		if math.Abs(got-deg) > 1e-9 {
			t.Errorf("heading %f round-tripped to %f", deg, got)
		}
	}
}

func TestIsFinite(t *testing.T) {
	if !(Vec{1, 2}).IsFinite() {
		t.Error("expected finite")
	}
	if (Vec{math.NaN(), 0}).IsFinite() {
		t.Error("NaN should not be finite")
	}
	if (Vec{0, math.Inf(1)}).IsFinite() {
		t.Error("Inf should not be finite")
	}
}

func TestProjectorDisabled(t *testing.T) {
	p := NewProjector(0, 0)
	if p.Enabled() {
		t.Fatal("zero anchor should disable the projector")
	}
	lon, lat := p.LonLat(Vec{100, 100})
	if lon != 0 || lat != 0 {
		t.Errorf("expected zeros, got %f,%f", lon, lat)
	}
}

func TestProjectorAnchor(t *testing.T) {
	p := NewProjector(5.0, 50.0)
	if !p.Enabled() {
		t.Fatal("expected projector to be enabled")
	}
	lon, lat := p.LonLat(Vec{})
	if math.Abs(lon-5.0) > 1e-6 || math.Abs(lat-50.0) > 1e-6 {
		t.Errorf("origin should map to anchor, got %f,%f", lon, lat)
	}
	if aLon, aLat := p.Anchor(); aLon != 5.0 || aLat != 50.0 {
		t.Errorf("expected anchor 5,50, got %f,%f", aLon, aLat)
	}

	// +X is east, +Y (screen down) is south
	lon2, lat2 := p.LonLat(Vec{1000, 1000})
	if lon2 <= lon {
		t.Errorf("expected eastward longitude, got %f", lon2)
	}
	if lat2 >= lat {
		t.Errorf("expected southward latitude, got %f", lat2)
	}
}

func TestPoint(t *testing.T) {
	pt := Point(Vec{1.5, 2.5})
	xy, ok := pt.XY()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	if xy.X != 1.5 || xy.Y != 2.5 {
		t.Errorf("unexpected coordinates %+v", xy)
	}
}
