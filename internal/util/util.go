// Package util provides small numeric helpers shared by the simulation packages.
package util

import "math"

// ReferenceStep is the tick length that per-tick factors are tuned against.
const ReferenceStep = 1.0 / 60.0

// Clamp limits v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 limits v to [0, 1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// CleanFloat replaces NaN and infinities with fallback.
func CleanFloat(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// NormalizeDegrees maps an angle into (-180, 180].
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg <= -180 {
		deg += 360
	} else if deg > 180 {
		deg -= 360
	}
	return deg
}

// HeadingDelta returns the signed shortest rotation from `from` to `to`, in (-180, 180].
func HeadingDelta(from, to float64) float64 {
	return NormalizeDegrees(to - from)
}

// PerTick rescales a factor tuned for one ReferenceStep to an arbitrary dt.
// PerTick(f, 0) is always 1.
func PerTick(factor, dt float64) float64 {
	if dt <= 0 {
		return 1
	}
	return math.Pow(factor, dt/ReferenceStep)
}

// Approach moves v toward target by at most step.
func Approach(v, target, step float64) float64 {
	if step <= 0 {
		return v
	}
	if v < target {
		return math.Min(v+step, target)
	}
	return math.Max(v-step, target)
}

// Sign returns -1, 0 or 1.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
