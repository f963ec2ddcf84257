package util

import "math"

// Clamp limits v to [lo, hi]. NaN passes through unchanged.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Remap linearly maps v from [from1, to1] onto [from2, to2] without clamping.
// A degenerate source range maps everything to from2.
func Remap(v, from1, to1, from2, to2 float64) float64 {
	if to1 == from1 {
		return from2
	}
	return (v-from1)/(to1-from1)*(to2-from2) + from2
}

// Wrap360 folds an angle in degrees into [0, 360).
func Wrap360(deg float64) float64 {
	w := math.Mod(deg, 360)
	if w < 0 {
		w += 360
	}
	// -tiny + 360 rounds to 360 in float64.
	if w >= 360 {
		w = 0
	}
	return w
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// SafeAcosDeg returns acos(x) in degrees with x clamped to [-1, 1].
// NaN input yields 90, the midpoint of the range.
func SafeAcosDeg(x float64) float64 {
	if math.IsNaN(x) {
		return 90
	}
	return Rad2Deg(math.Acos(Clamp(x, -1, 1)))
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize returns v when finite and fallback otherwise.
func Sanitize(v, fallback float64) float64 {
	if IsFinite(v) {
		return v
	}
	return fallback
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

// NearZero reports whether |v| is below eps.
func NearZero(v, eps float64) bool {
	return math.Abs(v) < eps
}
