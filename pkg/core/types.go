// pkg/core/types.go
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector3 is a position or direction in host vehicle or world space.
// X is right, Y is forward, Z is up.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of v and o.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length returns the euclidean length of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// DistanceTo returns the distance between v and o.
func (v Vector3) DistanceTo(o Vector3) float64 {
	return v.Sub(o).Length()
}

// AngleTo returns the unsigned angle between v and o in degrees.
// Zero-length vectors have no direction and yield 0.
func (v Vector3) AngleTo(o Vector3) float64 {
	l := v.Length() * o.Length()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return 0
	}
	c := v.Dot(o) / l
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}

// IsFinite reports whether every component is a finite number.
func (v Vector3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// ParseVector3 parses "x,y,z" (whitespace and square brackets tolerated).
func ParseVector3(s string) (Vector3, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Vector3{}, fmt.Errorf("expected 3 components, got %d", len(parts))
	}
	var out [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Vector3{}, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = f
	}
	return Vector3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Controls is the per-tick input vector consumed by the locomotive core.
type Controls struct {
	Throttle   float64 `json:"throttle"`   // 0..1
	Gear       float64 `json:"gear"`       // -1..1
	AirBrake   float64 `json:"airBrake"`   // 0..1
	SteamBrake float64 `json:"steamBrake"` // 0 or 1
}

// ArcadeSample is one poll of the simplified driving keys, each 0..1.
type ArcadeSample struct {
	Accelerate float64 `json:"accelerate"`
	Brake      float64 `json:"brake"`
	Handbrake  float64 `json:"handbrake"`
	Sprint     float64 `json:"sprint"`
}
