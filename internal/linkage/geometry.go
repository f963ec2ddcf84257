// Package linkage solves the crank-slider and valve gear chain of a locomotive as an
// analytic function of the driving wheel angle.
//
// All positions live in the vertical plane of the driving wheel, expressed as
// (Y forward, Z up) offsets from the wheel centre.
package linkage

import (
	"errors"
	"fmt"
	"math"

	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/util"
)

// Bone names looked up once at construction.
const (
	BoneDriveWheel       = "dwheel_1"
	BoneCrankPin         = "rod"
	BonePiston           = "piston"
	BoneCombinationLever = "combination_lever"
	BoneRadiusRodMount   = "radius_rod_mounting"
	BoneExpansionLink    = "radius_rod_end"
	BoneValveSpindle     = "valve_rod"
)

var (
	// ErrMissingBone is returned when the skeleton lacks a required attachment point.
	ErrMissingBone = errors.New("missing bone")
	// ErrInvalidGeometry is returned for degenerate rod lengths or radii.
	ErrInvalidGeometry = errors.New("invalid linkage geometry")
)

// Point is a position in the wheel plane.
type Point struct {
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns p - o.
func (p Point) Sub(o Point) Point {
	return Point{Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// Length returns the distance from the origin.
func (p Point) Length() float64 {
	return math.Hypot(p.Y, p.Z)
}

// Rotate turns p about the origin by deg degrees.
func (p Point) Rotate(deg float64) Point {
	s, c := math.Sincos(util.Deg2Rad(deg))
	return Point{Y: p.Y*c - p.Z*s, Z: p.Y*s + p.Z*c}
}

// Config holds the calibration constants that are not read from the model.
type Config struct {
	// CrankPinInset is subtracted from the wheel-centre-to-rod-bone distance.
	CrankPinInset float64
	// ConnectingRodLength overrides the length derived from the bones when > 0.
	ConnectingRodLength float64
	// LeverSwing is the combination lever's peak rotation in degrees.
	LeverSwing float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		CrankPinInset: 0.045,
		LeverSwing:    12,
	}
}

// Geometry is the constant shape of the linkage chain.
type Geometry struct {
	CrankRadius         float64
	ConnectingRodLength float64
	// Piston is the crosshead rest position; its Z is the cylinder axis.
	Piston Point

	LeverPivot Point
	// LeverMount is the radius rod mount relative to LeverPivot at zero swing.
	LeverMount      Point
	LeverSwing      float64
	RadiusRodLength float64
	// Link is the rest position of the radius rod end; its Z is the expansion link height.
	Link           Point
	ValveRodLength float64
	// Valve is the rest position of the valve spindle; its Z is the valve axis.
	Valve Point
	// RadiusRodSide and ValveRodSide are +1 when the rod reaches forward from its
	// driven end, -1 when it reaches back. Zero counts as +1.
	RadiusRodSide float64
	ValveRodSide  float64
}

// GeometryFromSkeleton measures the chain from the model's bones.
func GeometryFromSkeleton(sk host.Skeleton, cfg Config) (Geometry, error) {
	names := []string{
		BoneDriveWheel, BoneCrankPin, BonePiston, BoneCombinationLever,
		BoneRadiusRodMount, BoneExpansionLink, BoneValveSpindle,
	}
	pts := make(map[string]Point, len(names))
	for _, name := range names {
		v, ok := sk.BoneOffset(name)
		if !ok {
			return Geometry{}, fmt.Errorf("%w: %s", ErrMissingBone, name)
		}
		pts[name] = Point{Y: v.Y, Z: v.Z}
	}

	wheel := pts[BoneDriveWheel]
	rel := func(name string) Point { return pts[name].Sub(wheel) }

	crank := rel(BoneCrankPin).Length() - cfg.CrankPinInset
	piston := rel(BonePiston)
	rodLength := cfg.ConnectingRodLength
	if rodLength <= 0 {
		// The crank pin sits at (r, 0) for angle zero.
		rodLength = piston.Sub(Point{Y: crank}).Length()
	}
	lever := rel(BoneCombinationLever)
	mount := rel(BoneRadiusRodMount)
	link := rel(BoneExpansionLink)
	valve := rel(BoneValveSpindle)

	g := Geometry{
		CrankRadius:         crank,
		ConnectingRodLength: rodLength,
		Piston:              piston,
		LeverPivot:          lever,
		LeverMount:          mount.Sub(lever),
		LeverSwing:          cfg.LeverSwing,
		RadiusRodLength:     link.Sub(mount).Length(),
		Link:                link,
		ValveRodLength:      valve.Sub(link).Length(),
		Valve:               valve,
		RadiusRodSide:       side(link.Y - mount.Y),
		ValveRodSide:        side(valve.Y - link.Y),
	}
	return g, g.Validate()
}

// Validate rejects geometry the solver cannot animate.
func (g Geometry) Validate() error {
	check := []struct {
		name  string
		value float64
	}{
		{"crank radius", g.CrankRadius},
		{"connecting rod length", g.ConnectingRodLength},
		{"radius rod length", g.RadiusRodLength},
		{"valve rod length", g.ValveRodLength},
	}
	for _, c := range check {
		if !util.IsFinite(c.value) || c.value <= 1e-6 {
			return fmt.Errorf("%w: %s is %v", ErrInvalidGeometry, c.name, c.value)
		}
	}
	if g.Piston.Y <= g.CrankRadius {
		return fmt.Errorf("%w: piston must sit ahead of the crank circle", ErrInvalidGeometry)
	}
	return nil
}

func side(dy float64) float64 {
	if dy < 0 {
		return -1
	}
	return 1
}
