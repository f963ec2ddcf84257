// Package wheel integrates wheel rotation angles from linear surface speeds.
// Each role (front, driving, tender) shares one representative angle that is
// mirrored to every physical wheel of that role.
package wheel

import (
	"errors"
	"fmt"
	"math"

	"github.com/RogersSierra/extension/internal/util"
)

// ErrInvalidDiameter is returned for a wheel group whose diameter cannot produce a
// usable circumference.
var ErrInvalidDiameter = errors.New("invalid wheel diameter")

// Role identifies a wheel group.
type Role string

const (
	RoleFront   Role = "front"
	RoleDriving Role = "driving"
	RoleTender  Role = "tender"
)

// Group is one rigidly coupled set of wheels.
type Group struct {
	Role          Role
	Circumference float64
	Count         int
	angle         float64
	step          float64
}

// NewGroup creates a group from a wheel diameter in metres.
func NewGroup(role Role, diameter float64, count int) (*Group, error) {
	if !util.IsFinite(diameter) || diameter <= 0 {
		return nil, fmt.Errorf("%w: %s diameter %v", ErrInvalidDiameter, role, diameter)
	}
	return &Group{
		Role:          role,
		Circumference: diameter * math.Pi,
		Count:         max(count, 1),
	}, nil
}

// Angle returns the group's representative angle in [0, 360).
func (g *Group) Angle() float64 {
	return g.angle
}

// Angles returns the representative angle mirrored to every wheel in the group.
func (g *Group) Angles() []float64 {
	out := make([]float64, g.Count)
	for i := range out {
		out[i] = g.angle
	}
	return out
}

// Advance integrates the angle for a signed linear speed over dt seconds. A
// non-finite step leaves the angle untouched.
func (g *Group) Advance(speed, dt float64) float64 {
	step := DegreesPerTick(speed, g.Circumference, dt)
	g.step = 0
	if util.IsFinite(step) {
		g.angle = util.Wrap360(g.angle + step)
		g.step = step
	}
	return g.angle
}

// Step is the signed, unwrapped rotation of the last Advance in degrees.
func (g *Group) Step() float64 {
	return g.step
}

// DegreesPerTick converts a linear speed to degrees of rotation over dt.
func DegreesPerTick(speed, circumference, dt float64) float64 {
	if circumference == 0 {
		return 0
	}
	return speed / circumference * 360 * dt
}

// Diameters configures the wheel groups of one locomotive.
type Diameters struct {
	Front        float64 `json:"front"`
	Driving      float64 `json:"driving"`
	Tender       float64 `json:"tender"`
	FrontCount   int     `json:"frontCount"`
	DrivingCount int     `json:"drivingCount"`
	TenderCount  int     `json:"tenderCount"`
}

// Set holds the wheel groups of one locomotive.
type Set struct {
	Front   *Group
	Driving *Group
	Tender  *Group
}

// NewSet builds all three groups or fails as a whole.
func NewSet(d Diameters) (*Set, error) {
	front, err := NewGroup(RoleFront, d.Front, d.FrontCount)
	if err != nil {
		return nil, err
	}
	driving, err := NewGroup(RoleDriving, d.Driving, d.DrivingCount)
	if err != nil {
		return nil, err
	}
	tender, err := NewGroup(RoleTender, d.Tender, d.TenderCount)
	if err != nil {
		return nil, err
	}
	return &Set{Front: front, Driving: driving, Tender: tender}, nil
}

// Tick advances all groups. Front and tender wheels follow the train; the driving
// wheels get their own (slipping) surface speed.
func (s *Set) Tick(driveSpeed, frontSpeed, dt float64) {
	dt = util.Sanitize(dt, 0)
	s.Driving.Advance(driveSpeed, dt)
	s.Front.Advance(frontSpeed, dt)
	s.Tender.Advance(frontSpeed, dt)
}

// DrivingStep is the driving wheel rotation of the last tick in degrees.
func (s *Set) DrivingStep() float64 {
	return s.Driving.Step()
}

// DrivingAngle is the phase reference for the linkage chain.
func (s *Set) DrivingAngle() float64 {
	return s.Driving.Angle()
}

// Reset puts every wheel back to angle zero.
func (s *Set) Reset() {
	for _, g := range []*Group{s.Front, s.Driving, s.Tender} {
		g.angle, g.step = 0, 0
	}
}

// RPM converts a linear surface speed into revolutions per minute.
func (g *Group) RPM(speed float64) float64 {
	if g.Circumference == 0 {
		return 0
	}
	return speed / g.Circumference * 60
}
