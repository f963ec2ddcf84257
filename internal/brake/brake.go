// Package brake maps cab brake levers to the forces consumed by the speed model
// and derives the braking edge notifications used by sound and effects.
package brake

import (
	"math"

	"github.com/RogersSierra/extension/internal/util"
)

// State is the brake output of one tick.
type State struct {
	AirBrakeForce     float64 // 0..1
	SteamBrakeEngaged bool
}

// Brake holds the last-known-good lever positions of one locomotive.
type Brake struct {
	state State
}

// New creates a released brake.
func New() *Brake {
	return &Brake{}
}

// Tick converts lever positions into brake forces. The air brake has no internal
// dynamics. Any steam lever position at or above one half locks the wheels.
// Non-finite lever values keep the previous tick's output.
func (b *Brake) Tick(airLever, steamLever float64) State {
	if util.IsFinite(airLever) {
		b.state.AirBrakeForce = util.Clamp(airLever, 0, 1)
	}
	if util.IsFinite(steamLever) {
		b.state.SteamBrakeEngaged = steamLever >= 0.5
	}
	return b.state
}

// State returns the last computed output.
func (b *Brake) State() State {
	return b.state
}

// Reset releases both brakes.
func (b *Brake) Reset() {
	b.state = State{}
}

// RiggingPose is the visible brake shoe displacement for a given air brake force.
type RiggingPose struct {
	MainOffset float64 // metres along the chassis
	LeverAngle float64 // degrees
	ShoeAngle  float64 // degrees
}

// Rigging returns the brake rigging pose proportional to force.
func Rigging(force float64) RiggingPose {
	f := util.Clamp(util.Sanitize(force, 0), 0, 1)
	return RiggingPose{
		MainOffset: 0.1 * f,
		LeverAngle: -6 * f,
		ShoeAngle:  -5 * f,
	}
}

// Edge is a change of the derived "is braking" signal.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeStarted
	EdgeStoppedAfterBraking
	EdgeReleased
)

// brakingSpeed is the speed above which a locked steam brake counts as braking.
const brakingSpeed = 1.0

// EdgeDetector turns the per-tick "is braking" boolean into edges.
type EdgeDetector struct {
	wasBraking bool
}

// IsBraking is steamBrakeEngaged && |speed| > 1.
func IsBraking(steamBrakeEngaged bool, speed float64) bool {
	return steamBrakeEngaged && math.Abs(speed) > brakingSpeed
}

// Update compares the current tick against the previous one. A braking run that ends
// because the train slowed down is EdgeStoppedAfterBraking; one that ends because the
// lever was released is EdgeReleased.
func (d *EdgeDetector) Update(steamBrakeEngaged bool, speed float64) Edge {
	braking := IsBraking(steamBrakeEngaged, speed)
	defer func() { d.wasBraking = braking }()

	switch {
	case braking && !d.wasBraking:
		return EdgeStarted
	case !braking && d.wasBraking && steamBrakeEngaged:
		return EdgeStoppedAfterBraking
	case !braking && d.wasBraking:
		return EdgeReleased
	}
	return EdgeNone
}

// Braking reports the last observed value of the signal.
func (d *EdgeDetector) Braking() bool {
	return d.wasBraking
}

// Reset forgets the previous tick.
func (d *EdgeDetector) Reset() {
	d.wasBraking = false
}
