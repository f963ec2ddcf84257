// Package speed integrates the locomotive's signed speed from tractive effort,
// brakes, drag, friction and an inertia proxy, and derives wheel surface speeds.
package speed

import (
	"math"

	"github.com/RogersSierra/extension/internal/util"
)

// Config holds the calibration constants of the force model.
type Config struct {
	AccelerationMultiplier float64
	Mass                   float64 // scales the inertia proxy term
	FrictionCoefficient    float64
	BrakeMultiplier        float64
	DragCoefficient        float64 // applied as DragCoefficient * v|v| / 8
	MaxSteamForce          float64 // tractive effort at full throttle, full gear, full pressure

	MaxWheelTraction         float64 // drive wheel over-speed at standstill and full throttle
	TractionFadeSpeed        float64 // speed at which wheel spin has fully faded
	TractionThrottleExponent float64
	SlipFrictionGain         float64

	AirBrakeSteamCut      float64 // fraction of steam force left at full air brake
	SteamBrakeWheelFactor float64 // drive wheel speed multiplier while the steam brake locks them

	StopEpsilon    float64 // speeds below this snap to rest when no steam is applied
	ControlEpsilon float64 // throttle or gear below this counts as coasting
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		AccelerationMultiplier:   1.0,
		Mass:                     5,
		FrictionCoefficient:      0.2,
		BrakeMultiplier:          2,
		DragCoefficient:          0.02,
		MaxSteamForce:            4,
		MaxWheelTraction:         4,
		TractionFadeSpeed:        10,
		TractionThrottleExponent: 10,
		SlipFrictionGain:         1,
		AirBrakeSteamCut:         0.01,
		SteamBrakeWheelFactor:    0,
		StopEpsilon:              0.01,
		ControlEpsilon:           0.01,
	}
}

// Input is everything the integrator reads in one tick.
type Input struct {
	Throttle           float64
	Gear               float64
	AirBrakeForce      float64
	SteamBrakeEngaged  bool
	NormalizedPressure float64
	// HostVelocity is the host's vehicle velocity magnitude. Non-finite values fall
	// back to |speed|.
	HostVelocity float64
	Dt           float64
}

// Output is the result of one tick.
type Output struct {
	Speed float64
	// DriveWheelSpeed and FrontWheelSpeed are signed linear surface speeds in m/s.
	DriveWheelSpeed float64
	FrontWheelSpeed float64
	WheelTraction   float64
	Direction       float64
	SteamForce      float64
	// Discarded is set when the integrator produced a non-finite speed and the tick
	// was dropped.
	Discarded bool
}

// Model is the speed integrator of one locomotive. Not safe for concurrent use.
type Model struct {
	cfg Config

	speed         float64
	previousSpeed float64
	// driveWheelSpeed is the previous tick's drive wheel surface speed.
	driveWheelSpeed float64
	last            Output
}

// New creates a model at rest.
func New(cfg Config) *Model {
	return &Model{cfg: cfg, last: Output{WheelTraction: 1, Direction: 1}}
}

// Speed returns the current signed speed.
func (m *Model) Speed() float64 {
	return m.speed
}

// Last returns the output of the most recent tick.
func (m *Model) Last() Output {
	return m.last
}

// SetSpeed overrides the speed without producing an inertia spike.
func (m *Model) SetSpeed(v float64) {
	v = util.Sanitize(v, 0)
	m.speed = v
	m.previousSpeed = v
	m.driveWheelSpeed = v
	m.last.Speed = v
}

// Reset clears all integrator memory.
func (m *Model) Reset() {
	m.speed = 0
	m.previousSpeed = 0
	m.driveWheelSpeed = 0
	m.last = Output{WheelTraction: 1, Direction: 1}
}

// Traction returns the drive wheel traction multiplier: large at standstill under
// heavy throttle, fading to 1 as speed approaches TractionFadeSpeed. Never below 1.
func (m *Model) Traction(absSpeed, throttle float64) float64 {
	fade := util.Remap(util.Clamp(absSpeed, 0, m.cfg.TractionFadeSpeed), 0, m.cfg.TractionFadeSpeed, 1, 0)
	spin := math.Pow(throttle, m.cfg.TractionThrottleExponent) * fade
	traction := util.Remap(spin, 0, 1, 1, m.cfg.MaxWheelTraction)
	return max(1, util.Sanitize(traction, 1))
}

// Tick advances the integrator by in.Dt seconds.
func (m *Model) Tick(in Input) Output {
	in = m.sanitize(in)
	if in.Dt <= 0 {
		return m.last
	}
	cfg := m.cfg
	absSpeed := math.Abs(m.speed)

	acceleration := (m.speed - m.previousSpeed) * in.Dt
	traction := m.Traction(absSpeed, in.Throttle)

	wheelSpeedRatio := 1.0
	if m.speed != 0 {
		slip := math.Abs(m.speed-m.driveWheelSpeed) / absSpeed
		wheelSpeedRatio = 1 + cfg.SlipFrictionGain*min(slip, 1)
	}

	velocity := math.Abs(in.HostVelocity)
	if !util.IsFinite(velocity) {
		velocity = absSpeed
	}
	velocity *= util.Sign(m.speed)

	frictionForce := cfg.FrictionCoefficient * m.speed / 2 * wheelSpeedRatio
	brakeForce := m.speed * in.AirBrakeForce * cfg.BrakeMultiplier
	dragForce := cfg.DragCoefficient * velocity * math.Abs(velocity) / 8
	inertiaForce := acceleration * cfg.Mass
	steamForce := util.Remap(in.Throttle, 0, 1, 0, cfg.MaxSteamForce) * in.Gear * in.NormalizedPressure

	steamBrakeMultiplier := 1.0
	if in.SteamBrakeEngaged {
		steamBrakeMultiplier = 0
	}
	airBrakeAdjustment := util.Remap(in.AirBrakeForce, 0, 1, 1, cfg.AirBrakeSteamCut)
	tractive := steamForce * airBrakeAdjustment * steamBrakeMultiplier

	totalForce := (tractive - dragForce + inertiaForce - frictionForce - brakeForce) * cfg.AccelerationMultiplier * in.Dt
	next := m.speed + totalForce

	if !util.IsFinite(next) {
		m.last.Discarded = true
		return m.last
	}

	// Resistive forces alone bring the train to rest, never through it.
	if util.NearZero(tractive, 1e-9) {
		switch {
		case m.speed == 0:
			next = 0
		case util.Sign(next) != util.Sign(m.speed):
			next = 0
		case math.Abs(next) < cfg.StopEpsilon:
			next = 0
		}
	}

	direction := util.Sign(in.Gear)
	if in.Throttle < cfg.ControlEpsilon || math.Abs(in.Gear) < cfg.ControlEpsilon {
		direction = util.Sign(next)
	}
	if direction == 0 {
		direction = 1
	}

	steamBrakeFactor := 1.0
	if in.SteamBrakeEngaged {
		steamBrakeFactor = cfg.SteamBrakeWheelFactor
	}
	absNext := math.Abs(next)

	m.previousSpeed = m.speed
	m.speed = next
	m.driveWheelSpeed = absNext * traction * steamBrakeFactor * direction

	m.last = Output{
		Speed:           next,
		DriveWheelSpeed: m.driveWheelSpeed,
		FrontWheelSpeed: next,
		WheelTraction:   traction,
		Direction:       direction,
		SteamForce:      tractive,
	}
	return m.last
}

func (m *Model) sanitize(in Input) Input {
	in.Dt = util.Sanitize(in.Dt, 0)
	in.Throttle = util.Clamp(util.Sanitize(in.Throttle, 0), 0, 1)
	in.Gear = util.Clamp(util.Sanitize(in.Gear, 0), -1, 1)
	in.AirBrakeForce = util.Clamp(util.Sanitize(in.AirBrakeForce, 0), 0, 1)
	in.NormalizedPressure = util.Clamp(util.Sanitize(in.NormalizedPressure, 0), 0, 1)
	return in
}
