// Package boiler models locomotive steam pressure as a single scalar with linear
// charge, throttle draw and a time-windowed safety valve.
package boiler

import (
	"github.com/RogersSierra/extension/internal/util"
)

// Config holds the boiler calibration constants.
type Config struct {
	ChargeRate      float64 // pressure units gained per second
	SafetyThreshold float64 // pressure above which the safety valve lifts
	BleedRate       float64 // pressure units vented per second while the valve is open
	BleedWindow     float64 // seconds the valve stays open once lifted
	DrawRate        float64 // pressure units consumed per second at full throttle
	MaxPressure     float64 // gauge ceiling used for normalization
	InitialPressure float64
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		ChargeRate:      3.0,
		SafetyThreshold: 260,
		BleedRate:       10,
		BleedWindow:     1,
		DrawRate:        3.1,
		MaxPressure:     300,
		InitialPressure: 0,
	}
}

// Boiler is the pressure state of one locomotive. Not safe for concurrent use.
type Boiler struct {
	cfg      Config
	pressure float64

	// clock is simulated seconds since spawn; releaseUntil is absolute on it.
	clock        float64
	releaseUntil float64
	opened       bool
}

// New creates a boiler at the configured initial pressure.
func New(cfg Config) *Boiler {
	b := &Boiler{cfg: cfg}
	b.Reset()
	return b
}

// Reset restores spawn defaults.
func (b *Boiler) Reset() {
	b.pressure = max(0, b.cfg.InitialPressure)
	b.clock = 0
	b.releaseUntil = 0
	b.opened = false
}

// Tick advances the boiler by dt seconds and returns the new pressure.
func (b *Boiler) Tick(throttle, dt float64) float64 {
	b.opened = false
	dt = util.Sanitize(dt, 0)
	if dt <= 0 {
		return b.pressure
	}
	throttle = util.Clamp(util.Sanitize(throttle, 0), 0, 1)

	b.clock += dt
	p := b.pressure + b.cfg.ChargeRate*dt
	if b.Venting() {
		p -= b.cfg.BleedRate * dt
	}
	p -= b.cfg.DrawRate * throttle * dt
	b.pressure = max(0, p)

	if b.pressure > b.cfg.SafetyThreshold && !b.Venting() {
		b.releaseUntil = b.clock + b.cfg.BleedWindow
		b.opened = true
	}
	return b.pressure
}

// Pressure returns the current pressure.
func (b *Boiler) Pressure() float64 {
	return b.pressure
}

// SetPressure overrides the pressure, clamped to be non-negative.
func (b *Boiler) SetPressure(p float64) {
	b.pressure = max(0, util.Sanitize(p, 0))
}

// Normalized returns pressure as a [0,1] force multiplier.
func (b *Boiler) Normalized() float64 {
	return Normalize(b.pressure, b.cfg.MaxPressure)
}

// Venting reports whether the safety valve window is open.
func (b *Boiler) Venting() bool {
	return b.clock < b.releaseUntil
}

// ValveOpened reports whether the safety valve lifted during the last tick.
func (b *Boiler) ValveOpened() bool {
	return b.opened
}

// Normalize maps pressure from [0, maxPressure] onto [0, 1].
func Normalize(pressure, maxPressure float64) float64 {
	return util.Clamp(util.Remap(pressure, 0, maxPressure, 0, 1), 0, 1)
}
