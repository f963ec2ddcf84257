// Package control turns host input (cab lever values or arcade keys) into the
// sanitized control vector consumed by the locomotive core.
package control

import (
	"math"

	"github.com/RogersSierra/extension/internal/util"
	"github.com/RogersSierra/extension/pkg/core"
)

// LeverValues are raw cab lever positions, each 0..1 along the lever's travel.
type LeverValues struct {
	Throttle   float64 `json:"throttle"`
	Gear       float64 `json:"gear"`
	AirBrake   float64 `json:"airBrake"`
	SteamBrake float64 `json:"steamBrake"`
}

// FromLeverValues maps lever travel to control values. The throttle lever is
// pulled towards the driver to open, the reverser's full forward notch is 0.
func FromLeverValues(v LeverValues) core.Controls {
	return core.Controls{
		Throttle:   util.Remap(v.Throttle, 0, 1, 1, 0),
		Gear:       util.Remap(v.Gear, 0, 1, 1, -1),
		AirBrake:   v.AirBrake,
		SteamBrake: math.Round(v.SteamBrake),
	}
}

// Adapter keeps the last-known-good control vector of one locomotive.
type Adapter struct {
	last   core.Controls
	arcade bool
	// mapped is the last vector produced by the arcade mapping.
	mapped core.Controls
}

// NewAdapter creates an adapter with all controls at rest.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Controls returns the current control vector.
func (a *Adapter) Controls() core.Controls {
	return a.last
}

// Reset returns every control to rest.
func (a *Adapter) Reset() {
	*a = Adapter{}
}

// Apply clamps c into range and stores it. Non-finite components keep their
// last-known-good value.
func (a *Adapter) Apply(c core.Controls) core.Controls {
	a.last = core.Controls{
		Throttle:   util.Clamp(util.Sanitize(c.Throttle, a.last.Throttle), 0, 1),
		Gear:       util.Clamp(util.Sanitize(c.Gear, a.last.Gear), -1, 1),
		AirBrake:   util.Clamp(util.Sanitize(c.AirBrake, a.last.AirBrake), 0, 1),
		SteamBrake: util.Clamp(math.Round(util.Sanitize(c.SteamBrake, a.last.SteamBrake)), 0, 1),
	}
	return a.last
}

// FromLevers applies raw cab lever values.
func (a *Adapter) FromLevers(v LeverValues) core.Controls {
	return a.Apply(FromLeverValues(v))
}

// FromArcade maps the simplified driving keys onto the levers given the current
// train speed. It reports false and leaves the controls untouched when no key is
// held now and none was held on the previous poll, so cab levers stay in charge.
func (a *Adapter) FromArcade(s core.ArcadeSample, speed float64) (core.Controls, bool) {
	s = core.ArcadeSample{
		Accelerate: util.Clamp(util.Sanitize(s.Accelerate, 0), 0, 1),
		Brake:      util.Clamp(util.Sanitize(s.Brake, 0), 0, 1),
		Handbrake:  util.Clamp(util.Sanitize(s.Handbrake, 0), 0, 1),
		Sprint:     util.Clamp(util.Sanitize(s.Sprint, 0), 0, 1),
	}
	active := s.Accelerate > 0 || s.Brake > 0 || s.Sprint > 0
	wasActive := a.arcade
	a.arcade = active
	if !active && !wasActive {
		return a.last, false
	}
	var c core.Controls
	switch moving := math.Trunc(util.Sanitize(speed, 0)); {
	case moving > 0:
		c.Throttle = s.Accelerate
		c.Gear = s.Accelerate
		c.AirBrake = s.Brake
	case moving < 0:
		c.Throttle = s.Brake
		c.Gear = -s.Brake
		c.AirBrake = s.Accelerate
	default:
		c.Throttle = math.Abs(s.Accelerate - s.Brake)
		c.Gear = s.Accelerate - s.Brake
	}
	if s.Sprint >= 1 {
		c.Throttle /= 2
	}
	c.SteamBrake = s.Handbrake

	// Held keys are re-mapped every poll; the levers only move when the
	// mapping changes, e.g. brake held through a stop becomes reverse drive.
	if wasActive && c == a.mapped {
		return a.last, true
	}
	a.mapped = c
	return a.Apply(c), true
}
