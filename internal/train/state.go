package train

import (
	"math"

	"github.com/RogersSierra/extension/internal/brake"
	"github.com/RogersSierra/extension/internal/linkage"
	"github.com/RogersSierra/extension/internal/util"
	"github.com/RogersSierra/extension/pkg/core"
)

// Effects are the derived flags the host uses to drive lights, particles and
// sounds.
type Effects struct {
	DynamoLit   bool    `json:"dynamoLit"`
	Smoke       bool    `json:"smoke"`
	SoundLevel  float64 `json:"soundLevel"`
	WheelSlip   bool    `json:"wheelSlip"`
	SafetyValve bool    `json:"safetyValve"`
	Braking     bool    `json:"braking"`
}

// Gauges are cab dial readings on a 0..100 scale, plus speed in km/h.
type Gauges struct {
	Pressure float64 `json:"pressure"`
	Gear     float64 `json:"gear"`
	Throttle float64 `json:"throttle"`
	AirBrake float64 `json:"airBrake"`
	SpeedKmh float64 `json:"speedKmh"`
}

// State is a read-only snapshot of one locomotive.
type State struct {
	ID        string  `json:"id"`
	Handle    string  `json:"handle"`
	Model     string  `json:"model"`
	Recovered bool    `json:"recovered"`
	SimTime   float64 `json:"simTime"`

	Speed         float64       `json:"speed"`
	Pressure      float64       `json:"pressure"`
	Controls      core.Controls `json:"controls"`
	AirBrakeForce float64       `json:"airBrakeForce"`
	SteamBrake    bool          `json:"steamBrake"`
	Derailed      bool          `json:"derailed"`
	Disposed      bool          `json:"disposed"`

	DriveWheelAngle float64      `json:"driveWheelAngle"`
	DriveWheelRPM   float64      `json:"driveWheelRpm"`
	WheelTraction   float64      `json:"wheelTraction"`
	Position        core.Vector3 `json:"position"`

	Pose    linkage.Pose      `json:"pose"`
	Rigging brake.RiggingPose `json:"rigging"`
	Effects Effects           `json:"effects"`
	Gauges  Gauges            `json:"gauges"`
}

// Report is what a single tick hands back to the caller.
type Report struct {
	Speed  float64      `json:"speed"`
	Pose   linkage.Pose `json:"pose"`
	Events []core.Event `json:"events,omitempty"`
}

func gauges(pressure, maxPressure, speed float64, c core.Controls) Gauges {
	return Gauges{
		Pressure: util.Clamp(util.Remap(pressure, 0, maxPressure, 0, 100), 0, 100),
		Gear:     util.Remap(c.Gear, -1, 1, 0, 100),
		Throttle: c.Throttle * 100,
		AirBrake: c.AirBrake * 100,
		SpeedKmh: math.Abs(speed) * 3.6,
	}
}

func (t *Train) effects() Effects {
	out := t.speed.Last()
	absSpeed := math.Abs(out.Speed)
	slipping := out.WheelTraction > t.cfg.SlipTraction && math.Abs(out.DriveWheelSpeed) > t.cfg.SlipWheelSpeed
	sliding := t.brake.State().SteamBrakeEngaged && absSpeed > t.cfg.SlideSpeed

	return Effects{
		DynamoLit:   t.boiler.Pressure() > t.cfg.DynamoPressure,
		Smoke:       t.boiler.Pressure() > t.cfg.SmokePressure,
		SoundLevel:  util.Remap(util.Clamp(absSpeed, 0, t.cfg.SoundMaxSpeed), 0, t.cfg.SoundMaxSpeed, 0, t.cfg.SoundMaxLevel),
		WheelSlip:   !t.collision.Derailed() && (slipping || sliding),
		SafetyValve: t.boiler.Venting(),
		Braking:     t.brakeEdges.Braking(),
	}
}
