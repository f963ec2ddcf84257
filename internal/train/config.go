package train

import (
	"github.com/RogersSierra/extension/internal/boiler"
	"github.com/RogersSierra/extension/internal/collision"
	"github.com/RogersSierra/extension/internal/linkage"
	"github.com/RogersSierra/extension/internal/speed"
)

// Config bundles the calibration of every locomotive subsystem.
type Config struct {
	Boiler    boiler.Config
	Speed     speed.Config
	Linkage   linkage.Config
	Collision collision.Config

	// MaxFrameTime caps dt so a host hitch cannot blow up the inertia term.
	MaxFrameTime float64

	DynamoPressure float64 // dynamo light is on above this pressure
	SmokePressure  float64 // funnel smokes above this pressure
	SoundMaxSpeed  float64 // |speed| at which the ambient sound level peaks
	SoundMaxLevel  float64
	SlipTraction   float64 // traction above which the drive wheels visibly slip
	SlipWheelSpeed float64
	SlideSpeed     float64 // locked wheels above this speed slide
	StartSpeed     float64 // |speed| crossing this with throttle open is a start
}

// DefaultConfig returns the tuned defaults for every subsystem.
func DefaultConfig() Config {
	return Config{
		Boiler:         boiler.DefaultConfig(),
		Speed:          speed.DefaultConfig(),
		Linkage:        linkage.DefaultConfig(),
		Collision:      collision.DefaultConfig(),
		MaxFrameTime:   0.25,
		DynamoPressure: 160,
		SmokePressure:  40,
		SoundMaxSpeed:  20,
		SoundMaxLevel:  5,
		SlipTraction:   1.5,
		SlipWheelSpeed: 2,
		SlideSpeed:     2,
		StartSpeed:     0.1,
	}
}
