// Package hosttest provides a locomotive skeleton and wheel set for tests
// that need a buildable train without a game host.
package hosttest

import (
	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/linkage"
	"github.com/RogersSierra/extension/internal/wheel"
)

// BonesJSON is Bones in the form the host sends on :SPAWN:.
const BonesJSON = `{
	"dwheel_1":[0,1.0,0.8],
	"rod":[0,1.545,0.8],
	"piston":[0,3.0,0.8],
	"combination_lever":[0,3.2,1.1],
	"radius_rod_mounting":[0,3.2,0.85],
	"radius_rod_end":[0,2.3,0.85],
	"valve_rod":[0,2.9,0.9]
}`

// WheelsJSON is Wheels in the form the host sends on :SPAWN:.
const WheelsJSON = `{"front":0.6,"driving":1.6,"tender":0.8,"frontCount":2,"drivingCount":3,"tenderCount":4}`

// Bones returns a complete valve gear skeleton.
func Bones() host.BoneMap {
	return host.BoneMap{
		linkage.BoneDriveWheel:       {Y: 1.0, Z: 0.8},
		linkage.BoneCrankPin:         {Y: 1.545, Z: 0.8},
		linkage.BonePiston:           {Y: 3.0, Z: 0.8},
		linkage.BoneCombinationLever: {Y: 3.2, Z: 1.1},
		linkage.BoneRadiusRodMount:   {Y: 3.2, Z: 0.85},
		linkage.BoneExpansionLink:    {Y: 2.3, Z: 0.85},
		linkage.BoneValveSpindle:     {Y: 2.9, Z: 0.9},
	}
}

// Wheels returns the wheel set of a small tender locomotive.
func Wheels() wheel.Diameters {
	return wheel.Diameters{
		Front: 0.6, Driving: 1.6, Tender: 0.8,
		FrontCount: 2, DrivingCount: 3, TenderCount: 4,
	}
}
