// Package host defines the collaborator contracts the locomotive core needs from
// the game host: a speed sink, bone lookup and animated prop handles.
package host

import (
	"github.com/RogersSierra/extension/pkg/core"
)

// Vehicle is the host entity a train drives.
type Vehicle interface {
	Handle() string
	// SetTrainSpeed is called once per tick with the same or a changing value.
	SetTrainSpeed(speed float64)
}

// Skeleton resolves named attachment points in vehicle space.
type Skeleton interface {
	BoneOffset(name string) (core.Vector3, bool)
}

// Prop is an animated prop owned by a train.
type Prop interface {
	Name() string
	SetOffset(offset core.Vector3)
	SetRotation(rotation core.Vector3)
	// Detach lets the prop fall free of the vehicle.
	Detach()
	Delete()
}

// PropFactory attaches props to a vehicle at construction time.
type PropFactory interface {
	AttachProp(name, bone string) (Prop, error)
}

// Sample is what the host reports about the vehicle at the start of a tick.
type Sample struct {
	// Velocity is the host physics velocity magnitude in m/s.
	Velocity float64
	Forward  core.Vector3
	Position core.Vector3
}
