// pkg/core/events.go
package core

import "time"

// EventKind names a derived locomotive notification.
type EventKind string

const (
	EventPistonStroke        EventKind = "piston_stroke"
	EventStartedBraking      EventKind = "started_braking"
	EventStoppedAfterBraking EventKind = "stopped_after_braking"
	EventTrainStarted        EventKind = "train_started"
	EventWheelSlipStarted    EventKind = "wheel_slip_started"
	EventSafetyValveOpened   EventKind = "safety_valve_opened"
	EventDerailed            EventKind = "derailed"
	EventCoupled             EventKind = "coupled"
	EventSpawned             EventKind = "spawned"
	EventDisposed            EventKind = "disposed"
)

// Event is a fire-and-forget notification published by a train during its tick.
type Event struct {
	Kind    EventKind `json:"kind"`
	TrainID string    `json:"trainId"`
	// SimTime is the train's simulated clock in seconds when the event fired.
	SimTime float64 `json:"simTime"`
	// Quadrant is set for piston strokes (0..3).
	Quadrant int `json:"quadrant,omitempty"`
	// Other is the partner train id for coupling.
	Other string `json:"other,omitempty"`
}

// TrainEvent is an Event stamped for persistence.
type TrainEvent struct {
	JourneyID string
	Time      time.Time
	Event
}
