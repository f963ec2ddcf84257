// pkg/core/journey.go
package core

import "time"

// Journey is one recording session of locomotive telemetry.
type Journey struct {
	ID               string
	WorldName        string
	StartTime        time.Time
	ExtensionVersion string
	ExtensionBuild   string
	Tag              string
	// Origin anchors world coordinates to the earth. Nil when the world has
	// no known real-world location.
	Origin *LonLat
}

// LonLat is a WGS84 position in degrees.
type LonLat struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// TrainInfo describes a locomotive taking part in a journey.
type TrainInfo struct {
	ID         string
	JourneyID  string
	Handle     string
	JoinTime   time.Time
	Model      string
	Recovered  bool
	WheelCount int
}

// TrainSample is a periodic snapshot of a train's dynamic state.
type TrainSample struct {
	TrainID       string
	JourneyID     string
	Time          time.Time
	SimTime       float64
	Position      Vector3
	Speed         float64
	Pressure      float64
	Throttle      float64
	Gear          float64
	AirBrake      float64
	SteamBrake    bool
	DriveWheelRPM float64
	WheelTraction float64
	Derailed      bool
}

// UploadMetadata contains metadata sent along with an exported journey.
type UploadMetadata struct {
	WorldName     string
	JourneyName   string
	Duration      float64
	TrainCount    int
	TotalDistance float64
	Tag           string
}
