// Package model holds the gorm schema for recorded journeys.
package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is every table migrated by the SQL backends.
var DatabaseModels = []any{
	&Journey{},
	&Train{},
	&TrainSample{},
	&TrainEvent{},
	&TrainTrace{},
	&CorePerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// CorePerformance is a periodic snapshot of the recorder's own health.
type CorePerformance struct {
	Time                time.Time         `json:"time" gorm:"index:idx_coreperformance_time"`
	JourneyID           uint              `json:"journeyId" gorm:"index:idx_coreperformance_journey_id"`
	Journey             Journey           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:JourneyID;"`
	FleetSize           uint16            `json:"fleetSize"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	Dropped             uint64            `json:"dropped"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*CorePerformance) TableName() string {
	return "core_performances"
}

// WriteQueueLengths is the depth of each telemetry write queue.
type WriteQueueLengths struct {
	Trains  uint32 `json:"trains"`
	Samples uint32 `json:"samples"`
	Events  uint32 `json:"events"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Journey is one recording session.
type Journey struct {
	gorm.Model
	UUID             string     `json:"uuid" gorm:"size:36;uniqueIndex:idx_journey_uuid"`
	WorldName        string     `json:"worldName" gorm:"size:127"`
	StartTime        time.Time  `json:"startTime" gorm:"index:idx_journey_start"`
	EndTime          *time.Time `json:"endTime"`
	ExtensionVersion string     `json:"extensionVersion" gorm:"size:64"`
	ExtensionBuild   string     `json:"extensionBuild" gorm:"size:64"`
	Tag              string     `json:"tag" gorm:"size:127"`
	TotalDistance    float64    `json:"totalDistance"`

	Trains []Train `json:"-"`
}

func (*Journey) TableName() string {
	return "journeys"
}

// Train is a locomotive that took part in a journey.
// Uses composite primary key (JourneyID, TrainID).
//
// Command: :SPAWN: / :RECOVER:
type Train struct {
	JourneyID  uint      `json:"journeyId" gorm:"primaryKey;autoIncrement:false"`
	TrainID    string    `json:"trainId" gorm:"primaryKey;size:36"`
	Journey    Journey   `gorm:"foreignkey:JourneyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt  time.Time `json:"createdAt"`
	JoinTime   time.Time `json:"joinTime" gorm:"NOT NULL;index:idx_train_join_time"`
	Handle     string    `json:"handle" gorm:"size:64"` // host object handle
	Model      string    `json:"model" gorm:"size:64"`
	Recovered  bool      `json:"recovered" gorm:"default:false"`
	WheelCount uint8     `json:"wheelCount"`
}

func (*Train) TableName() string {
	return "trains"
}

// TrainSample is a periodic snapshot of a train's dynamic state.
type TrainSample struct {
	ID            uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time  `json:"time" gorm:"NOT NULL;index:idx_trainsample_time"`
	JourneyID     uint       `json:"journeyId" gorm:"index:idx_trainsample_journey_id"`
	TrainID       string     `json:"trainId" gorm:"size:36;index:idx_trainsample_train_id"`
	SimTime       float64    `json:"simTime"`
	Position      geom.Point `json:"position"`
	Speed         float32    `json:"speed"`
	Pressure      float32    `json:"pressure"`
	Throttle      float32    `json:"throttle"`
	Gear          float32    `json:"gear"`
	AirBrake      float32    `json:"airBrake"`
	SteamBrake    bool       `json:"steamBrake"`
	DriveWheelRPM float32    `json:"driveWheelRpm"`
	WheelTraction float32    `json:"wheelTraction"`
	Derailed      bool       `json:"derailed"`
}

func (*TrainSample) TableName() string {
	return "train_samples"
}

// TrainEvent is a derived locomotive notification.
type TrainEvent struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time      `json:"time" gorm:"NOT NULL;index:idx_trainevent_time"`
	JourneyID uint           `json:"journeyId" gorm:"index:idx_trainevent_journey_id"`
	TrainID   string         `json:"trainId" gorm:"size:36;index:idx_trainevent_train_id"`
	SimTime   float64        `json:"simTime"`
	Kind      string         `json:"kind" gorm:"size:32;index:idx_trainevent_kind"`
	Details   datatypes.JSON `json:"details" gorm:"type:jsonb;default:'{}'"`
}

func (*TrainEvent) TableName() string {
	return "train_events"
}

// TrainTrace is the ground path a train covered during a journey.
type TrainTrace struct {
	JourneyID uint            `json:"journeyId" gorm:"primaryKey;autoIncrement:false"`
	TrainID   string          `json:"trainId" gorm:"primaryKey;size:36"`
	Path      geom.LineString `json:"path"`
	Length    float64         `json:"length"`
}

func (*TrainTrace) TableName() string {
	return "train_traces"
}
