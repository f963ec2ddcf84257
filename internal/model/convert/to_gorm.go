// Package convert maps core telemetry records onto the gorm schema.
package convert

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/RogersSierra/extension/internal/geo"
	"github.com/RogersSierra/extension/internal/model"
	"github.com/RogersSierra/extension/pkg/core"
)

// eventDetails is the JSON body stored alongside an event row.
type eventDetails struct {
	Quadrant *int   `json:"quadrant,omitempty"`
	Other    string `json:"other,omitempty"`
}

// CoreToJourney converts a core.Journey to a GORM model.Journey.
func CoreToJourney(j core.Journey) model.Journey {
	return model.Journey{
		UUID:             j.ID,
		WorldName:        j.WorldName,
		StartTime:        j.StartTime,
		ExtensionVersion: j.ExtensionVersion,
		ExtensionBuild:   j.ExtensionBuild,
		Tag:              j.Tag,
	}
}

// CoreToTrain converts a core.TrainInfo to a GORM model.Train.
func CoreToTrain(t core.TrainInfo, journeyID uint) model.Train {
	return model.Train{
		JourneyID:  journeyID,
		TrainID:    t.ID,
		JoinTime:   t.JoinTime,
		Handle:     t.Handle,
		Model:      t.Model,
		Recovered:  t.Recovered,
		WheelCount: clampUint8(t.WheelCount),
	}
}

// CoreToSample converts a core.TrainSample to a GORM model.TrainSample.
func CoreToSample(s core.TrainSample, journeyID uint) model.TrainSample {
	return model.TrainSample{
		Time:          s.Time,
		JourneyID:     journeyID,
		TrainID:       s.TrainID,
		SimTime:       s.SimTime,
		Position:      geo.PointFromVector(s.Position),
		Speed:         float32(s.Speed),
		Pressure:      float32(s.Pressure),
		Throttle:      float32(s.Throttle),
		Gear:          float32(s.Gear),
		AirBrake:      float32(s.AirBrake),
		SteamBrake:    s.SteamBrake,
		DriveWheelRPM: float32(s.DriveWheelRPM),
		WheelTraction: float32(s.WheelTraction),
		Derailed:      s.Derailed,
	}
}

// CoreToEvent converts a core.TrainEvent to a GORM model.TrainEvent.
// Quadrant is only kept for piston strokes, where 0 is meaningful.
func CoreToEvent(e core.TrainEvent, journeyID uint) model.TrainEvent {
	var d eventDetails
	if e.Kind == core.EventPistonStroke {
		q := e.Quadrant
		d.Quadrant = &q
	}
	d.Other = e.Other

	details := datatypes.JSON("{}")
	if data, err := json.Marshal(d); err == nil {
		details = datatypes.JSON(data)
	}

	return model.TrainEvent{
		Time:      e.Time,
		JourneyID: journeyID,
		TrainID:   e.TrainID,
		SimTime:   e.SimTime,
		Kind:      string(e.Kind),
		Details:   details,
	}
}

// TraceToModel converts an accumulated trace to a GORM model.TrainTrace.
func TraceToModel(trainID string, journeyID uint, tr *geo.Trace) model.TrainTrace {
	return model.TrainTrace{
		JourneyID: journeyID,
		TrainID:   trainID,
		Path:      tr.LineString(),
		Length:    tr.Length(),
	}
}

// EndTime returns a pointer suitable for model.Journey.EndTime.
func EndTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func clampUint8(n int) uint8 {
	switch {
	case n < 0:
		return 0
	case n > 255:
		return 255
	}
	return uint8(n)
}
