package influx

import (
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/RogersSierra/extension/internal/geo"
	"github.com/RogersSierra/extension/internal/model"
	"github.com/RogersSierra/extension/pkg/core"
)

// Measurement names.
const (
	MeasurementSample      = "train_sample"
	MeasurementEvent       = "train_event"
	MeasurementPerformance = "core_performance"
)

// SamplePoint converts a train sample.
// Journeys anchored to the earth also get lon and lat fields for map panels.
func SamplePoint(j *core.Journey, s *core.TrainSample) *influxdb2_write.Point {
	fields := map[string]any{
		"sim_time":        s.SimTime,
		"x":               s.Position.X,
		"y":               s.Position.Y,
		"z":               s.Position.Z,
		"speed":           s.Speed,
		"pressure":        s.Pressure,
		"throttle":        s.Throttle,
		"gear":            s.Gear,
		"air_brake":       s.AirBrake,
		"steam_brake":     s.SteamBrake,
		"drive_wheel_rpm": s.DriveWheelRPM,
		"wheel_traction":  s.WheelTraction,
		"derailed":        s.Derailed,
	}
	if j.Origin != nil {
		if at, err := geo.Project(*j.Origin, s.Position); err == nil {
			fields["lon"] = at.Lon
			fields["lat"] = at.Lat
		}
	}
	return influxdb2.NewPoint(
		MeasurementSample,
		map[string]string{
			"journey": j.ID,
			"world":   j.WorldName,
			"tag":     j.Tag,
			"train":   s.TrainID,
		},
		fields,
		s.Time,
	)
}

// EventPoint converts a train event. The kind is a tag so events can be
// grouped without a schema per kind.
func EventPoint(j *core.Journey, e *core.TrainEvent) *influxdb2_write.Point {
	fields := map[string]any{"sim_time": e.SimTime}
	switch e.Kind {
	case core.EventPistonStroke:
		fields["quadrant"] = e.Quadrant
	case core.EventCoupled:
		fields["other"] = e.Other
	}
	return influxdb2.NewPoint(
		MeasurementEvent,
		map[string]string{
			"journey": j.ID,
			"world":   j.WorldName,
			"train":   e.TrainID,
			"kind":    string(e.Kind),
		},
		fields,
		e.Time,
	)
}

// PerformancePoint converts a monitor snapshot.
func PerformancePoint(p *model.CorePerformance) *influxdb2_write.Point {
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return influxdb2.NewPoint(
		MeasurementPerformance,
		map[string]string{"journey": strconv.FormatUint(uint64(p.JourneyID), 10)},
		map[string]any{
			"fleet_size":    p.FleetSize,
			"queue_trains":  p.WriteQueueLengths.Trains,
			"queue_samples": p.WriteQueueLengths.Samples,
			"queue_events":  p.WriteQueueLengths.Events,
			"dropped":       p.Dropped,
			"last_write_ms": p.LastWriteDurationMs,
		},
		ts,
	)
}
