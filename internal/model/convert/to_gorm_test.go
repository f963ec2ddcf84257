package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/RogersSierra/extension/internal/geo"
	"github.com/RogersSierra/extension/pkg/core"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCoreToJourney(t *testing.T) {
	j := CoreToJourney(core.Journey{
		ID:               "5f3c0f6e-8a0b-4d6e-9e0c-0d7a3f1b2c4d",
		WorldName:        "Altis",
		StartTime:        now,
		ExtensionVersion: "1.2.0",
		Tag:              "Freeroam",
	})

	assert.Equal(t, "5f3c0f6e-8a0b-4d6e-9e0c-0d7a3f1b2c4d", j.UUID)
	assert.Equal(t, "Altis", j.WorldName)
	assert.Equal(t, now, j.StartTime)
	assert.Nil(t, j.EndTime)
	assert.Equal(t, "Freeroam", j.Tag)
}

func TestCoreToTrain(t *testing.T) {
	tests := []struct {
		name   string
		wheels int
		want   uint8
	}{
		{"typical", 9, 9},
		{"negative", -1, 0},
		{"overflow", 1000, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := CoreToTrain(core.TrainInfo{ID: "a", Handle: "1234", WheelCount: tt.wheels, JoinTime: now}, 7)
			assert.Equal(t, uint(7), m.JourneyID)
			assert.Equal(t, "a", m.TrainID)
			assert.Equal(t, "1234", m.Handle)
			assert.Equal(t, tt.want, m.WheelCount)
		})
	}
}

func TestCoreToSample(t *testing.T) {
	m := CoreToSample(core.TrainSample{
		TrainID:    "a",
		Time:       now,
		SimTime:    12.5,
		Position:   core.Vector3{X: 100, Y: 200, Z: 5},
		Speed:      8.25,
		Pressure:   180,
		Throttle:   0.5,
		Gear:       -1,
		SteamBrake: true,
	}, 3)

	assert.Equal(t, uint(3), m.JourneyID)
	assert.Equal(t, 12.5, m.SimTime)
	assert.Equal(t, float32(8.25), m.Speed)
	assert.Equal(t, float32(-1), m.Gear)
	assert.True(t, m.SteamBrake)
	assert.Equal(t, core.Vector3{X: 100, Y: 200, Z: 5}, geo.VectorFromPoint(m.Position))
}

func TestCoreToEvent(t *testing.T) {
	tests := []struct {
		name        string
		event       core.Event
		wantDetails string
	}{
		{
			name:        "piston stroke keeps quadrant zero",
			event:       core.Event{Kind: core.EventPistonStroke, Quadrant: 0},
			wantDetails: `{"quadrant":0}`,
		},
		{
			name:        "coupled records partner",
			event:       core.Event{Kind: core.EventCoupled, Other: "b"},
			wantDetails: `{"other":"b"}`,
		},
		{
			name:        "plain event",
			event:       core.Event{Kind: core.EventDerailed},
			wantDetails: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.TrainID = "a"
			tt.event.SimTime = 4
			m := CoreToEvent(core.TrainEvent{Time: now, Event: tt.event}, 2)

			assert.Equal(t, string(tt.event.Kind), m.Kind)
			assert.Equal(t, "a", m.TrainID)
			assert.Equal(t, 4.0, m.SimTime)
			assert.JSONEq(t, tt.wantDetails, string(m.Details))
		})
	}
}

func TestTraceToModel(t *testing.T) {
	tr := geo.NewTrace(0)
	tr.Add(core.Vector3{X: 0, Y: 0})
	tr.Add(core.Vector3{X: 0, Y: 50})

	m := TraceToModel("a", 1, tr)
	assert.Equal(t, 50.0, m.Length)
	assert.False(t, m.Path.IsEmpty())
}

func TestEndTime(t *testing.T) {
	assert.Nil(t, EndTime(time.Time{}))
	assert.Equal(t, now, *EndTime(now))
}
