package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/host/hosttest"
	"github.com/RogersSierra/extension/internal/train"
	"github.com/RogersSierra/extension/pkg/core"
)

const frame = 1.0 / 60

type sink struct {
	trains  []core.TrainInfo
	samples []core.TrainSample
	events  []core.TrainEvent
}

func (s *sink) QueueTrain(t core.TrainInfo)    { s.trains = append(s.trains, t) }
func (s *sink) QueueSample(x core.TrainSample) { s.samples = append(s.samples, x) }
func (s *sink) QueueEvent(e core.TrainEvent)   { s.events = append(s.events, e) }

func (s *sink) kinds() []core.EventKind {
	out := make([]core.EventKind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func newFleet(t *testing.T) *train.Fleet {
	t.Helper()
	f, err := train.NewFleet(train.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func spawn(t *testing.T, f *train.Fleet, handle string) *train.Train {
	t.Helper()
	fr := host.NewFrame(handle)
	tr, err := f.Spawn(train.Host{Vehicle: fr, Skeleton: hosttest.Bones(), Props: fr}, "sierra", hosttest.Wheels())
	require.NoError(t, err)
	return tr
}

func newRecorder(t *testing.T, cfg Config) (*Recorder, *train.Fleet, *sink) {
	t.Helper()
	f := newFleet(t)
	s := &sink{}
	r := New(cfg, f, s, nil)
	r.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	r.Attach(f.Bus())
	return r, f, s
}

var journey = &core.Journey{ID: "j1", WorldName: "Altis"}

func TestRecorder_IdleOutsideJourney(t *testing.T) {
	r, f, s := newRecorder(t, Config{Enabled: true, SampleInterval: time.Second})
	tr := spawn(t, f, "veh-1")
	r.Observe(tr)

	assert.Empty(t, s.trains)
	assert.Empty(t, s.samples)
	assert.Empty(t, s.events)
}

func TestRecorder_Disabled(t *testing.T) {
	r, f, s := newRecorder(t, Config{Enabled: false, SampleInterval: time.Second})
	spawn(t, f, "veh-1")
	r.JourneyStarted(journey)
	spawn(t, f, "veh-2")

	assert.Empty(t, s.trains)
	assert.Empty(t, s.events)
}

func TestRecorder_EnrollsLiveTrainsOnStart(t *testing.T) {
	r, f, s := newRecorder(t, Config{Enabled: true, SampleInterval: time.Second})
	tr := spawn(t, f, "veh-1")

	r.JourneyStarted(journey)
	require.Len(t, s.trains, 1)
	assert.Equal(t, tr.ID(), s.trains[0].ID)
	assert.Equal(t, "j1", s.trains[0].JourneyID)
	assert.False(t, s.trains[0].JoinTime.IsZero())
	require.Len(t, s.samples, 1)
	assert.Equal(t, "j1", s.samples[0].JourneyID)
}

func TestRecorder_SpawnDuringJourney(t *testing.T) {
	r, f, s := newRecorder(t, Config{Enabled: true, SampleInterval: time.Second})
	r.JourneyStarted(journey)

	tr := spawn(t, f, "veh-1")
	require.Len(t, s.trains, 1)
	assert.Equal(t, tr.ID(), s.trains[0].ID)
	assert.Equal(t, []core.EventKind{core.EventSpawned}, s.kinds())
	assert.Equal(t, "j1", s.events[0].JourneyID)

	require.NoError(t, f.Dispose(tr.ID()))
	assert.Equal(t, []core.EventKind{core.EventSpawned, core.EventDisposed}, s.kinds())
}

func TestRecorder_SamplesBySimTime(t *testing.T) {
	r, f, s := newRecorder(t, Config{Enabled: true, SampleInterval: 500 * time.Millisecond})
	tr := spawn(t, f, "veh-1")
	r.JourneyStarted(journey)
	s.samples = nil

	// ~2.2 s of simulated time at 60 fps, one sample per 0.5 s.
	for range 130 {
		_, err := f.Tick(tr.ID(), frame, host.Sample{Forward: core.Vector3{Y: 1}})
		require.NoError(t, err)
		r.Observe(tr)
	}
	assert.Len(t, s.samples, 4)
	for i := 1; i < len(s.samples); i++ {
		assert.InDelta(t, 0.5, s.samples[i].SimTime-s.samples[i-1].SimTime, frame+1e-9)
	}
}

func TestRecorder_PistonStrokesFiltered(t *testing.T) {
	for _, keep := range []bool{false, true} {
		r, f, s := newRecorder(t, Config{Enabled: true, SampleInterval: time.Second, PistonStrokes: keep})
		tr := spawn(t, f, "veh-1")
		r.JourneyStarted(journey)

		tr.SetPressure(260)
		tr.SetControls(core.Controls{Throttle: 1, Gear: 1})
		for range 1800 {
			_, err := f.Tick(tr.ID(), frame, host.Sample{Forward: core.Vector3{Y: 1}})
			require.NoError(t, err)
		}
		strokes := 0
		for _, k := range s.kinds() {
			if k == core.EventPistonStroke {
				strokes++
			}
		}
		if keep {
			assert.Positive(t, strokes)
		} else {
			assert.Zero(t, strokes)
		}
	}
}

func TestRecorder_JourneyEnded(t *testing.T) {
	r, f, s := newRecorder(t, Config{Enabled: true, SampleInterval: time.Second})
	spawn(t, f, "veh-1")
	r.JourneyStarted(journey)
	r.JourneyEnded(journey)
	assert.Len(t, s.samples, 2, "opening and closing sample")

	spawn(t, f, "veh-2")
	assert.Len(t, s.trains, 1)
}

func TestRecorder_Detach(t *testing.T) {
	r, f, s := newRecorder(t, Config{Enabled: true, SampleInterval: time.Second})
	r.JourneyStarted(journey)
	r.Detach()
	r.Detach()

	spawn(t, f, "veh-1")
	assert.Empty(t, s.trains)
	assert.Empty(t, s.events)
}
