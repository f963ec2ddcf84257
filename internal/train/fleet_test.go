package train

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogersSierra/extension/internal/events"
	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/pkg/core"
)

func newTestFleet(t *testing.T) (*Fleet, *recorder) {
	t.Helper()
	bus := events.NewBus(nil)
	rec := &recorder{}
	bus.Subscribe("test", func(e core.Event) { rec.events = append(rec.events, e) })

	f, err := NewFleet(DefaultConfig(), bus, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, rec
}

func testHost(handle string) Host {
	frame := host.NewFrame(handle)
	return Host{Vehicle: frame, Skeleton: testBones(), Props: frame}
}

func TestFleet_SpawnGetDispose(t *testing.T) {
	f, rec := newTestFleet(t)

	tr, err := f.Spawn(testHost("veh-1"), "sierra", testWheels())
	require.NoError(t, err)
	_, err = uuid.Parse(tr.ID())
	assert.NoError(t, err)
	assert.Equal(t, 1, rec.count(core.EventSpawned))

	got, err := f.Get(tr.ID())
	require.NoError(t, err)
	assert.Same(t, tr, got)
	assert.Equal(t, 1, f.Len())

	require.NoError(t, f.Dispose(tr.ID()))
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, 1, rec.count(core.EventDisposed))

	_, err = f.Get(tr.ID())
	assert.ErrorIs(t, err, ErrUnknownTrain)
	assert.ErrorIs(t, f.Dispose(tr.ID()), ErrUnknownTrain)
}

func TestFleet_SpawnFailureLeavesNoTrain(t *testing.T) {
	f, _ := newTestFleet(t)
	h := testHost("veh-1")
	h.Skeleton = host.BoneMap{}

	_, err := f.Spawn(h, "sierra", testWheels())
	assert.Error(t, err)
	assert.Equal(t, 0, f.Len())
}

func TestFleet_RecoverStartsFromDefaults(t *testing.T) {
	f, _ := newTestFleet(t)

	tr, err := f.Spawn(testHost("veh-1"), "sierra", testWheels())
	require.NoError(t, err)
	tr.SetPressure(250)
	tr.SetSpeed(12)
	id := tr.ID()

	_, err = f.Recover(id, testHost("veh-1"), "sierra", testWheels())
	assert.ErrorIs(t, err, ErrTrainExists)

	require.NoError(t, f.Dispose(id))
	rt, err := f.Recover(id, testHost("veh-2"), "sierra", testWheels())
	require.NoError(t, err)

	st := rt.State()
	assert.Equal(t, id, st.ID)
	assert.True(t, st.Recovered)
	assert.Equal(t, "veh-2", st.Handle)
	assert.Zero(t, st.Pressure)
	assert.Zero(t, st.Speed)
	assert.Equal(t, core.Controls{}, st.Controls)

	_, err = f.Recover("not-a-uuid", testHost("veh-3"), "sierra", testWheels())
	assert.Error(t, err)
}

func TestFleet_SessionReleasedOnDispose(t *testing.T) {
	f, _ := newTestFleet(t)
	a, err := f.Spawn(testHost("veh-1"), "sierra", testWheels())
	require.NoError(t, err)
	b, err := f.Spawn(testHost("veh-2"), "sierra", testWheels())
	require.NoError(t, err)

	f.Session().SetActive(a)
	require.NoError(t, f.Dispose(b.ID()))
	assert.Equal(t, a.ID(), f.Session().ActiveID())

	require.NoError(t, f.Dispose(a.ID()))
	assert.Nil(t, f.Session().Active())
	assert.Equal(t, "", f.Session().ActiveID())
}

type panickyVehicle struct {
	*host.Frame
}

func (panickyVehicle) SetTrainSpeed(float64) {
	panic("host went away")
}

func TestFleet_TickIsolatesPanics(t *testing.T) {
	f, _ := newTestFleet(t)

	bad := testHost("veh-bad")
	bad.Vehicle = panickyVehicle{host.NewFrame("veh-bad")}
	broken, err := f.Spawn(bad, "sierra", testWheels())
	require.NoError(t, err)

	healthy, err := f.Spawn(testHost("veh-ok"), "sierra", testWheels())
	require.NoError(t, err)

	var tickErr error
	assert.NotPanics(t, func() {
		tickErr = f.TickAll(frame, map[string]host.Sample{})
	})
	assert.Error(t, tickErr)
	assert.Contains(t, tickErr.Error(), broken.ID())
	assert.InDelta(t, frame, healthy.State().SimTime, 1e-12)

	_, err = f.Tick(healthy.ID(), frame, host.Sample{})
	assert.NoError(t, err)

	_, err = f.Tick("missing", frame, host.Sample{})
	assert.ErrorIs(t, err, ErrUnknownTrain)
}

func TestFleet_Couple(t *testing.T) {
	f, rec := newTestFleet(t)
	a, err := f.Spawn(testHost("veh-1"), "sierra", testWheels())
	require.NoError(t, err)
	b, err := f.Spawn(testHost("veh-2"), "sierra", testWheels())
	require.NoError(t, err)

	a.SetSpeed(6)
	b.SetSpeed(4)
	require.NoError(t, f.Couple(a.ID(), b.ID()))

	assert.Equal(t, 5.0, a.Speed())
	assert.Equal(t, 5.0, b.Speed())
	assert.Equal(t, 1, rec.count(core.EventCoupled))
	assert.Equal(t, b.ID(), rec.events[len(rec.events)-1].Other)

	b.Derail()
	assert.Error(t, f.Couple(a.ID(), b.ID()))
	assert.ErrorIs(t, f.Couple(a.ID(), "missing"), ErrUnknownTrain)
}

func TestFleet_CollisionSeedsDiffer(t *testing.T) {
	f, _ := newTestFleet(t)
	a, err := f.Spawn(testHost("veh-1"), "sierra", testWheels())
	require.NoError(t, err)
	b, err := f.Spawn(testHost("veh-2"), "sierra", testWheels())
	require.NoError(t, err)

	assert.NotEqual(t, a.cfg.Collision.Seed, b.cfg.Collision.Seed)
}
