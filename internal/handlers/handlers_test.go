package handlers

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogersSierra/extension/internal/dispatcher"
	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/host/hosttest"
	"github.com/RogersSierra/extension/internal/logging"
	"github.com/RogersSierra/extension/internal/train"
	"github.com/RogersSierra/extension/pkg/core"
)

type observer struct {
	seen map[string]int
}

func (o *observer) Observe(t *train.Train) {
	o.seen[t.ID()]++
}

type logLine struct {
	function, data, level string
}

func newTestService(t *testing.T) (*Service, *dispatcher.Dispatcher, *observer, *[]logLine) {
	t.Helper()
	fleet, err := train.NewFleet(train.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fleet.Close() })

	obs := &observer{seen: make(map[string]int)}
	svc := NewService(Dependencies{
		Fleet:     fleet,
		Recorder:  obs,
		Version:   "1.2.0",
		BuildDate: "2026-01-01",
	})
	var logs []logLine
	svc.writeLogFunc = func(function, data, level string) {
		logs = append(logs, logLine{function, data, level})
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	svc.RegisterHandlers(d)
	return svc, d, obs, &logs
}

func dispatch(t *testing.T, d *dispatcher.Dispatcher, command string, args ...string) (any, error) {
	t.Helper()
	return d.Dispatch(dispatcher.Event{Command: command, Args: args})
}

func spawn(t *testing.T, d *dispatcher.Dispatcher, handle string) string {
	t.Helper()
	res, err := dispatch(t, d, ":SPAWN:", handle, hosttest.BonesJSON, hosttest.WheelsJSON)
	require.NoError(t, err)
	id, ok := res.(string)
	require.True(t, ok)
	return id
}

func TestRegisterHandlers(t *testing.T) {
	_, d, _, _ := newTestService(t)
	for _, cmd := range []string{
		":VERSION:", ":SPAWN:", ":RECOVER:", ":DISPOSE:", ":ACTIVE:", ":LEVERS:",
		":ARCADE:", ":TICK:", ":TOUCH:", ":DERAIL:", ":STATE:",
	} {
		assert.True(t, d.HasHandler(cmd), cmd)
	}
}

func TestVersion(t *testing.T) {
	_, d, _, _ := newTestService(t)
	res, err := dispatch(t, d, ":VERSION:")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2.0", "2026-01-01"}, res)
}

func TestSpawn(t *testing.T) {
	svc, d, _, _ := newTestService(t)

	id := spawn(t, d, `"veh-1"`)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	tr, err := svc.deps.Fleet.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "veh-1", tr.Handle())
	assert.Equal(t, DefaultModel, tr.Info().Model)
	assert.NotNil(t, svc.frame(id))
}

func TestSpawn_NamedModel(t *testing.T) {
	svc, d, _, _ := newTestService(t)
	res, err := dispatch(t, d, ":SPAWN:", "veh-1", hosttest.BonesJSON, hosttest.WheelsJSON, "sierra_mk2")
	require.NoError(t, err)

	tr, err := svc.deps.Fleet.Get(res.(string))
	require.NoError(t, err)
	assert.Equal(t, "sierra_mk2", tr.Info().Model)
}

func TestSpawn_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"too few args", []string{"veh-1", hosttest.BonesJSON}},
		{"bad bones", []string{"veh-1", "{not json", hosttest.WheelsJSON}},
		{"bad wheels", []string{"veh-1", hosttest.BonesJSON, "[]"}},
		{"missing bone", []string{"veh-1", `{"dwheel_1":[0,1,0.8]}`, hosttest.WheelsJSON}},
		{"zero diameter", []string{"veh-1", hosttest.BonesJSON, `{"front":0.6,"driving":0,"tender":0.8}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d, _, _ := newTestService(t)
			_, err := dispatch(t, d, ":SPAWN:", tt.args...)
			require.Error(t, err)
			assert.Equal(t, 0, svc.deps.Fleet.Len())
		})
	}
}

func TestRecover(t *testing.T) {
	svc, d, _, _ := newTestService(t)
	id := uuid.NewString()

	res, err := dispatch(t, d, ":RECOVER:", id, "veh-9", hosttest.BonesJSON, hosttest.WheelsJSON)
	require.NoError(t, err)
	assert.Equal(t, id, res)

	tr, err := svc.deps.Fleet.Get(id)
	require.NoError(t, err)
	assert.True(t, tr.State().Recovered)

	_, err = dispatch(t, d, ":RECOVER:", id, "veh-9", hosttest.BonesJSON, hosttest.WheelsJSON)
	assert.ErrorIs(t, err, train.ErrTrainExists)

	_, err = dispatch(t, d, ":RECOVER:", "not-a-uuid", "veh-9", hosttest.BonesJSON, hosttest.WheelsJSON)
	assert.Error(t, err)
}

func TestDispose(t *testing.T) {
	svc, d, _, _ := newTestService(t)
	id := spawn(t, d, "veh-1")

	res, err := dispatch(t, d, ":DISPOSE:", id)
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, 0, svc.deps.Fleet.Len())
	assert.Nil(t, svc.frame(id))

	_, err = dispatch(t, d, ":DISPOSE:", id)
	assert.ErrorIs(t, err, train.ErrUnknownTrain)
}

func TestActive(t *testing.T) {
	svc, d, _, _ := newTestService(t)
	id := spawn(t, d, "veh-1")

	_, err := dispatch(t, d, ":ACTIVE:", id)
	require.NoError(t, err)
	assert.Equal(t, id, svc.deps.Fleet.ActiveID())

	_, err = dispatch(t, d, ":ACTIVE:", `""`)
	require.NoError(t, err)
	assert.Equal(t, "", svc.deps.Fleet.ActiveID())

	_, err = dispatch(t, d, ":ACTIVE:", uuid.NewString())
	assert.ErrorIs(t, err, train.ErrUnknownTrain)
}

func TestLevers(t *testing.T) {
	svc, d, _, _ := newTestService(t)
	id := spawn(t, d, "veh-1")

	// Throttle lever pulled fully back opens the regulator.
	_, err := dispatch(t, d, ":LEVERS:", id, "0", "0", "0.5", "1")
	require.NoError(t, err)

	tr, err := svc.deps.Fleet.Get(id)
	require.NoError(t, err)
	c := tr.State().Controls
	assert.InDelta(t, 1.0, c.Throttle, 1e-9)
	assert.InDelta(t, 1.0, c.Gear, 1e-9)
	assert.InDelta(t, 0.5, c.AirBrake, 1e-9)
	assert.InDelta(t, 1.0, c.SteamBrake, 1e-9)

	_, err = dispatch(t, d, ":LEVERS:", id, "x", "0", "0", "0")
	assert.Error(t, err)
	_, err = dispatch(t, d, ":LEVERS:", id, "0")
	assert.Error(t, err)
}

func TestArcade(t *testing.T) {
	_, d, _, _ := newTestService(t)
	id := spawn(t, d, "veh-1")

	res, err := dispatch(t, d, ":ARCADE:", id, "1", "0", "false", "0")
	require.NoError(t, err)
	assert.Equal(t, "ok", res)

	_, err = dispatch(t, d, ":ARCADE:", uuid.NewString(), "1", "0", "0", "0")
	assert.ErrorIs(t, err, train.ErrUnknownTrain)
}

func TestTick(t *testing.T) {
	_, d, obs, _ := newTestService(t)
	id := spawn(t, d, "veh-1")

	res, err := dispatch(t, d, ":TICK:", id, "0.016", "0", `"0,1,0"`, "10,20,0")
	require.NoError(t, err)

	var reply TickReply
	require.NoError(t, json.Unmarshal([]byte(res.(string)), &reply))
	assert.InDelta(t, 0, reply.Speed, 1e-6)
	assert.NotEmpty(t, reply.Props)
	assert.Equal(t, 1, obs.seen[id])
}

func TestTick_Errors(t *testing.T) {
	_, d, obs, _ := newTestService(t)
	id := spawn(t, d, "veh-1")

	tests := []struct {
		name string
		args []string
	}{
		{"too few args", []string{id, "0.016"}},
		{"bad dt", []string{id, "x", "0", "0,1,0", "0,0,0"}},
		{"bad forward", []string{id, "0.016", "0", "0,1", "0,0,0"}},
		{"bad position", []string{id, "0.016", "0", "0,1,0", "a,b,c"}},
		{"unknown train", []string{uuid.NewString(), "0.016", "0", "0,1,0", "0,0,0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dispatch(t, d, ":TICK:", tt.args...)
			assert.Error(t, err)
		})
	}
	assert.Equal(t, 0, obs.seen[id])
}

func TestTouch(t *testing.T) {
	svc, d, _, _ := newTestService(t)
	a := spawn(t, d, "veh-1")
	b := spawn(t, d, "veh-2")

	res, err := dispatch(t, d, ":TOUCH:", a, b, "false", "0", b)
	require.NoError(t, err)
	assert.Equal(t, ReplyIgnore, res)

	res, err = dispatch(t, d, ":TOUCH:", a, b, "true", "0", a)
	require.NoError(t, err)
	assert.Equal(t, ReplyIgnore, res, "a train never couples to itself")

	res, err = dispatch(t, d, ":TOUCH:", a, b, "true", "0", b)
	require.NoError(t, err)
	assert.Equal(t, ReplyCouple, res)

	tr, err := svc.deps.Fleet.Get(a)
	require.NoError(t, err)
	assert.InDelta(t, 0, tr.Speed(), 1e-9)
}

func TestTouch_UnknownPartner(t *testing.T) {
	_, d, _, logs := newTestService(t)
	a := spawn(t, d, "veh-1")
	other := uuid.NewString()

	res, err := dispatch(t, d, ":TOUCH:", a, other, "true", "0", other)
	require.NoError(t, err)
	assert.Equal(t, ReplyIgnore, res)
	require.Len(t, *logs, 1)
	assert.Equal(t, "WARN", (*logs)[0].level)
}

func TestDerailAndState(t *testing.T) {
	_, d, _, _ := newTestService(t)
	id := spawn(t, d, "veh-1")

	_, err := dispatch(t, d, ":DERAIL:", id)
	require.NoError(t, err)

	res, err := dispatch(t, d, ":STATE:", id)
	require.NoError(t, err)

	var st train.State
	require.NoError(t, json.Unmarshal([]byte(res.(string)), &st))
	assert.Equal(t, id, st.ID)
	assert.True(t, st.Derailed)

	// A derailed train reports every prop detached.
	res, err = dispatch(t, d, ":TICK:", id, "0.016", "0", "0,1,0", "0,0,0")
	require.NoError(t, err)
	var reply TickReply
	require.NoError(t, json.Unmarshal([]byte(res.(string)), &reply))
	for _, p := range reply.Props {
		assert.True(t, p.Detached, p.Name)
	}

	res, err = dispatch(t, d, ":TOUCH:", id, uuid.NewString(), "true", "0", "other")
	require.NoError(t, err)
	assert.Equal(t, ReplyIgnore, res)
}

func TestServiceTick_UnknownTrain(t *testing.T) {
	svc, _, obs, logs := newTestService(t)

	_, err := svc.Tick(uuid.NewString(), 0.016, host.Sample{Forward: core.Vector3{Y: 1}})
	assert.ErrorIs(t, err, train.ErrUnknownTrain)
	assert.Empty(t, obs.seen)
	assert.Empty(t, *logs)
}
