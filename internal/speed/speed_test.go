package speed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dt = 1.0 / 60

func coast(dt float64) Input {
	return Input{HostVelocity: math.NaN(), Dt: dt}
}

func TestTick_ZeroInputDecaysMonotonically(t *testing.T) {
	for _, start := range []float64{20, 5, -8} {
		m := New(DefaultConfig())
		m.SetSpeed(start)

		prev := start
		for i := 0; i < 60*600; i++ {
			out := m.Tick(coast(dt))
			require.LessOrEqual(t, math.Abs(out.Speed), math.Abs(prev)+1e-12, "start=%v tick=%d", start, i)
			require.False(t, out.Speed != 0 && math.Signbit(out.Speed) != math.Signbit(start), "sign flipped at tick %d", i)
			prev = out.Speed
		}
		assert.Equal(t, 0.0, prev, "start=%v", start)
	}
}

func TestTick_RestStaysAtRest(t *testing.T) {
	m := New(DefaultConfig())
	for i := 0; i < 600; i++ {
		out := m.Tick(Input{Throttle: 1, Gear: 0, NormalizedPressure: 1, HostVelocity: 0, Dt: dt})
		require.Equal(t, 0.0, out.Speed)
	}
}

func TestTick_FullThrottleAsymptote(t *testing.T) {
	m := New(DefaultConfig())
	in := Input{Throttle: 1, Gear: 1, NormalizedPressure: 260.0 / 300.0, HostVelocity: math.NaN(), Dt: dt}

	var at30, at60 float64
	prev := 0.0
	for i := 1; i <= 60*60; i++ {
		out := m.Tick(in)
		require.GreaterOrEqual(t, out.Speed, prev-1e-9, "speed must not drop under constant full throttle (tick %d)", i)
		prev = out.Speed
		if i == 60*30 {
			at30 = out.Speed
		}
	}
	at60 = prev

	assert.Greater(t, at30, 0.0)
	assert.Less(t, at60, 40.0)
	assert.InDelta(t, at60, at30, at60*0.05, "speed should have settled by 30s")
}

func TestTick_ReverseGearDrivesBackwards(t *testing.T) {
	m := New(DefaultConfig())
	var out Output
	for i := 0; i < 600; i++ {
		out = m.Tick(Input{Throttle: 0.8, Gear: -1, NormalizedPressure: 0.8, HostVelocity: math.NaN(), Dt: dt})
	}
	assert.Less(t, out.Speed, 0.0)
	assert.Equal(t, -1.0, out.Direction)
	assert.Less(t, out.DriveWheelSpeed, 0.0)
}

func TestTick_FrontWheelsFollowTrainAgainstGear(t *testing.T) {
	m := New(DefaultConfig())
	m.SetSpeed(10)

	// Reverse steam while rolling forward: the drive wheels take the gear's
	// direction, the unpowered wheels keep rolling with the train.
	out := m.Tick(Input{Throttle: 1, Gear: -1, NormalizedPressure: 1, HostVelocity: math.NaN(), Dt: dt})
	require.Greater(t, out.Speed, 0.0)
	assert.Equal(t, -1.0, out.Direction)
	assert.Equal(t, out.Speed, out.FrontWheelSpeed)
}

func TestTick_EmergencyBrake(t *testing.T) {
	m := New(DefaultConfig())
	m.SetSpeed(20)

	stopped := -1
	for i := 0; i < 60*10; i++ {
		out := m.Tick(Input{AirBrakeForce: 1, HostVelocity: math.NaN(), Dt: dt})
		require.GreaterOrEqual(t, out.Speed, 0.0, "speed reversed at tick %d", i)
		if out.Speed == 0 && stopped < 0 {
			stopped = i
		}
	}
	require.GreaterOrEqual(t, stopped, 0, "train never stopped")
	assert.Less(t, stopped, 60*6)
}

func TestTick_SteamBrakeLocksDriveWheels(t *testing.T) {
	m := New(DefaultConfig())
	m.SetSpeed(10)

	out := m.Tick(Input{SteamBrakeEngaged: true, HostVelocity: math.NaN(), Dt: dt})
	assert.Equal(t, 0.0, out.DriveWheelSpeed)
	assert.Greater(t, out.FrontWheelSpeed, 9.0, "front wheels keep rolling with the train")

	// Locked wheels raise friction through the slip ratio.
	locked := New(DefaultConfig())
	locked.SetSpeed(10)
	free := New(DefaultConfig())
	free.SetSpeed(10)
	for i := 0; i < 120; i++ {
		locked.Tick(Input{SteamBrakeEngaged: true, HostVelocity: math.NaN(), Dt: dt})
		free.Tick(coast(dt))
	}
	assert.Less(t, locked.Speed(), free.Speed())
}

func TestTick_SteamBrakeCutsTractiveEffort(t *testing.T) {
	m := New(DefaultConfig())
	out := m.Tick(Input{Throttle: 1, Gear: 1, NormalizedPressure: 1, SteamBrakeEngaged: true, HostVelocity: 0, Dt: dt})
	assert.Equal(t, 0.0, out.Speed)
	assert.Equal(t, 0.0, out.SteamForce)
}

func TestTraction(t *testing.T) {
	m := New(DefaultConfig())

	tests := []struct {
		name     string
		speed    float64
		throttle float64
		want     float64
	}{
		{"standstill full throttle", 0, 1, 4},
		{"half fade", 5, 1, 2.5},
		{"above fade speed", 12, 1, 1},
		{"light throttle", 0, 0.5, 1 + 3*math.Pow(0.5, 10)},
		{"idle", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, m.Traction(tt.speed, tt.throttle), 1e-9)
		})
	}
}

func TestTick_InvalidInputsDoNotCorruptSpeed(t *testing.T) {
	m := New(DefaultConfig())
	m.SetSpeed(10)

	out := m.Tick(Input{
		Throttle:           math.NaN(),
		Gear:               math.Inf(1),
		AirBrakeForce:      math.NaN(),
		NormalizedPressure: math.NaN(),
		HostVelocity:       math.Inf(-1),
		Dt:                 dt,
	})
	assert.False(t, math.IsNaN(out.Speed))
	assert.Less(t, out.Speed, 10.0)
	assert.Greater(t, out.Speed, 9.0)

	before := m.Speed()
	out = m.Tick(Input{Dt: math.NaN()})
	assert.Equal(t, before, out.Speed)
}

func TestTick_DeterministicForFixedDt(t *testing.T) {
	run := func() []float64 {
		m := New(DefaultConfig())
		var speeds []float64
		for i := 0; i < 1200; i++ {
			in := Input{Throttle: 1, Gear: 1, NormalizedPressure: 0.9, HostVelocity: math.NaN(), Dt: dt}
			if i > 800 {
				in = Input{AirBrakeForce: 0.5, HostVelocity: math.NaN(), Dt: dt}
			}
			speeds = append(speeds, m.Tick(in).Speed)
		}
		return speeds
	}
	assert.Equal(t, run(), run())
}
