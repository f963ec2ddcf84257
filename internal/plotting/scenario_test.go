package plotting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogersSierra/extension/internal/collision"
	"github.com/RogersSierra/extension/internal/train"
	"github.com/RogersSierra/extension/pkg/core"
)

func scenario(t *testing.T, name string) Scenario {
	t.Helper()
	for _, sc := range Scenarios() {
		if sc.Name == name {
			return sc
		}
	}
	t.Fatalf("no scenario %q", name)
	return Scenario{}
}

func TestRun_ColdStart(t *testing.T) {
	tr, err := Run(scenario(t, "cold_start"), train.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, tr.Time, 90*TickRate)

	s := Summarize(tr)
	assert.Zero(t, s.MaxSpeed)
	assert.GreaterOrEqual(t, s.MaxPressure, 260.0)
	assert.Zero(t, s.PistonStroke)
	assert.GreaterOrEqual(t, tr.Events[core.EventSafetyValveOpened], 1)
}

func TestRun_FullThrottle(t *testing.T) {
	tr, err := Run(scenario(t, "full_throttle"), train.DefaultConfig())
	require.NoError(t, err)

	s := Summarize(tr)
	assert.Greater(t, s.FinalSpeed, 0.0)
	assert.Greater(t, s.PistonStroke, 4)
	assert.Zero(t, s.SignFlips)
	assert.False(t, s.Derailed)
	assert.NotEqual(t, tr.WheelAngle[0], tr.WheelAngle[len(tr.WheelAngle)-1])
}

func TestRun_EmergencyBrake(t *testing.T) {
	tr, err := Run(scenario(t, "emergency_brake"), train.DefaultConfig())
	require.NoError(t, err)

	s := Summarize(tr)
	assert.Equal(t, 0.0, s.FinalSpeed)
	assert.Zero(t, s.SignFlips)
	for _, v := range tr.Speed {
		require.GreaterOrEqual(t, v, 0.0)
	}
}

func TestRun_RejectsEmptyDuration(t *testing.T) {
	_, err := Run(Scenario{Name: "empty"}, train.DefaultConfig())
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	tr := Trace{
		Scenario: "manual",
		Time:     []float64{0, 1, 2, 3, 4},
		Speed:    []float64{0, 2, -1, 0, 3},
		Pressure: []float64{10, 30, 20, 20, 5},
		Events:   map[core.EventKind]int{core.EventPistonStroke: 7},
	}

	s := Summarize(tr)
	assert.Equal(t, Summary{
		Scenario:      "manual",
		FinalSpeed:    3,
		MaxSpeed:      3,
		FinalPressure: 5,
		MaxPressure:   30,
		SignFlips:     2,
		PistonStroke:  7,
	}, s)
}

func TestDerailRate(t *testing.T) {
	cfg := collision.DefaultConfig()

	tests := []struct {
		name    string
		speed   float64
		turn    float64
		want    float64
		epsilon float64
	}{
		{"fast sharp turn", 20, 1, 1 - cfg.DerailRollThreshold, 0.05},
		{"below speed threshold", 10, 1, 0, 0},
		{"below angle threshold", 20, 0.1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DerailRate(cfg, tt.speed, tt.turn, 2000), tt.epsilon)
		})
	}
	assert.Zero(t, DerailRate(cfg, 20, 1, 0))
}

func TestScenarios(t *testing.T) {
	for _, sc := range Scenarios() {
		assert.Greater(t, sc.Duration, time.Duration(0), sc.Name)
		assert.NotNil(t, sc.Setup, sc.Name)
	}
}
