// Package plotting runs locomotive scenarios headlessly and renders their
// traces as PNG line plots.
package plotting

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/RogersSierra/extension/internal/collision"
	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/host/hosttest"
	"github.com/RogersSierra/extension/internal/train"
	"github.com/RogersSierra/extension/pkg/core"
)

// TickRate is the host frame rate the scenarios run at.
const TickRate = 60

// Scenario is a scripted drive of one locomotive.
type Scenario struct {
	Name     string
	Duration time.Duration
	// Setup primes the train before the first tick.
	Setup func(t *train.Train)
}

// Trace is the per-tick history of a scenario run.
type Trace struct {
	Scenario   string
	Time       []float64
	Speed      []float64
	Pressure   []float64
	WheelAngle []float64
	Events     map[core.EventKind]int
	Derailed   bool
}

// Summary condenses a trace into one table row.
type Summary struct {
	Scenario      string
	FinalSpeed    float64
	MaxSpeed      float64
	FinalPressure float64
	MaxPressure   float64
	// SignFlips counts speed sign changes, which a braking run must not have.
	SignFlips    int
	PistonStroke int
	Derailed     bool
}

// Scenarios returns the reference drives: a cold boiler charging at rest, a
// full throttle pull-away and an emergency stop from 20 m/s.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:     "cold_start",
			Duration: 90 * time.Second,
			Setup: func(t *train.Train) {
				t.SetPressure(0)
				t.SetControls(core.Controls{})
			},
		},
		{
			Name:     "full_throttle",
			Duration: 30 * time.Second,
			Setup: func(t *train.Train) {
				t.SetPressure(260)
				t.SetControls(core.Controls{Throttle: 1, Gear: 1})
			},
		},
		{
			Name:     "emergency_brake",
			Duration: 30 * time.Second,
			Setup: func(t *train.Train) {
				t.SetPressure(260)
				t.SetSpeed(20)
				t.SetControls(core.Controls{AirBrake: 1})
			},
		},
	}
}

// Run drives a fresh locomotive through sc. The host side is simulated: the
// vehicle follows the core's speed on a straight track.
func Run(sc Scenario, cfg train.Config) (Trace, error) {
	if sc.Duration <= 0 {
		return Trace{}, errors.New("scenario duration must be positive")
	}
	frame := host.NewFrame(sc.Name)
	t, err := train.New(train.Options{
		ID:     uuid.NewString(),
		Model:  "scenario",
		Wheels: hosttest.Wheels(),
	}, train.Deps{
		Vehicle:  frame,
		Skeleton: hosttest.Bones(),
		Props:    frame,
	}, cfg)
	if err != nil {
		return Trace{}, fmt.Errorf("building %s locomotive: %w", sc.Name, err)
	}
	defer func() { _ = t.Dispose() }()

	if sc.Setup != nil {
		sc.Setup(t)
	}

	const dt = 1.0 / TickRate
	ticks := int(sc.Duration.Seconds() * TickRate)
	tr := Trace{
		Scenario:   sc.Name,
		Time:       make([]float64, 0, ticks),
		Speed:      make([]float64, 0, ticks),
		Pressure:   make([]float64, 0, ticks),
		WheelAngle: make([]float64, 0, ticks),
		Events:     make(map[core.EventKind]int),
	}

	var pos core.Vector3
	forward := core.Vector3{Y: 1}
	for i := 0; i < ticks; i++ {
		r := t.Tick(dt, host.Sample{
			Velocity: math.Abs(t.Speed()),
			Forward:  forward,
			Position: pos,
		})
		pos = pos.Add(forward.Scale(r.Speed * dt))
		for _, e := range r.Events {
			tr.Events[e.Kind]++
		}

		st := t.State()
		tr.Time = append(tr.Time, st.SimTime)
		tr.Speed = append(tr.Speed, st.Speed)
		tr.Pressure = append(tr.Pressure, st.Pressure)
		tr.WheelAngle = append(tr.WheelAngle, st.DriveWheelAngle)
	}
	tr.Derailed = t.Derailed()
	return tr, nil
}

// Summarize reduces a trace to its headline numbers.
func Summarize(tr Trace) Summary {
	s := Summary{
		Scenario:     tr.Scenario,
		PistonStroke: tr.Events[core.EventPistonStroke],
		Derailed:     tr.Derailed,
	}
	if n := len(tr.Speed); n > 0 {
		s.FinalSpeed = tr.Speed[n-1]
		s.FinalPressure = tr.Pressure[n-1]
	}
	prevSign := 0.0
	for i, v := range tr.Speed {
		s.MaxSpeed = math.Max(s.MaxSpeed, math.Abs(v))
		s.MaxPressure = math.Max(s.MaxPressure, tr.Pressure[i])
		sign := 0.0
		switch {
		case v > 0:
			sign = 1
		case v < 0:
			sign = -1
		}
		if sign != 0 && prevSign != 0 && sign != prevSign {
			s.SignFlips++
		}
		if sign != 0 {
			prevSign = sign
		}
	}
	return s
}

// DerailRate runs the derail rule trials times against a fixed heading
// change and returns the fraction that derailed.
func DerailRate(cfg collision.Config, speed, turnDeg float64, trials int) float64 {
	if trials <= 0 {
		return 0
	}
	p := collision.New(cfg)
	prev := core.Vector3{Y: 1}
	rad := turnDeg * math.Pi / 180
	next := core.Vector3{X: math.Sin(rad), Y: math.Cos(rad)}

	derails := 0
	for range trials {
		if p.Evaluate(next, speed, prev) {
			derails++
		}
	}
	return float64(derails) / float64(trials)
}
