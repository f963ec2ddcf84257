// Package handlers answers the host's per-locomotive commands: spawn, control
// input, ticks, coupling and state queries.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/RogersSierra/extension/internal/collision"
	"github.com/RogersSierra/extension/internal/control"
	"github.com/RogersSierra/extension/internal/dispatcher"
	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/linkage"
	"github.com/RogersSierra/extension/internal/logging"
	"github.com/RogersSierra/extension/internal/train"
	"github.com/RogersSierra/extension/internal/util"
	"github.com/RogersSierra/extension/internal/wheel"
	"github.com/RogersSierra/extension/pkg/core"
)

// Touch replies.
const (
	ReplyCouple = "couple"
	ReplyIgnore = "ignore"
)

// DefaultModel is used when :SPAWN: does not name one.
const DefaultModel = "sierra"

// Observer is told about every completed tick. telemetry.Recorder implements it.
type Observer interface {
	Observe(t *train.Train)
}

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Fleet *train.Fleet
	// Recorder is optional.
	Recorder   Observer
	LogManager *logging.SlogManager
	Version    string
	BuildDate  string
}

// TickReply is the frame returned to the host for one :TICK:.
type TickReply struct {
	Speed  float64            `json:"speed"`
	Pose   linkage.Pose       `json:"pose"`
	Events []core.Event       `json:"events,omitempty"`
	Props  []host.PropCommand `json:"props"`
}

// Service provides handler methods for the locomotive commands.
type Service struct {
	deps         Dependencies
	writeLogFunc func(functionName, data, level string)

	mu     sync.Mutex
	frames map[string]*host.Frame
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	s := &Service{
		deps:   deps,
		frames: make(map[string]*host.Frame),
	}
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// RegisterHandlers registers the train commands with the dispatcher. All of
// them run on the caller's goroutine so a train is never touched by two
// commands at once.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", func(dispatcher.Event) (any, error) {
		return []string{s.deps.Version, s.deps.BuildDate}, nil
	})
	d.Register(":SPAWN:", s.handleSpawn, dispatcher.Logged())
	d.Register(":RECOVER:", s.handleRecover, dispatcher.Logged())
	d.Register(":DISPOSE:", s.handleDispose, dispatcher.Logged())
	d.Register(":ACTIVE:", s.handleActive)
	d.Register(":LEVERS:", s.handleLevers)
	d.Register(":ARCADE:", s.handleArcade)
	d.Register(":TICK:", s.handleTick)
	d.Register(":TOUCH:", s.handleTouch)
	d.Register(":DERAIL:", s.handleDerail, dispatcher.Logged())
	d.Register(":STATE:", s.handleState)
}

func expectArgs(command string, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%s: expected %d args, got %d", command, n, len(args))
	}
	return nil
}

func parseSpawnArgs(handle, bones, wheels string) (train.Host, *host.Frame, wheel.Diameters, error) {
	var d wheel.Diameters
	skeleton, err := host.ParseBoneMap(util.CleanArg(bones))
	if err != nil {
		return train.Host{}, nil, d, fmt.Errorf("parsing bones: %w", err)
	}
	if err := json.Unmarshal([]byte(util.CleanArg(wheels)), &d); err != nil {
		return train.Host{}, nil, d, fmt.Errorf("parsing wheel diameters: %w", err)
	}
	frame := host.NewFrame(util.CleanArg(handle))
	return train.Host{Vehicle: frame, Skeleton: skeleton, Props: frame}, frame, d, nil
}

func modelArg(args []string, i int) string {
	if len(args) > i {
		if m := util.CleanArg(args[i]); m != "" {
			return m
		}
	}
	return DefaultModel
}

// handleSpawn: handle, bones JSON, wheel diameters JSON[, model].
func (s *Service) handleSpawn(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 3); err != nil {
		return nil, err
	}
	h, frame, wheels, err := parseSpawnArgs(e.Args[0], e.Args[1], e.Args[2])
	if err != nil {
		s.writeLog(e.Command, err.Error(), "ERROR")
		return nil, err
	}
	t, err := s.deps.Fleet.Spawn(h, modelArg(e.Args, 3), wheels)
	if err != nil {
		s.writeLog(e.Command, fmt.Sprintf("spawn failed: %v", err), "ERROR")
		return nil, err
	}
	s.setFrame(t.ID(), frame)
	return t.ID(), nil
}

// handleRecover: train id, handle, bones JSON, wheel diameters JSON[, model].
func (s *Service) handleRecover(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 4); err != nil {
		return nil, err
	}
	h, frame, wheels, err := parseSpawnArgs(e.Args[1], e.Args[2], e.Args[3])
	if err != nil {
		s.writeLog(e.Command, err.Error(), "ERROR")
		return nil, err
	}
	t, err := s.deps.Fleet.Recover(util.CleanArg(e.Args[0]), h, modelArg(e.Args, 4), wheels)
	if err != nil {
		s.writeLog(e.Command, fmt.Sprintf("recover failed: %v", err), "ERROR")
		return nil, err
	}
	s.setFrame(t.ID(), frame)
	return t.ID(), nil
}

func (s *Service) handleDispose(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 1); err != nil {
		return nil, err
	}
	id := util.CleanArg(e.Args[0])
	s.mu.Lock()
	delete(s.frames, id)
	s.mu.Unlock()
	if err := s.deps.Fleet.Dispose(id); err != nil {
		return nil, err
	}
	return "ok", nil
}

// handleActive: train id, or "" to clear.
func (s *Service) handleActive(e dispatcher.Event) (any, error) {
	id := ""
	if len(e.Args) > 0 {
		id = util.CleanArg(e.Args[0])
	}
	if id == "" {
		s.deps.Fleet.Session().SetActive(nil)
		return "ok", nil
	}
	t, err := s.deps.Fleet.Get(id)
	if err != nil {
		return nil, err
	}
	s.deps.Fleet.Session().SetActive(t)
	return "ok", nil
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := util.ParseFloatArg(a)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// handleLevers: train id, throttle, gear, airBrake, steamBrake.
func (s *Service) handleLevers(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 5); err != nil {
		return nil, err
	}
	t, err := s.deps.Fleet.Get(util.CleanArg(e.Args[0]))
	if err != nil {
		return nil, err
	}
	v, err := parseFloats(e.Args[1:5])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Command, err)
	}
	t.SetLevers(control.LeverValues{Throttle: v[0], Gear: v[1], AirBrake: v[2], SteamBrake: v[3]})
	return "ok", nil
}

// handleArcade: train id, accelerate, brake, handbrake, sprint.
func (s *Service) handleArcade(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 5); err != nil {
		return nil, err
	}
	t, err := s.deps.Fleet.Get(util.CleanArg(e.Args[0]))
	if err != nil {
		return nil, err
	}
	v, err := parseFloats(e.Args[1:5])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Command, err)
	}
	t.Arcade(core.ArcadeSample{Accelerate: v[0], Brake: v[1], Handbrake: v[2], Sprint: v[3]})
	return "ok", nil
}

// handleTick: train id, dt, velocity, forward "x,y,z", position "x,y,z".
func (s *Service) handleTick(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 5); err != nil {
		return nil, err
	}
	id := util.CleanArg(e.Args[0])
	v, err := parseFloats(e.Args[1:3])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Command, err)
	}
	forward, err := core.ParseVector3(util.CleanArg(e.Args[3]))
	if err != nil {
		return nil, fmt.Errorf("%s: forward: %w", e.Command, err)
	}
	position, err := core.ParseVector3(util.CleanArg(e.Args[4]))
	if err != nil {
		return nil, fmt.Errorf("%s: position: %w", e.Command, err)
	}

	reply, err := s.Tick(id, v[0], host.Sample{Velocity: v[1], Forward: forward, Position: position})
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("marshal tick reply: %w", err)
	}
	return string(data), nil
}

// Tick advances one train and collects the frame for the host. A faulted
// tick still returns the frame; the fault is only logged.
func (s *Service) Tick(id string, dt float64, sample host.Sample) (TickReply, error) {
	report, err := s.deps.Fleet.Tick(id, dt, sample)
	if errors.Is(err, train.ErrUnknownTrain) {
		return TickReply{}, err
	}
	if err != nil {
		s.writeLog(":TICK:", err.Error(), "WARN")
	}

	if s.deps.Recorder != nil {
		if t, gerr := s.deps.Fleet.Get(id); gerr == nil {
			s.deps.Recorder.Observe(t)
		}
	}

	reply := TickReply{Speed: report.Speed, Pose: report.Pose, Events: report.Events}
	if f := s.frame(id); f != nil {
		reply.Props = f.Commands()
	}
	return reply, nil
}

// handleTouch: train id, other id, isTrain, other speed, head id.
func (s *Service) handleTouch(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 5); err != nil {
		return nil, err
	}
	id := util.CleanArg(e.Args[0])
	other := util.CleanArg(e.Args[1])
	isTrain, err := util.ParseBoolArg(e.Args[2])
	if err != nil {
		return nil, fmt.Errorf("%s: isTrain: %w", e.Command, err)
	}
	speed, err := util.ParseFloatArg(e.Args[3])
	if err != nil {
		return nil, fmt.Errorf("%s: speed: %w", e.Command, err)
	}

	t, err := s.deps.Fleet.Get(id)
	if err != nil {
		return nil, err
	}
	touch := collision.Touch{IsTrain: isTrain, Speed: speed, HeadID: util.CleanArg(e.Args[4])}
	if !t.CanCouple(touch) {
		return ReplyIgnore, nil
	}
	if err := s.deps.Fleet.Couple(id, other); err != nil {
		s.writeLog(e.Command, err.Error(), "WARN")
		return ReplyIgnore, nil
	}
	return ReplyCouple, nil
}

func (s *Service) handleDerail(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 1); err != nil {
		return nil, err
	}
	t, err := s.deps.Fleet.Get(util.CleanArg(e.Args[0]))
	if err != nil {
		return nil, err
	}
	t.Derail()
	return "ok", nil
}

func (s *Service) handleState(e dispatcher.Event) (any, error) {
	if err := expectArgs(e.Command, e.Args, 1); err != nil {
		return nil, err
	}
	t, err := s.deps.Fleet.Get(util.CleanArg(e.Args[0]))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(t.State())
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}

func (s *Service) setFrame(id string, f *host.Frame) {
	s.mu.Lock()
	s.frames[id] = f
	s.mu.Unlock()
}

func (s *Service) frame(id string) *host.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[id]
}
