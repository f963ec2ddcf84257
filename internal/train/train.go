// Package train wires the locomotive subsystems into one per-frame pipeline and
// manages the fleet of live locomotives.
package train

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/RogersSierra/extension/internal/boiler"
	"github.com/RogersSierra/extension/internal/brake"
	"github.com/RogersSierra/extension/internal/collision"
	"github.com/RogersSierra/extension/internal/control"
	"github.com/RogersSierra/extension/internal/events"
	"github.com/RogersSierra/extension/internal/host"
	"github.com/RogersSierra/extension/internal/linkage"
	"github.com/RogersSierra/extension/internal/props"
	"github.com/RogersSierra/extension/internal/speed"
	"github.com/RogersSierra/extension/internal/util"
	"github.com/RogersSierra/extension/internal/wheel"
	"github.com/RogersSierra/extension/pkg/core"
)

// ErrDisposed is returned when operating on a disposed train.
var ErrDisposed = errors.New("train disposed")

// Prop names registered by every locomotive.
const (
	PropCouplingRod      = "coupling_rod"
	PropConnectingRod    = "connecting_rod"
	PropPiston           = "piston"
	PropCombinationLever = "combination_lever"
	PropRadiusRod        = "radius_rod"
	PropValveRod         = "valve_rod"
	PropAirbrakeMain     = "airbrake_main"
	PropAirbrakeLever    = "airbrake_lever"
)

// drivetrainProps fall free on a derailment; wheels and brake rigging stay on.
var drivetrainProps = []string{
	PropCouplingRod, PropConnectingRod, PropPiston,
	PropCombinationLever, PropRadiusRod, PropValveRod,
}

// brakeShoes are the bones the brake shoe props hang from.
var brakeShoes = []string{"brake_1", "brake_2", "brake_3"}

// Deps are the host collaborators of one locomotive.
type Deps struct {
	Vehicle  host.Vehicle
	Skeleton host.Skeleton
	// Props may be nil when nothing is rendered.
	Props  host.PropFactory
	Bus    *events.Bus
	Logger *slog.Logger
}

// Options describe the locomotive being built.
type Options struct {
	ID        string
	Model     string
	Wheels    wheel.Diameters
	Recovered bool
}

// Train is one simulated locomotive. All methods must be called from the tick
// goroutine; Fleet serializes access.
type Train struct {
	id        string
	model     string
	recovered bool
	cfg       Config

	vehicle host.Vehicle
	bus     *events.Bus
	logger  *slog.Logger

	control    *control.Adapter
	boiler     *boiler.Boiler
	brake      *brake.Brake
	brakeEdges brake.EdgeDetector
	speed      *speed.Model
	wheels     *wheel.Set
	linkage    *linkage.Animator
	collision  *collision.Policy
	props      *props.Registry

	simTime  float64
	position core.Vector3
	moving   bool
	slipping bool
	disposed bool
	pending  []core.Event
}

// New builds a locomotive. Missing bones or bad wheel sizes fail the whole
// construction; nothing is left half attached.
func New(opts Options, deps Deps, cfg Config) (*Train, error) {
	if opts.ID == "" {
		return nil, errors.New("train id is required")
	}
	if deps.Vehicle == nil || deps.Skeleton == nil {
		return nil, errors.New("vehicle and skeleton are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}

	wheels, err := wheel.NewSet(opts.Wheels)
	if err != nil {
		return nil, fmt.Errorf("building wheels: %w", err)
	}
	geom, err := linkage.GeometryFromSkeleton(deps.Skeleton, cfg.Linkage)
	if err != nil {
		return nil, fmt.Errorf("reading linkage geometry: %w", err)
	}

	t := &Train{
		id:        opts.ID,
		model:     opts.Model,
		recovered: opts.Recovered,
		cfg:       cfg,
		vehicle:   deps.Vehicle,
		bus:       bus,
		logger:    logger.With("train", opts.ID),
		control:   control.NewAdapter(),
		boiler:    boiler.New(cfg.Boiler),
		brake:     brake.New(),
		speed:     speed.New(cfg.Speed),
		wheels:    wheels,
		collision: collision.New(cfg.Collision),
		props:     props.NewRegistry(),
	}
	t.linkage, err = linkage.NewAnimator(geom, t.onPistonStroke)
	if err != nil {
		return nil, fmt.Errorf("building linkage: %w", err)
	}

	if deps.Props != nil {
		if err := t.attachProps(deps.Props); err != nil {
			if derr := t.props.Dispose(); derr != nil {
				t.logger.Warn("failed to clean up props", "error", derr)
			}
			return nil, fmt.Errorf("attaching props: %w", err)
		}
	}
	return t, nil
}

func (t *Train) attachProps(f host.PropFactory) error {
	type attachment struct{ name, bone string }
	list := []attachment{
		{PropCouplingRod, linkage.BoneDriveWheel},
		{PropConnectingRod, linkage.BoneDriveWheel},
		{PropPiston, linkage.BonePiston},
		{PropCombinationLever, linkage.BoneCombinationLever},
		{PropRadiusRod, linkage.BoneRadiusRodMount},
		{PropValveRod, linkage.BoneExpansionLink},
		{PropAirbrakeMain, "chassis"},
		{PropAirbrakeLever, "airbrake_lever"},
	}
	for _, bone := range brakeShoes {
		list = append(list, attachment{bone, bone})
	}
	for _, g := range t.wheelGroups() {
		for i := 1; i <= g.group.Count; i++ {
			name := fmt.Sprintf("%s%d", g.bonePrefix, i)
			list = append(list, attachment{name, name})
		}
	}

	for _, a := range list {
		if _, err := t.props.Attach(f, a.name, a.bone); err != nil {
			return err
		}
	}
	return nil
}

type wheelGroup struct {
	bonePrefix string
	group      *wheel.Group
}

func (t *Train) wheelGroups() []wheelGroup {
	return []wheelGroup{
		{"fwheel_", t.wheels.Front},
		{"dwheel_", t.wheels.Driving},
		{"twheel_", t.wheels.Tender},
	}
}

// ID returns the train's identity.
func (t *Train) ID() string {
	return t.id
}

// Handle returns the host vehicle handle.
func (t *Train) Handle() string {
	return t.vehicle.Handle()
}

// Speed returns the current signed speed in m/s.
func (t *Train) Speed() float64 {
	return t.speed.Speed()
}

// Derailed reports whether the train has left the rails.
func (t *Train) Derailed() bool {
	return t.collision.Derailed()
}

// Disposed reports whether Dispose has run.
func (t *Train) Disposed() bool {
	return t.disposed
}

// SetControls applies a full control vector. Non-finite values keep the last
// known good setting.
func (t *Train) SetControls(c core.Controls) core.Controls {
	return t.control.Apply(c)
}

// SetLevers applies raw cab lever travel.
func (t *Train) SetLevers(v control.LeverValues) core.Controls {
	return t.control.FromLevers(v)
}

// Arcade applies a poll of the simplified driving keys.
func (t *Train) Arcade(s core.ArcadeSample) core.Controls {
	c, _ := t.control.FromArcade(s, t.speed.Speed())
	return c
}

// SetPressure overrides the boiler pressure, e.g. to start a scenario warm.
func (t *Train) SetPressure(p float64) {
	t.boiler.SetPressure(p)
}

// SetSpeed overrides the train speed.
func (t *Train) SetSpeed(v float64) {
	t.speed.SetSpeed(v)
}

// Tick runs one frame of the locomotive pipeline. It never fails: bad input is
// sanitized and a disposed train does nothing.
func (t *Train) Tick(dt float64, s host.Sample) Report {
	if t.disposed {
		return Report{}
	}
	dt = util.Clamp(util.Sanitize(dt, 0), 0, t.cfg.MaxFrameTime)
	t.simTime += dt
	t.pending = nil

	c := t.control.Controls()
	derailed := t.collision.Derailed()

	t.boiler.Tick(c.Throttle, dt)
	if t.boiler.ValveOpened() {
		t.emit(core.Event{Kind: core.EventSafetyValveOpened})
	}

	br := t.brake.Tick(c.AirBrake, c.SteamBrake)

	in := speed.Input{
		Throttle:           c.Throttle,
		Gear:               c.Gear,
		AirBrakeForce:      br.AirBrakeForce,
		SteamBrakeEngaged:  br.SteamBrakeEngaged,
		NormalizedPressure: t.boiler.Normalized(),
		HostVelocity:       s.Velocity,
		Dt:                 dt,
	}
	if derailed {
		in.Throttle = 0
	}
	out := t.speed.Tick(in)
	if out.Discarded {
		t.logger.Debug("discarded non-finite speed step", "dt", dt)
	}

	if !derailed {
		t.vehicle.SetTrainSpeed(out.Speed)
		t.wheels.Tick(out.DriveWheelSpeed, out.FrontWheelSpeed, dt)
	}

	pose := t.linkage.Advance(t.wheels.DrivingAngle(), t.wheels.DrivingStep())
	t.applyPose(pose, br.AirBrakeForce)

	if s.Position.IsFinite() {
		t.position = s.Position
	}
	if t.collision.Tick(s.Forward, out.Speed) {
		t.derail("heading change")
	}

	t.deriveEvents(c, br, out)

	return Report{Speed: out.Speed, Pose: pose, Events: t.pending}
}

func (t *Train) deriveEvents(c core.Controls, br brake.State, out speed.Output) {
	switch t.brakeEdges.Update(br.SteamBrakeEngaged, out.Speed) {
	case brake.EdgeStarted:
		t.emit(core.Event{Kind: core.EventStartedBraking})
	case brake.EdgeStoppedAfterBraking:
		t.emit(core.Event{Kind: core.EventStoppedAfterBraking})
	}

	moving := math.Abs(out.Speed) > t.cfg.StartSpeed
	if moving && !t.moving && c.Throttle > 0 {
		t.emit(core.Event{Kind: core.EventTrainStarted})
	}
	t.moving = moving

	slipping := t.effects().WheelSlip
	if slipping && !t.slipping {
		t.emit(core.Event{Kind: core.EventWheelSlipStarted})
	}
	t.slipping = slipping
}

func (t *Train) onPistonStroke(quadrant int) {
	t.emit(core.Event{Kind: core.EventPistonStroke, Quadrant: quadrant})
}

func (t *Train) emit(e core.Event) {
	e.TrainID = t.id
	e.SimTime = t.simTime
	t.pending = append(t.pending, e)
	t.bus.Publish(e)
}

func (t *Train) applyPose(p linkage.Pose, airBrake float64) {
	if t.props.Len() == 0 {
		return
	}
	set := func(name string, offset, rotation *core.Vector3) {
		prop, ok := t.props.Get(name)
		if !ok {
			return
		}
		if offset != nil {
			prop.SetOffset(*offset)
		}
		if rotation != nil {
			prop.SetRotation(*rotation)
		}
	}
	pitch := func(deg float64) *core.Vector3 { return &core.Vector3{X: deg} }
	plane := func(pt linkage.Point) *core.Vector3 { return &core.Vector3{Y: pt.Y, Z: pt.Z} }

	if !t.linkage.Frozen() {
		set(PropCouplingRod, plane(p.CouplingRodOffset), nil)
		set(PropConnectingRod, plane(p.ConnectingRodOffset), pitch(p.ConnectingRodAngle))
		set(PropPiston, &core.Vector3{Y: p.PistonOffset}, nil)
		set(PropCombinationLever, nil, pitch(p.CombinationLeverAngle))
		set(PropRadiusRod, nil, pitch(p.RadiusRodAngle))
		set(PropValveRod, &core.Vector3{Y: p.ValveTravel}, pitch(p.ValveRodAngle))

		for _, g := range t.wheelGroups() {
			for i := 1; i <= g.group.Count; i++ {
				set(fmt.Sprintf("%s%d", g.bonePrefix, i), nil, pitch(g.group.Angle()))
			}
		}
	}

	rig := brake.Rigging(airBrake)
	set(PropAirbrakeMain, &core.Vector3{Y: rig.MainOffset}, nil)
	set(PropAirbrakeLever, nil, pitch(rig.LeverAngle))
	for _, name := range brakeShoes {
		set(name, nil, pitch(rig.ShoeAngle))
	}
}

// Derail takes the train off the rails: the linkage freezes, drivetrain props
// fall free and coupling is disabled. Calling it again is a no-op.
func (t *Train) Derail() {
	if t.disposed || t.collision.Derailed() {
		return
	}
	t.collision.ForceDerail()
	t.derail("host request")
}

func (t *Train) derail(reason string) {
	t.linkage.Freeze()
	t.props.Detach(drivetrainProps...)
	t.logger.Info("train derailed", "reason", reason, "speed", t.speed.Speed())
	t.emit(core.Event{Kind: core.EventDerailed})
}

// CanCouple reports whether the touching entity should be merged into this
// train's consist.
func (t *Train) CanCouple(other collision.Touch) bool {
	if t.disposed {
		return false
	}
	return t.collision.OnNearbyVehicleTouch(t.id, t.speed.Speed(), other)
}

// Freeze holds the current linkage pose, used after a tick fault.
func (t *Train) Freeze() {
	t.linkage.Freeze()
}

// Dispose deletes every prop and marks the train dead. It is safe to call more
// than once.
func (t *Train) Dispose() error {
	if t.disposed {
		return nil
	}
	t.disposed = true
	err := t.props.Dispose()
	t.emit(core.Event{Kind: core.EventDisposed})
	if err != nil {
		return fmt.Errorf("disposing props: %w", err)
	}
	return nil
}

// Info returns the identity record of the train.
func (t *Train) Info() core.TrainInfo {
	return core.TrainInfo{
		ID:         t.id,
		Handle:     t.vehicle.Handle(),
		Model:      t.model,
		Recovered:  t.recovered,
		WheelCount: t.wheels.Front.Count + t.wheels.Driving.Count + t.wheels.Tender.Count,
	}
}

// Sample returns the telemetry sample of the current state.
func (t *Train) Sample() core.TrainSample {
	out := t.speed.Last()
	c := t.control.Controls()
	return core.TrainSample{
		TrainID:       t.id,
		SimTime:       t.simTime,
		Position:      t.position,
		Speed:         out.Speed,
		Pressure:      t.boiler.Pressure(),
		Throttle:      c.Throttle,
		Gear:          c.Gear,
		AirBrake:      t.brake.State().AirBrakeForce,
		SteamBrake:    t.brake.State().SteamBrakeEngaged,
		DriveWheelRPM: t.wheels.Driving.RPM(out.DriveWheelSpeed),
		WheelTraction: out.WheelTraction,
		Derailed:      t.collision.Derailed(),
	}
}

// State returns a snapshot of the train.
func (t *Train) State() State {
	out := t.speed.Last()
	c := t.control.Controls()
	br := t.brake.State()
	return State{
		ID:              t.id,
		Handle:          t.vehicle.Handle(),
		Model:           t.model,
		Recovered:       t.recovered,
		SimTime:         t.simTime,
		Speed:           t.speed.Speed(),
		Pressure:        t.boiler.Pressure(),
		Controls:        c,
		AirBrakeForce:   br.AirBrakeForce,
		SteamBrake:      br.SteamBrakeEngaged,
		Derailed:        t.collision.Derailed(),
		Disposed:        t.disposed,
		DriveWheelAngle: t.wheels.DrivingAngle(),
		DriveWheelRPM:   t.wheels.Driving.RPM(out.DriveWheelSpeed),
		WheelTraction:   out.WheelTraction,
		Position:        t.position,
		Pose:            t.linkage.Pose(),
		Rigging:         brake.Rigging(br.AirBrakeForce),
		Effects:         t.effects(),
		Gauges:          gauges(t.boiler.Pressure(), t.cfg.Boiler.MaxPressure, t.speed.Speed(), c),
	}
}
