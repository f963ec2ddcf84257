package linkage

import (
	"math"

	"github.com/RogersSierra/extension/internal/util"
)

// Pose is the solved transform set for one driving wheel angle. Offsets are in
// metres, angles in degrees from the chassis horizontal.
type Pose struct {
	Angle float64 `json:"angle"`
	// CouplingRodOffset and ConnectingRodOffset follow the crank pin circle.
	CouplingRodOffset     Point   `json:"couplingRodOffset"`
	ConnectingRodOffset   Point   `json:"connectingRodOffset"`
	ConnectingRodAngle    float64 `json:"connectingRodAngle"`
	PistonOffset          float64 `json:"pistonOffset"`
	CombinationLeverAngle float64 `json:"combinationLeverAngle"`
	RadiusRodAngle        float64 `json:"radiusRodAngle"`
	ValveRodAngle         float64 `json:"valveRodAngle"`
	ValveTravel           float64 `json:"valveTravel"`
}

func (p Pose) finite() bool {
	for _, v := range []float64{
		p.CouplingRodOffset.Y, p.CouplingRodOffset.Z, p.ConnectingRodAngle, p.PistonOffset,
		p.CombinationLeverAngle, p.RadiusRodAngle, p.ValveRodAngle, p.ValveTravel,
	} {
		if !util.IsFinite(v) {
			return false
		}
	}
	return true
}

// LeverAngle is the combination lever swing: a linear ramp down to -swing over the
// first half turn and back up over the second.
func LeverAngle(angle, swing float64) float64 {
	if angle < 180 {
		return util.Remap(angle, 0, 180, 0, -swing)
	}
	return util.Remap(angle, 180, 360, -swing, 0)
}

// rodAngle solves a fixed-length rod whose far end is held at height targetZ.
func rodAngle(fromZ, targetZ, length float64) float64 {
	return 90 - util.SafeAcosDeg((targetZ-fromZ)/length)
}

func sideOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

// Solve computes the pose for a driving wheel angle in degrees.
func (g Geometry) Solve(angle float64) Pose {
	s, c := math.Sincos(util.Deg2Rad(angle))
	pin := Point{Y: g.CrankRadius * c, Z: g.CrankRadius * s}

	connAngle := rodAngle(pin.Z, g.Piston.Z, g.ConnectingRodLength)
	crosshead := pin.Y + g.ConnectingRodLength*math.Cos(util.Deg2Rad(connAngle))

	lever := LeverAngle(angle, g.LeverSwing)
	mount := g.LeverPivot
	rotated := g.LeverMount.Rotate(lever)
	mount.Y += rotated.Y
	mount.Z += rotated.Z

	radiusAngle := rodAngle(mount.Z, g.Link.Z, g.RadiusRodLength)
	rs, rc := math.Sincos(util.Deg2Rad(radiusAngle))
	end := Point{
		Y: mount.Y + sideOrOne(g.RadiusRodSide)*g.RadiusRodLength*rc,
		Z: mount.Z + g.RadiusRodLength*rs,
	}

	valveAngle := rodAngle(end.Z, g.Valve.Z, g.ValveRodLength)
	valveY := end.Y + sideOrOne(g.ValveRodSide)*g.ValveRodLength*math.Cos(util.Deg2Rad(valveAngle))

	return Pose{
		Angle:                 angle,
		CouplingRodOffset:     pin,
		ConnectingRodOffset:   pin,
		ConnectingRodAngle:    connAngle,
		PistonOffset:          crosshead - g.Piston.Y,
		CombinationLeverAngle: lever,
		RadiusRodAngle:        radiusAngle,
		ValveRodAngle:         valveAngle,
		ValveTravel:           valveY - g.Valve.Y,
	}
}

// Animator drives the linkage from the driving wheel angle and reports piston
// strokes. Not safe for concurrent use.
type Animator struct {
	geom     Geometry
	onStroke func(quadrant int)

	last Pose
	// pos is the unwrapped wheel angle of the last tick.
	pos     float64
	started bool
	frozen  bool
}

// NewAnimator validates the geometry and creates an animator at angle zero.
// onStroke may be nil.
func NewAnimator(g Geometry, onStroke func(quadrant int)) (*Animator, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	a := &Animator{geom: g, onStroke: onStroke}
	a.Reset()
	return a, nil
}

// Geometry returns the chain dimensions.
func (a *Animator) Geometry() Geometry {
	return a.geom
}

// Tick solves the pose for the driving wheel angle. The rotation since the
// last tick is taken as forward unless it is three quadrants or more, which
// reads as a step backwards. Callers that know the signed step use Advance.
func (a *Animator) Tick(angle float64) Pose {
	if a.frozen || !util.IsFinite(angle) {
		return a.last
	}
	step := util.Wrap360(angle - util.Wrap360(a.pos))
	if step >= 270 {
		step -= 360
	}
	return a.Advance(angle, step)
}

// Advance solves the pose for angle after the wheel turned step degrees
// (signed, unwrapped) since the last tick. A frozen animator, a non-finite
// angle or a non-finite solution all yield the previous pose.
func (a *Animator) Advance(angle, step float64) Pose {
	if a.frozen || !util.IsFinite(angle) {
		return a.last
	}
	angle = util.Wrap360(angle)
	pose := a.geom.Solve(angle)
	if !pose.finite() {
		return a.last
	}
	a.strokes(angle, util.Sanitize(step, 0))
	a.last = pose
	return pose
}

// strokes fires once for every quadrant boundary crossed by step. pos is kept
// unwrapped and snapped onto angle so rounding cannot drift the latch.
func (a *Animator) strokes(angle, step float64) {
	if !a.started {
		a.pos = angle
		a.started = true
		return
	}
	next := a.pos + step
	next = angle + 360*math.Round((next-angle)/360)

	from := int(math.Floor(a.pos / 90))
	to := int(math.Floor(next / 90))
	for i := from + 1; i <= to; i++ {
		a.fire(quadrant(i))
	}
	for i := from - 1; i >= to; i-- {
		a.fire(quadrant(i))
	}
	a.pos = next
}

func quadrant(i int) int {
	return ((i % 4) + 4) % 4
}

func (a *Animator) fire(q int) {
	if a.onStroke != nil {
		a.onStroke(q)
	}
}

// Pose returns the last solved pose.
func (a *Animator) Pose() Pose {
	return a.last
}

// Freeze stops all further updates; the last pose is held.
func (a *Animator) Freeze() {
	a.frozen = true
}

// Frozen reports whether the animator has been frozen.
func (a *Animator) Frozen() bool {
	return a.frozen
}

// Reset returns to the rest pose and clears the stroke latch.
func (a *Animator) Reset() {
	a.last = a.geom.Solve(0)
	a.pos = 0
	a.started = false
	a.frozen = false
}
