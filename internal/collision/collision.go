// Package collision decides when a locomotive leaves the rails and when it
// couples to a touching train.
package collision

import (
	"math"
	"math/rand/v2"

	"github.com/RogersSierra/extension/internal/util"
	"github.com/RogersSierra/extension/pkg/core"
)

// Config holds the derail and coupling thresholds.
type Config struct {
	DerailMinSpeed       float64 `json:"derailMinSpeed"`
	DerailAngleThreshold float64 `json:"derailAngleThreshold"` // degrees per tick
	DerailRollThreshold  float64 `json:"derailRollThreshold"`  // derail when draw >= threshold
	CoupleSpeedTolerance float64 `json:"coupleSpeedTolerance"`
	Seed                 uint64  `json:"seed"`
}

// DefaultConfig returns the tuned thresholds.
func DefaultConfig() Config {
	return Config{
		DerailMinSpeed:       13,
		DerailAngleThreshold: 0.5,
		DerailRollThreshold:  0.3,
		CoupleSpeedTolerance: 3,
		Seed:                 1,
	}
}

// Touch describes another entity touching the locomotive.
type Touch struct {
	IsTrain bool
	Speed   float64
	HeadID  string
}

// Policy evaluates the derail and coupling rules for one locomotive. It is
// not safe for concurrent use.
type Policy struct {
	cfg         Config
	rng         *rand.Rand
	prevForward core.Vector3
	hasPrev     bool
	derailed    bool
}

// New creates a policy whose random draws are reproducible from cfg.Seed.
func New(cfg Config) *Policy {
	return &Policy{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Derailed reports whether the locomotive has left the rails.
func (p *Policy) Derailed() bool {
	return p.derailed
}

// ForceDerail marks the locomotive as derailed regardless of the rule.
func (p *Policy) ForceDerail() {
	p.derailed = true
}

// Reset forgets the heading history and the derailed state. The random
// stream is kept.
func (p *Policy) Reset() {
	p.prevForward = core.Vector3{}
	p.hasPrev = false
	p.derailed = false
}

// Evaluate applies the derail rule to one heading change. It returns true when
// the draw derails the train. Non-finite input never derails.
func (p *Policy) Evaluate(forward core.Vector3, speed float64, prevForward core.Vector3) bool {
	if !forward.IsFinite() || !prevForward.IsFinite() || !util.IsFinite(speed) {
		return false
	}
	if math.Abs(speed) < p.cfg.DerailMinSpeed {
		return false
	}
	if forward.AngleTo(prevForward) < p.cfg.DerailAngleThreshold {
		return false
	}
	return p.rng.Float64() >= p.cfg.DerailRollThreshold
}

// Tick evaluates the derail rule against the forward vector seen on the
// previous tick and remembers forward for the next one. It reports true only
// on the tick the train derails.
func (p *Policy) Tick(forward core.Vector3, speed float64) bool {
	if p.derailed {
		return false
	}
	prev, hasPrev := p.prevForward, p.hasPrev
	if forward.IsFinite() {
		p.prevForward, p.hasPrev = forward, true
	}
	if !hasPrev {
		return false
	}
	if p.Evaluate(forward, speed, prev) {
		p.derailed = true
		return true
	}
	return false
}

// OnNearbyVehicleTouch reports whether the touching entity should be coupled
// to the locomotive identified by selfID.
func (p *Policy) OnNearbyVehicleTouch(selfID string, speed float64, other Touch) bool {
	if p.derailed || !other.IsTrain {
		return false
	}
	if other.HeadID == "" || other.HeadID == selfID {
		return false
	}
	if !util.IsFinite(speed) || !util.IsFinite(other.Speed) {
		return false
	}
	return math.Abs(speed-other.Speed) < p.cfg.CoupleSpeedTolerance
}
