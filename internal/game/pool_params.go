package game

import (
	"fmt"
	"math"
)

// Params holds the tunable physics constants for one table session.
type Params struct {
	BallRadius      float64 `json:"ball_radius"`
	BallMass        float64 `json:"ball_mass"`
	SlidingFriction float64 `json:"sliding_friction"` // deceleration while the contact point slips
	RollingFriction float64 `json:"rolling_friction"` // deceleration while rolling
	SpinFriction    float64 `json:"spin_friction"`    // decay of side spin, rad/s²
	BallRestitution float64 `json:"ball_restitution"`
	StopSpeed       float64 `json:"stop_speed"`
	MaxShotSpeed    float64 `json:"max_shot_speed"`

	Substeps          int     `json:"substeps"`
	MaxSubstepSeconds float64 `json:"max_substep_seconds"`
}

// DefaultParams returns the standard table physics.
func DefaultParams() Params {
	return Params{
		BallRadius:        BallRadius,
		BallMass:          BallMass,
		SlidingFriction:   SlidingFriction,
		RollingFriction:   RollingFriction,
		SpinFriction:      SpinFriction,
		BallRestitution:   BallRestitution,
		StopSpeed:         StopSpeed,
		MaxShotSpeed:      MaxShotSpeed,
		Substeps:          Substeps,
		MaxSubstepSeconds: MaxSubstepSeconds,
	}
}

// Validate rejects parameter sets the integrator cannot run with.
func (p Params) Validate() error {
	switch {
	case !(p.BallRadius > 0):
		return fmt.Errorf("ball radius must be positive, got %v", p.BallRadius)
	case !(p.BallMass > 0):
		return fmt.Errorf("ball mass must be positive, got %v", p.BallMass)
	case p.SlidingFriction < 0 || p.RollingFriction < 0 || p.SpinFriction < 0:
		return fmt.Errorf("friction must not be negative")
	case p.BallRestitution < 0 || p.BallRestitution > 1:
		return fmt.Errorf("ball restitution must be within [0,1], got %v", p.BallRestitution)
	case !(p.StopSpeed > 0):
		return fmt.Errorf("stop speed must be positive, got %v", p.StopSpeed)
	case !(p.MaxShotSpeed > 0):
		return fmt.Errorf("max shot speed must be positive, got %v", p.MaxShotSpeed)
	case p.Substeps < 1:
		return fmt.Errorf("substeps must be at least 1, got %d", p.Substeps)
	case p.MaxSubstepSeconds < 0:
		return fmt.Errorf("max substep must not be negative")
	}
	return nil
}

// inertia returns the moment of inertia of a solid sphere.
func (p Params) inertia() float64 {
	return 0.4 * p.BallMass * p.BallRadius * p.BallRadius
}

// substepsFor splits dt so that no sub-step is longer than MaxSubstepSeconds.
func (p Params) substepsFor(dt float64) int {
	n := p.Substeps
	if n < 1 {
		n = 1
	}
	if n >= MaxSubstepsPerTick {
		return MaxSubstepsPerTick
	}
	if p.MaxSubstepSeconds > 0 {
		// Compare as floats; a huge dt would overflow the int conversion.
		need := math.Ceil(dt / p.MaxSubstepSeconds)
		if !(need <= MaxSubstepsPerTick) {
			return MaxSubstepsPerTick
		}
		if int(need) > n {
			n = int(need)
		}
	}
	return n
}
