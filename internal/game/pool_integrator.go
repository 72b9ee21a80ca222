package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// slipEpsilon is the contact slip speed under which a ball counts as rolling.
const slipEpsilon = 1e-9

// Integrate advances one ball by dt seconds. It is a pure function of its
// inputs, so identical inputs always produce identical outputs.
//
// The ball moves with its current velocity, then cloth friction acts: while
// the contact point slips, a constant sliding force opposes the slip and
// spins the ball up or down until it rolls; a rolling ball loses speed at the
// rolling rate and keeps its spin locked to its velocity. Side spin decays
// separately. Anything slower than StopSpeed is snapped to zero.
func Integrate(b Ball, dt float64, p Params) Ball {
	if !b.Active || !(dt > 0) {
		return b
	}

	b.Position = b.Position.Plus(b.Velocity.Times(dt))
	b.Orientation = rotateOrientation(b.Orientation, b.AngularVelocity, dt)

	remaining := dt
	rolling := true

	slip := slipVelocity(b)
	if s := slip.Magnitude(); s > slipEpsilon {
		rolling = false
		if p.SlidingFriction > 0 {
			// The slip shrinks at 7/2 of the linear deceleration for a solid sphere.
			tSlide := s / (3.5 * p.SlidingFriction)
			tau := math.Min(remaining, tSlide)
			u := slip.Times(1 / s)

			b.Velocity = b.Velocity.Minus(u.Times(p.SlidingFriction * tau))
			k := 2.5 * p.SlidingFriction / b.Radius * tau
			b.AngularVelocity[0] -= u.Y * k
			b.AngularVelocity[1] += u.X * k

			remaining -= tau
			if tau >= tSlide {
				rolling = true
				remaining = math.Max(0, remaining)
			}
		}
	}

	if rolling {
		speed := b.Velocity.Magnitude() - p.RollingFriction*remaining
		if speed <= 0 {
			b.Velocity = Vec2{}
		} else {
			b.Velocity = b.Velocity.Normalize().Times(speed)
		}
		b.AngularVelocity[0], b.AngularVelocity[1] = rollingSpin(b.Velocity, b.Radius)
	}

	b.AngularVelocity[2] = clampTowardZero(b.AngularVelocity[2], p.SpinFriction*dt)

	if b.Velocity.Magnitude() < p.StopSpeed {
		b.Velocity = Vec2{}
	}
	if math.Hypot(b.AngularVelocity[0], b.AngularVelocity[1])*b.Radius < p.StopSpeed {
		b.AngularVelocity[0], b.AngularVelocity[1] = 0, 0
	}
	if math.Abs(b.AngularVelocity[2])*b.Radius < p.StopSpeed {
		b.AngularVelocity[2] = 0
	}

	return b
}

// rotateOrientation turns q by |w|*dt about w.
func rotateOrientation(q mgl64.Quat, w mgl64.Vec3, dt float64) mgl64.Quat {
	rate := w.Len()
	if rate == 0 {
		return q
	}
	delta := mgl64.QuatRotate(rate*dt, w.Mul(1/rate))
	return delta.Mul(q).Normalize()
}
