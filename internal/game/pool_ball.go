package game

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BallKind classifies a ball by its number.
type BallKind string

const (
	KindCue    BallKind = "CUE"
	KindSolid  BallKind = "SOLID"
	KindEight  BallKind = "EIGHT"
	KindStripe BallKind = "STRIPE"
)

// KindOf returns the classification for a ball number. Numbers outside 0..15
// return an empty kind.
func KindOf(number int) BallKind {
	switch {
	case number == CueBall:
		return KindCue
	case number >= 1 && number <= 7:
		return KindSolid
	case number == EightBall:
		return KindEight
	case number >= 9 && number < NumBalls:
		return KindStripe
	}
	return ""
}

// Ball is the kinematic state of one pool ball.
//
// AngularVelocity is in rad/s. Its X and Y components turn the ball about
// horizontal axes (roll, screw); Z is side spin.
type Ball struct {
	Number          int        `json:"number"`
	Kind            BallKind   `json:"kind"`
	Position        Vec2       `json:"position"`
	Orientation     mgl64.Quat `json:"orientation"`
	Velocity        Vec2       `json:"velocity"`
	AngularVelocity mgl64.Vec3 `json:"angular_velocity"`
	Radius          float64    `json:"radius"`
	Mass            float64    `json:"mass"`
	Active          bool       `json:"active"`
}

// newRackedBall creates a stationary ball. Stripes start rotated a quarter
// turn so their band faces the camera.
func newRackedBall(number int, pos Vec2, p Params) Ball {
	orientation := mgl64.QuatIdent()
	if KindOf(number) == KindStripe {
		orientation = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})
	}
	return Ball{
		Number:      number,
		Kind:        KindOf(number),
		Position:    pos,
		Orientation: orientation,
		Radius:      p.BallRadius,
		Mass:        p.BallMass,
		Active:      true,
	}
}

// IsSolid reports whether the ball is rendered without a stripe (cue, 1-8).
func (b Ball) IsSolid() bool {
	return b.Kind != KindStripe
}

// Speed returns the linear speed.
func (b Ball) Speed() float64 {
	return b.Velocity.Magnitude()
}

// AtRest reports whether both linear and surface spin speed are under the threshold.
func (b Ball) AtRest(stopSpeed float64) bool {
	return b.Speed() < stopSpeed && b.AngularVelocity.Len()*b.Radius < stopSpeed
}

// KineticEnergy returns translational plus rotational energy in joules.
func (b Ball) KineticEnergy() float64 {
	if !b.Active {
		return 0
	}
	inertia := 0.4 * b.Mass * b.Radius * b.Radius
	w := b.AngularVelocity
	return 0.5*b.Mass*b.Velocity.MagnitudeSquared() + 0.5*inertia*w.Dot(w)
}

func (b *Ball) stop() {
	b.Velocity = Vec2{}
	b.AngularVelocity = mgl64.Vec3{}
}

// rollingSpin returns the horizontal-axis spin for rolling without slipping.
func rollingSpin(v Vec2, radius float64) (float64, float64) {
	return -v.Y / radius, v.X / radius
}

// slipVelocity returns the velocity of the contact point against the cloth.
func slipVelocity(b Ball) Vec2 {
	w := b.AngularVelocity
	return Vec2{
		X: b.Velocity.X - b.Radius*w[1],
		Y: b.Velocity.Y + b.Radius*w[0],
	}
}

// TotalKineticEnergy sums the energy of every active ball.
func TotalKineticEnergy(balls []Ball) float64 {
	var e float64
	for _, b := range balls {
		e += b.KineticEnergy()
	}
	return e
}
