package game

import "math"

// closestPointOnSegment returns the point of segment p1-p2 nearest to c and
// the unclamped projection parameter along the segment.
func closestPointOnSegment(p1, p2, c Vec2) (Vec2, float64) {
	d := p2.Minus(p1)
	lenSq := d.MagnitudeSquared()
	if lenSq == 0 {
		return p1, 0
	}
	t := c.Minus(p1).Dot(d) / lenSq
	clamped := math.Max(0, math.Min(1, t))
	return p1.Plus(d.Times(clamped)), t
}

// clampTowardZero reduces |x| by amount without changing its sign.
func clampTowardZero(x, amount float64) float64 {
	switch {
	case x > amount:
		return x - amount
	case x < -amount:
		return x + amount
	}
	return 0
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
