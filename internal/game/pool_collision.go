package game

// degenerateNormal is used when two ball centres coincide.
var degenerateNormal = Vec2{X: 0, Y: 1}

// BallContact is an overlap between balls A and B (A < B). Normal points from A to B.
type BallContact struct {
	A          int     `json:"a"`
	B          int     `json:"b"`
	Normal     Vec2    `json:"normal"`
	Depth      float64 `json:"depth"`
	Degenerate bool    `json:"degenerate,omitempty"`
}

// CushionContact is a ball pressing into a cushion. Normal points into play.
type CushionContact struct {
	Ball    int     `json:"ball"`
	Cushion int     `json:"cushion"`
	Normal  Vec2    `json:"normal"`
	Depth   float64 `json:"depth"`
}

// PocketEvent reports a ball whose centre entered a pocket's capture radius.
type PocketEvent struct {
	Ball   int `json:"ball"`
	Pocket int `json:"pocket"`
}

// Contacts is everything Detect found in one pass.
type Contacts struct {
	Balls    []BallContact
	Cushions []CushionContact
	Pockets  []PocketEvent
}

// Empty reports whether nothing needs resolving.
func (c Contacts) Empty() bool {
	return len(c.Balls) == 0 && len(c.Cushions) == 0 && len(c.Pockets) == 0
}

// Detect scans the balls against each other and the table. Pockets are checked
// first; a ball caught by a pocket takes no further part in the pass. Ball
// pairs are reported in ascending (A, B) order.
func Detect(balls []Ball, table *Table) Contacts {
	var c Contacts
	pocketed := make([]bool, len(balls))
	pockets := table.pockets

	for i := range balls {
		if !balls[i].Active {
			continue
		}
		for _, p := range pockets {
			if balls[i].Position.DistanceTo(p.Position) < p.Radius {
				c.Pockets = append(c.Pockets, PocketEvent{Ball: i, Pocket: p.ID})
				pocketed[i] = true
				break
			}
		}
	}

	live := func(i int) bool {
		return balls[i].Active && !pocketed[i]
	}

	for i := 0; i < len(balls); i++ {
		if !live(i) {
			continue
		}
		for j := i + 1; j < len(balls); j++ {
			if !live(j) {
				continue
			}
			if contact, ok := detectBallBall(balls[i], balls[j]); ok {
				contact.A, contact.B = i, j
				c.Balls = append(c.Balls, contact)
			}
		}
	}

	for i := range balls {
		if !live(i) {
			continue
		}
		for li := range table.lines {
			if contact, ok := detectBallCushion(balls[i], &table.lines[li]); ok {
				contact.Ball, contact.Cushion = i, li
				c.Cushions = append(c.Cushions, contact)
			}
		}
	}

	return c
}

func detectBallBall(a, b Ball) (BallContact, bool) {
	minDist := a.Radius + b.Radius
	delta := b.Position.Minus(a.Position)
	dist := delta.Magnitude()
	if dist >= minDist {
		return BallContact{}, false
	}
	if dist == 0 {
		return BallContact{Normal: degenerateNormal, Depth: minDist, Degenerate: true}, true
	}
	return BallContact{Normal: delta.Times(1 / dist), Depth: minDist - dist}, true
}

// detectBallCushion measures the ball against the cushion face clamped to the
// segment. A centre behind the face (a ball that tunnelled through) is always
// reported, with the depth needed to bring it back in front.
func detectBallCushion(b Ball, line *CushionLine) (CushionContact, bool) {
	signed := b.Position.Minus(line.P1).Dot(line.Normal)
	closest, t := closestPointOnSegment(line.P1, line.P2, b.Position)

	if (t >= 0 && t <= 1) || signed < 0 {
		if signed >= b.Radius {
			return CushionContact{}, false
		}
		return CushionContact{Normal: line.Normal, Depth: b.Radius - signed}, true
	}

	// Beyond the end of the segment and in front of it: test the end point.
	delta := b.Position.Minus(closest)
	dist := delta.Magnitude()
	if dist >= b.Radius {
		return CushionContact{}, false
	}
	if dist == 0 {
		return CushionContact{Normal: line.Normal, Depth: b.Radius}, true
	}
	return CushionContact{Normal: delta.Times(1 / dist), Depth: b.Radius - dist}, true
}
