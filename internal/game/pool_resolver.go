package game

import "log"

// Collision event types.
const (
	EventBall    = "ball"
	EventCushion = "cushion"
	EventPocket  = "pocket"
)

// CollisionEvent records a resolved collision for rule checking and sound playback.
type CollisionEvent struct {
	Type     string  `json:"type"`      // "ball", "cushion", "pocket"
	BallID   int     `json:"ball_id"`
	TargetID int     `json:"target_id"` // ball number, cushion index or pocket ID
	Speed    float64 `json:"speed"`     // impact speed along the normal
}

// Resolve applies the contacts to balls in place and returns what happened.
//
// Pockets are handled first, then ball pairs in ascending order, then
// cushions. Contacts are resolved one after another rather than solved as a
// system, so a tight cluster can take a few ticks to separate completely.
func Resolve(balls []Ball, contacts Contacts, table *Table, p Params) []CollisionEvent {
	var events []CollisionEvent

	for _, pe := range contacts.Pockets {
		b := &balls[pe.Ball]
		if !b.Active {
			continue
		}
		speed := b.Speed()
		b.Active = false
		b.stop()
		for _, pocket := range table.pockets {
			if pocket.ID == pe.Pocket {
				b.Position = pocket.Position
				break
			}
		}
		events = append(events, CollisionEvent{Type: EventPocket, BallID: pe.Ball, TargetID: pe.Pocket, Speed: speed})
	}

	for _, bc := range contacts.Balls {
		a, b := &balls[bc.A], &balls[bc.B]
		if !a.Active || !b.Active {
			continue
		}
		if bc.Degenerate {
			log.Printf("[PHYSICS] Balls %d and %d share a centre at (%.4f, %.4f); separating along default normal", bc.A, bc.B, a.Position.X, a.Position.Y)
		}
		if ev, ok := resolveBallBall(a, b, bc, p.BallRestitution); ok {
			events = append(events, ev)
		}
	}

	for _, cc := range contacts.Cushions {
		b := &balls[cc.Ball]
		if !b.Active {
			continue
		}
		if ev, ok := resolveBallCushion(b, cc, table.Restitution()); ok {
			events = append(events, ev)
		}
	}

	return events
}

// resolveBallBall exchanges the normal velocity components of two equal-mass
// balls (blended by restitution e; e=1 is a full exchange) and separates them
// by half the depth each. Tangential velocity and spin are untouched.
func resolveBallBall(a, b *Ball, bc BallContact, e float64) (CollisionEvent, bool) {
	n := bc.Normal

	var ev CollisionEvent
	hit := false
	// Only an approaching pair exchanges momentum; a separating one is just pushed apart.
	an := a.Velocity.Dot(n)
	bn := b.Velocity.Dot(n)
	if an-bn > 0 {
		newA := ((1-e)*an + (1+e)*bn) / 2
		newB := ((1+e)*an + (1-e)*bn) / 2
		a.Velocity = a.Velocity.Plus(n.Times(newA - an))
		b.Velocity = b.Velocity.Plus(n.Times(newB - bn))
		ev = CollisionEvent{Type: EventBall, BallID: bc.A, TargetID: bc.B, Speed: an - bn}
		hit = true
	}

	half := n.Times(bc.Depth / 2)
	a.Position = a.Position.Minus(half)
	b.Position = b.Position.Plus(half)

	return ev, hit
}

// resolveBallCushion reflects the velocity component into the cushion, scaled
// by the cushion restitution, and pushes the ball back out.
func resolveBallCushion(b *Ball, cc CushionContact, restitution float64) (CollisionEvent, bool) {
	n := cc.Normal
	b.Position = b.Position.Plus(n.Times(cc.Depth))

	vn := b.Velocity.Dot(n)
	if vn >= 0 {
		return CollisionEvent{}, false
	}
	b.Velocity = b.Velocity.Minus(n.Times((1 + restitution) * vn))
	return CollisionEvent{Type: EventCushion, BallID: cc.Ball, TargetID: cc.Cushion, Speed: -vn}, true
}
