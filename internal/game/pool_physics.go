package game

import (
	"fmt"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DriverState is the frame driver's phase.
type DriverState string

const (
	StateIdle       DriverState = "IDLE"
	StateSimulating DriverState = "SIMULATING"
)

// Shot is a cue strike. Magnitude is the impulse in N·s; Screw (top/back spin)
// and English (side spin) are in [-1, 1].
type Shot struct {
	Direction Vec2    `json:"direction"`
	Magnitude float64 `json:"magnitude"`
	Screw     float64 `json:"screw"`
	English   float64 `json:"english"`
}

// Validate checks that the shot can be applied.
func (s Shot) Validate() error {
	switch {
	case !s.Direction.IsFinite() || s.Direction.IsZero():
		return fmt.Errorf("%w: direction must be a finite non-zero vector", ErrShotRejected)
	case !isFinite(s.Magnitude) || !(s.Magnitude > 0):
		return fmt.Errorf("%w: magnitude must be positive", ErrShotRejected)
	case !isFinite(s.Screw) || math.Abs(s.Screw) > 1:
		return fmt.Errorf("%w: screw %v outside [-1,1]", ErrShotRejected, s.Screw)
	case !isFinite(s.English) || math.Abs(s.English) > 1:
		return fmt.Errorf("%w: english %v outside [-1,1]", ErrShotRejected, s.English)
	}
	return nil
}

// launch converts the shot to cue ball velocity and spin.
func (s Shot) launch(p Params) (Vec2, mgl64.Vec3) {
	speed := math.Min(s.Magnitude/p.BallMass, p.MaxShotSpeed)
	v := s.Direction.Normalize().Times(speed)

	wx, wy := rollingSpin(v, p.BallRadius)
	screw := 1.25 * s.Screw
	// Side spin never exceeds the rolling spin magnitude speed/r.
	wz := EnglishSpinRatio * s.English * speed / p.BallRadius
	return v, mgl64.Vec3{wx * screw, wy * screw, wz}
}

// TickResult is what one call to Tick produced.
type TickResult struct {
	Tick     uint64           `json:"tick"`
	State    DriverState      `json:"state"`
	Events   []CollisionEvent `json:"events,omitempty"`
	Pocketed []int            `json:"pocketed,omitempty"`
	Settled  bool             `json:"settled,omitempty"` // this tick brought the table to rest
}

// FrameDriver steps one table. It is driven from a single goroutine; other
// goroutines read the balls through the store, which only ever hands out
// copies of complete frames.
type FrameDriver struct {
	store  *BallStore
	table  *Table
	params Params
	state  DriverState
	ticks  uint64
}

// NewFrameDriver creates an idle driver over store and table.
func NewFrameDriver(store *BallStore, table *Table, params Params) *FrameDriver {
	return &FrameDriver{
		store:  store,
		table:  table,
		params: params,
		state:  StateIdle,
	}
}

// NewRackedDriver builds a store racked on table and a driver over both.
func NewRackedDriver(table *Table, params Params) (*FrameDriver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	store := NewBallStore(params, table.RackPositions(params.BallRadius))
	return NewFrameDriver(store, table, params), nil
}

func (d *FrameDriver) State() DriverState { return d.state }

// TickCount returns how many simulating ticks have run.
func (d *FrameDriver) TickCount() uint64 { return d.ticks }

func (d *FrameDriver) Store() *BallStore { return d.store }

func (d *FrameDriver) Table() *Table { return d.table }

func (d *FrameDriver) Params() Params { return d.params }

// Balls returns a copy of the current frame.
func (d *FrameDriver) Balls() []Ball { return d.store.GetAll() }

// Shoot strikes the cue ball. It is only accepted while the table is idle
// and the cue ball is in play.
func (d *FrameDriver) Shoot(shot Shot) error {
	if d.state != StateIdle {
		return fmt.Errorf("%w: balls are still moving", ErrShotRejected)
	}
	if err := shot.Validate(); err != nil {
		return err
	}
	cue, err := d.store.Get(CueBall)
	if err != nil {
		return err
	}
	if !cue.Active {
		return fmt.Errorf("%w: cue ball is not on the table", ErrShotRejected)
	}

	v, w := shot.launch(d.params)
	cue.Velocity = v
	cue.AngularVelocity = w
	if err := d.store.Set(CueBall, cue); err != nil {
		return err
	}

	d.state = StateSimulating
	log.Printf("[PHYSICS] Shot: v=(%.3f, %.3f) speed=%.3f screw=%.2f english=%.2f", v.X, v.Y, v.Magnitude(), shot.Screw, shot.English)
	return nil
}

// PlaceCueBall puts a pocketed or resting cue ball at pos while the table is
// idle. The spot must be on the bed and clear of every other active ball.
func (d *FrameDriver) PlaceCueBall(pos Vec2) error {
	if d.state != StateIdle {
		return fmt.Errorf("%w: balls are still moving", ErrShotRejected)
	}
	r := d.params.BallRadius
	bed := d.table.Bounds().Expand(-r)
	if !pos.IsFinite() || !bed.Contains(pos) {
		return fmt.Errorf("%w: cue ball position (%.3f, %.3f) is off the bed", ErrShotRejected, pos.X, pos.Y)
	}
	for _, b := range d.store.GetAll() {
		if b.Number == CueBall || !b.Active {
			continue
		}
		if b.Position.DistanceTo(pos) < b.Radius+r {
			return fmt.Errorf("%w: cue ball would overlap ball %d", ErrShotRejected, b.Number)
		}
	}
	for _, p := range d.table.pockets {
		if pos.DistanceTo(p.Position) < p.Radius {
			return fmt.Errorf("%w: cue ball position is inside pocket %d", ErrShotRejected, p.ID)
		}
	}

	cue := newRackedBall(CueBall, pos, d.params)
	return d.store.Set(CueBall, cue)
}

// Resume loads a saved frame and its tick count and leaves the driver idle.
func (d *FrameDriver) Resume(balls []Ball, ticks uint64) error {
	if err := d.store.Commit(balls); err != nil {
		return err
	}
	d.ticks = ticks
	d.state = StateIdle
	return nil
}

// Rerack restores the canonical layout and returns to idle.
func (d *FrameDriver) Rerack() {
	d.store.Rerack(d.table.RackPositions(d.params.BallRadius))
	d.state = StateIdle
	log.Printf("[PHYSICS] Table reracked")
}

// Tick advances the simulation by dt seconds.
//
// While simulating, the frame is split into sub-steps; each sub-step
// integrates every ball, detects contacts and resolves them. The finished
// frame is committed to the store once. When every active ball is at rest the
// balls are zeroed and the driver goes idle.
func (d *FrameDriver) Tick(dt float64) (TickResult, error) {
	res := TickResult{Tick: d.ticks, State: d.state}
	if !isFinite(dt) || dt < 0 {
		return res, fmt.Errorf("%w: got %v", ErrInvalidTick, dt)
	}
	if dt == 0 || d.state != StateSimulating {
		return res, nil
	}

	balls := d.store.GetAll()
	n := d.params.substepsFor(dt)
	h := dt / float64(n)
	bounds := d.table.Bounds()

	for step := 0; step < n; step++ {
		for i := range balls {
			balls[i] = Integrate(balls[i], h, d.params)
		}
		contacts := Detect(balls, d.table)
		if !contacts.Empty() {
			events := Resolve(balls, contacts, d.table, d.params)
			for _, ev := range events {
				if ev.Type == EventPocket {
					res.Pocketed = append(res.Pocketed, ev.BallID)
				}
			}
			res.Events = append(res.Events, events...)
		}
		// A sub-step long enough to cross the table leaves the cushion
		// push-back imprecise; no centre may end up past the rails.
		for i := range balls {
			if balls[i].Active {
				balls[i].Position = bounds.Clamp(balls[i].Position)
			}
		}
	}

	settled := true
	for _, b := range balls {
		if b.Active && !b.AtRest(d.params.StopSpeed) {
			settled = false
			break
		}
	}
	if settled {
		for i := range balls {
			balls[i].stop()
		}
	}

	if err := d.store.Commit(balls); err != nil {
		return res, err
	}

	d.ticks++
	res.Tick = d.ticks
	if settled {
		d.state = StateIdle
		res.Settled = true
		log.Printf("[PHYSICS] Table at rest after tick %d (%d balls on table)", d.ticks, d.store.ActiveCount())
	}
	res.State = d.state
	return res, nil
}

// RunUntilRest ticks at dt until the table settles or maxTicks is reached.
// It returns every tick result in order.
func (d *FrameDriver) RunUntilRest(dt float64, maxTicks int) ([]TickResult, error) {
	var results []TickResult
	for i := 0; i < maxTicks && d.state == StateSimulating; i++ {
		res, err := d.Tick(dt)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	if d.state == StateSimulating {
		return results, fmt.Errorf("table still moving after %d ticks", maxTicks)
	}
	return results, nil
}
