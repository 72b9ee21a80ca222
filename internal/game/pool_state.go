package game

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// BallStore owns the sixteen balls of one table session.
//
// Every read returns a copy, and a whole frame is written back with Commit
// under a single lock, so a reader on another goroutine never sees a ball or a
// frame half way through an update.
type BallStore struct {
	balls  [NumBalls]Ball
	params Params
	mu     sync.RWMutex
}

// NewBallStore creates a store racked at the given positions.
func NewBallStore(params Params, rack [NumBalls]Vec2) *BallStore {
	s := &BallStore{params: params}
	s.rerackLocked(rack)
	return s
}

func checkNumber(number int) error {
	if number < 0 || number >= NumBalls {
		return fmt.Errorf("%w: %d", ErrOutOfRangeBallNumber, number)
	}
	return nil
}

// GetAll returns a copy of every ball; index equals ball number.
func (s *BallStore) GetAll() []Ball {
	s.mu.RLock()
	defer s.mu.RUnlock()
	balls := make([]Ball, NumBalls)
	copy(balls, s.balls[:])
	return balls
}

// Get returns a copy of one ball.
func (s *BallStore) Get(number int) (Ball, error) {
	if err := checkNumber(number); err != nil {
		return Ball{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balls[number], nil
}

// Set replaces one ball's state. Identity, radius and mass stay the store's.
func (s *BallStore) Set(number int, b Ball) error {
	if err := checkNumber(number); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balls[number] = s.normalize(number, b)
	return nil
}

// Pocket marks a ball inactive and freezes it.
func (s *BallStore) Pocket(number int) error {
	if err := checkNumber(number); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balls[number].Active = false
	s.balls[number].stop()
	return nil
}

// Commit writes back a complete frame.
func (s *BallStore) Commit(balls []Ball) error {
	if len(balls) != NumBalls {
		return fmt.Errorf("commit needs %d balls, got %d", NumBalls, len(balls))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range balls {
		s.balls[i] = s.normalize(i, balls[i])
	}
	return nil
}

// Rerack restores all sixteen balls to the given positions at rest.
func (s *BallStore) Rerack(rack [NumBalls]Vec2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rerackLocked(rack)
}

// ActiveCount returns how many balls are still on the table.
func (s *BallStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, b := range s.balls {
		if b.Active {
			n++
		}
	}
	return n
}

func (s *BallStore) rerackLocked(rack [NumBalls]Vec2) {
	for i := 0; i < NumBalls; i++ {
		s.balls[i] = newRackedBall(i, rack[i], s.params)
	}
}

func (s *BallStore) normalize(number int, b Ball) Ball {
	b.Number = number
	b.Kind = KindOf(number)
	b.Radius = s.params.BallRadius
	b.Mass = s.params.BallMass
	if b.Orientation == (mgl64.Quat{}) {
		b.Orientation = mgl64.QuatIdent()
	}
	if !b.Active {
		b.stop()
	}
	return b
}
