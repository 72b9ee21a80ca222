package game

import "errors"

var (
	// ErrInvalidTick is returned for a negative or non-finite dt. The tick is a no-op.
	ErrInvalidTick = errors.New("invalid tick: dt must be a finite, non-negative number of seconds")

	// ErrOutOfRangeBallNumber is returned for store access outside 0..15.
	ErrOutOfRangeBallNumber = errors.New("ball number out of range")

	// ErrShotRejected is returned when a shot arrives while balls are moving
	// or the cue ball is off the table. The shot is ignored.
	ErrShotRejected = errors.New("shot rejected")

	ErrInvalidTable = errors.New("invalid table geometry")
)
