package game

// Table and ball constants for a 9-foot pool table. Units are metres, seconds
// and kilograms; the table is centred on the origin with the long axis on X.
const (
	NumBalls  = 16 // 0=cue, 1-7=solids, 8=eight, 9-15=stripes
	CueBall   = 0
	EightBall = 8

	BallRadius = 0.028575 // 2.25in diameter
	BallMass   = 0.17

	TableLength = 2.54
	TableWidth  = 1.27

	CornerPocketRadius = 0.06
	SidePocketRadius   = 0.055

	CushionRestitution = 0.75
	BallRestitution    = 1.0

	SlidingFriction = 1.96  // m/s², mu=0.2
	RollingFriction = 0.098 // m/s², mu=0.01
	SpinFriction    = 100.0 // rad/s² on vertical-axis spin

	// EnglishSpinRatio is the side spin surface speed, as a fraction of the
	// cue ball speed, that full english produces.
	EnglishSpinRatio = 0.5

	StopSpeed    = 1e-3 // m/s
	MaxShotSpeed = 10.0 // m/s

	Substeps           = 4
	MaxSubstepSeconds  = 1.0 / 240.0
	MaxSubstepsPerTick = 256

	// RackGap spreads the rack by a fraction of a diameter so that freshly
	// racked balls are not already touching.
	RackGap = 0.001
)
