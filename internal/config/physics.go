package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/playmatatu/billiards/internal/game"
)

// Physics is the tuning file for the simulation. Zero fields keep the
// built-in defaults.
type Physics struct {
	BallRadius         float64 `yaml:"ball_radius"`
	BallMass           float64 `yaml:"ball_mass"`
	SlidingFriction    float64 `yaml:"sliding_friction"`
	RollingFriction    float64 `yaml:"rolling_friction"`
	SpinFriction       float64 `yaml:"spin_friction"`
	BallRestitution    float64 `yaml:"ball_restitution"`
	CushionRestitution float64 `yaml:"cushion_restitution"`
	StopSpeed          float64 `yaml:"stop_speed"`
	MaxShotSpeed       float64 `yaml:"max_shot_speed"`
	Substeps           int     `yaml:"substeps"`
	MaxSubstepSeconds  float64 `yaml:"max_substep_seconds"`
}

// Tuning is the resolved physics configuration.
type Tuning struct {
	Params             game.Params
	CushionRestitution float64
}

// DefaultTuning returns the built-in physics.
func DefaultTuning() Tuning {
	return Tuning{
		Params:             game.DefaultParams(),
		CushionRestitution: game.CushionRestitution,
	}
}

// LoadPhysics reads the tuning file at path. A missing file yields the
// defaults; a malformed or out-of-range one is an error.
func LoadPhysics(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("[CONFIG] Physics file %s not found, using defaults", path)
		return t, nil
	}
	if err != nil {
		return t, err
	}

	var ph Physics
	if err := yaml.Unmarshal(raw, &ph); err != nil {
		return t, fmt.Errorf("physics.yaml: %w", err)
	}
	return ph.apply(t)
}

func (ph Physics) apply(t Tuning) (Tuning, error) {
	p := &t.Params
	setFloat(&p.BallRadius, ph.BallRadius)
	setFloat(&p.BallMass, ph.BallMass)
	setFloat(&p.SlidingFriction, ph.SlidingFriction)
	setFloat(&p.RollingFriction, ph.RollingFriction)
	setFloat(&p.SpinFriction, ph.SpinFriction)
	setFloat(&p.BallRestitution, ph.BallRestitution)
	setFloat(&p.StopSpeed, ph.StopSpeed)
	setFloat(&p.MaxShotSpeed, ph.MaxShotSpeed)
	setFloat(&p.MaxSubstepSeconds, ph.MaxSubstepSeconds)
	setFloat(&t.CushionRestitution, ph.CushionRestitution)
	if ph.Substeps != 0 {
		p.Substeps = ph.Substeps
	}

	if err := p.Validate(); err != nil {
		return t, fmt.Errorf("physics.yaml: %w", err)
	}
	if t.CushionRestitution < 0 || t.CushionRestitution > 1 {
		return t, fmt.Errorf("physics.yaml: cushion restitution must be within [0,1], got %v", t.CushionRestitution)
	}
	return t, nil
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}
