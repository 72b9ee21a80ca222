package game

import (
	"errors"
	"math"
	"testing"
)

func TestStandardTableGeometry(t *testing.T) {
	table, err := NewStandardTable(CushionRestitution)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(table.Cushions()); got != 4 {
		t.Fatalf("cushions = %d, want 4", got)
	}
	if got := len(table.Pockets()); got != 6 {
		t.Fatalf("pockets = %d, want 6", got)
	}

	centre := table.Bounds().Center()
	for _, c := range table.Cushions() {
		mid := c.P1.Plus(c.P2).Times(0.5)
		if centre.Minus(mid).Dot(c.Normal) <= 0 {
			t.Errorf("cushion %s normal %+v does not face the bed", c.Name, c.Normal)
		}
		if math.Abs(c.Normal.Magnitude()-1) > 1e-12 {
			t.Errorf("cushion %s normal not unit length", c.Name)
		}
	}
}

func TestCushionNormalsAreExact(t *testing.T) {
	table, _ := NewStandardTable(CushionRestitution)
	want := map[string]Vec2{
		"bottom": NewVec2(0, 1),
		"right":  NewVec2(-1, 0),
		"top":    NewVec2(0, -1),
		"left":   NewVec2(1, 0),
	}
	for _, c := range table.Cushions() {
		w, ok := want[c.Name]
		if !ok {
			t.Fatalf("unexpected cushion %q", c.Name)
		}
		// -0 compares equal to 0.
		if c.Normal.X != w.X || c.Normal.Y != w.Y {
			t.Errorf("cushion %s normal = %+v, want %+v", c.Name, c.Normal, w)
		}
	}
	if got := table.Restitution(); got != CushionRestitution {
		t.Errorf("restitution = %v, want %v", got, CushionRestitution)
	}
}

func TestPocketsReachCornerBalls(t *testing.T) {
	table, _ := NewStandardTable(CushionRestitution)
	for _, p := range table.Pockets() {
		// A ball pressed against both rails at a corner, or against one rail
		// at a side pocket, must be inside the capture radius.
		reach := BallRadius
		if p.Radius == CornerPocketRadius {
			reach = BallRadius * math.Sqrt2
		}
		if p.Radius <= reach {
			t.Errorf("pocket %s radius %v cannot reach a ball %v away", p.Name, p.Radius, reach)
		}
	}
}

func TestNewTableValidation(t *testing.T) {
	bounds := Rect{Min: NewVec2(-1, -0.5), Max: NewVec2(1, 0.5)}
	tests := []struct {
		name        string
		bounds      Rect
		pockets     []Pocket
		restitution float64
	}{
		{"empty bounds", Rect{}, nil, 0.5},
		{"inverted bounds", Rect{Min: NewVec2(1, 1), Max: NewVec2(-1, -1)}, nil, 0.5},
		{"restitution above one", bounds, nil, 1.5},
		{"negative restitution", bounds, nil, -0.1},
		{"pocket outside", bounds, []Pocket{{ID: 0, Position: NewVec2(2, 0), Radius: 0.05}}, 0.5},
		{"pocket without radius", bounds, []Pocket{{ID: 0, Position: NewVec2(1, 0)}}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.bounds, tt.pockets, tt.restitution); !errors.Is(err, ErrInvalidTable) {
				t.Errorf("err = %v, want ErrInvalidTable", err)
			}
		})
	}

	if _, err := NewTable(bounds, []Pocket{{ID: 0, Position: NewVec2(1, 0.5), Radius: 0.05}}, 0.5); err != nil {
		t.Errorf("pocket on the boundary rejected: %v", err)
	}
}

func TestRackPositions(t *testing.T) {
	table, _ := NewStandardTable(CushionRestitution)
	rack := table.RackPositions(BallRadius)
	bed := table.Bounds().Expand(-BallRadius)

	for i, p := range rack {
		if !bed.Contains(p) {
			t.Errorf("ball %d racked off the bed at %+v", i, p)
		}
		for j := i + 1; j < NumBalls; j++ {
			if d := p.DistanceTo(rack[j]); d < 2*BallRadius {
				t.Errorf("balls %d and %d overlap in the rack (d=%.6f)", i, j, d)
			}
		}
	}

	if rack[CueBall] != table.HeadSpot() {
		t.Errorf("cue at %+v, want head spot %+v", rack[CueBall], table.HeadSpot())
	}
	if rack[9] != table.FootSpot() {
		t.Errorf("apex ball at %+v, want foot spot", rack[9])
	}
	// The 8-ball sits in the middle of the third row.
	if rack[EightBall].Y != table.FootSpot().Y || rack[EightBall].X <= rack[9].X {
		t.Errorf("8-ball at %+v", rack[EightBall])
	}
}

func TestRackBallsTouchNeighbours(t *testing.T) {
	table, _ := NewStandardTable(CushionRestitution)
	rack := table.RackPositions(BallRadius)
	// Ball 7 sits directly behind the apex; the gap is a small fraction of a diameter.
	d := rack[9].DistanceTo(rack[7])
	if gap := d - 2*BallRadius; gap < 0 || gap > 0.01*BallRadius {
		t.Errorf("apex gap = %v", gap)
	}
}
