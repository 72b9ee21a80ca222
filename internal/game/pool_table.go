package game

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle on the table plane.
type Rect struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

// Contains reports whether p lies inside or on the rectangle.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Expand grows the rectangle by d on every side.
func (r Rect) Expand(d float64) Rect {
	return Rect{
		Min: Vec2{X: r.Min.X - d, Y: r.Min.Y - d},
		Max: Vec2{X: r.Max.X + d, Y: r.Max.Y + d},
	}
}

// Clamp returns the point of r nearest to p.
func (r Rect) Clamp(p Vec2) Vec2 {
	return NewVec2(math.Min(math.Max(p.X, r.Min.X), r.Max.X), math.Min(math.Max(p.Y, r.Min.Y), r.Max.Y))
}

func (r Rect) Center() Vec2 {
	return Vec2{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// CushionLine is a cushion face. Normal points into the playing area.
type CushionLine struct {
	Name      string `json:"name"`
	P1        Vec2   `json:"p1"`
	P2        Vec2   `json:"p2"`
	Direction Vec2   `json:"direction"` // normalized direction from p1 to p2
	Normal    Vec2   `json:"normal"`    // left normal of direction
}

// Pocket is a capture zone.
type Pocket struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Position Vec2    `json:"position"`
	Radius   float64 `json:"radius"`
}

// Table holds the immutable table geometry.
type Table struct {
	bounds      Rect
	lines       []CushionLine
	pockets     []Pocket
	restitution float64
}

// NewTable builds a table whose four cushions run along the bounds.
func NewTable(bounds Rect, pockets []Pocket, restitution float64) (*Table, error) {
	if !(bounds.Width() > 0) || !(bounds.Height() > 0) {
		return nil, fmt.Errorf("%w: empty bounds", ErrInvalidTable)
	}
	if restitution < 0 || restitution > 1 {
		return nil, fmt.Errorf("%w: cushion restitution %v outside [0,1]", ErrInvalidTable, restitution)
	}
	for _, p := range pockets {
		if !(p.Radius > 0) {
			return nil, fmt.Errorf("%w: pocket %d has no capture radius", ErrInvalidTable, p.ID)
		}
		if !bounds.Contains(p.Position) {
			return nil, fmt.Errorf("%w: pocket %d lies outside the table", ErrInvalidTable, p.ID)
		}
	}

	lo, hi := bounds.Min, bounds.Max
	// Counter-clockwise, so every left normal faces the bed.
	rawLines := []struct {
		name   string
		p1, p2 Vec2
	}{
		{"bottom", NewVec2(lo.X, lo.Y), NewVec2(hi.X, lo.Y)},
		{"right", NewVec2(hi.X, lo.Y), NewVec2(hi.X, hi.Y)},
		{"top", NewVec2(hi.X, hi.Y), NewVec2(lo.X, hi.Y)},
		{"left", NewVec2(lo.X, hi.Y), NewVec2(lo.X, lo.Y)},
	}

	lines := make([]CushionLine, len(rawLines))
	for i, rl := range rawLines {
		dir := axisDirection(rl.p2.Minus(rl.p1))
		lines[i] = CushionLine{
			Name:      rl.name,
			P1:        rl.p1,
			P2:        rl.p2,
			Direction: dir,
			Normal:    dir.LeftNormal(),
		}
	}

	ps := make([]Pocket, len(pockets))
	copy(ps, pockets)

	return &Table{
		bounds:      bounds,
		lines:       lines,
		pockets:     ps,
		restitution: restitution,
	}, nil
}

// axisDirection returns the unit direction of a cushion edge, exact when the
// edge runs along an axis.
func axisDirection(d Vec2) Vec2 {
	switch {
	case d.Y == 0 && d.X != 0:
		return NewVec2(math.Copysign(1, d.X), 0)
	case d.X == 0 && d.Y != 0:
		return NewVec2(0, math.Copysign(1, d.Y))
	}
	return d.Normalize()
}

// NewStandardTable creates a 9-foot table centred on the origin with four
// corner and two side pockets.
func NewStandardTable(restitution float64) (*Table, error) {
	hx, hy := TableLength/2, TableWidth/2
	cr, sr := CornerPocketRadius, SidePocketRadius

	pockets := []Pocket{
		{ID: 0, Name: "bottom-left", Position: NewVec2(-hx, -hy), Radius: cr},
		{ID: 1, Name: "bottom-side", Position: NewVec2(0, -hy), Radius: sr},
		{ID: 2, Name: "bottom-right", Position: NewVec2(hx, -hy), Radius: cr},
		{ID: 3, Name: "top-left", Position: NewVec2(-hx, hy), Radius: cr},
		{ID: 4, Name: "top-side", Position: NewVec2(0, hy), Radius: sr},
		{ID: 5, Name: "top-right", Position: NewVec2(hx, hy), Radius: cr},
	}

	return NewTable(Rect{Min: NewVec2(-hx, -hy), Max: NewVec2(hx, hy)}, pockets, restitution)
}

func (t *Table) Bounds() Rect {
	return t.bounds
}

// Cushions returns a copy of the cushion faces.
func (t *Table) Cushions() []CushionLine {
	out := make([]CushionLine, len(t.lines))
	copy(out, t.lines)
	return out
}

// Pockets returns a copy of the pocket zones.
func (t *Table) Pockets() []Pocket {
	out := make([]Pocket, len(t.pockets))
	copy(out, t.pockets)
	return out
}

// Restitution is the fraction of normal speed a cushion returns.
func (t *Table) Restitution() float64 {
	return t.restitution
}

// HeadSpot is where the cue ball is placed on a rerack.
func (t *Table) HeadSpot() Vec2 {
	c := t.bounds.Center()
	return NewVec2(c.X-t.bounds.Width()/4, c.Y)
}

// FootSpot is where the apex ball of the triangle sits.
func (t *Table) FootSpot() Vec2 {
	c := t.bounds.Center()
	return NewVec2(c.X+t.bounds.Width()/4, c.Y)
}

// rackSlots gives each object ball's column (rows of the triangle, 0 = apex)
// and its lateral offset in radii. The 8 sits in the middle of the triangle.
var rackSlots = [NumBalls]struct{ col, row float64 }{
	{0, 0}, // cue, placed on the head spot
	{2, -2},
	{4, -2},
	{3, -1},
	{4, 2},
	{4, 4},
	{3, 3},
	{1, 1},
	{2, 0},
	{0, 0},
	{3, 1},
	{4, -4},
	{1, -1},
	{4, 0},
	{3, -3},
	{2, 2},
}

// RackPositions returns the canonical starting layout: the cue ball on the head
// spot and a fifteen-ball triangle with its apex on the foot spot, pointing at
// the cue ball.
func (t *Table) RackPositions(radius float64) [NumBalls]Vec2 {
	var pos [NumBalls]Vec2

	spacing := radius * (1 + RackGap)
	colStep := math.Sqrt(3) * spacing
	foot := t.FootSpot()

	pos[CueBall] = t.HeadSpot()
	for n := 1; n < NumBalls; n++ {
		slot := rackSlots[n]
		pos[n] = NewVec2(foot.X+slot.col*colStep, foot.Y+slot.row*spacing)
	}
	return pos
}
