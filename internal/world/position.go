package world

// Position is a tile coordinate on a plane. Planes are stacked floors
// (ground, first floor, ...); entities on different planes never see each other.
type Position struct {
	X     int32
	Y     int32
	Plane int16
}

// Facing is one of the eight sprite directions, clockwise from north.
type Facing uint8

const (
	FacingNorth Facing = iota
	FacingNorthEast
	FacingEast
	FacingSouthEast
	FacingSouth
	FacingSouthWest
	FacingWest
	FacingNorthWest
)

// Valid reports whether f is one of the eight directions.
func (f Facing) Valid() bool { return f <= FacingNorthWest }

// FacingFromStep returns the direction of a step (dx, dy), y growing south.
// A zero step keeps the current facing.
func FacingFromStep(dx, dy int32, current Facing) Facing {
	switch {
	case dx == 0 && dy < 0:
		return FacingNorth
	case dx > 0 && dy < 0:
		return FacingNorthEast
	case dx > 0 && dy == 0:
		return FacingEast
	case dx > 0 && dy > 0:
		return FacingSouthEast
	case dx == 0 && dy > 0:
		return FacingSouth
	case dx < 0 && dy > 0:
		return FacingSouthWest
	case dx < 0 && dy == 0:
		return FacingWest
	case dx < 0 && dy < 0:
		return FacingNorthWest
	}
	return current
}

// Chebyshev returns max(|dx|, |dy|) between two positions, ignoring plane.
func Chebyshev(a, b Position) int32 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dy > dx {
		return dy
	}
	return dx
}

// WithinRange reports whether b is on a's plane and no more than r tiles
// away on either axis.
func WithinRange(a, b Position, r int32) bool {
	return a.Plane == b.Plane && Chebyshev(a, b) <= r
}
