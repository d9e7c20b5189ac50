package world

import "errors"

// ErrAlreadyCommitted is returned when a motion record is committed twice
// within the same tick.
var ErrAlreadyCommitted = errors.New("motion already committed this tick")

// Motion tracks an entity's position and facing against the values recorded
// at the last commit. Pos and Facing are written by the movement code during
// a tick; the last* fields change only in Commit.
//
// A commit can be skipped when a tick is cut short, so some viewers may have
// been told about a step the record still treats as pending. stepped and
// turned keep such a change reportable even if the entity returns to its
// committed tile or facing before the next commit.
type Motion struct {
	Pos    Position
	Facing Facing

	lastPos       Position
	lastFacing    Facing
	stepped       bool
	turned        bool
	committedTick uint64
}

// NewMotion returns a record whose last state equals its current state, so
// a freshly spawned entity is not reported as moved.
func NewMotion(pos Position, facing Facing) *Motion {
	return &Motion{
		Pos:        pos,
		Facing:     facing,
		lastPos:    pos,
		lastFacing: facing,
	}
}

// Step places the entity at pos facing the given way.
func (m *Motion) Step(pos Position, facing Facing) {
	if pos != m.Pos {
		m.stepped = true
	} else if facing != m.Facing {
		m.turned = true
	}
	m.Pos = pos
	m.Facing = facing
}

// Turn changes facing without moving.
func (m *Motion) Turn(facing Facing) {
	if facing != m.Facing {
		m.turned = true
	}
	m.Facing = facing
}

func (m *Motion) HasMoved() bool      { return m.stepped || m.Pos != m.lastPos }
func (m *Motion) FacingChanged() bool { return m.turned || m.Facing != m.lastFacing }

// LastPos returns the position committed at the end of the previous tick.
func (m *Motion) LastPos() Position { return m.lastPos }

// Commit copies current into last and clears pending steps. tick must be
// non-zero.
func (m *Motion) Commit(tick uint64) error {
	if tick != 0 && m.committedTick == tick {
		return ErrAlreadyCommitted
	}
	m.lastPos = m.Pos
	m.lastFacing = m.Facing
	m.stepped = false
	m.turned = false
	m.committedTick = tick
	return nil
}
