package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMotion_FreshIsStill(t *testing.T) {
	m := NewMotion(Position{X: 5, Y: 5}, FacingSouth)
	assert.False(t, m.HasMoved())
	assert.False(t, m.FacingChanged())
}

func TestMotion_CommitClearsChanges(t *testing.T) {
	m := NewMotion(Position{X: 5, Y: 5}, FacingSouth)
	m.Pos.X = 6
	m.Facing = FacingEast
	assert.True(t, m.HasMoved())
	assert.True(t, m.FacingChanged())

	assert.NoError(t, m.Commit(1))
	assert.False(t, m.HasMoved())
	assert.False(t, m.FacingChanged())
	assert.Equal(t, Position{X: 6, Y: 5}, m.LastPos())
}

func TestMotion_FacingOnly(t *testing.T) {
	m := NewMotion(Position{X: 5, Y: 5}, FacingSouth)
	m.Facing = FacingWest
	assert.False(t, m.HasMoved())
	assert.True(t, m.FacingChanged())
}

func TestMotion_DoubleCommit(t *testing.T) {
	m := NewMotion(Position{}, FacingNorth)
	assert.NoError(t, m.Commit(7))
	assert.ErrorIs(t, m.Commit(7), ErrAlreadyCommitted)
	assert.NoError(t, m.Commit(8))
}

func TestMotion_ReturnToStartIsNotMoved(t *testing.T) {
	m := NewMotion(Position{X: 5, Y: 5}, FacingSouth)
	m.Pos.X = 6
	m.Pos.X = 5
	assert.False(t, m.HasMoved())
}

func TestFacingFromStep(t *testing.T) {
	cases := []struct {
		dx, dy int32
		want   Facing
	}{
		{0, -1, FacingNorth},
		{1, -1, FacingNorthEast},
		{3, 0, FacingEast},
		{1, 1, FacingSouthEast},
		{0, 2, FacingSouth},
		{-1, 1, FacingSouthWest},
		{-1, 0, FacingWest},
		{-1, -1, FacingNorthWest},
		{0, 0, FacingSouthWest},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FacingFromStep(c.dx, c.dy, FacingSouthWest), "step (%d,%d)", c.dx, c.dy)
	}
}

func TestWithinRange(t *testing.T) {
	a := Position{X: 100, Y: 100}
	assert.True(t, WithinRange(a, Position{X: 116, Y: 84}, 16))
	assert.False(t, WithinRange(a, Position{X: 117, Y: 100}, 16))
	assert.False(t, WithinRange(a, Position{X: 100, Y: 100, Plane: 1}, 16))
	assert.Equal(t, int32(17), Chebyshev(a, Position{X: 83, Y: 110}))
}

func TestMotion_StepBackBeforeCommitStillMoved(t *testing.T) {
	m := NewMotion(Position{X: 5, Y: 5}, FacingSouth)
	m.Step(Position{X: 6, Y: 5}, FacingEast)
	m.Step(Position{X: 5, Y: 5}, FacingSouth)
	assert.True(t, m.HasMoved(), "an uncommitted step stays reportable")

	assert.NoError(t, m.Commit(1))
	assert.False(t, m.HasMoved())
	assert.False(t, m.FacingChanged())
}

func TestMotion_TurnBackBeforeCommitStillTurned(t *testing.T) {
	m := NewMotion(Position{X: 5, Y: 5}, FacingSouth)
	m.Turn(FacingSouth)
	assert.False(t, m.FacingChanged(), "same facing is not a turn")

	m.Turn(FacingNorth)
	m.Turn(FacingSouth)
	assert.True(t, m.FacingChanged())
	assert.False(t, m.HasMoved())

	assert.NoError(t, m.Commit(1))
	assert.False(t, m.FacingChanged())
}
