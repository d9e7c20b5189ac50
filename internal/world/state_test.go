package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rscgo/server/internal/core/ecs"
)

func addPlayer(t *testing.T, s *State, session uint64, name string, x, y int32) *Player {
	t.Helper()
	p := &Player{SessionID: session, Username: name, CombatLevel: DefaultCombatLevel, Appearance: DefaultAppearance}
	require.NoError(t, s.AddPlayer(p, Position{X: x, Y: y}, FacingSouth))
	return p
}

func TestState_AddPlayer(t *testing.T) {
	s := NewState(DefaultOptions)
	p := addPlayer(t, s, 1, "alice", 100, 100)

	assert.False(t, p.ID.IsZero())
	assert.True(t, p.Live())
	assert.Same(t, p, s.PlayerBySession(1))
	assert.Same(t, p, s.PlayerByName("alice"))
	assert.Equal(t, 1, s.PlayerCount())
	assert.Equal(t, []*Player{p}, s.Viewers())

	err := s.AddPlayer(&Player{SessionID: 2, Username: "alice"}, Position{X: 1, Y: 1}, FacingNorth)
	assert.ErrorIs(t, err, ErrNameInUse)

	err = s.AddPlayer(&Player{SessionID: 3, Username: "bob"}, Position{X: 1000, Y: 1}, FacingNorth)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestState_RemovePlayerDefersDestruction(t *testing.T) {
	s := NewState(DefaultOptions)
	p := addPlayer(t, s, 1, "alice", 100, 100)
	p.Known.Npcs.Add(p.ID)

	got := s.RemovePlayer(1)
	assert.Same(t, p, got)
	assert.False(t, p.Live())
	assert.Nil(t, s.PlayerBySession(1))
	assert.Empty(t, s.Viewers())
	assert.Equal(t, 0, p.Known.Npcs.Len(), "own visible sets are dropped")

	// still readable until the flush
	_, ok := s.Player(p.ID)
	assert.True(t, ok)
	assert.True(t, s.Alive(p.ID))

	assert.Equal(t, 1, s.FlushDestroyQueue())
	_, ok = s.Player(p.ID)
	assert.False(t, ok)
	assert.False(t, s.Alive(p.ID))

	assert.Nil(t, s.RemovePlayer(1))
}

func TestState_ReusedSlotGetsNewID(t *testing.T) {
	s := NewState(DefaultOptions)
	a := addPlayer(t, s, 1, "alice", 100, 100)
	s.RemovePlayer(1)
	s.FlushDestroyQueue()

	b := addPlayer(t, s, 2, "bob", 100, 100)
	assert.Equal(t, a.ID.Index(), b.ID.Index())
	assert.NotEqual(t, a.ID, b.ID)
	_, ok := s.Player(a.ID)
	assert.False(t, ok)
}

func TestState_MovePlayer(t *testing.T) {
	s := NewState(DefaultOptions)
	p := addPlayer(t, s, 1, "alice", 100, 127)

	require.NoError(t, s.MovePlayer(1, 101, 128))
	assert.Equal(t, Position{X: 101, Y: 128}, p.Motion.Pos)
	assert.Equal(t, FacingSouthEast, p.Motion.Facing)
	region := p.Region()
	key, _ := region.Cell()
	assert.Equal(t, CellKey{1, 2}, key)
	assert.True(t, p.Motion.HasMoved())

	assert.ErrorIs(t, s.MovePlayer(1, -1, 128), ErrOutOfBounds)
	assert.Equal(t, Position{X: 101, Y: 128}, p.Motion.Pos)
	assert.ErrorIs(t, s.MovePlayer(99, 1, 1), ErrUnknownEntity)
}

func TestState_FacePlayer(t *testing.T) {
	s := NewState(DefaultOptions)
	p := addPlayer(t, s, 1, "alice", 100, 100)

	require.NoError(t, s.FacePlayer(1, FacingWest))
	assert.True(t, p.Motion.FacingChanged())
	assert.False(t, p.Motion.HasMoved())
	assert.ErrorIs(t, s.FacePlayer(1, Facing(9)), ErrInvalidFacing)
}

func TestState_TeleportPlayerChangesPlane(t *testing.T) {
	s := NewState(DefaultOptions)
	p := addPlayer(t, s, 1, "alice", 100, 100)
	q := addPlayer(t, s, 2, "bob", 101, 100)

	assert.Len(t, s.NearbyPlayers(q.Motion.Pos), 2)

	require.NoError(t, s.TeleportPlayer(1, Position{X: 100, Y: 100, Plane: 1}))
	region := p.Region()
	assert.Equal(t, int16(1), region.Plane())
	assert.Equal(t, []*Player{q}, s.NearbyPlayers(q.Motion.Pos))
	assert.Equal(t, []*Player{p}, s.NearbyPlayers(p.Motion.Pos))

	assert.ErrorIs(t, s.TeleportPlayer(1, Position{X: 1, Y: 1, Plane: 9}), ErrOutOfBounds)
}

func TestState_NearbyFiltersByRange(t *testing.T) {
	s := NewState(DefaultOptions)
	center := Position{X: 100, Y: 100}
	near, err := s.SpawnNpc(NpcSpawn{TemplateID: 1, Pos: Position{X: 116, Y: 100}})
	require.NoError(t, err)
	_, err = s.SpawnNpc(NpcSpawn{TemplateID: 2, Pos: Position{X: 117, Y: 100}})
	require.NoError(t, err)

	assert.Equal(t, []*Npc{near}, s.NearbyNpcs(center))
	assert.Equal(t, 2, s.NpcCount())
}

func TestState_NpcDespawnRespawn(t *testing.T) {
	s := NewState(DefaultOptions)
	n, err := s.SpawnNpc(NpcSpawn{TemplateID: 7, Pos: Position{X: 50, Y: 50}, Facing: FacingEast, WanderRadius: 4})
	require.NoError(t, err)
	require.NoError(t, s.MoveNpc(n.ID, 52, 50))

	require.NoError(t, s.DespawnNpc(n.ID, 2))
	assert.False(t, n.Live())
	assert.Equal(t, 0, s.NpcCount())
	assert.Empty(t, s.Npcs())
	assert.ErrorIs(t, s.DespawnNpc(n.ID, 0), ErrUnknownEntity)
	s.FlushDestroyQueue()

	spawned, err := s.TickRespawns()
	require.NoError(t, err)
	assert.Empty(t, spawned)
	assert.Equal(t, 1, s.PendingRespawns())

	spawned, err = s.TickRespawns()
	require.NoError(t, err)
	require.Len(t, spawned, 1)
	fresh := spawned[0]
	assert.NotEqual(t, n.ID, fresh.ID)
	assert.Equal(t, Position{X: 50, Y: 50}, fresh.Motion.Pos, "respawns at the spawn point")
	assert.Equal(t, FacingEast, fresh.Motion.Facing)
	assert.Equal(t, int32(7), fresh.TemplateID)
	assert.Equal(t, 0, s.PendingRespawns())
	assert.Equal(t, []*Npc{fresh}, s.Npcs())
}

func TestState_GroundItemsAndObjects(t *testing.T) {
	s := NewState(DefaultOptions)
	g := &GroundItem{ItemID: 10, Amount: 1, Pos: Position{X: 100, Y: 100}}
	o := &GameObject{ObjectID: 1, Pos: Position{X: 105, Y: 100}}
	require.NoError(t, s.AddGroundItem(g))
	require.NoError(t, s.AddObject(o))
	assert.ErrorIs(t, s.AddObject(&GameObject{Pos: Position{X: -5}}), ErrOutOfBounds)

	center := Position{X: 101, Y: 101}
	assert.Equal(t, []*GroundItem{g}, s.NearbyGroundItems(center))
	assert.Equal(t, []*GameObject{o}, s.NearbyObjects(center))
	assert.Empty(t, s.NearbyNpcs(center))

	assert.Same(t, g, s.RemoveGroundItem(g.ID))
	assert.Nil(t, s.RemoveGroundItem(g.ID))
	assert.Same(t, o, s.RemoveObject(o.ID))
	assert.Empty(t, s.NearbyGroundItems(center))
	assert.Empty(t, s.NearbyObjects(center))
	assert.Equal(t, 2, s.FlushDestroyQueue())
}

func TestState_EachMotionCoversPlayersAndNpcs(t *testing.T) {
	s := NewState(DefaultOptions)
	addPlayer(t, s, 1, "alice", 100, 100)
	_, err := s.SpawnNpc(NpcSpawn{Pos: Position{X: 10, Y: 10}})
	require.NoError(t, err)

	n := 0
	s.EachMotion(func(_ ecs.EntityID, _ *Motion) { n++ })
	assert.Equal(t, 2, n)
}
