package system

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rscgo/server/internal/core/ecs"
	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/metrics"
	"github.com/rscgo/server/internal/world"
)

// recorder is a fake Outbox keeping every update it receives.
type recorder struct {
	players []*world.PlayerUpdate
	npcs    []*world.NpcUpdate
}

func (r *recorder) SendPlayerUpdate(u *world.PlayerUpdate) { r.players = append(r.players, u) }
func (r *recorder) SendNpcUpdate(u *world.NpcUpdate)       { r.npcs = append(r.npcs, u) }

func (r *recorder) reset() {
	r.players = nil
	r.npcs = nil
}

type harness struct {
	world   *world.State
	gate    *TickGate
	runner  *coresys.Runner
	metrics *metrics.Sync
	nextSID uint64
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()
	h := &harness{
		world:   world.NewState(world.DefaultOptions),
		gate:    &TickGate{},
		runner:  coresys.NewRunner(),
		metrics: metrics.NewSync(prometheus.NewRegistry()),
	}
	log := zap.NewNop()
	h.runner.Register(NewVisibilitySystem(h.world, h.gate, workers, h.metrics, log))
	h.runner.Register(NewMovementCommitSystem(h.world, h.gate, log))
	h.runner.Register(NewCleanupSystem(h.world, log))
	return h
}

func (h *harness) tick() {
	h.runner.Tick(context.Background(), 640*time.Millisecond)
}

func (h *harness) addPlayer(t *testing.T, name string, x, y int32) (*world.Player, *recorder) {
	t.Helper()
	h.nextSID++
	rec := &recorder{}
	p := &world.Player{
		SessionID:   h.nextSID,
		Username:    name,
		CombatLevel: world.DefaultCombatLevel,
		Appearance:  world.DefaultAppearance,
		Out:         rec,
	}
	require.NoError(t, h.world.AddPlayer(p, world.Position{X: x, Y: y}, world.FacingSouth))
	return p, rec
}

func (h *harness) spawnNpc(t *testing.T, x, y int32) *world.Npc {
	t.Helper()
	n, err := h.world.SpawnNpc(world.NpcSpawn{TemplateID: 7, Pos: world.Position{X: x, Y: y}, Facing: world.FacingNorth})
	require.NoError(t, err)
	return n
}

func npcRecordIDs(u *world.NpcUpdate) []ecs.EntityID {
	var ids []ecs.EntityID
	for _, r := range u.Removed {
		ids = append(ids, r.ID)
	}
	for _, r := range u.Moved {
		ids = append(ids, r.ID)
	}
	for _, r := range u.FacingChanged {
		ids = append(ids, r.ID)
	}
	for _, r := range u.Added {
		ids = append(ids, r.ID)
	}
	return ids
}

func playerRecordIDs(u *world.PlayerUpdate) []ecs.EntityID {
	var ids []ecs.EntityID
	for _, r := range u.Removed {
		ids = append(ids, r.ID)
	}
	for _, r := range u.Moved {
		ids = append(ids, r.ID)
	}
	for _, r := range u.FacingChanged {
		ids = append(ids, r.ID)
	}
	for _, r := range u.Added {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestVisibility_NpcEntersThenSilenceThenLeaves(t *testing.T) {
	h := newHarness(t, 1)
	_, rec := h.addPlayer(t, "alice", 100, 100)
	n := h.spawnNpc(t, 114, 100)

	h.tick()
	assert.Empty(t, rec.players, "no other players, no player update")
	require.Len(t, rec.npcs, 1)
	assert.Equal(t, []world.NpcAdded{{
		ID: n.ID, X: 114, Y: 100, Facing: world.FacingNorth, TemplateID: 7,
	}}, rec.npcs[0].Added)
	assert.Empty(t, rec.npcs[0].Removed)
	assert.Empty(t, rec.npcs[0].Moved)

	rec.reset()
	h.tick()
	assert.Empty(t, rec.npcs, "nothing changed, nothing sent")

	require.NoError(t, h.world.MoveNpc(n.ID, 117, 100))
	h.tick()
	require.Len(t, rec.npcs, 1)
	assert.Equal(t, []world.Removed{{ID: n.ID}}, rec.npcs[0].Removed)
	assert.Empty(t, rec.npcs[0].Moved, "removed entities get no moved record")
}

func TestVisibility_MovedCarriesAbsolutePosition(t *testing.T) {
	h := newHarness(t, 1)
	_, rec := h.addPlayer(t, "alice", 100, 100)
	n := h.spawnNpc(t, 105, 100)
	h.tick()
	rec.reset()

	require.NoError(t, h.world.MoveNpc(n.ID, 106, 101))
	h.tick()
	require.Len(t, rec.npcs, 1)
	assert.Equal(t, []world.Moved{{ID: n.ID, X: 106, Y: 101, Facing: world.FacingSouthEast}}, rec.npcs[0].Moved)
	assert.Empty(t, rec.npcs[0].FacingChanged)
}

func TestVisibility_PlayersSeeEachOther(t *testing.T) {
	h := newHarness(t, 1)
	alice, arec := h.addPlayer(t, "alice", 100, 100)
	bob, brec := h.addPlayer(t, "bob", 103, 100)

	h.tick()
	require.Len(t, arec.players, 1)
	assert.Equal(t, []world.PlayerAdded{{
		ID:          bob.ID,
		X:           103,
		Y:           100,
		Facing:      world.FacingSouth,
		Username:    "bob",
		CombatLevel: world.DefaultCombatLevel,
		Appearance:  world.DefaultAppearance,
	}}, arec.players[0].Added)
	require.Len(t, brec.players, 1)
	require.Len(t, brec.players[0].Added, 1)
	assert.Equal(t, alice.ID, brec.players[0].Added[0].ID)
	assert.False(t, alice.Known.Players.Has(alice.ID), "a player never sees itself")
}

func TestVisibility_FacingOnlyChange(t *testing.T) {
	h := newHarness(t, 1)
	_, arec := h.addPlayer(t, "alice", 100, 100)
	bob, _ := h.addPlayer(t, "bob", 101, 100)
	h.tick()
	arec.reset()

	require.NoError(t, h.world.FacePlayer(bob.SessionID, world.FacingEast))
	h.tick()
	require.Len(t, arec.players, 1)
	assert.Equal(t, []world.FacingChanged{{ID: bob.ID, Facing: world.FacingEast}}, arec.players[0].FacingChanged)
	assert.Empty(t, arec.players[0].Moved)

	// moving and turning in one tick yields a single moved record
	arec.reset()
	require.NoError(t, h.world.MovePlayer(bob.SessionID, 101, 101))
	h.tick()
	require.Len(t, arec.players, 1)
	assert.Len(t, arec.players[0].Moved, 1)
	assert.Empty(t, arec.players[0].FacingChanged)
}

func TestVisibility_CapacityBound(t *testing.T) {
	h := newHarness(t, 4)
	p, rec := h.addPlayer(t, "alice", 100, 100)
	var npcs []*world.Npc
	for x := int32(85); x < 115; x++ {
		for y := int32(90); y < 100; y++ {
			npcs = append(npcs, h.spawnNpc(t, x, y))
		}
	}
	require.Len(t, npcs, 300)

	h.tick()
	require.Len(t, rec.npcs, 1)
	assert.Len(t, rec.npcs[0].Added, world.MaxVisible)
	assert.Equal(t, world.MaxVisible, p.Known.Npcs.Len())
	assert.True(t, p.Known.Npcs.Full())

	var gone []ecs.EntityID
	for _, n := range npcs {
		if len(gone) == 10 {
			break
		}
		if p.Known.Npcs.Has(n.ID) {
			require.NoError(t, h.world.MoveNpc(n.ID, 200, n.Motion.Pos.Y))
			gone = append(gone, n.ID)
		}
	}
	before := map[ecs.EntityID]bool{}
	for _, id := range p.Known.Npcs.IDs() {
		before[id] = true
	}

	rec.reset()
	h.tick()
	require.Len(t, rec.npcs, 1)
	u := rec.npcs[0]
	assert.Len(t, u.Removed, 10)
	assert.Len(t, u.Added, 10, "45 candidates are waiting for the 10 freed slots")
	for _, a := range u.Added {
		assert.False(t, before[a.ID], "admitted NPC %s was already visible", a.ID)
	}
	assert.Equal(t, world.MaxVisible, p.Known.Npcs.Len())
}

func TestVisibility_PlayerLeavesWorld(t *testing.T) {
	h := newHarness(t, 1)
	_, arec := h.addPlayer(t, "alice", 100, 100)
	bob, _ := h.addPlayer(t, "bob", 102, 102)
	h.tick()
	arec.reset()

	require.NotNil(t, h.world.RemovePlayer(bob.SessionID))
	h.tick()
	require.Len(t, arec.players, 1)
	assert.Equal(t, []world.Removed{{ID: bob.ID}}, arec.players[0].Removed)
	assert.False(t, h.world.Alive(bob.ID), "destroy queue flushed at tick end")

	arec.reset()
	h.tick()
	assert.Empty(t, arec.players)
}

func TestVisibility_TeleportToAnotherPlane(t *testing.T) {
	h := newHarness(t, 1)
	_, arec := h.addPlayer(t, "alice", 100, 100)
	bob, _ := h.addPlayer(t, "bob", 101, 100)
	h.tick()
	arec.reset()

	require.NoError(t, h.world.TeleportPlayer(bob.SessionID, world.Position{X: 101, Y: 100, Plane: 1}))
	h.tick()
	require.Len(t, arec.players, 1)
	assert.Equal(t, []world.Removed{{ID: bob.ID}}, arec.players[0].Removed)
}

func TestVisibility_NpcRespawnsUnderNewID(t *testing.T) {
	h := newHarness(t, 1)
	h.runner.Register(NewNpcRespawnSystem(h.world, zap.NewNop()))
	_, rec := h.addPlayer(t, "alice", 100, 100)
	n := h.spawnNpc(t, 104, 104)
	h.tick()
	rec.reset()

	require.NoError(t, h.world.DespawnNpc(n.ID, 2))
	h.tick()
	require.Len(t, rec.npcs, 1)
	assert.Equal(t, []world.Removed{{ID: n.ID}}, rec.npcs[0].Removed)

	rec.reset()
	h.tick() // respawn happens in Update, before this tick's diff
	require.Len(t, rec.npcs, 1)
	require.Len(t, rec.npcs[0].Added, 1)
	added := rec.npcs[0].Added[0]
	assert.NotEqual(t, n.ID, added.ID)
	assert.Equal(t, int32(104), added.X)
	assert.Equal(t, int32(104), added.Y)
}

func TestVisibility_TruncatedTickSkipsCommit(t *testing.T) {
	h := newHarness(t, 2)
	_, rec := h.addPlayer(t, "alice", 100, 100)
	n := h.spawnNpc(t, 105, 100)
	h.tick()
	rec.reset()

	require.NoError(t, h.world.MoveNpc(n.ID, 106, 100))
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	h.runner.Tick(expired, 640*time.Millisecond)

	assert.Empty(t, rec.npcs, "no player was diffed")
	assert.True(t, h.gate.Truncated(h.runner.Ticks()))
	assert.True(t, n.Motion.HasMoved(), "commit skipped")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.TruncatedTicks))

	h.tick()
	require.Len(t, rec.npcs, 1)
	assert.Equal(t, []world.Moved{{ID: n.ID, X: 106, Y: 100, Facing: world.FacingEast}}, rec.npcs[0].Moved)
	assert.False(t, n.Motion.HasMoved())
}

// budgetCtx reports its deadline as exceeded once allowed Err checks have
// passed.
type budgetCtx struct {
	context.Context
	allowed int
}

func (c *budgetCtx) Err() error {
	if c.allowed > 0 {
		c.allowed--
		return nil
	}
	return context.DeadlineExceeded
}

func TestVisibility_StepBackAfterPartialTick(t *testing.T) {
	h := newHarness(t, 1)
	_, arec := h.addPlayer(t, "alice", 100, 100)
	_, brec := h.addPlayer(t, "bob", 100, 100)
	n := h.spawnNpc(t, 105, 100)
	h.tick()
	arec.reset()
	brec.reset()

	// the budget runs out after alice
	require.NoError(t, h.world.MoveNpc(n.ID, 106, 100))
	h.runner.Tick(&budgetCtx{Context: context.Background(), allowed: 1}, 640*time.Millisecond)
	require.True(t, h.gate.Truncated(h.runner.Ticks()))
	require.Len(t, arec.npcs, 1)
	assert.Equal(t, []world.Moved{{ID: n.ID, X: 106, Y: 100, Facing: world.FacingEast}}, arec.npcs[0].Moved)
	assert.Empty(t, brec.npcs)
	arec.reset()

	// back onto the last committed tile
	require.NoError(t, h.world.MoveNpc(n.ID, 105, 100))
	h.tick()
	want := []world.Moved{{ID: n.ID, X: 105, Y: 100, Facing: world.FacingWest}}
	require.Len(t, arec.npcs, 1)
	assert.Equal(t, want, arec.npcs[0].Moved)
	assert.Empty(t, arec.npcs[0].FacingChanged)
	require.Len(t, brec.npcs, 1)
	assert.Equal(t, want, brec.npcs[0].Moved)

	arec.reset()
	brec.reset()
	h.tick()
	assert.Empty(t, arec.npcs)
	assert.Empty(t, brec.npcs)
}

func TestVisibility_TruncatedTickKeepsVisibleGauge(t *testing.T) {
	h := newHarness(t, 1)
	h.addPlayer(t, "alice", 100, 100)
	h.addPlayer(t, "bob", 101, 100)
	h.spawnNpc(t, 105, 100)
	h.tick()
	gauge := func(category string) float64 {
		return testutil.ToFloat64(h.metrics.VisibleMembers.WithLabelValues(category))
	}
	require.Equal(t, 2.0, gauge(metrics.CategoryPlayers))
	require.Equal(t, 2.0, gauge(metrics.CategoryNpcs))

	h.runner.Tick(&budgetCtx{Context: context.Background(), allowed: 1}, 640*time.Millisecond)
	require.True(t, h.gate.Truncated(h.runner.Ticks()))
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.PlayersDiffed), "one of two diffed")
	assert.Equal(t, 2.0, gauge(metrics.CategoryPlayers))
	assert.Equal(t, 2.0, gauge(metrics.CategoryNpcs))
}

func TestVisibility_Metrics(t *testing.T) {
	h := newHarness(t, 1)
	h.addPlayer(t, "alice", 100, 100)
	h.addPlayer(t, "bob", 101, 100)
	h.spawnNpc(t, 110, 110)
	h.tick()

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.PlayersDiffed))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Records.WithLabelValues(metrics.CategoryPlayers, metrics.KindAdded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Records.WithLabelValues(metrics.CategoryNpcs, metrics.KindAdded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.UpdatesSent.WithLabelValues(metrics.CategoryNpcs)))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.VisibleMembers.WithLabelValues(metrics.CategoryNpcs)))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.TruncatedTicks))
}

// randomWorld populates h and returns a function applying one tick's worth
// of random movement.
func randomWorld(t *testing.T, h *harness, seed int64) (step func(), recs []*recorder) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var players []*world.Player
	for i := 0; i < 20; i++ {
		p, rec := h.addPlayer(t, string(rune('a'+i)), 60+int32(rng.Intn(80)), 60+int32(rng.Intn(80)))
		players = append(players, p)
		recs = append(recs, rec)
	}
	var npcs []*world.Npc
	for i := 0; i < 80; i++ {
		npcs = append(npcs, h.spawnNpc(t, 60+int32(rng.Intn(80)), 60+int32(rng.Intn(80))))
	}
	clampTile := func(v int32) int32 {
		return min(max(v, 0), world.DefaultBounds.Width-1)
	}
	step = func() {
		for _, p := range players {
			switch rng.Intn(4) {
			case 0:
				pos := p.Motion.Pos
				require.NoError(t, h.world.MovePlayer(p.SessionID,
					clampTile(pos.X+int32(rng.Intn(7)-3)), clampTile(pos.Y+int32(rng.Intn(7)-3))))
			case 1:
				require.NoError(t, h.world.FacePlayer(p.SessionID, world.Facing(rng.Intn(8))))
			}
		}
		for _, n := range npcs {
			if rng.Intn(2) == 0 {
				pos := n.Motion.Pos
				require.NoError(t, h.world.MoveNpc(n.ID,
					clampTile(pos.X+int32(rng.Intn(9)-4)), clampTile(pos.Y+int32(rng.Intn(9)-4))))
			}
		}
	}
	return step, recs
}

func TestVisibility_SoundAndNoDuplicates(t *testing.T) {
	h := newHarness(t, 4)
	step, recs := randomWorld(t, h, 42)

	for i := 0; i < 30; i++ {
		step()
		h.tick()

		for _, rec := range recs {
			for _, u := range rec.players {
				ids := playerRecordIDs(u)
				assert.Len(t, ids, len(uniqueIDs(ids)), "duplicate player record in tick %d", i)
			}
			for _, u := range rec.npcs {
				ids := npcRecordIDs(u)
				assert.Len(t, ids, len(uniqueIDs(ids)), "duplicate npc record in tick %d", i)
			}
			rec.reset()
		}

		for _, viewer := range h.world.Viewers() {
			pos := viewer.Motion.Pos
			for _, id := range viewer.Known.Npcs.IDs() {
				n, ok := h.world.Npc(id)
				require.True(t, ok)
				assert.True(t, world.WithinRange(pos, n.Motion.Pos, h.world.ViewRange()))
			}
			var want []ecs.EntityID
			for _, n := range h.world.NearbyNpcs(pos) {
				want = append(want, n.ID)
			}
			assert.ElementsMatch(t, want, viewer.Known.Npcs.IDs(), "below capacity the view is exact")
		}
	}
}

func uniqueIDs(ids []ecs.EntityID) map[ecs.EntityID]struct{} {
	set := make(map[ecs.EntityID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestVisibility_WorkerCountDoesNotChangeOutput(t *testing.T) {
	serial := newHarness(t, 1)
	parallel := newHarness(t, 4)
	stepSerial, recsSerial := randomWorld(t, serial, 7)
	stepParallel, recsParallel := randomWorld(t, parallel, 7)

	for i := 0; i < 20; i++ {
		stepSerial()
		stepParallel()
		serial.tick()
		parallel.tick()
	}
	require.Len(t, recsParallel, len(recsSerial))
	for i := range recsSerial {
		assert.Equal(t, recsSerial[i].players, recsParallel[i].players, "player %d", i)
		assert.Equal(t, recsSerial[i].npcs, recsParallel[i].npcs, "player %d", i)
	}
}

func TestTickGate(t *testing.T) {
	var g TickGate
	assert.False(t, g.Truncated(0))
	assert.False(t, g.Truncated(3))
	g.MarkTruncated(3)
	assert.True(t, g.Truncated(3))
	assert.False(t, g.Truncated(4))
}
