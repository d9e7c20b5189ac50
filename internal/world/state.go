package world

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rscgo/server/internal/core/ecs"
)

var (
	ErrOutOfBounds   = errors.New("position outside the world")
	ErrNotIndexed    = errors.New("entity is not in the region index")
	ErrUnknownEntity = errors.New("unknown entity")
	ErrNameInUse     = errors.New("username already in world")
	ErrInvalidFacing = errors.New("invalid facing")
)

// Options configures a State.
type Options struct {
	CellSize   int32
	Bounds     Bounds
	ViewRange  int32
	VisibleCap int
}

// DefaultOptions are the classic client's limits.
var DefaultOptions = Options{
	CellSize:   DefaultCellSize,
	Bounds:     DefaultBounds,
	ViewRange:  16,
	VisibleCap: MaxVisible,
}

// State tracks every entity currently in-world.
// Mutated only from the game loop goroutine. The visibility phase reads it
// from several goroutines at once while nothing mutates it.
type State struct {
	ecs     *ecs.World
	players *ecs.PtrComponentStore[Player]
	known   *ecs.PtrComponentStore[KnownEntities]
	npcs    *ecs.PtrComponentStore[Npc]
	items   *ecs.PtrComponentStore[GroundItem]
	objects *ecs.PtrComponentStore[GameObject]
	motions *ecs.PtrComponentStore[Motion]

	regions   *RegionIndex
	bySession map[uint64]*Player
	byName    map[string]*Player

	respawns []pendingRespawn

	viewRange  int32
	visibleCap int
}

type pendingRespawn struct {
	npc   *Npc
	ticks int
}

func NewState(opts Options) *State {
	w := ecs.NewWorld()
	s := &State{
		ecs:        w,
		players:    ecs.NewPtrComponentStore[Player](),
		known:      ecs.NewPtrComponentStore[KnownEntities](),
		npcs:       ecs.NewPtrComponentStore[Npc](),
		items:      ecs.NewPtrComponentStore[GroundItem](),
		objects:    ecs.NewPtrComponentStore[GameObject](),
		motions:    ecs.NewPtrComponentStore[Motion](),
		regions:    NewRegionIndex(opts.CellSize, opts.Bounds),
		bySession:  make(map[uint64]*Player),
		byName:     make(map[string]*Player),
		viewRange:  opts.ViewRange,
		visibleCap: opts.VisibleCap,
	}
	reg := w.Registry()
	reg.Register(s.players)
	reg.Register(s.known)
	reg.Register(s.npcs)
	reg.Register(s.items)
	reg.Register(s.objects)
	reg.Register(s.motions)
	return s
}

func (s *State) Regions() *RegionIndex { return s.regions }
func (s *State) ViewRange() int32      { return s.viewRange }
func (s *State) VisibleCap() int       { return s.visibleCap }

// QueryRadius is the region query radius, in cells, that covers the view range.
func (s *State) QueryRadius() int {
	return s.regions.CellRadius(s.viewRange)
}

func (s *State) checkPosition(pos Position) error {
	if !s.regions.WithinWorld(pos.X, pos.Y) || !s.regions.ValidPlane(pos.Plane) {
		return fmt.Errorf("%w: (%d,%d) plane %d", ErrOutOfBounds, pos.X, pos.Y, pos.Plane)
	}
	return nil
}

// --- Players ---

// AddPlayer puts p into the world at pos. The ID, motion record and visible
// sets are assigned here; the caller fills in identity, look and Out.
func (s *State) AddPlayer(p *Player, pos Position, facing Facing) error {
	if err := s.checkPosition(pos); err != nil {
		return err
	}
	if _, taken := s.byName[p.Username]; taken {
		return fmt.Errorf("%w: %s", ErrNameInUse, p.Username)
	}
	p.ID = s.ecs.CreateEntity()
	p.Motion = NewMotion(pos, facing)
	p.Known = NewKnownEntities(s.visibleCap)
	p.Connected = true
	s.players.Set(p.ID, p)
	s.known.Set(p.ID, p.Known)
	s.motions.Set(p.ID, p.Motion)
	s.regions.Add(KindPlayer, p)
	s.bySession[p.SessionID] = p
	s.byName[p.Username] = p
	return nil
}

// RemovePlayer takes a player out of the world. The player stops being a
// viewer immediately; other clients prune it on the next visibility pass.
// Its components are released when the destroy queue is flushed.
func (s *State) RemovePlayer(sessionID uint64) *Player {
	p := s.bySession[sessionID]
	if p == nil {
		return nil
	}
	p.Connected = false
	s.regions.Remove(KindPlayer, p)
	s.known.Remove(p.ID)
	p.Known.Reset()
	delete(s.bySession, sessionID)
	delete(s.byName, p.Username)
	s.ecs.MarkForDestruction(p.ID)
	return p
}

// Player returns a player by ID. Players that left this tick are still
// returned until the destroy queue is flushed; check Live.
func (s *State) Player(id ecs.EntityID) (*Player, bool) {
	return s.players.Get(id)
}

func (s *State) PlayerBySession(sessionID uint64) *Player {
	return s.bySession[sessionID]
}

func (s *State) PlayerByName(name string) *Player {
	return s.byName[name]
}

// PlayerCount returns the number of players in-world.
func (s *State) PlayerCount() int {
	return len(s.bySession)
}

// Viewers returns every connected player that owns visible sets, ordered by
// entity ID.
func (s *State) Viewers() []*Player {
	out := make([]*Player, 0, s.known.Len())
	ecs.Each2(s.players, s.known, func(_ ecs.EntityID, p *Player, _ *KnownEntities) {
		if p.Connected {
			out = append(out, p)
		}
	})
	slices.SortFunc(out, func(a, b *Player) int { return compareIDs(a.ID, b.ID) })
	return out
}

// MovePlayer walks a player to (x, y) on its current plane. Facing follows
// the step direction.
func (s *State) MovePlayer(sessionID uint64, x, y int32) error {
	p := s.bySession[sessionID]
	if p == nil {
		return fmt.Errorf("%w: session %d", ErrUnknownEntity, sessionID)
	}
	return s.step(KindPlayer, p, p.Motion, x, y)
}

// FacePlayer turns a player without moving it.
func (s *State) FacePlayer(sessionID uint64, facing Facing) error {
	p := s.bySession[sessionID]
	if p == nil {
		return fmt.Errorf("%w: session %d", ErrUnknownEntity, sessionID)
	}
	if !facing.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidFacing, facing)
	}
	p.Motion.Turn(facing)
	return nil
}

// TeleportPlayer moves a player to any in-world position, including another
// plane. Viewers left behind see it removed on the next pass.
func (s *State) TeleportPlayer(sessionID uint64, to Position) error {
	p := s.bySession[sessionID]
	if p == nil {
		return fmt.Errorf("%w: session %d", ErrUnknownEntity, sessionID)
	}
	if err := s.checkPosition(to); err != nil {
		return err
	}
	if !p.region.set {
		return ErrNotIndexed
	}
	old := p.Motion.Pos
	p.Motion.Step(to, p.Motion.Facing)
	s.regions.Relocate(KindPlayer, p, old.X, old.Y)
	return nil
}

// step moves e to (x, y) on its plane and keeps the region index in sync.
func (s *State) step(kind Kind, e Locatable, m *Motion, x, y int32) error {
	to := Position{X: x, Y: y, Plane: m.Pos.Plane}
	if err := s.checkPosition(to); err != nil {
		return err
	}
	if !e.regionRef().set {
		return ErrNotIndexed
	}
	old := m.Pos
	m.Step(to, FacingFromStep(x-old.X, y-old.Y, m.Facing))
	s.regions.Relocate(kind, e, old.X, old.Y)
	return nil
}

// --- NPCs ---

// NpcSpawn describes where and how an NPC appears.
type NpcSpawn struct {
	TemplateID   int32
	Pos          Position
	Facing       Facing
	WanderRadius int32

	// Lifetime > 0 despawns the NPC after that many ticks; it comes back
	// after RespawnTicks when that is also set.
	Lifetime     int
	RespawnTicks int
}

// SpawnNpc creates an NPC and indexes it.
func (s *State) SpawnNpc(spawn NpcSpawn) (*Npc, error) {
	if err := s.checkPosition(spawn.Pos); err != nil {
		return nil, err
	}
	n := &Npc{
		ID:           s.ecs.CreateEntity(),
		TemplateID:   spawn.TemplateID,
		Motion:       NewMotion(spawn.Pos, spawn.Facing),
		Spawn:        spawn.Pos,
		SpawnFacing:  spawn.Facing,
		WanderRadius: spawn.WanderRadius,
		Lifetime:     spawn.Lifetime,
		RespawnTicks: spawn.RespawnTicks,
		LifeTimer:    spawn.Lifetime,
	}
	s.npcs.Set(n.ID, n)
	s.motions.Set(n.ID, n.Motion)
	s.regions.Add(KindNpc, n)
	return n, nil
}

func (s *State) Npc(id ecs.EntityID) (*Npc, bool) {
	return s.npcs.Get(id)
}

// NpcCount returns the number of NPCs present in the world.
func (s *State) NpcCount() int {
	return s.regions.EntityCount(KindNpc)
}

// Npcs returns every live NPC ordered by entity ID.
func (s *State) Npcs() []*Npc {
	out := make([]*Npc, 0, s.npcs.Len())
	s.npcs.Each(func(_ ecs.EntityID, n *Npc) {
		if n.Live() {
			out = append(out, n)
		}
	})
	slices.SortFunc(out, func(a, b *Npc) int { return compareIDs(a.ID, b.ID) })
	return out
}

// MoveNpc walks an NPC to (x, y) on its current plane.
func (s *State) MoveNpc(id ecs.EntityID, x, y int32) error {
	n, ok := s.npcs.Get(id)
	if !ok {
		return fmt.Errorf("%w: npc %s", ErrUnknownEntity, id)
	}
	return s.step(KindNpc, n, n.Motion, x, y)
}

// DespawnNpc removes an NPC from the world. With respawnTicks > 0 a fresh
// NPC with a new ID reappears at the spawn point after that many calls to
// TickRespawns.
func (s *State) DespawnNpc(id ecs.EntityID, respawnTicks int) error {
	n, ok := s.npcs.Get(id)
	if !ok || n.Removed {
		return fmt.Errorf("%w: npc %s", ErrUnknownEntity, id)
	}
	n.Removed = true
	s.regions.Remove(KindNpc, n)
	s.ecs.MarkForDestruction(n.ID)
	if respawnTicks > 0 {
		s.respawns = append(s.respawns, pendingRespawn{npc: n, ticks: respawnTicks})
	}
	return nil
}

// RespawnNpc spawns a copy of a despawned NPC at its spawn point.
func (s *State) RespawnNpc(old *Npc) (*Npc, error) {
	return s.SpawnNpc(NpcSpawn{
		TemplateID:   old.TemplateID,
		Pos:          old.Spawn,
		Facing:       old.SpawnFacing,
		WanderRadius: old.WanderRadius,
		Lifetime:     old.Lifetime,
		RespawnTicks: old.RespawnTicks,
	})
}

// TickRespawns counts down pending respawns and spawns the due ones.
func (s *State) TickRespawns() ([]*Npc, error) {
	var spawned []*Npc
	var errs []error
	kept := s.respawns[:0]
	for _, r := range s.respawns {
		r.ticks--
		if r.ticks > 0 {
			kept = append(kept, r)
			continue
		}
		n, err := s.RespawnNpc(r.npc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		spawned = append(spawned, n)
	}
	clear(s.respawns[len(kept):])
	s.respawns = kept
	return spawned, errors.Join(errs...)
}

// PendingRespawns returns the number of NPCs waiting to respawn.
func (s *State) PendingRespawns() int {
	return len(s.respawns)
}

// --- Ground items and objects ---

func (s *State) AddGroundItem(g *GroundItem) error {
	if err := s.checkPosition(g.Pos); err != nil {
		return err
	}
	g.ID = s.ecs.CreateEntity()
	s.items.Set(g.ID, g)
	s.regions.Add(KindGroundItem, g)
	return nil
}

func (s *State) RemoveGroundItem(id ecs.EntityID) *GroundItem {
	g, ok := s.items.Get(id)
	if !ok {
		return nil
	}
	s.regions.Remove(KindGroundItem, g)
	s.items.Remove(id)
	s.ecs.MarkForDestruction(id)
	return g
}

// GroundItems returns every ground item ordered by entity ID.
func (s *State) GroundItems() []*GroundItem {
	out := make([]*GroundItem, 0, s.items.Len())
	s.items.Each(func(_ ecs.EntityID, g *GroundItem) { out = append(out, g) })
	slices.SortFunc(out, func(a, b *GroundItem) int { return compareIDs(a.ID, b.ID) })
	return out
}

func (s *State) AddObject(o *GameObject) error {
	if err := s.checkPosition(o.Pos); err != nil {
		return err
	}
	o.ID = s.ecs.CreateEntity()
	s.objects.Set(o.ID, o)
	s.regions.Add(KindObject, o)
	return nil
}

func (s *State) RemoveObject(id ecs.EntityID) *GameObject {
	o, ok := s.objects.Get(id)
	if !ok {
		return nil
	}
	s.regions.Remove(KindObject, o)
	s.objects.Remove(id)
	s.ecs.MarkForDestruction(id)
	return o
}

// --- Proximity ---

// NearbyPlayers returns the live players within view range of pos, in
// region query order.
func (s *State) NearbyPlayers(pos Position) []*Player {
	found := s.regions.Query(KindPlayer, pos.Plane, pos.X, pos.Y, s.QueryRadius())
	out := make([]*Player, 0, len(found))
	for _, e := range found {
		p := e.(*Player)
		if p.Live() && WithinRange(pos, p.Motion.Pos, s.viewRange) {
			out = append(out, p)
		}
	}
	return out
}

// NearbyNpcs returns the live NPCs within view range of pos, in region
// query order.
func (s *State) NearbyNpcs(pos Position) []*Npc {
	found := s.regions.Query(KindNpc, pos.Plane, pos.X, pos.Y, s.QueryRadius())
	out := make([]*Npc, 0, len(found))
	for _, e := range found {
		n := e.(*Npc)
		if n.Live() && WithinRange(pos, n.Motion.Pos, s.viewRange) {
			out = append(out, n)
		}
	}
	return out
}

func (s *State) NearbyGroundItems(pos Position) []*GroundItem {
	found := s.regions.Query(KindGroundItem, pos.Plane, pos.X, pos.Y, s.QueryRadius())
	out := make([]*GroundItem, 0, len(found))
	for _, e := range found {
		g := e.(*GroundItem)
		if WithinRange(pos, g.Pos, s.viewRange) {
			out = append(out, g)
		}
	}
	return out
}

func (s *State) NearbyObjects(pos Position) []*GameObject {
	found := s.regions.Query(KindObject, pos.Plane, pos.X, pos.Y, s.QueryRadius())
	out := make([]*GameObject, 0, len(found))
	for _, e := range found {
		o := e.(*GameObject)
		if WithinRange(pos, o.Pos, s.viewRange) {
			out = append(out, o)
		}
	}
	return out
}

// --- Tick bookkeeping ---

// EachMotion visits every motion record, players and NPCs alike.
func (s *State) EachMotion(fn func(ecs.EntityID, *Motion)) {
	s.motions.Each(fn)
}

// FlushDestroyQueue releases entities removed during the tick.
func (s *State) FlushDestroyQueue() int {
	return s.ecs.FlushDestroyQueue()
}

// Alive reports whether id refers to an entity that has not been released.
func (s *State) Alive(id ecs.EntityID) bool {
	return s.ecs.Alive(id)
}

func compareIDs(a, b ecs.EntityID) int {
	switch {
	case a.Index() < b.Index():
		return -1
	case a.Index() > b.Index():
		return 1
	}
	return 0
}
