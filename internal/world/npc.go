package world

import "github.com/rscgo/server/internal/core/ecs"

// Npc holds runtime data for an NPC currently in-world.
// Accessed only from the game loop goroutine, read-only during visibility.
type Npc struct {
	ID         ecs.EntityID
	TemplateID int32
	Motion     *Motion

	// Spawn data for wandering and respawning
	Spawn        Position
	SpawnFacing  Facing
	WanderRadius int32
	Lifetime     int // ticks in world per spawn, 0 = forever
	RespawnTicks int

	// State
	Removed     bool // despawned; kept until the destroy queue is flushed
	WanderTimer int  // ticks until next wander step
	LifeTimer   int  // ticks left before despawn when Lifetime > 0

	region CellRef
}

func (n *Npc) EntityID() ecs.EntityID { return n.ID }
func (n *Npc) Position() Position     { return n.Motion.Pos }
func (n *Npc) regionRef() *CellRef    { return &n.region }

// Live reports whether the NPC is present in the world.
func (n *Npc) Live() bool { return !n.Removed && n.region.set }
