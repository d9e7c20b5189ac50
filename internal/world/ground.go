package world

import "github.com/rscgo/server/internal/core/ecs"

// GroundItem is an item lying on a tile. Not persisted and never diffed by
// the view synchronizer; clients learn about items through NearbyGroundItems.
type GroundItem struct {
	ID       ecs.EntityID
	ItemID   int32 // template ID
	Amount   int32
	Pos      Position
	OwnerID  ecs.EntityID // player who dropped it (zero = anyone may pick up)
	TTLTicks int          // ticks until auto-delete (0 = permanent)

	region CellRef
}

func (g *GroundItem) EntityID() ecs.EntityID { return g.ID }
func (g *GroundItem) Position() Position     { return g.Pos }
func (g *GroundItem) regionRef() *CellRef    { return &g.region }

// GameObject is a static scenery object (tree, door, rock).
type GameObject struct {
	ID       ecs.EntityID
	ObjectID int32 // template ID
	Pos      Position
	Facing   Facing

	region CellRef
}

func (o *GameObject) EntityID() ecs.EntityID { return o.ID }
func (o *GameObject) Position() Position     { return o.Pos }
func (o *GameObject) regionRef() *CellRef    { return &o.region }
