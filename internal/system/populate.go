package system

import (
	"go.uber.org/zap"

	"github.com/rscgo/server/internal/data"
	"github.com/rscgo/server/internal/world"
)

// Populated counts what Populate placed.
type Populated struct {
	Npcs        int
	Objects     int
	GroundItems int
}

// Populate places the spawn table's NPCs, objects and ground items into the
// world. Entries outside the map are logged and skipped. intn spreads
// multi-count NPC entries, see data.SpawnTable.Placements.
func Populate(ws *world.State, spawns *data.SpawnTable, intn func(n int) int, log *zap.Logger) Populated {
	var out Populated
	for _, pl := range spawns.Placements(intn) {
		_, err := ws.SpawnNpc(world.NpcSpawn{
			TemplateID:   pl.NpcID,
			Pos:          world.Position{X: pl.X, Y: pl.Y, Plane: pl.Plane},
			Facing:       world.Facing(pl.Facing),
			WanderRadius: pl.WanderRadius,
			Lifetime:     pl.Lifetime,
			RespawnTicks: pl.RespawnTicks,
		})
		if err != nil {
			log.Warn("npc spawn skipped", zap.Int32("npc", pl.NpcID), zap.Int32("x", pl.X), zap.Int32("y", pl.Y), zap.Error(err))
			continue
		}
		out.Npcs++
	}
	for _, o := range spawns.Objects() {
		err := ws.AddObject(&world.GameObject{
			ObjectID: o.ObjectID,
			Pos:      world.Position{X: o.X, Y: o.Y, Plane: o.Plane},
			Facing:   world.Facing(o.Facing),
		})
		if err != nil {
			log.Warn("object skipped", zap.Int32("object", o.ObjectID), zap.Int32("x", o.X), zap.Int32("y", o.Y), zap.Error(err))
			continue
		}
		out.Objects++
	}
	for _, g := range spawns.GroundItems() {
		err := ws.AddGroundItem(&world.GroundItem{
			ItemID:   g.ItemID,
			Amount:   g.Amount,
			Pos:      world.Position{X: g.X, Y: g.Y, Plane: g.Plane},
			TTLTicks: g.TTLTicks,
		})
		if err != nil {
			log.Warn("ground item skipped", zap.Int32("item", g.ItemID), zap.Int32("x", g.X), zap.Int32("y", g.Y), zap.Error(err))
			continue
		}
		out.GroundItems++
	}
	return out
}
