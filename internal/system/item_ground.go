package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/world"
)

// GroundItemSystem counts down ground item lifetimes and removes expired
// items from the world. Items with TTLTicks == 0 stay forever.
// Phase 2 (Update).
type GroundItemSystem struct {
	world *world.State
	log   *zap.Logger
}

func NewGroundItemSystem(ws *world.State, log *zap.Logger) *GroundItemSystem {
	return &GroundItemSystem{world: ws, log: log}
}

func (s *GroundItemSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *GroundItemSystem) Update(_ context.Context, _ time.Duration) {
	for _, g := range s.world.GroundItems() {
		if g.TTLTicks <= 0 {
			continue
		}
		g.TTLTicks--
		if g.TTLTicks > 0 {
			continue
		}
		if s.world.RemoveGroundItem(g.ID) != nil {
			s.log.Debug("ground item expired", zap.Stringer("id", g.ID), zap.Int32("item", g.ItemID))
		}
	}
}
