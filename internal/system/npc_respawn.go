package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/world"
)

// NpcRespawnSystem counts down despawned NPCs and brings them back at their
// spawn point under a fresh entity ID. Phase 2 (Update).
type NpcRespawnSystem struct {
	world *world.State
	log   *zap.Logger
}

func NewNpcRespawnSystem(ws *world.State, log *zap.Logger) *NpcRespawnSystem {
	return &NpcRespawnSystem{world: ws, log: log}
}

func (s *NpcRespawnSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *NpcRespawnSystem) Update(_ context.Context, _ time.Duration) {
	if s.world.PendingRespawns() == 0 {
		return
	}
	spawned, err := s.world.TickRespawns()
	if err != nil {
		s.log.Warn("npc respawn", zap.Error(err))
	}
	for _, n := range spawned {
		s.log.Debug("npc respawned",
			zap.Stringer("id", n.ID),
			zap.Int32("template", n.TemplateID),
			zap.Int32("x", n.Motion.Pos.X),
			zap.Int32("y", n.Motion.Pos.Y),
		)
	}
}
