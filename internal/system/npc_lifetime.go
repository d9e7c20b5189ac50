package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/world"
)

// NpcLifetimeSystem despawns NPCs spawned with a limited lifetime and queues
// their respawn. Register it after NpcRespawnSystem so a despawn's respawn
// countdown starts on the following tick. Phase 2 (Update).
type NpcLifetimeSystem struct {
	world *world.State
	log   *zap.Logger
}

func NewNpcLifetimeSystem(ws *world.State, log *zap.Logger) *NpcLifetimeSystem {
	return &NpcLifetimeSystem{world: ws, log: log}
}

func (s *NpcLifetimeSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *NpcLifetimeSystem) Update(_ context.Context, _ time.Duration) {
	for _, n := range s.world.Npcs() {
		if n.Lifetime <= 0 {
			continue
		}
		n.LifeTimer--
		if n.LifeTimer > 0 {
			continue
		}
		if err := s.world.DespawnNpc(n.ID, n.RespawnTicks); err != nil {
			s.log.Warn("npc despawn", zap.Stringer("id", n.ID), zap.Error(err))
			continue
		}
		s.log.Debug("npc lifetime ended",
			zap.Stringer("id", n.ID),
			zap.Int32("template", n.TemplateID),
			zap.Int("respawn_ticks", n.RespawnTicks),
		)
	}
}
