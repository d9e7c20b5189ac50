package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rscgo/server/internal/core/ecs"
	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/world"
)

// MovementCommitSystem snapshots every motion record once all players have
// been diffed. A truncated tick commits nothing, so its movement is reported
// again on the next pass. Phase 6 (Cleanup), registered before CleanupSystem.
type MovementCommitSystem struct {
	world *world.State
	gate  *TickGate
	log   *zap.Logger
}

func NewMovementCommitSystem(ws *world.State, gate *TickGate, log *zap.Logger) *MovementCommitSystem {
	return &MovementCommitSystem{world: ws, gate: gate, log: log}
}

func (s *MovementCommitSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *MovementCommitSystem) Update(ctx context.Context, _ time.Duration) {
	tick := coresys.TickNumber(ctx)
	if s.gate.Truncated(tick) {
		s.log.Debug("skipping movement commit for truncated tick", zap.Uint64("tick", tick))
		return
	}
	s.world.EachMotion(func(id ecs.EntityID, m *world.Motion) {
		if err := m.Commit(tick); err != nil {
			s.log.Warn("movement commit", zap.Stringer("entity", id), zap.Uint64("tick", tick), zap.Error(err))
		}
	})
}
