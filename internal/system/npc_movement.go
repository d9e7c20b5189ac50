package system

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/scripting"
	"github.com/rscgo/server/internal/world"
)

// DefaultWanderInterval is the number of ticks an NPC waits between wander
// decisions.
const DefaultWanderInterval = 2

// NpcMovementSystem walks NPCs around their spawn point. The step rule comes
// from the Lua npc_wander function when one is loaded. Phase 2 (Update).
type NpcMovementSystem struct {
	world    *world.State
	engine   *scripting.Engine
	rng      *rand.Rand
	interval int
	log      *zap.Logger
}

// NewNpcMovementSystem creates the system. engine may be nil; rng must not be
// shared with other goroutines.
func NewNpcMovementSystem(ws *world.State, engine *scripting.Engine, rng *rand.Rand, interval int, log *zap.Logger) *NpcMovementSystem {
	if interval < 0 {
		interval = 0
	}
	return &NpcMovementSystem{world: ws, engine: engine, rng: rng, interval: interval, log: log}
}

func (s *NpcMovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *NpcMovementSystem) Update(_ context.Context, _ time.Duration) {
	for _, n := range s.world.Npcs() {
		if n.WanderRadius <= 0 {
			continue
		}
		if n.WanderTimer > 0 {
			n.WanderTimer--
			continue
		}
		n.WanderTimer = s.interval
		s.wander(n)
	}
}

func (s *NpcMovementSystem) wander(n *world.Npc) {
	pos := n.Motion.Pos
	dx, dy := s.engine.WanderStep(scripting.WanderContext{
		X:      int(pos.X),
		Y:      int(pos.Y),
		SpawnX: int(n.Spawn.X),
		SpawnY: int(n.Spawn.Y),
		Radius: int(n.WanderRadius),
		Roll:   s.rng.Intn(scripting.WanderRollRange),
	})
	if dx == 0 && dy == 0 {
		return
	}
	if err := s.world.MoveNpc(n.ID, pos.X+int32(dx), pos.Y+int32(dy)); err != nil {
		s.log.Debug("npc wander blocked", zap.Stringer("npc", n.ID), zap.Error(err))
	}
}
