package system

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rscgo/server/internal/core/ecs"
	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/metrics"
	"github.com/rscgo/server/internal/world"
)

// Outbox receives a player's per-tick updates; net.Session implements it.
type Outbox = world.Outbox

// VisibilitySystem brings every connected player's client view up to date
// with the world. Phase 3 (PostUpdate).
//
// Players are diffed in parallel. Each task reads shared world state and
// writes only its own player's visible sets and outbox, so nothing else may
// mutate the world until Update returns. When the tick context expires,
// players not yet started are skipped and the tick is marked truncated so
// the commit phase leaves movement pending for the next pass.
type VisibilitySystem struct {
	world   *world.State
	gate    *TickGate
	workers int
	metrics *metrics.Sync
	log     *zap.Logger
}

func NewVisibilitySystem(ws *world.State, gate *TickGate, workers int, m *metrics.Sync, log *zap.Logger) *VisibilitySystem {
	if workers < 1 {
		workers = 1
	}
	return &VisibilitySystem{world: ws, gate: gate, workers: workers, metrics: m, log: log}
}

func (s *VisibilitySystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

// viewStats are one player's record counts for a tick.
type viewStats struct {
	done                bool
	players, npcs       recordCounts
	sentPlayer, sentNpc bool
}

type recordCounts struct {
	removed, moved, facing, added int
}

func (s *VisibilitySystem) Update(ctx context.Context, _ time.Duration) {
	viewers := s.world.Viewers()
	stats := make([]viewStats, len(viewers))

	if s.workers == 1 {
		for i, p := range viewers {
			if ctx.Err() != nil {
				break
			}
			stats[i] = s.syncPlayer(p)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.workers)
		for i, p := range viewers {
			if ctx.Err() != nil {
				break
			}
			i, p := i, p
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				stats[i] = s.syncPlayer(p)
				return nil
			})
		}
		g.Wait()
	}

	s.report(ctx, viewers, stats)
}

func (s *VisibilitySystem) report(ctx context.Context, viewers []*world.Player, stats []viewStats) {
	diffed := 0
	var pc, nc recordCounts
	for _, st := range stats {
		if !st.done {
			continue
		}
		diffed++
		pc = pc.add(st.players)
		nc = nc.add(st.npcs)
		if st.sentPlayer {
			s.metrics.Sent(metrics.CategoryPlayers)
		}
		if st.sentNpc {
			s.metrics.Sent(metrics.CategoryNpcs)
		}
	}

	if skipped := len(viewers) - diffed; skipped > 0 {
		tick := coresys.TickNumber(ctx)
		s.gate.MarkTruncated(tick)
		s.metrics.Truncated()
		s.log.Warn("visibility pass truncated by tick budget",
			zap.Uint64("tick", tick),
			zap.Int("diffed", diffed),
			zap.Int("skipped", skipped),
		)
	}

	// Skipped players keep last tick's sets, which still count.
	knownPlayers, knownNpcs := 0, 0
	for _, p := range viewers {
		knownPlayers += p.Known.Players.Len()
		knownNpcs += p.Known.Npcs.Len()
	}

	s.metrics.Diffed(diffed)
	pc.record(s.metrics, metrics.CategoryPlayers)
	nc.record(s.metrics, metrics.CategoryNpcs)
	s.metrics.SetVisible(metrics.CategoryPlayers, knownPlayers)
	s.metrics.SetVisible(metrics.CategoryNpcs, knownNpcs)
}

func (c recordCounts) add(o recordCounts) recordCounts {
	return recordCounts{
		removed: c.removed + o.removed,
		moved:   c.moved + o.moved,
		facing:  c.facing + o.facing,
		added:   c.added + o.added,
	}
}

func (c recordCounts) record(m *metrics.Sync, category string) {
	m.AddRecords(category, metrics.KindRemoved, c.removed)
	m.AddRecords(category, metrics.KindMoved, c.moved)
	m.AddRecords(category, metrics.KindFacingChanged, c.facing)
	m.AddRecords(category, metrics.KindAdded, c.added)
}

// syncPlayer diffs both categories for one player and hands non-empty
// updates to its outbox. Prune always precedes growth so slots freed this
// tick can be refilled in the same pass.
func (s *VisibilitySystem) syncPlayer(p *world.Player) viewStats {
	var st viewStats
	var pu world.PlayerUpdate
	var nu world.NpcUpdate

	s.prunePlayers(p, &pu)
	s.growPlayers(p, &pu)
	s.pruneNpcs(p, &nu)
	s.growNpcs(p, &nu)

	st.done = true
	st.players = recordCounts{len(pu.Removed), len(pu.Moved), len(pu.FacingChanged), len(pu.Added)}
	st.npcs = recordCounts{len(nu.Removed), len(nu.Moved), len(nu.FacingChanged), len(nu.Added)}

	if p.Out == nil {
		return st
	}
	if !pu.Empty() {
		p.Out.SendPlayerUpdate(&pu)
		st.sentPlayer = true
	}
	if !nu.Empty() {
		p.Out.SendNpcUpdate(&nu)
		st.sentNpc = true
	}
	return st
}

// --- Player view ---

func (s *VisibilitySystem) prunePlayers(p *world.Player, u *world.PlayerUpdate) {
	pos := p.Motion.Pos
	viewRange := s.world.ViewRange()
	p.Known.Players.Sweep(func(id ecs.EntityID) bool {
		other, ok := s.world.Player(id)
		if !ok || !other.Live() || !world.WithinRange(pos, other.Motion.Pos, viewRange) {
			u.Removed = append(u.Removed, world.Removed{ID: id})
			return false
		}
		m := other.Motion
		switch {
		case m.HasMoved():
			u.Moved = append(u.Moved, world.Moved{ID: id, X: m.Pos.X, Y: m.Pos.Y, Facing: m.Facing})
		case m.FacingChanged():
			u.FacingChanged = append(u.FacingChanged, world.FacingChanged{ID: id, Facing: m.Facing})
		}
		return true
	})
}

func (s *VisibilitySystem) growPlayers(p *world.Player, u *world.PlayerUpdate) {
	known := p.Known.Players
	if known.Full() {
		return
	}
	for _, other := range s.world.NearbyPlayers(p.Motion.Pos) {
		if known.Full() {
			return
		}
		if other.ID == p.ID || known.Has(other.ID) {
			continue
		}
		known.Add(other.ID)
		m := other.Motion
		u.Added = append(u.Added, world.PlayerAdded{
			ID:          other.ID,
			X:           m.Pos.X,
			Y:           m.Pos.Y,
			Facing:      m.Facing,
			Username:    other.Username,
			CombatLevel: other.CombatLevel,
			Appearance:  other.Appearance,
		})
	}
}

// --- NPC view ---

func (s *VisibilitySystem) pruneNpcs(p *world.Player, u *world.NpcUpdate) {
	pos := p.Motion.Pos
	viewRange := s.world.ViewRange()
	p.Known.Npcs.Sweep(func(id ecs.EntityID) bool {
		n, ok := s.world.Npc(id)
		if !ok || !n.Live() || !world.WithinRange(pos, n.Motion.Pos, viewRange) {
			u.Removed = append(u.Removed, world.Removed{ID: id})
			return false
		}
		m := n.Motion
		switch {
		case m.HasMoved():
			u.Moved = append(u.Moved, world.Moved{ID: id, X: m.Pos.X, Y: m.Pos.Y, Facing: m.Facing})
		case m.FacingChanged():
			u.FacingChanged = append(u.FacingChanged, world.FacingChanged{ID: id, Facing: m.Facing})
		}
		return true
	})
}

func (s *VisibilitySystem) growNpcs(p *world.Player, u *world.NpcUpdate) {
	known := p.Known.Npcs
	if known.Full() {
		return
	}
	for _, n := range s.world.NearbyNpcs(p.Motion.Pos) {
		if known.Full() {
			return
		}
		if known.Has(n.ID) {
			continue
		}
		known.Add(n.ID)
		m := n.Motion
		u.Added = append(u.Added, world.NpcAdded{
			ID:         n.ID,
			X:          m.Pos.X,
			Y:          m.Pos.Y,
			Facing:     m.Facing,
			TemplateID: n.TemplateID,
		})
	}
}
