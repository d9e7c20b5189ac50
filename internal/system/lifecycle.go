package system

import (
	"errors"

	"go.uber.org/zap"

	"github.com/rscgo/server/internal/core/event"
	"github.com/rscgo/server/internal/metrics"
	"github.com/rscgo/server/internal/net"
	"github.com/rscgo/server/internal/world"
)

// Lifecycle moves players in and out of the world on session events. Its
// handlers run during event dispatch in the PreUpdate phase.
type Lifecycle struct {
	world   *world.State
	store   *net.SessionStore
	spawn   world.Position
	facing  world.Facing
	metrics *metrics.Sync
	log     *zap.Logger
}

// NewLifecycle subscribes the login and logout handlers on bus.
func NewLifecycle(bus *event.Bus, ws *world.State, store *net.SessionStore, spawn world.Position, m *metrics.Sync, log *zap.Logger) *Lifecycle {
	l := &Lifecycle{
		world:   ws,
		store:   store,
		spawn:   spawn,
		facing:  world.FacingSouth,
		metrics: m,
		log:     log,
	}
	event.Subscribe(bus, l.onConnected)
	event.Subscribe(bus, l.onDisconnected)
	return l
}

func (l *Lifecycle) onConnected(e event.PlayerConnected) {
	sess := l.store.Get(e.SessionID)
	if sess == nil || sess.IsClosed() {
		return
	}
	p := &world.Player{
		SessionID:   e.SessionID,
		Username:    e.Username,
		CombatLevel: world.DefaultCombatLevel,
		Appearance:  world.DefaultAppearance,
		Out:         sess,
	}
	if err := l.world.AddPlayer(p, l.spawn, l.facing); err != nil {
		l.log.Info("login rejected", zap.Uint64("session", e.SessionID), zap.String("username", e.Username), zap.Error(err))
		reason := "login failed"
		if errors.Is(err, world.ErrNameInUse) {
			reason = "username already in the world"
		}
		sess.Reject(reason)
		return
	}
	sess.SetState(net.StateInWorld)
	sess.SendWelcome(p)
	sess.SendScenery(l.world.NearbyObjects(p.Motion.Pos), l.world.NearbyGroundItems(p.Motion.Pos))
	l.metrics.SetConnected(l.world.PlayerCount())
	l.log.Info("player entered world",
		zap.Uint64("session", e.SessionID),
		zap.String("username", e.Username),
		zap.Stringer("id", p.ID),
	)
}

func (l *Lifecycle) onDisconnected(e event.PlayerDisconnected) {
	p := l.world.RemovePlayer(e.SessionID)
	if p == nil {
		return
	}
	l.metrics.SetConnected(l.world.PlayerCount())
	l.log.Info("player left world", zap.Uint64("session", e.SessionID), zap.String("username", p.Username))
}
