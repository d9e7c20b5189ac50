package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rscgo/server/internal/core/event"
	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/net"
)

// SessionSource hands newly connected sessions to the game loop.
// *net.Server implements it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
}

// InputSystem accepts new sessions, retires closed ones and drains message
// queues through the message registry. Phase 0 (Input).
type InputSystem struct {
	source     SessionSource
	registry   *net.Registry
	store      *net.SessionStore
	bus        *event.Bus
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(source SessionSource, registry *net.Registry, store *net.SessionStore, bus *event.Bus, maxPerTick int, log *zap.Logger) *InputSystem {
	return &InputSystem{
		source:     source,
		registry:   registry,
		store:      store,
		bus:        bus,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ context.Context, _ time.Duration) {
	// Disconnects go out before connects so a player whose old session
	// closed can log back in within the same tick.
	s.retireClosed()
	s.acceptNew()

	for _, sess := range s.store.Sorted() {
		// Messages wait in the queue until the player is in the world.
		if sess.State() != net.StateInWorld || sess.IsClosed() {
			continue
		}
		s.drain(sess)
	}
}

func (s *InputSystem) retireClosed() {
	for _, sess := range s.store.Sorted() {
		if sess.IsClosed() {
			event.Emit(s.bus, event.PlayerDisconnected{SessionID: sess.ID})
			s.store.Remove(sess.ID)
		}
	}
}

func (s *InputSystem) acceptNew() {
	for {
		select {
		case sess := <-s.source.NewSessions():
			s.store.Add(sess)
			event.Emit(s.bus, event.PlayerConnected{SessionID: sess.ID, Username: sess.Username})
		default:
			return
		}
	}
}

func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, data); err != nil {
				s.log.Debug("message dispatch", zap.Uint64("session", sess.ID), zap.Error(err))
				sess.SendError(err.Error())
			}
		default:
			return
		}
	}
}
