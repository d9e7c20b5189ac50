package system

import (
	"context"
	"time"

	"github.com/rscgo/server/internal/core/event"
	coresys "github.com/rscgo/server/internal/core/system"
)

// EventDispatchSystem delivers the events emitted during the previous phases
// to their subscribers. Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ context.Context, _ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
