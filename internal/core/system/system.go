package system

import (
	"context"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: accept sessions, drain inbound queues
	PhasePreUpdate               // 1: dispatch connect/disconnect events
	PhaseUpdate                  // 2: NPC movement
	PhasePostUpdate              // 3: view synchronization
	PhaseOutput                  // 4: flush session output
	PhasePersist                 // 5: reserved
	PhaseCleanup                 // 6: movement commit, destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// System is the interface every tick system implements. ctx carries the
// tick deadline and the tick number (see TickNumber).
type System interface {
	Phase() Phase
	Update(ctx context.Context, dt time.Duration)
}

type tickKey struct{}

// WithTick returns a context carrying the tick number.
func WithTick(ctx context.Context, tick uint64) context.Context {
	return context.WithValue(ctx, tickKey{}, tick)
}

// TickNumber returns the tick number stored by the Runner, or 0.
func TickNumber(ctx context.Context) uint64 {
	n, _ := ctx.Value(tickKey{}).(uint64)
	return n
}
