package system

import (
	"context"
	"sort"
	"time"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	systems []System
	sorted  bool
	tick    uint64
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system once. Tick numbers start at 1.
func (r *Runner) Tick(ctx context.Context, dt time.Duration) {
	r.ensureSorted()
	r.tick++
	ctx = WithTick(ctx, r.tick)
	for _, s := range r.systems {
		s.Update(ctx, dt)
	}
}

// Ticks returns how many ticks have run.
func (r *Runner) Ticks() uint64 {
	return r.tick
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
