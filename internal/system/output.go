package system

import (
	"context"
	"time"

	coresys "github.com/rscgo/server/internal/core/system"
	"github.com/rscgo/server/internal/net"
)

// OutputSystem flushes every session's buffered messages to its writer
// goroutine. Phase 4 (Output).
type OutputSystem struct {
	store *net.SessionStore
}

func NewOutputSystem(store *net.SessionStore) *OutputSystem {
	return &OutputSystem{store: store}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ context.Context, _ time.Duration) {
	for _, sess := range s.store.Sorted() {
		sess.FlushOutput()
	}
}
