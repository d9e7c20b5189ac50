package system

// TickGate carries the visibility outcome of a tick to the commit phase.
// Both sides run on the game loop goroutine.
type TickGate struct {
	truncated uint64
	marked    bool
}

// MarkTruncated records that tick did not diff every player.
func (g *TickGate) MarkTruncated(tick uint64) {
	g.truncated = tick
	g.marked = true
}

// Truncated reports whether tick was marked truncated.
func (g *TickGate) Truncated(tick uint64) bool {
	return g.marked && g.truncated == tick
}
