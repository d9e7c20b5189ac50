package world

import "github.com/rscgo/server/internal/core/ecs"

// MaxVisible is the hard limit of entities per category a client can track.
const MaxVisible = 255

// VisibleSet is the ordered set of entity IDs a client currently knows
// about in one category. Iteration follows insertion order; removal keeps the
// relative order of the remaining members.
type VisibleSet struct {
	order []ecs.EntityID
	index map[ecs.EntityID]struct{}
	limit int
}

func NewVisibleSet(limit int) *VisibleSet {
	if limit <= 0 || limit > MaxVisible {
		limit = MaxVisible
	}
	return &VisibleSet{
		order: make([]ecs.EntityID, 0, 16),
		index: make(map[ecs.EntityID]struct{}, 16),
		limit: limit,
	}
}

func (s *VisibleSet) Len() int   { return len(s.order) }
func (s *VisibleSet) Cap() int   { return s.limit }
func (s *VisibleSet) Full() bool { return len(s.order) >= s.limit }

func (s *VisibleSet) Has(id ecs.EntityID) bool {
	_, ok := s.index[id]
	return ok
}

// Add inserts id. Returns false when id is already present or the set is full.
func (s *VisibleSet) Add(id ecs.EntityID) bool {
	if s.Full() || s.Has(id) {
		return false
	}
	s.order = append(s.order, id)
	s.index[id] = struct{}{}
	return true
}

// Remove deletes id. Returns false when id was not present.
func (s *VisibleSet) Remove(id ecs.EntityID) bool {
	if !s.Has(id) {
		return false
	}
	delete(s.index, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Sweep calls keep for every member in order and drops those for which it
// returns false. Returns the number of dropped members.
func (s *VisibleSet) Sweep(keep func(ecs.EntityID) bool) int {
	kept := s.order[:0]
	dropped := 0
	for _, id := range s.order {
		if keep(id) {
			kept = append(kept, id)
			continue
		}
		delete(s.index, id)
		dropped++
	}
	for i := len(kept); i < len(s.order); i++ {
		s.order[i] = 0
	}
	s.order = kept
	return dropped
}

// IDs returns a copy of the members in order.
func (s *VisibleSet) IDs() []ecs.EntityID {
	out := make([]ecs.EntityID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *VisibleSet) Clear() {
	s.order = s.order[:0]
	clear(s.index)
}

// KnownEntities holds a player's visible sets. It is written only by the
// visibility task that owns the player.
type KnownEntities struct {
	Players *VisibleSet
	Npcs    *VisibleSet
}

func NewKnownEntities(limit int) *KnownEntities {
	return &KnownEntities{
		Players: NewVisibleSet(limit),
		Npcs:    NewVisibleSet(limit),
	}
}

// Reset empties both sets; used when a player's client view is rebuilt.
func (k *KnownEntities) Reset() {
	k.Players.Clear()
	k.Npcs.Clear()
}
