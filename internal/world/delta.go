package world

import "github.com/rscgo/server/internal/core/ecs"

// Delta records sent to a client once per tick per category. Moved records
// carry the absolute position so replaying one is harmless.

type Removed struct {
	ID ecs.EntityID `json:"id"`
}

type Moved struct {
	ID     ecs.EntityID `json:"id"`
	X      int32        `json:"x"`
	Y      int32        `json:"y"`
	Facing Facing       `json:"facing"`
}

type FacingChanged struct {
	ID     ecs.EntityID `json:"id"`
	Facing Facing       `json:"facing"`
}

type PlayerAdded struct {
	ID          ecs.EntityID `json:"id"`
	X           int32        `json:"x"`
	Y           int32        `json:"y"`
	Facing      Facing       `json:"facing"`
	Username    string       `json:"username"`
	CombatLevel int          `json:"combatLevel"`
	Appearance  Appearance   `json:"appearance"`
}

type NpcAdded struct {
	ID         ecs.EntityID `json:"id"`
	X          int32        `json:"x"`
	Y          int32        `json:"y"`
	Facing     Facing       `json:"facing"`
	TemplateID int32        `json:"templateId"`
}

// PlayerUpdate is the per-tick player delta for one client.
type PlayerUpdate struct {
	Removed       []Removed       `json:"removed,omitempty"`
	Moved         []Moved         `json:"moved,omitempty"`
	FacingChanged []FacingChanged `json:"facingChanged,omitempty"`
	Added         []PlayerAdded   `json:"added,omitempty"`
}

func (u *PlayerUpdate) Empty() bool {
	return len(u.Removed) == 0 && len(u.Moved) == 0 && len(u.FacingChanged) == 0 && len(u.Added) == 0
}

// Records returns the total number of records in the update.
func (u *PlayerUpdate) Records() int {
	return len(u.Removed) + len(u.Moved) + len(u.FacingChanged) + len(u.Added)
}

// NpcUpdate is the per-tick NPC delta for one client.
type NpcUpdate struct {
	Removed       []Removed       `json:"removed,omitempty"`
	Moved         []Moved         `json:"moved,omitempty"`
	FacingChanged []FacingChanged `json:"facingChanged,omitempty"`
	Added         []NpcAdded      `json:"added,omitempty"`
}

func (u *NpcUpdate) Empty() bool {
	return len(u.Removed) == 0 && len(u.Moved) == 0 && len(u.FacingChanged) == 0 && len(u.Added) == 0
}

func (u *NpcUpdate) Records() int {
	return len(u.Removed) + len(u.Moved) + len(u.FacingChanged) + len(u.Added)
}

// Outbox receives a player's non-empty updates. Implementations must not
// block; they are called from visibility workers, at most once per category
// per tick for a given player.
type Outbox interface {
	SendPlayerUpdate(u *PlayerUpdate)
	SendNpcUpdate(u *NpcUpdate)
}
