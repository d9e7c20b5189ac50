package world

import "github.com/rscgo/server/internal/core/ecs"

// Appearance is the sprite description shown to other clients.
type Appearance struct {
	HairColour   uint8   `json:"hairColour"`
	TopColour    uint8   `json:"topColour"`
	BottomColour uint8   `json:"bottomColour"`
	SkinColour   uint8   `json:"skinColour"`
	Sprites      [4]int8 `json:"sprites"` // head, body, legs, hands
}

// DefaultAppearance is assigned to players logging in without a saved look.
var DefaultAppearance = Appearance{
	HairColour:   2,
	TopColour:    8,
	BottomColour: 14,
	SkinColour:   0,
	Sprites:      [4]int8{1, 2, 3, 4},
}

// DefaultCombatLevel is the level of a fresh character.
const DefaultCombatLevel = 3

// Player is an in-world player. Accessed only from the game loop, except for
// reads by visibility workers while nothing mutates it.
type Player struct {
	ID          ecs.EntityID
	SessionID   uint64
	Username    string
	CombatLevel int
	Appearance  Appearance

	Motion    *Motion
	Known     *KnownEntities
	Connected bool
	Out       Outbox

	region CellRef
}

func (p *Player) EntityID() ecs.EntityID { return p.ID }
func (p *Player) Position() Position     { return p.Motion.Pos }
func (p *Player) regionRef() *CellRef    { return &p.region }

// Region returns the player's handle into the region index.
func (p *Player) Region() CellRef { return p.region }

// Live reports whether the player is still in the world.
func (p *Player) Live() bool { return p.Connected && p.region.set }
