package net

import (
	"encoding/json"

	"github.com/rscgo/server/internal/core/ecs"
	"github.com/rscgo/server/internal/world"
)

// Message types on the wire. Every message is a JSON object with a "type"
// field; the remaining fields depend on the type.
const (
	MsgWalk = "walk"
	MsgFace = "face"

	MsgWelcome      = "welcome"
	MsgError        = "error"
	MsgPlayerUpdate = "playerUpdate"
	MsgNpcUpdate    = "npcUpdate"
	MsgScenery      = "scenery"
)

type envelope struct {
	Type string `json:"type"`
}

// WalkRequest asks to move the player to (X, Y) on its plane.
type WalkRequest struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// FaceRequest turns the player without moving.
type FaceRequest struct {
	Facing world.Facing `json:"facing"`
}

type welcomeMessage struct {
	Type   string       `json:"type"`
	ID     ecs.EntityID `json:"id"`
	X      int32        `json:"x"`
	Y      int32        `json:"y"`
	Plane  int16        `json:"plane"`
	Facing world.Facing `json:"facing"`
}

// sceneryMessage lists the static objects and ground items around a player
// when it enters the world.
type sceneryMessage struct {
	Type    string          `json:"type"`
	Objects []sceneryObject `json:"objects,omitempty"`
	Items   []sceneryItem   `json:"items,omitempty"`
}

type sceneryObject struct {
	ID       ecs.EntityID `json:"id"`
	ObjectID int32        `json:"objectId"`
	X        int32        `json:"x"`
	Y        int32        `json:"y"`
	Facing   world.Facing `json:"facing"`
}

type sceneryItem struct {
	ID     ecs.EntityID `json:"id"`
	ItemID int32        `json:"itemId"`
	Amount int32        `json:"amount"`
	X      int32        `json:"x"`
	Y      int32        `json:"y"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type playerUpdateMessage struct {
	Type string `json:"type"`
	*world.PlayerUpdate
}

type npcUpdateMessage struct {
	Type string `json:"type"`
	*world.NpcUpdate
}

// PeekType returns the "type" field of a raw message.
func PeekType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}
