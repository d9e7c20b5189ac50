package system

import (
	"encoding/json"
	"fmt"

	"github.com/rscgo/server/internal/net"
	"github.com/rscgo/server/internal/world"
)

// MaxWalkStep is the furthest a single walk message may move a player.
const MaxWalkStep = 1

// RegisterCommands installs the in-world movement handlers on reg.
func RegisterCommands(reg *net.Registry, ws *world.State) {
	inWorld := []net.SessionState{net.StateInWorld}

	reg.Register(net.MsgWalk, inWorld, func(sess *net.Session, data []byte) error {
		var req net.WalkRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("decode walk: %w", err)
		}
		p := ws.PlayerBySession(sess.ID)
		if p == nil {
			return fmt.Errorf("%w: session %d", world.ErrUnknownEntity, sess.ID)
		}
		to := world.Position{X: req.X, Y: req.Y, Plane: p.Motion.Pos.Plane}
		if d := world.Chebyshev(p.Motion.Pos, to); d > MaxWalkStep {
			return fmt.Errorf("walk to (%d,%d): %d tiles away", req.X, req.Y, d)
		}
		return ws.MovePlayer(sess.ID, req.X, req.Y)
	})

	reg.Register(net.MsgFace, inWorld, func(sess *net.Session, data []byte) error {
		var req net.FaceRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("decode face: %w", err)
		}
		return ws.FacePlayer(sess.ID, req.Facing)
	})
}
