package net

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rscgo/server/internal/world"
)

// SessionState is the session's current protocol phase.
type SessionState int32

const (
	StateConnected SessionState = iota // upgraded, waiting to enter the world
	StateInWorld                       // playing
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; game state is accessed only from the game loop.
type Session struct {
	ID       uint64
	Username string
	IP       string

	conn  *websocket.Conn
	state atomic.Int32

	InQueue  chan []byte // game loop reads messages from here
	OutQueue chan []byte // writer goroutine reads from here

	// buffered messages, flushed by the output phase. Written by the game
	// loop or by the visibility worker that owns this session's player.
	outBuf [][]byte

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second message rate limiter (readLoop goroutine only)
	msgPerSec  int
	msgCount   int
	msgResetAt int64

	writeTimeout time.Duration

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uint64, username string, opts Options, log *zap.Logger) *Session {
	s := &Session{
		ID:           id,
		Username:     username,
		conn:         conn,
		InQueue:      make(chan []byte, opts.InQueueSize),
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		closeCh:      make(chan struct{}),
		msgPerSec:    opts.MessagesPerSecond,
		writeTimeout: opts.WriteTimeout,
		log:          log.With(zap.Uint64("session", id), zap.String("username", username)),
	}
	if conn != nil {
		s.IP = conn.RemoteAddr().String()
		if opts.MaxMessageSize > 0 {
			conn.SetReadLimit(opts.MaxMessageSize)
		}
	}
	s.state.Store(int32(StateConnected))
	return s
}

func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

func (s *Session) SetState(st SessionState) {
	s.state.Store(int32(st))
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.readLoop()
	go s.writeLoop()
}

// Send buffers a raw message. Nothing is written until FlushOutput.
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	s.outBuf = append(s.outBuf, data)
}

func (s *Session) sendJSON(v any) {
	if s.closed.Load() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error("encode message", zap.Error(err))
		return
	}
	s.outBuf = append(s.outBuf, data)
}

// SendPlayerUpdate implements world.Outbox.
func (s *Session) SendPlayerUpdate(u *world.PlayerUpdate) {
	s.sendJSON(playerUpdateMessage{Type: MsgPlayerUpdate, PlayerUpdate: u})
}

// SendNpcUpdate implements world.Outbox.
func (s *Session) SendNpcUpdate(u *world.NpcUpdate) {
	s.sendJSON(npcUpdateMessage{Type: MsgNpcUpdate, NpcUpdate: u})
}

// SendWelcome tells the client which entity it controls and where it is.
func (s *Session) SendWelcome(p *world.Player) {
	pos := p.Motion.Pos
	s.sendJSON(welcomeMessage{
		Type:   MsgWelcome,
		ID:     p.ID,
		X:      pos.X,
		Y:      pos.Y,
		Plane:  pos.Plane,
		Facing: p.Motion.Facing,
	})
}

// SendScenery lists objects and ground items for the client to draw. Nothing
// is sent when both are empty.
func (s *Session) SendScenery(objects []*world.GameObject, items []*world.GroundItem) {
	if len(objects) == 0 && len(items) == 0 {
		return
	}
	msg := sceneryMessage{Type: MsgScenery}
	for _, o := range objects {
		msg.Objects = append(msg.Objects, sceneryObject{ID: o.ID, ObjectID: o.ObjectID, X: o.Pos.X, Y: o.Pos.Y, Facing: o.Facing})
	}
	for _, g := range items {
		msg.Items = append(msg.Items, sceneryItem{ID: g.ID, ItemID: g.ItemID, Amount: g.Amount, X: g.Pos.X, Y: g.Pos.Y})
	}
	s.sendJSON(msg)
}

func (s *Session) SendError(msg string) {
	s.sendJSON(errorMessage{Type: MsgError, Message: msg})
}

// Pending returns the number of buffered messages.
func (s *Session) Pending() int {
	return len(s.outBuf)
}

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow client")
			s.Close()
			clear(s.outBuf)
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	clear(s.outBuf)
	s.outBuf = s.outBuf[:0]
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeWith(websocket.CloseNormalClosure, "")
}

// Reject closes the session with a policy-violation close frame carrying
// reason, e.g. when the username is already in the world.
func (s *Session) Reject(reason string) {
	s.closeWith(websocket.ClosePolicyViolation, reason)
}

func (s *Session) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(StateDisconnecting)
		close(s.closeCh)
		if s.conn != nil {
			message := websocket.FormatCloseMessage(code, reason)
			s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
			s.conn.Close()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads websocket messages and pushes them onto InQueue for the
// game loop to consume.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read", zap.Error(err))
			}
			return
		}

		if s.msgPerSec > 0 {
			now := time.Now().Unix()
			if now != s.msgResetAt {
				s.msgCount = 0
				s.msgResetAt = now
			}
			s.msgCount++
			if s.msgCount > s.msgPerSec {
				s.log.Warn("message rate exceeded, disconnecting", zap.Int("per_sec", s.msgCount))
				return
			}
		}

		// Block until InQueue has space or the session closes. Dropping a
		// walk would desync the client's idea of its own position.
		select {
		case s.InQueue <- payload:
		case <-s.closeCh:
			return
		}
	}
}

// writeLoop writes queued messages to the connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if s.writeTimeout > 0 {
				s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
