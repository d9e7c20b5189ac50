package net

import (
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc handles one decoded client message. data is the raw JSON
// object including its "type" field.
type HandlerFunc func(sess *Session, data []byte) error

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message types to handlers with state-based access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a message type to a handler, restricted to the given states.
func (reg *Registry) Register(msgType string, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[msgType] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Dispatch decodes the message type, validates the session state and calls
// the handler. Unknown types are ignored.
func (reg *Registry) Dispatch(sess *Session, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty message")
	}
	msgType, err := PeekType(data)
	if err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	state := sess.State()

	entry, ok := reg.handlers[msgType]
	if !ok {
		reg.log.Debug("unknown message type", zap.String("type", msgType), zap.String("state", state.String()))
		return nil
	}

	if !entry.allowedStates[state] {
		return fmt.Errorf("message %q not allowed in state %s", msgType, state)
	}

	return reg.safeCall(entry.fn, sess, data, msgType)
}

// safeCall executes a handler with panic recovery so a single bad message
// cannot take down the game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess *Session, data []byte, msgType string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("type", msgType),
				zap.Uint64("session", sess.ID),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %q: %v", msgType, rec)
		}
	}()
	return fn(sess, data)
}
