package net

import (
	"context"
	"errors"
	"fmt"
	stdnet "net"
	"net/http"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MaxUsernameLength is the longest accepted username.
const MaxUsernameLength = 12

// Options configures sessions created by the Server.
type Options struct {
	InQueueSize       int
	OutQueueSize      int
	MaxMessageSize    int64
	MessagesPerSecond int
	WriteTimeout      time.Duration
	PendingSessions   int
}

// Server upgrades websocket connections and creates Sessions.
// New sessions are handed to the game loop through a channel.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	newConns chan *Session
	closed   atomic.Bool
	http     *http.Server
	listener stdnet.Listener
	log      *zap.Logger
}

func NewServer(opts Options, log *zap.Logger) *Server {
	if opts.PendingSessions <= 0 {
		opts.PendingSessions = 64
	}
	return &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		newConns: make(chan *Session, opts.PendingSessions),
		log:      log,
	}
}

// Handler returns the HTTP routes served by the game server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	username := r.URL.Query().Get("username")
	if err := validUsername(username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.String("username", username), zap.Error(err))
		return
	}

	id := s.nextID.Add(1)
	sess := NewSession(conn, id, username, s.opts, s.log)
	sess.Start()

	s.log.Info(fmt.Sprintf("client connected  session=%d  username=%s  ip=%s", id, username, sess.IP))

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("pending session queue full, rejecting connection")
		sess.Reject("server busy")
	}
}

func validUsername(name string) error {
	if name == "" {
		return errors.New("missing username")
	}
	if utf8.RuneCountInString(name) > MaxUsernameLength {
		return fmt.Errorf("username longer than %d characters", MaxUsernameLength)
	}
	return nil
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Listen binds bindAddr and serves in the background.
func (s *Server) Listen(bindAddr string) error {
	ln, err := stdnet.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	s.listener = ln
	s.http = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http serve", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the listener's address.
func (s *Server) Addr() stdnet.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ClosePending closes sessions that connected but were never picked up from
// NewSessions. Call it after Shutdown; it returns how many it closed.
func (s *Server) ClosePending() int {
	n := 0
	for {
		select {
		case sess := <-s.newConns:
			sess.closeWith(websocket.CloseGoingAway, "server shutting down")
			n++
		default:
			return n
		}
	}
}

// Shutdown stops accepting new connections. Upgraded connections are
// hijacked and must be closed through their sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closed.Store(true)
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
