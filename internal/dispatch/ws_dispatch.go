package dispatch

import (
	"log/slog"
	"sync"

	"github.com/example/skillbook/internal/models"
	"github.com/gorilla/websocket"
)

// WSSession represents one connected client session.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev models.BookingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// WSRegistry holds the websocket for each active session so booking status
// updates can be pushed as the state machine advances.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
}

func NewWSRegistry() *WSRegistry { return &WSRegistry{sessions: make(map[string]*WSSession)} }

func (r *WSRegistry) Add(sessionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		_ = s.conn.Close()
		delete(r.sessions, sessionID)
	}
}

func (r *WSRegistry) Notify(sessionID string, ev models.BookingEvent) error {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	if err := s.Send(ev); err != nil {
		slog.Warn("ws send error", "session_id", sessionID, "error", err)
		return err
	}
	return nil
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no ws session" }
