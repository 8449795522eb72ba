package core

import (
	"sync"

	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Session binds one live connection to its role and room.
// State moves Connecting -> Joined -> Closed and never leaves Closed.
type Session struct {
	id      SessionID
	role    Role
	subject domain.UserID
	conn    SignalConnection
	reg     *Registry

	mu    sync.Mutex
	state State
	room  domain.RoomID
}

// NewSession assigns a fresh id. reg may be nil for a session that never
// joins; a successful Join rebinds the session to the joining registry.
func NewSession(role Role, subject domain.UserID, conn SignalConnection, reg *Registry) *Session {
	return &Session{
		id:      SessionID(uuid.NewString()),
		role:    role,
		subject: subject,
		conn:    conn,
		reg:     reg,
	}
}

func (s *Session) ID() SessionID          { return s.id }
func (s *Session) Role() Role             { return s.role }
func (s *Session) Subject() domain.UserID { return s.subject }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the joined room, empty before join and after close.
func (s *Session) Room() domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Send enqueues f on the transport. After Close it is a silent no-op that
// reports ErrSessionClosed.
func (s *Session) Send(f Frame) error {
	s.mu.Lock()
	closed := s.state == StateClosed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	return s.conn.TrySend(f)
}

// Close is idempotent. It closes the transport and leaves the room.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	room, reg := s.room, s.reg
	s.room = ""
	s.mu.Unlock()

	s.conn.Close()
	if room != "" && reg != nil {
		reg.removeMember(room, s)
	}
	log.Debug().Str("module", "core.session").Str("sid", string(s.id)).Str("room", string(room)).Msg("session closed")
}
