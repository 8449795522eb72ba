package core

import (
	"errors"

	"github.com/MeBadDev/GDWeb/internal/domain"
)

// Frame is one serialized websocket text message.
type Frame []byte

type SessionID string

var (
	ErrBackpressure  = errors.New("backpressure")
	ErrSessionClosed = errors.New("session closed")
	ErrRoomFull      = errors.New("room full")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking; ErrBackpressure when the queue is full.
	TrySend(Frame) error
	Close()
}

// Role is fixed when the session is created.
type Role string

const (
	RoleChat      Role = "chat-peer"
	RoleSignaling Role = "signaling-peer"
)

type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	Role        Role          `json:"role,omitempty"`
	MemberCount int           `json:"member_count"`
}
