package core

import (
	"github.com/MeBadDev/GDWeb/internal/domain"
)

// room is a membership set. It is only touched under its shard's lock and
// never closes adapter-owned resources.
type room struct {
	id      domain.RoomID
	members map[SessionID]*Session
}

func newRoom(id domain.RoomID) *room {
	return &room{id: id, members: make(map[SessionID]*Session)}
}

func (r *room) snapshot() []*Session {
	out := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}
