package core

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/rs/zerolog/log"
)

const registryShards = 64

type registryShard struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*room
}

// Registry maps room ids to their connected sessions. A room exists exactly
// while it has at least one member.
//
// Rooms are spread over shards so unrelated rooms do not share a lock.
// Lock order is session.mu before shard.mu; code holding a shard lock never
// touches a session lock.
type Registry struct {
	shards      [registryShards]*registryShard
	maxRoomSize int

	roomCount atomic.Int64

	// OnRoomCreated and OnRoomDeleted run outside any lock.
	OnRoomCreated func(domain.RoomID)
	OnRoomDeleted func(domain.RoomID)
}

// NewRegistry builds an empty registry. maxRoomSize <= 0 means unlimited.
func NewRegistry(maxRoomSize int) *Registry {
	r := &Registry{maxRoomSize: maxRoomSize}
	for i := range r.shards {
		r.shards[i] = &registryShard{rooms: make(map[domain.RoomID]*room)}
	}
	return r
}

func (r *Registry) shardFor(id domain.RoomID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.shards[h.Sum32()%registryShards]
}

// Join puts s into roomID, leaving its previous room first. A failed join
// leaves s in no room and back in StateConnecting.
func (r *Registry) Join(roomID domain.RoomID, s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrSessionClosed
	}
	if s.room == roomID {
		return nil
	}
	if prev := s.room; prev != "" {
		owner := s.reg
		if owner == nil {
			owner = r
		}
		s.room = ""
		owner.removeMember(prev, s)
		log.Info().Str("module", "core.registry").Str("sid", string(s.id)).Str("from_room", string(prev)).Msg("left previous room")
	}
	if err := r.addMember(roomID, s); err != nil {
		// the previous room is already gone; the session is in no room now
		s.state = StateConnecting
		return err
	}
	s.reg = r
	s.room = roomID
	s.state = StateJoined
	log.Info().Str("module", "core.registry").Str("sid", string(s.id)).Str("room", string(roomID)).Str("role", string(s.role)).Msg("joined")
	return nil
}

// Leave removes s from roomID if it is a member there.
func (r *Registry) Leave(roomID domain.RoomID, s *Session) {
	s.mu.Lock()
	if s.room == roomID {
		s.room = ""
	}
	s.mu.Unlock()
	r.removeMember(roomID, s)
}

// MembersOf returns a point-in-time copy of the room's members. The slice
// is owned by the caller.
func (r *Registry) MembersOf(roomID domain.RoomID) []*Session {
	sh := r.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rm, ok := sh.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.snapshot()
}

func (r *Registry) MemberCount(roomID domain.RoomID) int {
	sh := r.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if rm, ok := sh.rooms[roomID]; ok {
		return len(rm.members)
	}
	return 0
}

func (r *Registry) Exists(roomID domain.RoomID) bool {
	sh := r.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.rooms[roomID]
	return ok
}

func (r *Registry) RoomCount() int { return int(r.roomCount.Load()) }

// Rooms lists every live room. Each shard is read consistently, the list as
// a whole is not a single snapshot.
func (r *Registry) Rooms() []RoomInfo {
	var out []RoomInfo
	for _, sh := range r.shards {
		sh.mu.RLock()
		for id, rm := range sh.rooms {
			out = append(out, RoomInfo{ID: id, MemberCount: len(rm.members)})
		}
		sh.mu.RUnlock()
	}
	return out
}

func (r *Registry) addMember(roomID domain.RoomID, s *Session) error {
	sh := r.shardFor(roomID)
	created := false

	sh.mu.Lock()
	rm, ok := sh.rooms[roomID]
	if !ok {
		rm = newRoom(roomID)
		sh.rooms[roomID] = rm
		created = true
	}
	if r.maxRoomSize > 0 && len(rm.members) >= r.maxRoomSize {
		sh.mu.Unlock()
		return ErrRoomFull
	}
	rm.members[s.id] = s
	sh.mu.Unlock()

	if created {
		r.roomCount.Add(1)
		log.Info().Str("module", "core.registry").Str("room", string(roomID)).Msg("room created")
		if r.OnRoomCreated != nil {
			r.OnRoomCreated(roomID)
		}
	}
	return nil
}

func (r *Registry) removeMember(roomID domain.RoomID, s *Session) {
	sh := r.shardFor(roomID)
	deleted := false

	sh.mu.Lock()
	rm, ok := sh.rooms[roomID]
	if !ok {
		sh.mu.Unlock()
		return
	}
	if cur, ok := rm.members[s.id]; ok && cur == s {
		delete(rm.members, s.id)
	}
	if len(rm.members) == 0 {
		delete(sh.rooms, roomID)
		deleted = true
	}
	sh.mu.Unlock()

	if deleted {
		r.roomCount.Add(-1)
		log.Info().Str("module", "core.registry").Str("room", string(roomID)).Msg("room deleted")
		if r.OnRoomDeleted != nil {
			r.OnRoomDeleted(roomID)
		}
	}
}
