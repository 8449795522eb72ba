package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MeBadDev/GDWeb/internal/core"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	msgMalformed = "malformed message"
	msgRoomFull  = "room full"
)

var errUnknownRole = errors.New("unknown session role")

type RelayOptions struct {
	// MaxRoomSize caps every room of either role; 0 means unlimited.
	MaxRoomSize int
	Policy      Policy
	// RateLimit is messages per RateInterval per session; 0 disables it.
	RateLimit    int
	RateInterval time.Duration
	ValidateSDP  bool

	Bus        Bus
	InstanceID string
}

// Relay routes frames between the sessions of a room. It never blocks on a
// recipient: each delivery is a non-blocking enqueue, and a full queue is
// handed to the Policy.
//
// Chat and signaling rooms live in separate registries: /chat/g1 and
// ?room=g1 never share members, frames or capacity.
type Relay struct {
	regs        map[core.Role]*core.Registry
	policy      Policy
	limiter     *RateLimiter
	validateSDP bool
	bus         Bus
	instanceID  string

	sessions sync.Map // core.SessionID -> *core.Session
}

func NewRelay(opts RelayOptions) *Relay {
	r := &Relay{
		regs: map[core.Role]*core.Registry{
			core.RoleChat:      core.NewRegistry(opts.MaxRoomSize),
			core.RoleSignaling: core.NewRegistry(opts.MaxRoomSize),
		},
		policy:      opts.Policy,
		validateSDP: opts.ValidateSDP,
		bus:         opts.Bus,
		instanceID:  opts.InstanceID,
	}
	if r.policy == nil {
		r.policy = KickPolicy{}
	}
	if opts.RateLimit > 0 {
		interval := opts.RateInterval
		if interval <= 0 {
			interval = time.Second
		}
		r.limiter = NewRateLimiter(opts.RateLimit, interval)
	}
	for _, reg := range r.regs {
		reg.OnRoomCreated = func(domain.RoomID) { metricRoomsActive.Inc() }
		reg.OnRoomDeleted = func(domain.RoomID) { metricRoomsActive.Dec() }
	}
	return r
}

// Registry is the room namespace of role, nil for an unknown role. Sessions
// of that role must be created against it.
func (r *Relay) Registry(role core.Role) *core.Registry { return r.regs[role] }

// Rooms lists the live rooms of both namespaces.
func (r *Relay) Rooms() []core.RoomInfo {
	out := []core.RoomInfo{}
	for _, role := range []core.Role{core.RoleChat, core.RoleSignaling} {
		for _, info := range r.regs[role].Rooms() {
			info.Role = role
			out = append(out, info)
		}
	}
	return out
}

// Connect joins s to roomID. Chat sessions get the history frame queued
// first so it precedes any relayed traffic.
func (r *Relay) Connect(s *core.Session, roomID domain.RoomID) error {
	reg := r.regs[s.Role()]
	if reg == nil {
		return errUnknownRole
	}
	if s.Role() == core.RoleChat {
		if err := s.Send(core.HistoryFrame()); err != nil {
			return err
		}
	}
	if err := reg.Join(roomID, s); err != nil {
		if errors.Is(err, core.ErrRoomFull) {
			_ = s.Send(core.ErrorFrame(http.StatusConflict, msgRoomFull))
		}
		log.Warn().Err(err).Str("module", "relay").Str("sid", string(s.ID())).Str("room", string(roomID)).Msg("connect rejected")
		return err
	}
	r.sessions.Store(s.ID(), s)
	metricSessionsActive.WithLabelValues(string(s.Role())).Inc()
	log.Info().Str("module", "relay").Str("sid", string(s.ID())).Str("room", string(roomID)).Str("role", string(s.Role())).Msg("session connected")
	return nil
}

// OnFrame handles one inbound frame from s. Bad frames are answered with an
// error frame; the session stays open.
func (r *Relay) OnFrame(ctx context.Context, s *core.Session, raw []byte) {
	room := s.Room()
	if room == "" {
		return
	}
	if r.limiter != nil {
		if ok, wait := r.limiter.Allow(s.ID()); !ok {
			r.reject(s, http.StatusTooManyRequests, core.RateLimitedFrame(wait))
			return
		}
	}

	env, err := core.ParseEnvelope(raw)
	if err != nil {
		r.protocolError(s)
		return
	}

	var out core.Frame
	switch s.Role() {
	case core.RoleChat:
		if env.Type != core.TypeMessageNew {
			r.protocolError(s)
			return
		}
		out = core.ChatFrame(env.Data)
	case core.RoleSignaling:
		if !core.IsSignalType(env.Type) {
			r.protocolError(s)
			return
		}
		if r.validateSDP && env.Type != core.TypeSignalICE {
			if err := checkSDP(env.Data); err != nil {
				log.Debug().Err(err).Str("module", "relay").Str("sid", string(s.ID())).Msg("bad sdp")
				r.protocolError(s)
				return
			}
		}
		out = make(core.Frame, len(raw))
		copy(out, raw)
	default:
		r.protocolError(s)
		return
	}

	r.fanOut(s.Role(), room, s, out)
	r.publish(ctx, room, s, out)
}

// Deliver hands a frame relayed by another instance to the local members of
// its room. Envelopes published by this instance are ignored.
func (r *Relay) Deliver(env Envelope) {
	if env.Origin == r.instanceID {
		return
	}
	if r.regs[env.Role] == nil {
		log.Warn().Str("module", "relay").Str("role", string(env.Role)).Str("origin", env.Origin).Msg("dropping envelope of unknown role")
		return
	}
	metricRemoteFrames.Inc()
	r.fanOut(env.Role, env.Room, nil, core.Frame(env.Frame))
}

// Disconnect closes s and removes it from its room. Nothing is sent to s
// afterwards.
func (r *Relay) Disconnect(s *core.Session) {
	room := s.Room()
	s.Close()
	if r.limiter != nil {
		r.limiter.Forget(s.ID())
	}
	if _, ok := r.sessions.LoadAndDelete(s.ID()); ok {
		metricSessionsActive.WithLabelValues(string(s.Role())).Dec()
	}
	log.Info().Str("module", "relay").Str("sid", string(s.ID())).Str("room", string(room)).Msg("session disconnected")
}

// SessionCount is the number of connected sessions on this instance.
func (r *Relay) SessionCount() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// EvictRoom closes every local member of room in both namespaces.
func (r *Relay) EvictRoom(room domain.RoomID) int {
	n := 0
	for _, reg := range r.regs {
		members := reg.MembersOf(room)
		for _, m := range members {
			m.Close()
		}
		n += len(members)
	}
	log.Info().Str("module", "relay").Str("room", string(room)).Int("members", n).Msg("room evicted")
	return n
}

func (r *Relay) fanOut(role core.Role, room domain.RoomID, sender *core.Session, f core.Frame) {
	for _, m := range r.regs[role].MembersOf(room) {
		if m == sender {
			continue
		}
		err := m.Send(f)
		switch {
		case err == nil:
			metricFramesRelayed.WithLabelValues(string(m.Role())).Inc()
		case errors.Is(err, core.ErrBackpressure):
			r.onBackpressure(room, m)
		default:
			// closed between snapshot and send
		}
	}
}

func (r *Relay) onBackpressure(room domain.RoomID, m *core.Session) {
	metricFramesDropped.Inc()
	switch r.policy.OnBackPressure(room, m) {
	case KickMember:
		log.Warn().Str("module", "relay").Str("sid", string(m.ID())).Str("room", string(room)).Msg("kicking slow member")
		metricSessionsKicked.Inc()
		m.Close()
	case DropFrame, NoAction:
	}
}

func (r *Relay) publish(ctx context.Context, room domain.RoomID, s *core.Session, f core.Frame) {
	if r.bus == nil {
		return
	}
	env := Envelope{Origin: r.instanceID, Role: s.Role(), Room: room, Sender: s.ID(), Frame: json.RawMessage(f)}
	if err := r.bus.Publish(ctx, env); err != nil {
		log.Error().Err(err).Str("module", "relay").Str("room", string(room)).Msg("bus publish")
	}
}

func (r *Relay) protocolError(s *core.Session) {
	msg := ""
	if s.Role() == core.RoleChat {
		msg = msgMalformed
	}
	r.reject(s, http.StatusBadRequest, core.ErrorFrame(http.StatusBadRequest, msg))
}

func (r *Relay) reject(s *core.Session, code int, f core.Frame) {
	metricProtocolErrors.WithLabelValues(strconv.Itoa(code)).Inc()
	if err := s.Send(f); err != nil && errors.Is(err, core.ErrBackpressure) {
		r.onBackpressure(s.Room(), s)
	}
}

// checkSDP parses the session description carried by an offer or answer.
func checkSDP(data json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(data, &desc); err != nil {
		return err
	}
	if desc.SDP == "" {
		return errors.New("empty sdp")
	}
	_, err := desc.Unmarshal()
	return err
}
