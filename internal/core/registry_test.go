package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
	full   bool
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	if c.full {
		return ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestSession(reg *Registry) (*Session, *fakeConn) {
	c := &fakeConn{}
	return NewSession(RoleChat, "", c, reg), c
}

func TestJoinCreatesRoom(t *testing.T) {
	reg := NewRegistry(0)
	s, _ := newTestSession(reg)

	require.NoError(t, reg.Join("r1", s))
	assert.True(t, reg.Exists("r1"))
	assert.Equal(t, 1, reg.RoomCount())
	assert.Equal(t, StateJoined, s.State())
	assert.Equal(t, domain.RoomID("r1"), s.Room())
}

func TestRoomRemovedWhenEmptyAndRecreatedFresh(t *testing.T) {
	reg := NewRegistry(0)
	a, _ := newTestSession(reg)
	b, _ := newTestSession(reg)

	require.NoError(t, reg.Join("r1", a))
	reg.Leave("r1", a)
	assert.False(t, reg.Exists("r1"))
	assert.Zero(t, reg.RoomCount())

	require.NoError(t, reg.Join("r1", b))
	members := reg.MembersOf("r1")
	require.Len(t, members, 1)
	assert.Same(t, b, members[0])
}

func TestJoinOtherRoomLeavesPrevious(t *testing.T) {
	reg := NewRegistry(0)
	a, _ := newTestSession(reg)
	b, _ := newTestSession(reg)
	require.NoError(t, reg.Join("r1", a))
	require.NoError(t, reg.Join("r1", b))

	require.NoError(t, reg.Join("r2", a))
	assert.Equal(t, 1, reg.MemberCount("r1"))
	assert.Equal(t, 1, reg.MemberCount("r2"))
	assert.Equal(t, domain.RoomID("r2"), a.Room())
}

func TestJoinSameRoomTwiceIsNoop(t *testing.T) {
	reg := NewRegistry(0)
	a, _ := newTestSession(reg)
	require.NoError(t, reg.Join("r1", a))
	require.NoError(t, reg.Join("r1", a))
	assert.Equal(t, 1, reg.MemberCount("r1"))
}

func TestJoinClosedSessionFails(t *testing.T) {
	reg := NewRegistry(0)
	a, _ := newTestSession(reg)
	a.Close()
	assert.ErrorIs(t, reg.Join("r1", a), ErrSessionClosed)
	assert.False(t, reg.Exists("r1"))
}

func TestRoomCapacity(t *testing.T) {
	reg := NewRegistry(2)
	a, _ := newTestSession(reg)
	b, _ := newTestSession(reg)
	c, _ := newTestSession(reg)
	require.NoError(t, reg.Join("r1", a))
	require.NoError(t, reg.Join("r1", b))
	assert.ErrorIs(t, reg.Join("r1", c), ErrRoomFull)
	assert.Equal(t, 2, reg.MemberCount("r1"))
	assert.Equal(t, StateConnecting, c.State())
}

func TestSwitchIntoFullRoomLeavesSessionUnjoined(t *testing.T) {
	reg := NewRegistry(1)
	a, _ := newTestSession(reg)
	b, _ := newTestSession(reg)
	require.NoError(t, reg.Join("r1", a))
	require.NoError(t, reg.Join("r2", b))

	assert.ErrorIs(t, reg.Join("r2", a), ErrRoomFull)
	assert.Equal(t, StateConnecting, a.State())
	assert.Empty(t, a.Room())
	assert.False(t, reg.Exists("r1"))
	assert.Equal(t, 1, reg.MemberCount("r2"))

	require.NoError(t, reg.Join("r1", a))
	assert.Equal(t, StateJoined, a.State())
}

func TestCloseLeavesTheJoiningRegistry(t *testing.T) {
	chat, signaling := NewRegistry(0), NewRegistry(0)
	s, _ := newTestSession(nil)
	require.NoError(t, signaling.Join("g1", s))

	s.Close()
	assert.False(t, signaling.Exists("g1"))
	assert.Zero(t, chat.RoomCount())
}

func TestCloseLeavesRoomAndClosesTransport(t *testing.T) {
	reg := NewRegistry(0)
	a, conn := newTestSession(reg)
	require.NoError(t, reg.Join("r1", a))

	a.Close()
	a.Close()
	assert.True(t, conn.isClosed())
	assert.False(t, reg.Exists("r1"))
	assert.Equal(t, StateClosed, a.State())
	assert.ErrorIs(t, a.Send(Frame("x")), ErrSessionClosed)
}

func TestMembersOfReturnsCopy(t *testing.T) {
	reg := NewRegistry(0)
	a, _ := newTestSession(reg)
	b, _ := newTestSession(reg)
	require.NoError(t, reg.Join("r1", a))
	require.NoError(t, reg.Join("r1", b))

	snap := reg.MembersOf("r1")
	reg.Leave("r1", b)
	assert.Len(t, snap, 2)
	assert.Len(t, reg.MembersOf("r1"), 1)
}

func TestRoomsListing(t *testing.T) {
	reg := NewRegistry(0)
	for i := 0; i < 3; i++ {
		s, _ := newTestSession(reg)
		require.NoError(t, reg.Join(domain.RoomID(fmt.Sprintf("room-%d", i)), s))
	}
	rooms := reg.Rooms()
	assert.Len(t, rooms, 3)
	for _, r := range rooms {
		assert.Equal(t, 1, r.MemberCount)
	}
}

func TestRoomHooks(t *testing.T) {
	reg := NewRegistry(0)
	var created, deleted []domain.RoomID
	reg.OnRoomCreated = func(id domain.RoomID) { created = append(created, id) }
	reg.OnRoomDeleted = func(id domain.RoomID) { deleted = append(deleted, id) }

	a, _ := newTestSession(reg)
	b, _ := newTestSession(reg)
	require.NoError(t, reg.Join("r1", a))
	require.NoError(t, reg.Join("r1", b))
	a.Close()
	b.Close()

	assert.Equal(t, []domain.RoomID{"r1"}, created)
	assert.Equal(t, []domain.RoomID{"r1"}, deleted)
}

func TestConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry(0)
	const workers = 32
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			s, _ := newTestSession(reg)
			for i := 0; i < rounds; i++ {
				room := domain.RoomID(fmt.Sprintf("r%d", (w+i)%4))
				if err := reg.Join(room, s); err != nil {
					t.Errorf("join: %v", err)
					return
				}
				if i%3 == 0 {
					reg.Leave(room, s)
				}
			}
			s.Close()
		}(w)
	}
	wg.Wait()

	assert.Zero(t, reg.RoomCount())
	assert.Empty(t, reg.Rooms())
}

func TestConcurrentFirstJoinCreatesOneRoom(t *testing.T) {
	reg := NewRegistry(0)
	var mu sync.Mutex
	creates := 0
	reg.OnRoomCreated = func(domain.RoomID) {
		mu.Lock()
		creates++
		mu.Unlock()
	}

	sessions := make([]*Session, 50)
	for i := range sessions {
		sessions[i], _ = newTestSession(reg)
	}
	var wg sync.WaitGroup
	start := make(chan struct{})
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			<-start
			_ = reg.Join("hot", s)
		}(s)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, creates)
	assert.Equal(t, 50, reg.MemberCount("hot"))
}
