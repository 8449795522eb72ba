package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeBadDev/GDWeb/internal/adapters/docstore"
	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/core"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/MeBadDev/GDWeb/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type fixture struct {
	srv   *httptest.Server
	relay *app.Relay
	auth  *identity.Service
}

func newFixture(t *testing.T, maxRoom int, opts Options) *fixture {
	t.Helper()
	relay := app.NewRelay(app.RelayOptions{MaxRoomSize: maxRoom})
	auth := identity.NewService(docstore.NewMemory(), "secret", time.Hour, identity.WithCost(bcrypt.MinCost))
	ctl := NewSignalWSController(relay, auth, opts)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/chat/:roomId", func(c *gin.Context) { ctl.HandleChat(ctx, c) })
	r.GET("/multiplayer/signaling", func(c *gin.Context) { ctl.HandleSignaling(ctx, c) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		srv.Close()
		require.Eventually(t, func() bool { return relay.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	})
	return &fixture{srv: srv, relay: relay, auth: auth}
}

func (f *fixture) dial(t *testing.T, path string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func (f *fixture) waitMembers(t *testing.T, role core.Role, room domain.RoomID, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.relay.Registry(role).MemberCount(room) == n
	}, 2*time.Second, 5*time.Millisecond)
}

func read(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestChatRelay(t *testing.T) {
	f := newFixture(t, 0, Options{})
	a := f.dial(t, "/chat/game-1", nil)
	b := f.dial(t, "/chat/game-1", nil)

	assert.Equal(t, `{"type":"message:history","data":[]}`, read(t, a))
	assert.Equal(t, `{"type":"message:history","data":[]}`, read(t, b))
	f.waitMembers(t, core.RoleChat, "game-1", 2)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"message:new","data":{"text":"gg"}}`)))
	assert.Equal(t, `{"type":"message:new","data":{"text":"gg"}}`, read(t, b))

	// the sender got no echo: its next frame is the answer to a bad message
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	assert.Equal(t, `{"type":"error","code":400,"message":"malformed message"}`, read(t, a))

	// still open after the error
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"message:new","data":2}`)))
	assert.Equal(t, `{"type":"message:new","data":2}`, read(t, b))
}

func TestSignalingDefaultsToLobby(t *testing.T) {
	f := newFixture(t, 0, Options{})
	a := f.dial(t, "/multiplayer/signaling", nil)
	b := f.dial(t, "/multiplayer/signaling?room=lobby", nil)
	f.waitMembers(t, core.RoleSignaling, DefaultSignalingRoom, 2)

	raw := `{"type":"signal:offer","data":{"sdp":"v=0"}}`
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(raw)))
	assert.Equal(t, raw, read(t, b))

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte(`{"type":"message:new"}`)))
	assert.Equal(t, `{"type":"error","code":400}`, read(t, b))
}

func TestDisconnectRemovesRoom(t *testing.T) {
	f := newFixture(t, 0, Options{})
	a := f.dial(t, "/multiplayer/signaling?room=r9", nil)
	f.waitMembers(t, core.RoleSignaling, "r9", 1)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return !f.relay.Registry(core.RoleSignaling).Exists("r9") }, 2*time.Second, 10*time.Millisecond)
}

func TestChatAndSignalingRoomsAreSeparate(t *testing.T) {
	f := newFixture(t, 2, Options{})
	chatA := f.dial(t, "/chat/g1", nil)
	chatB := f.dial(t, "/chat/g1", nil)
	sigA := f.dial(t, "/multiplayer/signaling?room=g1", nil)
	sigB := f.dial(t, "/multiplayer/signaling?room=g1", nil)
	history := `{"type":"message:history","data":[]}`
	assert.Equal(t, history, read(t, chatA))
	assert.Equal(t, history, read(t, chatB))
	f.waitMembers(t, core.RoleChat, "g1", 2)
	f.waitMembers(t, core.RoleSignaling, "g1", 2)

	offer := `{"type":"signal:offer","data":{"sdp":"v=0"}}`
	require.NoError(t, sigA.WriteMessage(websocket.TextMessage, []byte(offer)))
	assert.Equal(t, offer, read(t, sigB))

	// the offer went out before this message, so a leak would arrive first
	msg := `{"type":"message:new","data":"hi"}`
	require.NoError(t, chatA.WriteMessage(websocket.TextMessage, []byte(msg)))
	assert.Equal(t, msg, read(t, chatB))

	answer := `{"type":"signal:answer","data":{"sdp":"v=0"}}`
	require.NoError(t, sigB.WriteMessage(websocket.TextMessage, []byte(answer)))
	assert.Equal(t, answer, read(t, sigA))

	// two of each fit under a room size of two
	assert.Len(t, f.relay.Rooms(), 2)
}

func TestRoomFullClosesSocket(t *testing.T) {
	f := newFixture(t, 1, Options{})
	f.dial(t, "/multiplayer/signaling?room=solo", nil)
	f.waitMembers(t, core.RoleSignaling, "solo", 1)

	b := f.dial(t, "/multiplayer/signaling?room=solo", nil)
	assert.Equal(t, `{"type":"error","code":409,"message":"room full"}`, read(t, b))
	_, _, err := b.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestRequireAuth(t *testing.T) {
	f := newFixture(t, 0, Options{RequireAuth: true})
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/chat/r1"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=forged", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	uid, token, err := f.auth.Register(context.Background(), "p@example.com", "secret1")
	require.NoError(t, err)

	ws := f.dial(t, "/chat/r1", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, `{"type":"message:history","data":[]}`, read(t, ws))
	f.waitMembers(t, core.RoleChat, "r1", 1)
	members := f.relay.Registry(core.RoleChat).MembersOf("r1")
	require.Len(t, members, 1)
	assert.Equal(t, uid, members[0].Subject())
}

func TestInvalidRoom(t *testing.T) {
	f := newFixture(t, 0, Options{})
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/multiplayer/signaling?room=" + strings.Repeat("x", domain.MaxRoomIDLen+1)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
