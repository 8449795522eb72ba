package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/core"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/MeBadDev/GDWeb/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSignalingRoom domain.RoomID = "lobby"

	writeWait = 10 * time.Second
)

type Options struct {
	SendBuffer  int
	ReadLimit   int64
	PingPeriod  time.Duration
	RequireAuth bool
}

type SignalWSController struct {
	Relay *app.Relay
	Auth  identity.Provider
	opts  Options
}

func NewSignalWSController(relay *app.Relay, auth identity.Provider, opts Options) *SignalWSController {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &SignalWSController{Relay: relay, Auth: auth, opts: opts}
}

// WsSignalConn is the transport handle of one websocket. Frames are queued
// on send and written by the write pump; Close stops accepting frames and
// lets the pump flush what is queued before the socket closes.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrSessionClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleChat serves GET /chat/:roomId.
func (ctl *SignalWSController) HandleChat(ctx context.Context, c *gin.Context) {
	room, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid room"})
		return
	}
	ctl.serve(ctx, c, core.RoleChat, room)
}

// HandleSignaling serves GET /multiplayer/signaling?room=<id>.
func (ctl *SignalWSController) HandleSignaling(ctx context.Context, c *gin.Context) {
	room := DefaultSignalingRoom
	if q := c.Query("room"); q != "" {
		var err error
		if room, err = domain.ParseRoomID(q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid room"})
			return
		}
	}
	ctl.serve(ctx, c, core.RoleSignaling, room)
}

func (ctl *SignalWSController) serve(ctx context.Context, c *gin.Context, role core.Role, room domain.RoomID) {
	subject, err := ctl.authenticate(c)
	if err != nil {
		status, msg := http.StatusUnauthorized, "unauthorized"
		if errors.Is(err, errAuthNotConfigured) {
			status, msg = http.StatusInternalServerError, "server auth not configured"
		}
		c.JSON(status, gin.H{"message": msg})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	sess := core.NewSession(role, subject, conn, ctl.Relay.Registry(role))
	log.Info().
		Str("module", "signal").
		Str("sid", string(sess.ID())).
		Str("client", c.GetString("client_token")).
		Str("role", string(role)).
		Str("room", string(room)).
		Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)

	if err := ctl.Relay.Connect(sess, room); err != nil {
		// the pump flushes the queued error frame, then closes the socket
		sess.Close()
		return
	}
	go ctl.readPump(ctx, cancel, sess, conn)
}
