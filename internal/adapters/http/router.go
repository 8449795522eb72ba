package http

import (
	"context"
	"os"

	"github.com/MeBadDev/GDWeb/internal/adapters/signal"
	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/config"
	"github.com/MeBadDev/GDWeb/internal/identity"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Relay    *app.Relay
	Signal   *signal.SignalWSController
	Auth     identity.Provider
	Games    *app.Games
	Previews *app.Previews
	Reports  *app.Reports
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("gdweb", store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{cfg: cfg, d: d}
	requireUser := RequireUser(d.Auth)

	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.GET("/users/:id", h.profile)

	games := r.Group("/games")
	games.POST("/upload", requireUser, h.uploadGame)
	games.GET("/:id", h.gameMetadata)
	games.GET("/:id/play", h.playGame)

	r.POST("/reports", requireUser, h.createReport)
	reports := r.Group("/reports", requireUser)
	reports.GET("/pending", h.pendingReports)
	reports.POST("/:id/resolve", h.resolveReport)

	preview := r.Group("/preview")
	preview.POST("/upload", h.uploadPreview)
	preview.GET("/:id/play", h.playPreview)

	r.GET("/chat/:roomId", func(c *gin.Context) { d.Signal.HandleChat(ctx, c) })
	mp := r.Group("/multiplayer")
	mp.GET("/signaling", func(c *gin.Context) { d.Signal.HandleSignaling(ctx, c) })
	mp.GET("/ice-servers", h.iceServers)

	r.GET("/rooms", h.rooms)
	r.DELETE("/rooms/:id", requireUser, h.evictRoom)

	if st, err := os.Stat(cfg.RuntimeDir); err == nil && st.IsDir() {
		r.Static("/runtime", cfg.RuntimeDir)
	} else {
		log.Warn().Str("module", "adapters.http").Str("dir", cfg.RuntimeDir).Msg("runtime dir not found; static runtime disabled")
	}

	log.Info().Str("module", "adapters.http").Str("runtime", cfg.RuntimeDir).Msg("router setup")
	return r
}
