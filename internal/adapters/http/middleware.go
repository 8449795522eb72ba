package http

import (
	"net/http"
	"strings"

	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/MeBadDev/GDWeb/internal/identity"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ctxClientToken = "client_token"
	ctxUserID      = "uid"
)

// ClientTokenMiddleware gives every browser a stable id kept in the session
// cookie. It correlates log lines of one client across connections.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(ctxClientToken).(string)
		if token == "" {
			token = uuid.NewString()
			session.Set(ctxClientToken, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(ctxClientToken, token)
		c.Next()
	}
}

// RequireUser rejects requests without a valid bearer token.
func RequireUser(auth identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			log.Warn().Str("module", "adapters.http").Str("path", c.FullPath()).Msg("missing or invalid Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		if auth == nil || !auth.Available() {
			log.Error().Str("module", "adapters.http").Msg("auth not configured")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		uid, err := auth.Verify(c.Request.Context(), strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		c.Set(ctxUserID, string(uid))
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(ctxUserID))
}
