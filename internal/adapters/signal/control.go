package signal

import (
	"errors"
	"strings"

	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	errNoToken           = errors.New("missing bearer token")
	errAuthNotConfigured = errors.New("auth not configured")
)

// bearerToken reads the Authorization header, falling back to ?token= since
// browsers cannot set headers on a websocket handshake.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}

// authenticate resolves the caller. Without require_auth a missing or bad
// token only leaves the session anonymous.
func (ctl *SignalWSController) authenticate(c *gin.Context) (domain.UserID, error) {
	token := bearerToken(c)
	available := ctl.Auth != nil && ctl.Auth.Available()

	if !ctl.opts.RequireAuth {
		if token == "" || !available {
			return "", nil
		}
		uid, err := ctl.Auth.Verify(c.Request.Context(), token)
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Msg("ignoring bad token")
			return "", nil
		}
		return uid, nil
	}

	if !available {
		log.Error().Str("module", "signal").Msg("auth required but not configured")
		return "", errAuthNotConfigured
	}
	if token == "" {
		return "", errNoToken
	}
	uid, err := ctl.Auth.Verify(c.Request.Context(), token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("authentication failed")
		return "", err
	}
	return uid, nil
}
