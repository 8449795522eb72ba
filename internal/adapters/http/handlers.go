package http

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/MeBadDev/GDWeb/internal/adapters/storage"
	"github.com/MeBadDev/GDWeb/internal/app"
	"github.com/MeBadDev/GDWeb/internal/apperr"
	"github.com/MeBadDev/GDWeb/internal/config"
	"github.com/MeBadDev/GDWeb/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	msgAuthNotConfigured = "server auth not configured"
	msgInvalidFile       = "invalid file"
	msgNotFound          = "not found"
)

type handlers struct {
	cfg *config.Config
	d   Deps
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	UserID domain.UserID `json:"userId"`
	Token  string        `json:"token"`
}

type reportRequest struct {
	GameID  string `json:"gameId" binding:"required"`
	Reason  string `json:"reason" binding:"required"`
	Details string `json:"details"`
}

func fail(c *gin.Context, err error, msg string) {
	status := apperr.Status(err)
	if msg == "" {
		msg = apperr.Message(err)
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"message": msg})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) register(c *gin.Context) {
	if !h.d.Auth.Available() {
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgAuthNotConfigured})
		return
	}
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
		return
	}
	uid, token, err := h.d.Auth.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, authResponse{UserID: uid, Token: token})
	case errors.Is(err, apperr.ErrConflict):
		fail(c, err, "email exists")
	case errors.Is(err, apperr.ErrUnavailable):
		fail(c, err, msgAuthNotConfigured)
	case errors.Is(err, apperr.ErrInvalidInput):
		fail(c, err, "invalid input")
	default:
		fail(c, err, "")
	}
}

func (h *handlers) login(c *gin.Context) {
	if !h.d.Auth.Available() {
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgAuthNotConfigured})
		return
	}
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
		return
	}
	uid, token, err := h.d.Auth.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, authResponse{UserID: uid, Token: token})
	case errors.Is(err, apperr.ErrUnauthenticated):
		fail(c, err, "invalid credentials")
	default:
		fail(c, err, "")
	}
}

func (h *handlers) profile(c *gin.Context) {
	if !h.d.Auth.Available() {
		c.JSON(http.StatusInternalServerError, gin.H{"message": msgAuthNotConfigured})
		return
	}
	p, err := h.d.Auth.Profile(c.Request.Context(), domain.UserID(c.Param("id")))
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// formFile opens the multipart "file" field, enforcing max_upload_bytes.
func (h *handlers) formFile(c *gin.Context) (multipart.File, *multipart.FileHeader, bool) {
	limit := h.cfg.MaxUploadBytes
	if limit > 0 {
		if c.Request.ContentLength > limit {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": apperr.ErrTooLarge.Error()})
			return nil, nil, false
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": apperr.ErrTooLarge.Error()})
			return nil, nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidFile})
		return nil, nil, false
	}
	if err := domain.CheckPackageName(fh.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidFile})
		return nil, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": msgInvalidFile})
		return nil, nil, false
	}
	return f, fh, true
}

func (h *handlers) uploadGame(c *gin.Context) {
	f, fh, ok := h.formFile(c)
	if !ok {
		return
	}
	defer f.Close()

	meta, err := h.d.Games.Upload(c.Request.Context(), currentUser(c), fh.Filename, f)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			fail(c, err, msgInvalidFile)
			return
		}
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gameId": meta.ID, "metadata": meta})
}

func (h *handlers) gameMetadata(c *gin.Context) {
	meta, err := h.d.Games.Metadata(c.Request.Context(), domain.GameID(c.Param("id")))
	if err != nil {
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"metadata": meta})
}

func (h *handlers) playGame(c *gin.Context) {
	content, err := h.d.Games.Open(domain.GameID(c.Param("id")))
	if err != nil {
		fail(c, err, "")
		return
	}
	serve(c, content)
}

func (h *handlers) uploadPreview(c *gin.Context) {
	f, fh, ok := h.formFile(c)
	if !ok {
		return
	}
	defer f.Close()

	p, err := h.d.Previews.Upload(c.Request.Context(), fh.Filename, f)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) {
			fail(c, err, msgInvalidFile)
			return
		}
		fail(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"previewId": p.ID})
}

func (h *handlers) playPreview(c *gin.Context) {
	content, err := h.d.Previews.Open(domain.PreviewID(c.Param("id")))
	if err != nil {
		fail(c, err, "")
		return
	}
	serve(c, content)
}

func serve(c *gin.Context, content *app.Content) {
	defer content.Close()
	c.Header("Content-Type", storage.ContentType(content))
	http.ServeContent(c.Writer, c.Request, "", content.ModTime, content)
}

func (h *handlers) createReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid input"})
		return
	}
	r, err := h.d.Reports.Create(currentUser(c), domain.GameID(req.GameID), req.Reason, req.Details)
	if err != nil {
		fail(c, err, "invalid input")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reportId": r.ID})
}

func (h *handlers) pendingReports(c *gin.Context) {
	if !h.cfg.IsAdmin(string(currentUser(c))) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, h.d.Reports.Pending())
}

func (h *handlers) resolveReport(c *gin.Context) {
	if !h.cfg.IsAdmin(string(currentUser(c))) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}
	if err := h.d.Reports.Resolve(domain.ReportID(c.Param("id"))); err != nil {
		fail(c, err, msgNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) iceServers(c *gin.Context) {
	servers := []webrtc.ICEServer{}
	if len(h.cfg.Signaling.ICEServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: h.cfg.Signaling.ICEServers})
	}
	c.JSON(http.StatusOK, gin.H{"iceServers": servers})
}

func (h *handlers) rooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rooms":    h.d.Relay.Rooms(),
		"sessions": h.d.Relay.SessionCount(),
	})
}

func (h *handlers) evictRoom(c *gin.Context) {
	if !h.cfg.IsAdmin(string(currentUser(c))) {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}
	n := h.d.Relay.EvictRoom(domain.RoomID(c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"evicted": n})
}
