package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/middleware"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stemsi/proctor-bot/internal/response"
)

// GuildSyncRunner exposes the reconciliation status and manual trigger.
type GuildSyncRunner interface {
	RunOnce(ctx context.Context) (model.SyncStatus, error)
	Status() model.SyncStatus
}

// GuildSyncHandler handles guild reconciliation endpoints.
type GuildSyncHandler struct {
	sync GuildSyncRunner
	log  zerolog.Logger
}

// NewGuildSyncHandler creates a new GuildSyncHandler.
func NewGuildSyncHandler(sync GuildSyncRunner, log zerolog.Logger) *GuildSyncHandler {
	return &GuildSyncHandler{
		sync: sync,
		log:  log.With().Str("component", "guild_sync_handler").Logger(),
	}
}

// GetStatus godoc
// GET /api/v1/admin/guild-sync/status
// Returns the latest reconciliation status.
func (h *GuildSyncHandler) GetStatus(c *gin.Context) {
	response.Success(c, http.StatusOK, h.sync.Status())
}

// RunSync godoc
// POST /api/v1/admin/guild-sync/run
// Runs a reconciliation now, waiting for any run in progress, and returns the
// resulting status.
func (h *GuildSyncHandler) RunSync(c *gin.Context) {
	operator := ""
	if claims := middleware.GetClaims(c); claims != nil {
		operator = claims.Subject
	}

	status, err := h.sync.RunOnce(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Str("operator", operator).Msg("Manual guild sync abandoned")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrSyncAborted)
		return
	}

	h.log.Info().Str("operator", operator).Msg("Manual guild sync completed")
	response.Success(c, http.StatusOK, status)
}
