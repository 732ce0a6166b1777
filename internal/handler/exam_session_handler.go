package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stemsi/proctor-bot/internal/response"
	"github.com/stemsi/proctor-bot/internal/validator"
)

// SessionReporter reads exam session projections.
type SessionReporter interface {
	ListLive(ctx context.Context, discordGuildID string, now time.Time) ([]model.ExamSessionRecord, error)
	ListResults(ctx context.Context, discordGuildID string, now time.Time) ([]model.ExamSessionRecord, error)
}

// ExamSessionHandler handles exam session reporting endpoints.
type ExamSessionHandler struct {
	sessions SessionReporter
	log      zerolog.Logger
}

// NewExamSessionHandler creates a new ExamSessionHandler.
func NewExamSessionHandler(sessions SessionReporter, log zerolog.Logger) *ExamSessionHandler {
	return &ExamSessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "exam_session_handler").Logger(),
	}
}

// ListSessions godoc
// GET /api/v1/admin/exams/sessions?discord_guild_id=
// Returns attempts still in progress, newest first.
func (h *ExamSessionHandler) ListSessions(c *gin.Context) {
	h.list(c, h.sessions.ListLive)
}

// ListResults godoc
// GET /api/v1/admin/exams/results?discord_guild_id=
// Returns finished attempts, newest first. Abandoned attempts past their
// deadline are reported as expired.
func (h *ExamSessionHandler) ListResults(c *gin.Context) {
	h.list(c, h.sessions.ListResults)
}

func (h *ExamSessionHandler) list(c *gin.Context, fetch func(context.Context, string, time.Time) ([]model.ExamSessionRecord, error)) {
	var q model.SessionQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	records, err := fetch(c.Request.Context(), q.DiscordGuildID, time.Now())
	if err != nil {
		h.log.Error().Err(err).Str("guild_id", q.DiscordGuildID).Msg("Failed to list exam sessions")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.List(c, records)
}
