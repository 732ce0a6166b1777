package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stemsi/proctor-bot/internal/response"
	"github.com/stemsi/proctor-bot/internal/validator"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// ActiveCounter reports how many exam sessions are held in memory.
type ActiveCounter interface {
	ActiveSessions() int
}

// MonitorHandler streams live exam sessions over SSE.
type MonitorHandler struct {
	sessions SessionReporter
	engine   ActiveCounter
	log      zerolog.Logger
}

func NewMonitorHandler(sessions SessionReporter, engine ActiveCounter, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		sessions: sessions,
		engine:   engine,
		log:      log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionsSSE godoc
// GET /api/v1/admin/exams/sessions/stream?discord_guild_id=
// Sends a snapshot of live sessions immediately and again every refresh
// interval until the client disconnects.
func (h *MonitorHandler) MonitorSessionsSSE(c *gin.Context) {
	var q model.SessionQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, q.DiscordGuildID)

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	h.log.Info().Str("guild_id", q.DiscordGuildID).Msg("Admin attached to live session monitor")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("guild_id", q.DiscordGuildID).Msg("Admin detached from live session monitor")
			return

		case <-refreshTicker.C:
			h.sendSnapshot(c, reqCtx, q.DiscordGuildID)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, parentCtx context.Context, discordGuildID string) {
	// Scoped timeout prevents a slow query from stalling the SSE loop
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	live, err := h.sessions.ListLive(ctx, discordGuildID, time.Now())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to load live sessions")
		return
	}
	if live == nil {
		live = []model.ExamSessionRecord{}
	}

	c.SSEvent("message", map[string]interface{}{
		"type": "snapshot",
		"data": map[string]interface{}{
			"active_in_memory": h.engine.ActiveSessions(),
			"sessions":         live,
		},
	})
	c.Writer.Flush()
}
