package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/response"
)

const healthTimeout = 2 * time.Second

// DatabasePinger is satisfied by *pgxpool.Pool.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// RedisProbe is the subset of *redis.Client the health check touches.
type RedisProbe interface {
	Ping(ctx context.Context) *redis.StatusCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// SystemHandler reports process and dependency health.
type SystemHandler struct {
	db        DatabasePinger
	rdb       RedisProbe
	engine    ActiveCounter
	connected func() bool
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. connected reports whether the
// chat gateway is up; a nil func reports it as disabled.
func NewSystemHandler(db DatabasePinger, rdb RedisProbe, engine ActiveCounter, connected func() bool, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		engine:    engine,
		connected: connected,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Postgres        string `json:"postgres"`
	Redis           string `json:"redis"`
	Discord         string `json:"discord"`
	ActiveSessions  int    `json:"active_sessions"`
	ProjectionQueue int64  `json:"projection_queue"`
	Goroutines      int    `json:"goroutines"`
	GoVersion       string `json:"go_version"`
}

// Health godoc
// GET /health
// Returns 200 when Postgres and Redis answer, 503 otherwise. The chat gateway
// state is reported but never fails the check.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status:         "ok",
		Uptime:         formatDuration(time.Since(h.startTime)),
		Postgres:       "up",
		Redis:          "up",
		Discord:        "disabled",
		ActiveSessions: h.engine.ActiveSessions(),
		Goroutines:     runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
	}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Postgres health check failed")
		report.Postgres = "down"
		report.Status = "degraded"
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis health check failed")
		report.Redis = "down"
		report.Status = "degraded"
	} else {
		report.ProjectionQueue, _ = h.rdb.LLen(ctx, config.Queue.SessionProjection).Result()
	}
	if h.connected != nil {
		report.Discord = "down"
		if h.connected() {
			report.Discord = "up"
		}
	}

	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	response.Success(c, code, report)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
