package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/handler"
	"github.com/stemsi/proctor-bot/internal/middleware"
	"github.com/stemsi/proctor-bot/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	GuildSync   *handler.GuildSyncHandler
	ExamSession *handler.ExamSessionHandler
	Monitor     *handler.MonitorHandler
	WS          *handler.WSHandler
	System      *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── Admin Group (JWT) ─────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth), middleware.NoStore(), middleware.Brotli())
	{
		// Manual runs share the background gate; keep operators from queueing
		// a pile of them.
		runLimiter := middleware.NewRateLimiter(cfg.SyncRunRatePerMinute, time.Minute)

		adminAPI.GET("/guild-sync/status", handlers.GuildSync.GetStatus)
		adminAPI.POST("/guild-sync/run", runLimiter.Middleware(), handlers.GuildSync.RunSync)

		adminAPI.GET("/exams/sessions", handlers.ExamSession.ListSessions)
		adminAPI.GET("/exams/sessions/stream", handlers.Monitor.MonitorSessionsSSE)
		adminAPI.GET("/exams/results", handlers.ExamSession.ListResults)
	}

	// ─── WebSocket Group (JWT via ?token=) ─────────────────────────────
	ws := router.Group("/ws/v1/admin")
	ws.Use(middleware.RequireAdminJWT(auth))
	{
		ws.GET("/guilds/stream", handlers.WS.GuildStream)
	}

	return router
}
