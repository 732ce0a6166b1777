package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/broadcast"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/database"
	"github.com/stemsi/proctor-bot/internal/discord"
	"github.com/stemsi/proctor-bot/internal/handler"
	"github.com/stemsi/proctor-bot/internal/logger"
	"github.com/stemsi/proctor-bot/internal/repository"
	"github.com/stemsi/proctor-bot/internal/router"
	"github.com/stemsi/proctor-bot/internal/service"
	"github.com/stemsi/proctor-bot/internal/session"
	"github.com/stemsi/proctor-bot/internal/validator"
	"github.com/stemsi/proctor-bot/internal/worker"
)

const sweepInterval = time.Minute

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Proctor Bot")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Discord Session ───────────────────────────────────────────────
	// Without a token the session is never opened; the roster then reports
	// not-connected and every sync run is recorded as failed.
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	// ─── Initialize Repositories ───────────────────────────────────────
	guildRepo := repository.NewGuildRepository(pool)
	rankRepo := repository.NewRankRepository(pool)
	certRepo := repository.NewCertificationRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	roster := discord.NewStateRoster(dg.State)

	engine := service.NewExamSessionService(
		certRepo,
		worker.NewProjectionQueue(rdb),
		discord.NewRoleGranter(dg),
		session.NewStore(),
		cfg.ExamSessionTimeout,
		log,
	)

	guildSync := service.NewGuildSyncService(
		roster,
		guildRepo,
		rankRepo,
		certRepo,
		broadcast.NewRedisBroadcaster(rdb, log),
		service.NewGuildSyncState(cfg.GuildSyncInterval),
		cfg.GuildSyncInterval,
		cfg.GuildSyncGracePeriod,
		log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		GuildSync:   handler.NewGuildSyncHandler(guildSync, log),
		ExamSession: handler.NewExamSessionHandler(sessionRepo, log),
		Monitor:     handler.NewMonitorHandler(sessionRepo, engine, log),
		WS:          handler.NewWSHandler(rdb, guildSync, log, cfg.AllowedOrigins),
		System:      handler.NewSystemHandler(pool, rdb, engine, connectedProbe(cfg, roster), log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	projectionWorker := worker.NewProjectionWorker(rdb, sessionRepo, log)
	workers.Add(3)
	go func() {
		defer workers.Done()
		projectionWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		guildSync.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		sweepLoop(workerCtx, engine, log)
	}()

	// ─── Open Gateway ─────────────────────────────────────────────────
	if cfg.DiscordBotToken != "" {
		discord.NewBot(engine, log).Attach(dg)
		if err := dg.Open(); err != nil {
			log.Fatal().Err(err).Msg("Failed to open Discord gateway")
		}
		defer dg.Close()
		log.Info().Msg("Discord gateway connected")
	} else {
		log.Warn().Msg("DISCORD_BOT_TOKEN not set, chat commands disabled")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers. A sync run in progress finishes and the
	// projection queue drains before Wait returns.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// sweepLoop expires abandoned sessions that nobody touched again.
func sweepLoop(ctx context.Context, engine *service.ExamSessionService, log zerolog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := engine.SweepExpired(ctx); n > 0 {
				log.Info().Int("expired", n).Msg("Swept abandoned exam sessions")
			}
		}
	}
}

func connectedProbe(cfg *config.Config, roster *discord.StateRoster) func() bool {
	if cfg.DiscordBotToken == "" {
		return nil
	}
	return roster.Connected
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
