package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stemsi/proctor-bot/internal/broadcast"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/database"
	"github.com/stemsi/proctor-bot/internal/discord"
	"github.com/stemsi/proctor-bot/internal/logger"
	"github.com/stemsi/proctor-bot/internal/repository"
	"github.com/stemsi/proctor-bot/internal/service"
)

// sync-guilds connects to the gateway, waits for the guild roster to arrive
// and runs a single reconciliation.
func main() {
	var settle time.Duration
	flag.DurationVar(&settle, "settle", 5*time.Second, "Time to wait for GUILD_CREATE events after READY")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.DiscordBotToken == "" {
		log.Fatal().Msg("DISCORD_BOT_TOKEN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	if err := dg.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open Discord gateway")
	}
	defer dg.Close()

	time.Sleep(settle)

	certRepo := repository.NewCertificationRepository(pool)
	guildSync := service.NewGuildSyncService(
		discord.NewStateRoster(dg.State),
		repository.NewGuildRepository(pool),
		repository.NewRankRepository(pool),
		certRepo,
		broadcast.NewRedisBroadcaster(rdb, log),
		service.NewGuildSyncState(cfg.GuildSyncInterval),
		cfg.GuildSyncInterval,
		0,
		log,
	)

	status, err := guildSync.RunOnce(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Guild sync did not run")
	}
	if status.LastError != nil {
		log.Fatal().Str("error", *status.LastError).Msg("Guild sync failed")
	}

	duration := 0.0
	if status.LastDurationMs != nil {
		duration = *status.LastDurationMs
	}
	fmt.Printf("Synced %d guilds, %d roles, %d templates in %.0fms\n",
		status.LastGuildCount, status.LastRoleCount, status.LastTemplateCount, duration)
}
