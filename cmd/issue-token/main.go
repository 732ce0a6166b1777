package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/logger"
	"github.com/stemsi/proctor-bot/internal/service"
)

// issue-token mints an admin JWT for the dashboard and the admin API.
func main() {
	var operator string
	var expiry time.Duration
	flag.StringVar(&operator, "operator", "", "Name recorded as the token subject")
	flag.DurationVar(&expiry, "expiry", 0, "Token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	operator = strings.TrimSpace(operator)
	if operator == "" {
		fmt.Fprintln(os.Stderr, "Error: -operator is required")
		flag.Usage()
		os.Exit(2)
	}
	if expiry > 0 {
		cfg.JWTExpiry = expiry
	}

	token, err := service.NewAuthService(cfg).GenerateAdminToken(operator)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Info().Str("operator", operator).Dur("expiry", cfg.JWTExpiry).Msg("Issued admin token")
	fmt.Println(token)
}
