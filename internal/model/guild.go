package model

import (
	"time"

	"github.com/google/uuid"
)

// Placeholder rank seeded alongside starter certifications. It is never a real
// Discord role, so rewards for template certifications cannot be granted.
const (
	PlaceholderRankID   = "UNASSIGNED"
	PlaceholderRankName = "Unassigned (template)"
)

// Guild is a Discord server the bot belongs to. DiscordGuildID is unique.
type Guild struct {
	ID             uuid.UUID `json:"id"`
	DiscordGuildID string    `json:"discord_guild_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Rank is a Discord role known for a guild; (GuildID, DiscordRoleID) is unique.
type Rank struct {
	ID            uuid.UUID `json:"id"`
	GuildID       uuid.UUID `json:"guild_id"`
	DiscordRoleID string    `json:"discord_role_id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
}

// GuildSummary is the guild shape pushed to dashboards on guilds:updated.
type GuildSummary struct {
	ID             uuid.UUID `json:"id"`
	DiscordGuildID string    `json:"discord_guild_id"`
	Name           string    `json:"name"`
}
