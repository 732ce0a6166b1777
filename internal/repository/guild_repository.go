package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proctor-bot/internal/model"
)

// GuildRepository handles guild data access.
type GuildRepository struct {
	pool *pgxpool.Pool
}

// NewGuildRepository creates a new GuildRepository.
func NewGuildRepository(pool *pgxpool.Pool) *GuildRepository {
	return &GuildRepository{pool: pool}
}

// List returns every stored guild.
func (r *GuildRepository) List(ctx context.Context) ([]model.Guild, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, discord_guild_id, name, created_at FROM guilds ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var guilds []model.Guild
	for rows.Next() {
		var g model.Guild
		if err := rows.Scan(&g.ID, &g.DiscordGuildID, &g.Name, &g.CreatedAt); err != nil {
			return nil, err
		}
		guilds = append(guilds, g)
	}
	return guilds, rows.Err()
}

// GetByDiscordID looks a guild up by its Discord snowflake.
func (r *GuildRepository) GetByDiscordID(ctx context.Context, discordGuildID string) (*model.Guild, error) {
	g := &model.Guild{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, discord_guild_id, name, created_at FROM guilds WHERE discord_guild_id = $1`,
		discordGuildID,
	).Scan(&g.ID, &g.DiscordGuildID, &g.Name, &g.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

// Create inserts a guild. A concurrent insert of the same Discord id resolves
// to the existing row instead of failing.
func (r *GuildRepository) Create(ctx context.Context, discordGuildID, name string) (*model.Guild, error) {
	g := &model.Guild{DiscordGuildID: discordGuildID, Name: name}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO guilds (discord_guild_id, name)
		 VALUES ($1, $2)
		 ON CONFLICT (discord_guild_id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, created_at`,
		discordGuildID, name,
	).Scan(&g.ID, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Rename updates a guild's display name.
func (r *GuildRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE guilds SET name = $1 WHERE id = $2`, name, id)
	return err
}

// Summaries returns the dashboard view of every guild ordered by name.
func (r *GuildRepository) Summaries(ctx context.Context) ([]model.GuildSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, discord_guild_id, name FROM guilds ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]model.GuildSummary, 0)
	for rows.Next() {
		var s model.GuildSummary
		if err := rows.Scan(&s.ID, &s.DiscordGuildID, &s.Name); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
