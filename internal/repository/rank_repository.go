package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proctor-bot/internal/model"
)

// RankRepository handles guild role (rank) data access.
type RankRepository struct {
	pool *pgxpool.Pool
}

// NewRankRepository creates a new RankRepository.
func NewRankRepository(pool *pgxpool.Pool) *RankRepository {
	return &RankRepository{pool: pool}
}

// ListByGuild returns all ranks stored for a guild.
func (r *RankRepository) ListByGuild(ctx context.Context, guildID uuid.UUID) ([]model.Rank, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, discord_role_id, name, created_at
		 FROM ranks
		 WHERE guild_id = $1
		 ORDER BY name`, guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranks []model.Rank
	for rows.Next() {
		var rk model.Rank
		if err := rows.Scan(&rk.ID, &rk.GuildID, &rk.DiscordRoleID, &rk.Name, &rk.CreatedAt); err != nil {
			return nil, err
		}
		ranks = append(ranks, rk)
	}
	return ranks, rows.Err()
}

// Create inserts a rank keyed by (guild, Discord role id).
func (r *RankRepository) Create(ctx context.Context, guildID uuid.UUID, discordRoleID, name string) (*model.Rank, error) {
	rk := &model.Rank{GuildID: guildID, DiscordRoleID: discordRoleID, Name: name}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ranks (guild_id, discord_role_id, name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, discord_role_id) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, created_at`,
		guildID, discordRoleID, name,
	).Scan(&rk.ID, &rk.CreatedAt)
	if err != nil {
		return nil, err
	}
	return rk, nil
}

// Rename updates a rank's display name.
func (r *RankRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE ranks SET name = $1 WHERE id = $2`, name, id)
	return err
}

// Count returns the number of ranks across all guilds.
func (r *RankRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ranks`).Scan(&n)
	return n, err
}
