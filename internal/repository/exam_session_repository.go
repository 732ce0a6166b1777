package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proctor-bot/internal/model"
)

// ExamSessionRepository handles the persisted exam session projection.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// Create inserts the initial ACTIVE projection. Replays are ignored.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSessionRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_sessions (
			id, guild_id, certification_id, discord_user_id, discord_user_name,
			certification_name, role_discord_id, role_name, passing_score_percent,
			question_count, correct_count, status, started_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO NOTHING`,
		s.ID, s.GuildID, s.CertificationID, s.DiscordUserID, s.DiscordUserName,
		s.CertificationName, s.RoleDiscordID, s.RoleName, s.PassingScorePercent,
		s.QuestionCount, s.CorrectCount, model.SessionStatusActive, s.StartedAt, s.ExpiresAt,
	)
	return err
}

// UpdateProgress records an accepted answer on an ACTIVE session.
func (r *ExamSessionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, correctCount int, answeredAt, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET correct_count = $1, last_answer_at = $2, expires_at = $3
		 WHERE id = $4 AND status = $5`,
		correctCount, answeredAt, expiresAt, id, model.SessionStatusActive,
	)
	return err
}

// Complete moves an ACTIVE session to COMPLETED with its final score.
func (r *ExamSessionRepository) Complete(ctx context.Context, id uuid.UUID, correctCount, scorePercent int, passed bool, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, correct_count = $2, score_percent = $3, passed = $4,
		     completed_at = $5, last_answer_at = $5
		 WHERE id = $6 AND status = $7`,
		model.SessionStatusCompleted, correctCount, scorePercent, passed, completedAt,
		id, model.SessionStatusActive,
	)
	return err
}

// MarkExpired moves an ACTIVE session to EXPIRED without a score.
func (r *ExamSessionRepository) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, completed_at = $2
		 WHERE id = $3 AND status = $4`,
		model.SessionStatusExpired, at, id, model.SessionStatusActive,
	)
	return err
}

const sessionColumns = `
	es.id, es.guild_id, g.discord_guild_id, g.name, es.certification_id,
	es.discord_user_id, es.discord_user_name, es.certification_name,
	es.role_discord_id, es.role_name, es.passing_score_percent, es.question_count,
	es.correct_count, es.score_percent, es.passed, es.status, es.started_at,
	es.last_answer_at, es.completed_at, es.expires_at`

// ListLive returns ACTIVE sessions that have not expired yet, newest first.
// An empty discordGuildID lists every guild.
func (r *ExamSessionRepository) ListLive(ctx context.Context, discordGuildID string, now time.Time) ([]model.ExamSessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM exam_sessions es
		JOIN guilds g ON g.id = es.guild_id
		WHERE es.status = $1 AND es.expires_at >= $2`
	args := []any{model.SessionStatusActive, now}

	if discordGuildID != "" {
		args = append(args, discordGuildID)
		query += fmt.Sprintf(" AND g.discord_guild_id = $%d", len(args))
	}
	query += " ORDER BY es.started_at DESC"

	return r.list(ctx, query, args...)
}

// ListResults returns finished sessions, newest first. ACTIVE rows past their
// expiry are reported as EXPIRED, with completed_at falling back to expires_at.
func (r *ExamSessionRepository) ListResults(ctx context.Context, discordGuildID string, now time.Time) ([]model.ExamSessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM exam_sessions es
		JOIN guilds g ON g.id = es.guild_id
		WHERE (es.status IN ($1, $2) OR (es.status = $3 AND es.expires_at < $4))`
	args := []any{model.SessionStatusCompleted, model.SessionStatusExpired, model.SessionStatusActive, now}

	if discordGuildID != "" {
		args = append(args, discordGuildID)
		query += fmt.Sprintf(" AND g.discord_guild_id = $%d", len(args))
	}
	query += " ORDER BY es.started_at DESC"

	records, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range records {
		s := &records[i]
		if s.Status == model.SessionStatusActive && s.ExpiresAt.Before(now) {
			s.Status = model.SessionStatusExpired
			if s.CompletedAt == nil {
				expired := s.ExpiresAt
				s.CompletedAt = &expired
			}
		}
	}
	return records, nil
}

func (r *ExamSessionRepository) list(ctx context.Context, query string, args ...any) ([]model.ExamSessionRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ExamSessionRecord, error) {
		var s model.ExamSessionRecord
		err := row.Scan(
			&s.ID, &s.GuildID, &s.DiscordGuildID, &s.GuildName, &s.CertificationID,
			&s.DiscordUserID, &s.DiscordUserName, &s.CertificationName,
			&s.RoleDiscordID, &s.RoleName, &s.PassingScorePercent, &s.QuestionCount,
			&s.CorrectCount, &s.ScorePercent, &s.Passed, &s.Status, &s.StartedAt,
			&s.LastAnswerAt, &s.CompletedAt, &s.ExpiresAt,
		)
		return s, err
	})
}
