package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/proctor-bot/internal/model"
)

// CertificationRepository handles certification, question and answer data access.
type CertificationRepository struct {
	pool *pgxpool.Pool
}

// NewCertificationRepository creates a new CertificationRepository.
func NewCertificationRepository(pool *pgxpool.Pool) *CertificationRepository {
	return &CertificationRepository{pool: pool}
}

// GetWithQuestions loads a certification with its rank, questions and answers.
func (r *CertificationRepository) GetWithQuestions(ctx context.Context, id uuid.UUID) (*model.Certification, error) {
	c := &model.Certification{Rank: &model.Rank{}}
	err := r.pool.QueryRow(ctx,
		`SELECT c.id, c.guild_id, c.rank_id, c.name, c.description, c.passing_score_percent,
		        c.is_template, c.created_at, rk.id, rk.guild_id, rk.discord_role_id, rk.name
		 FROM certifications c
		 JOIN ranks rk ON rk.id = c.rank_id
		 WHERE c.id = $1`, id,
	).Scan(&c.ID, &c.GuildID, &c.RankID, &c.Name, &c.Description, &c.PassingScorePercent,
		&c.IsTemplate, &c.CreatedAt, &c.Rank.ID, &c.Rank.GuildID, &c.Rank.DiscordRoleID, &c.Rank.Name)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, certification_id, text, created_at
		 FROM questions
		 WHERE certification_id = $1
		 ORDER BY created_at`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	index := make(map[uuid.UUID]int)
	var questionIDs []uuid.UUID
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.CertificationID, &q.Text, &q.CreatedAt); err != nil {
			return nil, err
		}
		index[q.ID] = len(c.Questions)
		questionIDs = append(questionIDs, q.ID)
		c.Questions = append(c.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(questionIDs) == 0 {
		return c, nil
	}

	answerRows, err := r.pool.Query(ctx,
		`SELECT id, question_id, text, is_correct, sort_order
		 FROM answers
		 WHERE question_id = ANY($1)
		 ORDER BY sort_order`, questionIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var a model.Answer
		if err := answerRows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect, &a.Order); err != nil {
			return nil, err
		}
		i := index[a.QuestionID]
		c.Questions[i].Answers = append(c.Questions[i].Answers, a)
	}
	return c, answerRows.Err()
}

// ListPlayable returns the non-template certifications of a Discord guild,
// ordered by name.
func (r *CertificationRepository) ListPlayable(ctx context.Context, discordGuildID string) ([]model.Certification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.guild_id, c.rank_id, c.name, c.description, c.passing_score_percent, c.is_template, c.created_at
		 FROM certifications c
		 JOIN guilds g ON g.id = c.guild_id
		 WHERE g.discord_guild_id = $1 AND NOT c.is_template
		 ORDER BY c.name`, discordGuildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certs []model.Certification
	for rows.Next() {
		var c model.Certification
		if err := rows.Scan(&c.ID, &c.GuildID, &c.RankID, &c.Name, &c.Description,
			&c.PassingScorePercent, &c.IsTemplate, &c.CreatedAt); err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	return certs, rows.Err()
}

// HasTemplates reports whether any starter certification exists for a guild.
func (r *CertificationRepository) HasTemplates(ctx context.Context, guildID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM certifications WHERE guild_id = $1 AND is_template)`, guildID,
	).Scan(&exists)
	return exists, err
}

// CountTemplates returns the number of starter certifications across all guilds.
func (r *CertificationRepository) CountTemplates(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM certifications WHERE is_template`).Scan(&n)
	return n, err
}

// CreateWithQuestions inserts a certification together with its questions and
// answers in one transaction. Generated ids are written back into c.
func (r *CertificationRepository) CreateWithQuestions(ctx context.Context, c *model.Certification) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO certifications (guild_id, rank_id, name, description, passing_score_percent, is_template)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			c.GuildID, c.RankID, c.Name, c.Description, c.PassingScorePercent, c.IsTemplate,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert certification: %w", err)
		}

		for qi := range c.Questions {
			q := &c.Questions[qi]
			q.CertificationID = c.ID
			if err := tx.QueryRow(ctx,
				`INSERT INTO questions (certification_id, text) VALUES ($1, $2) RETURNING id, created_at`,
				c.ID, q.Text,
			).Scan(&q.ID, &q.CreatedAt); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}

			for ai := range q.Answers {
				a := &q.Answers[ai]
				a.QuestionID = q.ID
				if err := tx.QueryRow(ctx,
					`INSERT INTO answers (question_id, text, is_correct, sort_order)
					 VALUES ($1, $2, $3, $4) RETURNING id`,
					q.ID, a.Text, a.IsCorrect, a.Order,
				).Scan(&a.ID); err != nil {
					return fmt.Errorf("insert answer: %w", err)
				}
			}
		}
		return nil
	})
}
