package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates persisted exam session states.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusExpired   SessionStatus = "EXPIRED"
)

// ExamSessionRecord is the persisted projection of an exam attempt. The
// in-memory session is authoritative while the attempt is active.
type ExamSessionRecord struct {
	ID                  uuid.UUID     `json:"id"`
	GuildID             uuid.UUID     `json:"guild_id"`
	DiscordGuildID      string        `json:"discord_guild_id"`
	GuildName           string        `json:"guild_name"`
	CertificationID     uuid.UUID     `json:"certification_id"`
	DiscordUserID       string        `json:"discord_user_id"`
	DiscordUserName     string        `json:"discord_user_name"`
	CertificationName   string        `json:"certification_name"`
	RoleDiscordID       string        `json:"role_discord_id"`
	RoleName            string        `json:"role_name"`
	PassingScorePercent int           `json:"passing_score_percent"`
	QuestionCount       int           `json:"question_count"`
	CorrectCount        int           `json:"correct_count"`
	ScorePercent        *int          `json:"score_percent,omitempty"`
	Passed              *bool         `json:"passed,omitempty"`
	Status              SessionStatus `json:"status"`
	StartedAt           time.Time     `json:"started_at"`
	LastAnswerAt        *time.Time    `json:"last_answer_at,omitempty"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	ExpiresAt           time.Time     `json:"expires_at"`
}

// SessionQuery filters the reporting endpoints.
type SessionQuery struct {
	DiscordGuildID string `form:"discord_guild_id" json:"discord_guild_id" binding:"omitempty,numeric,max=32"`
}
