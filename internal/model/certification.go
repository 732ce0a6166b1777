package model

import (
	"time"

	"github.com/google/uuid"
)

// Certification is an exam attached to a guild; passing it grants Rank.
type Certification struct {
	ID                  uuid.UUID  `json:"id"`
	GuildID             uuid.UUID  `json:"guild_id"`
	RankID              uuid.UUID  `json:"rank_id"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	PassingScorePercent int        `json:"passing_score_percent"`
	IsTemplate          bool       `json:"is_template"`
	CreatedAt           time.Time  `json:"created_at"`
	Rank                *Rank      `json:"rank,omitempty"`
	Questions           []Question `json:"questions,omitempty"`
}

// Question belongs to a certification. Questions are presented in creation order.
type Question struct {
	ID              uuid.UUID `json:"id"`
	CertificationID uuid.UUID `json:"certification_id"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"created_at"`
	Answers         []Answer  `json:"answers,omitempty"`
}

// Answer is one choice of a question, presented by ascending Order.
type Answer struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"text"`
	IsCorrect  bool      `json:"is_correct"`
	Order      int       `json:"order"`
}
