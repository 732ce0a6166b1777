// Package session holds the in-memory state of exam attempts in progress.
package session

import (
	"time"

	"github.com/google/uuid"
)

// AnswerSnapshot is an answer as it was when the attempt started.
type AnswerSnapshot struct {
	AnswerID  uuid.UUID
	Text      string
	IsCorrect bool
}

// QuestionSnapshot is a question and its ordered answers. Answer order fixes
// the A, B, C lettering for the whole attempt.
type QuestionSnapshot struct {
	QuestionID uuid.UUID
	Text       string
	Answers    []AnswerSnapshot
}

// ExamSession is one user's attempt at one certification. Values are never
// mutated after being stored; progress is recorded by swapping in a copy.
type ExamSession struct {
	SessionID       uuid.UUID
	DiscordGuildID  string
	GuildID         uuid.UUID
	UserID          string
	CertificationID uuid.UUID

	CertificationName   string
	PassingScorePercent int
	RoleDiscordID       string
	RoleName            string
	Questions           []QuestionSnapshot

	CurrentIndex int
	CorrectCount int
	ExpiresAt    time.Time
}

// CurrentQuestion returns the question awaiting an answer.
func (s *ExamSession) CurrentQuestion() QuestionSnapshot {
	return s.Questions[s.CurrentIndex]
}

// IsLastQuestion reports whether the current question is the final one.
func (s *ExamSession) IsLastQuestion() bool {
	return s.CurrentIndex+1 >= len(s.Questions)
}

// Expired reports whether the session deadline has been reached at now.
func (s *ExamSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// FindAnswer looks an answer id up on the current question only.
func (s *ExamSession) FindAnswer(answerID uuid.UUID) (AnswerSnapshot, bool) {
	for _, a := range s.CurrentQuestion().Answers {
		if a.AnswerID == answerID {
			return a, true
		}
	}
	return AnswerSnapshot{}, false
}

// Advance returns a copy moved to the next question. The question slice is
// shared since snapshots are immutable.
func (s *ExamSession) Advance(correct bool, expiresAt time.Time) *ExamSession {
	next := *s
	next.CurrentIndex++
	if correct {
		next.CorrectCount++
	}
	next.ExpiresAt = expiresAt
	return &next
}
