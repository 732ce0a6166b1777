package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/metrics"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stemsi/proctor-bot/internal/repository"
	"github.com/stemsi/proctor-bot/internal/session"
)

// User-facing rejections. None of these mutate session state.
var (
	ErrCertificationNotFound = errors.New("certification not found")
	ErrNoQuestions           = errors.New("certification has no questions")
	ErrSessionNotFound       = errors.New("session not found or expired")
	ErrNotSessionOwner       = errors.New("session belongs to another user")
	ErrSessionExpired        = errors.New("session expired")
	ErrStaleAnswer           = errors.New("answer is not valid for the current question")
)

// CertificationReader loads certifications for play.
type CertificationReader interface {
	GetWithQuestions(ctx context.Context, id uuid.UUID) (*model.Certification, error)
	ListPlayable(ctx context.Context, discordGuildID string) ([]model.Certification, error)
}

// SessionProjector mirrors session progress into durable storage.
type SessionProjector interface {
	Create(ctx context.Context, s *model.ExamSessionRecord) error
	UpdateProgress(ctx context.Context, id uuid.UUID, correctCount int, answeredAt, expiresAt time.Time) error
	Complete(ctx context.Context, id uuid.UUID, correctCount, scorePercent int, passed bool, completedAt time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error
}

// RoleGranter assigns a role to a guild member. Granting a role the member
// already holds must succeed.
type RoleGranter interface {
	GrantRole(ctx context.Context, discordGuildID, userID, roleID string) error
}

// Player identifies who triggered an interaction.
type Player struct {
	DiscordGuildID string
	UserID         string
	DisplayName    string
}

// Choice is one lettered answer of a presented question.
type Choice struct {
	Letter   string
	AnswerID uuid.UUID
	Text     string
}

// QuestionView is a question ready to be shown with answer controls.
type QuestionView struct {
	SessionID         uuid.UUID
	CertificationName string
	Number            int
	Total             int
	Text              string
	Choices           []Choice
}

// ExamResult is the terminal view of a finished attempt.
type ExamResult struct {
	SessionID           uuid.UUID
	CertificationName   string
	CorrectCount        int
	QuestionCount       int
	ScorePercent        int
	PassingScorePercent int
	Passed              bool
	RoleName            string
	RewardGranted       bool
	RewardFailed        bool
}

// AnswerOutcome carries either the next question or the final result.
type AnswerOutcome struct {
	Next   *QuestionView
	Result *ExamResult
}

// ExamSessionService drives certification attempts from start to completion
// or expiry. Sessions live in the store; storage only receives a mirror.
type ExamSessionService struct {
	certs     CertificationReader
	projector SessionProjector
	granter   RoleGranter
	store     *session.Store
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	certs CertificationReader,
	projector SessionProjector,
	granter RoleGranter,
	store *session.Store,
	timeout time.Duration,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		certs:     certs,
		projector: projector,
		granter:   granter,
		store:     store,
		timeout:   timeout,
		now:       time.Now,
		log:       log.With().Str("component", "exam_engine").Logger(),
	}
}

// ListCertifications returns the certifications members of a guild can take.
func (s *ExamSessionService) ListCertifications(ctx context.Context, discordGuildID string) ([]model.Certification, error) {
	certs, err := s.certs.ListPlayable(ctx, discordGuildID)
	if err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	return certs, nil
}

// StartSession snapshots a certification into a new session and returns the
// first question.
func (s *ExamSessionService) StartSession(ctx context.Context, player Player, certificationID uuid.UUID) (*QuestionView, error) {
	cert, err := s.certs.GetWithQuestions(ctx, certificationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrCertificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load certification: %w", err)
	}
	if len(cert.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	now := s.now()
	sess := &session.ExamSession{
		SessionID:           uuid.New(),
		DiscordGuildID:      player.DiscordGuildID,
		GuildID:             cert.GuildID,
		UserID:              player.UserID,
		CertificationID:     cert.ID,
		CertificationName:   cert.Name,
		PassingScorePercent: cert.PassingScorePercent,
		Questions:           snapshotQuestions(cert.Questions),
		ExpiresAt:           now.Add(s.timeout),
	}
	if cert.Rank != nil {
		sess.RoleDiscordID = cert.Rank.DiscordRoleID
		sess.RoleName = cert.Rank.Name
	}

	if !s.store.Create(sess) {
		return nil, fmt.Errorf("session id %s already in use", sess.SessionID)
	}
	metrics.SessionsStarted.Inc()
	s.trackActive()

	record := &model.ExamSessionRecord{
		ID:                  sess.SessionID,
		GuildID:             sess.GuildID,
		CertificationID:     sess.CertificationID,
		DiscordUserID:       player.UserID,
		DiscordUserName:     player.DisplayName,
		CertificationName:   sess.CertificationName,
		RoleDiscordID:       sess.RoleDiscordID,
		RoleName:            sess.RoleName,
		PassingScorePercent: sess.PassingScorePercent,
		QuestionCount:       len(sess.Questions),
		Status:              model.SessionStatusActive,
		StartedAt:           now,
		ExpiresAt:           sess.ExpiresAt,
	}
	if err := s.projector.Create(ctx, record); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.SessionID.String()).Msg("Failed to persist new session")
	}

	s.log.Info().
		Str("session_id", sess.SessionID.String()).
		Str("guild_id", player.DiscordGuildID).
		Str("user_id", player.UserID).
		Str("certification", cert.Name).
		Msg("Exam session started")

	return newQuestionView(sess), nil
}

// SubmitAnswer applies one answer. Checks run in order (session exists,
// requester owns it, not expired, answer belongs to the current question) and
// any failure returns a rejection without changing state, except that an
// expired session is removed.
func (s *ExamSessionService) SubmitAnswer(ctx context.Context, sessionID, answerID uuid.UUID, userID string) (*AnswerOutcome, error) {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	now := s.now()
	if sess.Expired(now) {
		if s.store.Remove(sess) {
			s.expire(ctx, sess, now)
		}
		return nil, ErrSessionExpired
	}

	answer, ok := sess.FindAnswer(answerID)
	if !ok {
		return nil, ErrStaleAnswer
	}

	if sess.IsLastQuestion() {
		// Losing this race means another submission already finished the session.
		if !s.store.Remove(sess) {
			return nil, ErrStaleAnswer
		}
		s.trackActive()
		return &AnswerOutcome{Result: s.finalize(ctx, sess, answer.IsCorrect, now)}, nil
	}

	next := sess.Advance(answer.IsCorrect, now.Add(s.timeout))
	if !s.store.Replace(sess, next) {
		return nil, ErrStaleAnswer
	}

	if err := s.projector.UpdateProgress(ctx, next.SessionID, next.CorrectCount, now, next.ExpiresAt); err != nil {
		s.log.Warn().Err(err).Str("session_id", next.SessionID.String()).Msg("Failed to persist session progress")
	}

	return &AnswerOutcome{Next: newQuestionView(next)}, nil
}

// SweepExpired removes every session past its deadline and marks each one
// expired in storage. It returns how many were removed.
func (s *ExamSessionService) SweepExpired(ctx context.Context) int {
	now := s.now()
	removed := s.store.Sweep(now)
	for _, sess := range removed {
		s.expire(ctx, sess, now)
	}
	if len(removed) > 0 {
		s.log.Debug().Int("count", len(removed)).Msg("Swept expired sessions")
	}
	return len(removed)
}

// ActiveSessions returns the number of sessions held in memory.
func (s *ExamSessionService) ActiveSessions() int {
	return s.store.Len()
}

func (s *ExamSessionService) finalize(ctx context.Context, sess *session.ExamSession, lastCorrect bool, now time.Time) *ExamResult {
	correct := sess.CorrectCount
	if lastCorrect {
		correct++
	}
	total := len(sess.Questions)
	score := ScorePercent(correct, total)

	result := &ExamResult{
		SessionID:           sess.SessionID,
		CertificationName:   sess.CertificationName,
		CorrectCount:        correct,
		QuestionCount:       total,
		ScorePercent:        score,
		PassingScorePercent: sess.PassingScorePercent,
		Passed:              Passed(score, sess.PassingScorePercent),
		RoleName:            sess.RoleName,
	}

	sessionLog := s.log.With().
		Str("session_id", sess.SessionID.String()).
		Str("guild_id", sess.DiscordGuildID).
		Str("user_id", sess.UserID).
		Logger()

	if result.Passed {
		if err := s.granter.GrantRole(ctx, sess.DiscordGuildID, sess.UserID, sess.RoleDiscordID); err != nil {
			sessionLog.Error().Err(err).Str("role_id", sess.RoleDiscordID).Msg("Failed to assign reward role")
			result.RewardFailed = true
			metrics.RewardGrants.WithLabelValues(metrics.OutcomeFailed).Inc()
		} else {
			result.RewardGranted = true
			metrics.RewardGrants.WithLabelValues(metrics.OutcomeOK).Inc()
		}
		metrics.SessionsCompleted.WithLabelValues(metrics.ResultPassed).Inc()
	} else {
		metrics.SessionsCompleted.WithLabelValues(metrics.ResultFailed).Inc()
	}

	if err := s.projector.Complete(ctx, sess.SessionID, correct, score, result.Passed, now); err != nil {
		sessionLog.Warn().Err(err).Msg("Failed to persist session completion")
	}

	sessionLog.Info().
		Int("correct", correct).
		Int("total", total).
		Int("score", score).
		Bool("passed", result.Passed).
		Msg("Exam session completed")

	return result
}

func (s *ExamSessionService) expire(ctx context.Context, sess *session.ExamSession, now time.Time) {
	metrics.SessionsExpired.Inc()
	s.trackActive()
	if err := s.projector.MarkExpired(ctx, sess.SessionID, now); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.SessionID.String()).Msg("Failed to persist session expiry")
	}
}

func (s *ExamSessionService) trackActive() {
	metrics.ActiveSessions.Set(float64(s.store.Len()))
}

// snapshotQuestions copies questions in creation order with answers ordered by
// their Order field.
func snapshotQuestions(questions []model.Question) []session.QuestionSnapshot {
	ordered := slices.Clone(questions)
	slices.SortStableFunc(ordered, func(a, b model.Question) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	snapshots := make([]session.QuestionSnapshot, 0, len(ordered))
	for _, q := range ordered {
		answers := slices.Clone(q.Answers)
		slices.SortStableFunc(answers, func(a, b model.Answer) int {
			return cmp.Compare(a.Order, b.Order)
		})

		qs := session.QuestionSnapshot{
			QuestionID: q.ID,
			Text:       q.Text,
			Answers:    make([]session.AnswerSnapshot, 0, len(answers)),
		}
		for _, a := range answers {
			qs.Answers = append(qs.Answers, session.AnswerSnapshot{
				AnswerID:  a.ID,
				Text:      a.Text,
				IsCorrect: a.IsCorrect,
			})
		}
		snapshots = append(snapshots, qs)
	}
	return snapshots
}

func newQuestionView(sess *session.ExamSession) *QuestionView {
	q := sess.CurrentQuestion()
	view := &QuestionView{
		SessionID:         sess.SessionID,
		CertificationName: sess.CertificationName,
		Number:            sess.CurrentIndex + 1,
		Total:             len(sess.Questions),
		Text:              q.Text,
		Choices:           make([]Choice, 0, len(q.Answers)),
	}
	for i, a := range q.Answers {
		view.Choices = append(view.Choices, Choice{
			Letter:   AnswerLetter(i),
			AnswerID: a.AnswerID,
			Text:     a.Text,
		})
	}
	return view
}

// AnswerLetter maps an answer position to its label: 0 → "A", 1 → "B", ...
func AnswerLetter(index int) string {
	return string(rune('A' + index))
}
