package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/model"
)

// ProjectionKind identifies a session projection write.
type ProjectionKind string

const (
	ProjectionCreated   ProjectionKind = "created"
	ProjectionProgress  ProjectionKind = "progress"
	ProjectionCompleted ProjectionKind = "completed"
	ProjectionExpired   ProjectionKind = "expired"
)

// ProjectionEvent is one queued write against the exam_sessions table.
type ProjectionEvent struct {
	Kind         ProjectionKind           `json:"kind"`
	SessionID    uuid.UUID                `json:"session_id"`
	Record       *model.ExamSessionRecord `json:"record,omitempty"`
	CorrectCount int                      `json:"correct_count"`
	ScorePercent int                      `json:"score_percent"`
	Passed       bool                     `json:"passed"`
	At           time.Time                `json:"at"`
	ExpiresAt    time.Time                `json:"expires_at"`
}

// Pusher is the subset of *redis.Client used to enqueue events.
type Pusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ProjectionQueue records session projection writes on a Redis list so the
// interactive flow never waits on PostgreSQL. ProjectionWorker applies them.
type ProjectionQueue struct {
	rdb Pusher
	key string
}

// NewProjectionQueue creates a queue on the session projection list.
func NewProjectionQueue(rdb Pusher) *ProjectionQueue {
	return &ProjectionQueue{rdb: rdb, key: config.Queue.SessionProjection}
}

func (q *ProjectionQueue) Create(ctx context.Context, s *model.ExamSessionRecord) error {
	return q.push(ctx, ProjectionEvent{Kind: ProjectionCreated, SessionID: s.ID, Record: s, At: s.StartedAt, ExpiresAt: s.ExpiresAt})
}

func (q *ProjectionQueue) UpdateProgress(ctx context.Context, id uuid.UUID, correctCount int, answeredAt, expiresAt time.Time) error {
	return q.push(ctx, ProjectionEvent{Kind: ProjectionProgress, SessionID: id, CorrectCount: correctCount, At: answeredAt, ExpiresAt: expiresAt})
}

func (q *ProjectionQueue) Complete(ctx context.Context, id uuid.UUID, correctCount, scorePercent int, passed bool, completedAt time.Time) error {
	return q.push(ctx, ProjectionEvent{
		Kind:         ProjectionCompleted,
		SessionID:    id,
		CorrectCount: correctCount,
		ScorePercent: scorePercent,
		Passed:       passed,
		At:           completedAt,
	})
}

func (q *ProjectionQueue) MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error {
	return q.push(ctx, ProjectionEvent{Kind: ProjectionExpired, SessionID: id, At: at})
}

func (q *ProjectionQueue) push(ctx context.Context, ev ProjectionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	if err := q.rdb.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue %s event: %w", ev.Kind, err)
	}
	return nil
}
