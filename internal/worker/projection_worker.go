package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/model"
)

const projectionPollTimeout = time.Second

// Popper is the subset of *redis.Client used to consume the queue.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
}

// SessionWriter applies projection writes to storage.
type SessionWriter interface {
	Create(ctx context.Context, s *model.ExamSessionRecord) error
	UpdateProgress(ctx context.Context, id uuid.UUID, correctCount int, answeredAt, expiresAt time.Time) error
	Complete(ctx context.Context, id uuid.UUID, correctCount, scorePercent int, passed bool, completedAt time.Time) error
	MarkExpired(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ProjectionWorker consumes session_projection_queue in order and writes each
// event to PostgreSQL. Failed events are logged and dropped.
type ProjectionWorker struct {
	rdb   Popper
	store SessionWriter
	key   string
	log   zerolog.Logger
}

// NewProjectionWorker creates a new ProjectionWorker.
func NewProjectionWorker(rdb Popper, store SessionWriter, log zerolog.Logger) *ProjectionWorker {
	return &ProjectionWorker{
		rdb:   rdb,
		store: store,
		key:   config.Queue.SessionProjection,
		log:   log.With().Str("component", "projection_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *ProjectionWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ProjectionWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, projectionPollTimeout, w.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			// Avoid spinning while Redis is unreachable.
			time.Sleep(projectionPollTimeout)
		}
		return
	}
	if len(result) < 2 {
		return
	}
	w.handle(ctx, result[1])
}

// drain applies whatever is left on the queue before shutdown.
func (w *ProjectionWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.key).Result()
		if err != nil {
			break
		}
		w.handle(ctx, raw)
		drained++
	}
	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func (w *ProjectionWorker) handle(ctx context.Context, raw string) {
	var ev ProjectionEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return
	}
	if err := w.apply(ctx, ev); err != nil {
		w.log.Error().Err(err).
			Str("session_id", ev.SessionID.String()).
			Str("kind", string(ev.Kind)).
			Msg("Projection write failed, dropping event")
	}
}

func (w *ProjectionWorker) apply(ctx context.Context, ev ProjectionEvent) error {
	switch ev.Kind {
	case ProjectionCreated:
		if ev.Record == nil {
			return errors.New("created event without record")
		}
		return w.store.Create(ctx, ev.Record)
	case ProjectionProgress:
		return w.store.UpdateProgress(ctx, ev.SessionID, ev.CorrectCount, ev.At, ev.ExpiresAt)
	case ProjectionCompleted:
		return w.store.Complete(ctx, ev.SessionID, ev.CorrectCount, ev.ScorePercent, ev.Passed, ev.At)
	case ProjectionExpired:
		return w.store.MarkExpired(ctx, ev.SessionID, ev.At)
	default:
		return fmt.Errorf("unknown projection kind %q", ev.Kind)
	}
}
