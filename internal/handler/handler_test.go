package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stemsi/proctor-bot/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type fakeRunner struct {
	status model.SyncStatus
	err    error
	runs   int
}

func (f *fakeRunner) RunOnce(context.Context) (model.SyncStatus, error) {
	f.runs++
	return f.status, f.err
}

func (f *fakeRunner) Status() model.SyncStatus { return f.status }

type fakeReporter struct {
	live    []model.ExamSessionRecord
	results []model.ExamSessionRecord
	err     error
	guild   string
}

func (f *fakeReporter) ListLive(_ context.Context, guild string, _ time.Time) ([]model.ExamSessionRecord, error) {
	f.guild = guild
	return f.live, f.err
}

func (f *fakeReporter) ListResults(_ context.Context, guild string, _ time.Time) ([]model.ExamSessionRecord, error) {
	f.guild = guild
	return f.results, f.err
}

type fakeCounter int

func (f fakeCounter) ActiveSessions() int { return int(f) }

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeRedis struct {
	pingErr error
	queued  int64
}

func (f fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f fakeRedis) LLen(context.Context, string) *redis.IntCmd {
	return redis.NewIntResult(f.queued, nil)
}

func serve(method, path string, h gin.HandlerFunc, target string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, path, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestGuildSyncHandler_GetStatus(t *testing.T) {
	runner := &fakeRunner{status: model.SyncStatus{IntervalSeconds: 60, LastGuildCount: 2}}
	h := NewGuildSyncHandler(runner, zerolog.Nop())

	w := serve(http.MethodGet, "/status", h.GetStatus, "/status")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data model.SyncStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 60, body.Data.IntervalSeconds)
	assert.Equal(t, 2, body.Data.LastGuildCount)
	assert.Zero(t, runner.runs)
}

func TestGuildSyncHandler_RunSync(t *testing.T) {
	runner := &fakeRunner{status: model.SyncStatus{LastRoleCount: 7}}
	h := NewGuildSyncHandler(runner, zerolog.Nop())

	w := serve(http.MethodPost, "/run", h.RunSync, "/run")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"last_role_count":7`)
	assert.Equal(t, 1, runner.runs)
}

func TestGuildSyncHandler_RunSyncAbandoned(t *testing.T) {
	runner := &fakeRunner{err: context.Canceled}
	h := NewGuildSyncHandler(runner, zerolog.Nop())

	w := serve(http.MethodPost, "/run", h.RunSync, "/run")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "SYNC_ABORTED")
}

func TestExamSessionHandler(t *testing.T) {
	rec := model.ExamSessionRecord{CertificationName: "Planets", Status: model.SessionStatusActive}

	cases := []struct {
		name      string
		reporter  *fakeReporter
		list      func(*ExamSessionHandler) gin.HandlerFunc
		target    string
		status    int
		body      string
		wantGuild string
	}{
		{
			name:      "live sessions filtered by guild",
			reporter:  &fakeReporter{live: []model.ExamSessionRecord{rec}},
			list:      func(h *ExamSessionHandler) gin.HandlerFunc { return h.ListSessions },
			target:    "/x?discord_guild_id=123",
			status:    http.StatusOK,
			body:      `"certification_name":"Planets"`,
			wantGuild: "123",
		},
		{
			name:     "empty results encode as array",
			reporter: &fakeReporter{},
			list:     func(h *ExamSessionHandler) gin.HandlerFunc { return h.ListResults },
			target:   "/x",
			status:   http.StatusOK,
			body:     `"data":[]`,
		},
		{
			name:     "non numeric guild id",
			reporter: &fakeReporter{},
			list:     func(h *ExamSessionHandler) gin.HandlerFunc { return h.ListSessions },
			target:   "/x?discord_guild_id=abc",
			status:   http.StatusBadRequest,
			body:     "VALIDATION_ERROR",
		},
		{
			name:     "storage failure",
			reporter: &fakeReporter{err: errors.New("db down")},
			list:     func(h *ExamSessionHandler) gin.HandlerFunc { return h.ListResults },
			target:   "/x",
			status:   http.StatusInternalServerError,
			body:     "INTERNAL_ERROR",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewExamSessionHandler(tc.reporter, zerolog.Nop())
			w := serve(http.MethodGet, "/x", tc.list(h), tc.target)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
			assert.Equal(t, tc.wantGuild, tc.reporter.guild)
		})
	}
}

func TestMonitorHandler_RejectsBadQuery(t *testing.T) {
	h := NewMonitorHandler(&fakeReporter{}, fakeCounter(0), zerolog.Nop())

	w := serve(http.MethodGet, "/stream", h.MonitorSessionsSSE, "/stream?discord_guild_id=nope")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMonitorHandler_StopsOnDisconnect(t *testing.T) {
	reporter := &fakeReporter{live: []model.ExamSessionRecord{{CertificationName: "Planets"}}}
	h := NewMonitorHandler(reporter, fakeCounter(3), zerolog.Nop())

	r := gin.New()
	r.GET("/stream", h.MonitorSessionsSSE)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "snapshot")
	assert.Contains(t, w.Body.String(), `"active_in_memory":3`)
}

func TestSystemHandler_Health(t *testing.T) {
	cases := []struct {
		name      string
		db        fakeDB
		rdb       fakeRedis
		connected func() bool
		status    int
		body      []string
	}{
		{
			name:      "all up",
			rdb:       fakeRedis{queued: 4},
			connected: func() bool { return true },
			status:    http.StatusOK,
			body:      []string{`"status":"ok"`, `"discord":"up"`, `"projection_queue":4`, `"active_sessions":2`},
		},
		{
			name:   "gateway disabled",
			status: http.StatusOK,
			body:   []string{`"discord":"disabled"`},
		},
		{
			name:      "gateway down does not fail the check",
			connected: func() bool { return false },
			status:    http.StatusOK,
			body:      []string{`"discord":"down"`},
		},
		{
			name:   "postgres down",
			db:     fakeDB{err: errors.New("refused")},
			status: http.StatusServiceUnavailable,
			body:   []string{`"status":"degraded"`, `"postgres":"down"`},
		},
		{
			name:   "redis down",
			rdb:    fakeRedis{pingErr: errors.New("refused")},
			status: http.StatusServiceUnavailable,
			body:   []string{`"redis":"down"`},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewSystemHandler(tc.db, tc.rdb, fakeCounter(2), tc.connected, zerolog.Nop())
			w := serve(http.MethodGet, "/health", h.Health, "/health")

			assert.Equal(t, tc.status, w.Code)
			for _, want := range tc.body {
				assert.Contains(t, w.Body.String(), want)
			}
		})
	}
}

func TestBuildUpgrader_CheckOrigin(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.Header.Set("Origin", origin)
		return r
	}

	open := buildUpgrader(nil)
	assert.True(t, open.CheckOrigin(req("https://anywhere.example")))

	strict := buildUpgrader([]string{"https://dash.example"})
	assert.True(t, strict.CheckOrigin(req("https://DASH.example")))
	assert.False(t, strict.CheckOrigin(req("https://evil.example")))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 5s", formatDuration(5*time.Second))
	assert.Equal(t, "2h 0m 1s", formatDuration(2*time.Hour+time.Second))
	assert.Equal(t, "1d 1h 0m 0s", formatDuration(25*time.Hour))
}
