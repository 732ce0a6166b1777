package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/model"
	ws "github.com/stemsi/proctor-bot/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.sent = append(f.sent, published{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, f.err)
}

func TestPublishGuildsUpdated(t *testing.T) {
	pub := &fakePublisher{}
	b := NewRedisBroadcaster(pub, zerolog.Nop())
	id := uuid.New()

	b.PublishGuildsUpdated(context.Background(), []model.GuildSummary{{ID: id, DiscordGuildID: "42", Name: "Alpha"}})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "guilds:updated", pub.sent[0].channel)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &msg))
	assert.Equal(t, ws.EventGuildsUpdated, msg.Event)
	assert.JSONEq(t, `[{"id":"`+id.String()+`","discord_guild_id":"42","name":"Alpha"}]`, string(msg.Data))
}

func TestPublishGuildsUpdated_EmptyListIsArray(t *testing.T) {
	pub := &fakePublisher{}
	NewRedisBroadcaster(pub, zerolog.Nop()).PublishGuildsUpdated(context.Background(), nil)

	var msg ws.Message
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &msg))
	assert.JSONEq(t, `[]`, string(msg.Data))
}

func TestPublishSyncStatus(t *testing.T) {
	pub := &fakePublisher{}
	b := NewRedisBroadcaster(pub, zerolog.Nop())
	errMsg := "gateway unavailable"
	run := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	b.PublishSyncStatus(context.Background(), model.SyncStatus{LastRun: &run, LastError: &errMsg, IntervalSeconds: 60})

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "guilds:status", pub.sent[0].channel)

	var msg struct {
		Event string           `json:"event"`
		Data  model.SyncStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &msg))
	assert.Equal(t, "guilds:status", msg.Event)
	require.NotNil(t, msg.Data.LastError)
	assert.Equal(t, errMsg, *msg.Data.LastError)
	assert.Nil(t, msg.Data.LastSuccess)
	assert.Equal(t, 60, msg.Data.IntervalSeconds)
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	b := NewRedisBroadcaster(pub, zerolog.Nop())

	assert.NotPanics(t, func() {
		b.PublishSyncStatus(context.Background(), model.SyncStatus{})
	})
	assert.Len(t, pub.sent, 1)
}
