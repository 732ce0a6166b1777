// Package broadcast fans dashboard events out over Redis pub/sub.
package broadcast

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/model"
	ws "github.com/stemsi/proctor-bot/internal/websocket"
)

// Publisher is the subset of *redis.Client used for broadcasting.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBroadcaster publishes guild sync events. Failures are logged and
// otherwise ignored.
type RedisBroadcaster struct {
	pub Publisher
	log zerolog.Logger
}

// NewRedisBroadcaster creates a new RedisBroadcaster.
func NewRedisBroadcaster(pub Publisher, log zerolog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		pub: pub,
		log: log.With().Str("component", "broadcast").Logger(),
	}
}

func (b *RedisBroadcaster) PublishGuildsUpdated(ctx context.Context, guilds []model.GuildSummary) {
	if guilds == nil {
		guilds = []model.GuildSummary{}
	}
	b.publish(ctx, config.Channel.GuildsUpdated, guilds)
}

func (b *RedisBroadcaster) PublishSyncStatus(ctx context.Context, status model.SyncStatus) {
	b.publish(ctx, config.Channel.GuildsStatus, status)
}

func (b *RedisBroadcaster) publish(ctx context.Context, channel string, data any) {
	payload, err := ws.NewMessage(ws.Event(channel), data)
	if err != nil {
		b.log.Error().Err(err).Str("channel", channel).Msg("Failed to encode broadcast")
		return
	}
	receivers, err := b.pub.Publish(ctx, channel, payload).Result()
	if err != nil {
		b.log.Warn().Err(err).Str("channel", channel).Msg("Failed to publish broadcast")
		return
	}
	b.log.Debug().Str("channel", channel).Int64("receivers", receivers).Msg("Broadcast published")
}
