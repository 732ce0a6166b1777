package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/config"
	"github.com/stemsi/proctor-bot/internal/model"
	ws "github.com/stemsi/proctor-bot/internal/websocket"
)

const pingInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Subscriber is the subset of *redis.Client used to follow broadcasts.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// StatusSource provides the current guild sync status.
type StatusSource interface {
	Status() model.SyncStatus
}

// WSHandler streams guild sync broadcasts to dashboard sockets.
type WSHandler struct {
	rdb      Subscriber
	status   StatusSource
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb Subscriber, status StatusSource, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:      rdb,
		status:   status,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// GuildStream godoc
// WS /ws/v1/admin/guilds/stream
// Sends the current sync status, then relays every guilds:updated and
// guilds:status broadcast until the client disconnects.
func (h *WSHandler) GuildStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.rdb.Subscribe(ctx, config.Channel.All()...)
	defer pubsub.Close()
	ch := pubsub.Channel()

	if initial, err := ws.NewMessage(ws.EventGuildsStatus, h.status.Status()); err == nil {
		if err := ws.WriteRaw(conn, initial); err != nil {
			return
		}
	}

	h.log.Info().Str("remote", c.ClientIP()).Msg("Dashboard connected")

	// gorilla allows one concurrent writer; the reader hands actions back here.
	actions := make(chan ws.Action, 1)
	go h.readLoop(conn, cancel, actions)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Dashboard disconnected")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already event envelopes.
			if err := ws.WriteRaw(conn, []byte(msg.Payload)); err != nil {
				h.log.Debug().Err(err).Msg("Write failed")
				return
			}

		case action := <-actions:
			var err error
			if action == ws.ActionPing {
				err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			} else {
				err = ws.WriteError(conn, "unknown action")
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}

// readLoop owns all reads on conn. It cancels the stream when the client goes
// away and forwards client actions to the writer, dropping them while one is
// still pending.
func (h *WSHandler) readLoop(conn *websocket.Conn, cancel context.CancelFunc, actions chan<- ws.Action) {
	defer cancel()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	})

	for {
		var env ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		if env.Action != ws.ActionPing {
			h.log.Debug().Str("action", string(env.Action)).Msg("Unknown action")
		}
		select {
		case actions <- env.Action:
		default:
		}
	}
}
