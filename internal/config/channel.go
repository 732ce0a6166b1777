package config

// ChannelStruct names the Redis pub/sub channels the dashboard listens on.
type ChannelStruct struct {
	GuildsUpdated string
	GuildsStatus  string
}

// QueueStruct names the Redis lists drained by background workers.
type QueueStruct struct {
	SessionProjection string
}

// Channel holds the broadcast channel names. The values double as the event
// names sent to dashboard sockets.
var Channel = ChannelStruct{
	GuildsUpdated: "guilds:updated",
	GuildsStatus:  "guilds:status",
}

// Queue holds the worker queue names.
var Queue = QueueStruct{
	SessionProjection: "session_projection_queue",
}

// All returns every broadcast channel, in subscription order.
func (c ChannelStruct) All() []string {
	return []string{c.GuildsUpdated, c.GuildsStatus}
}
