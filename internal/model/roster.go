package model

// GuildSnapshot is one guild of the live roster reported by Discord.
type GuildSnapshot struct {
	GuildID string
	Name    string
	Roles   []RoleSnapshot
}

// RoleSnapshot is one role of a guild snapshot.
type RoleSnapshot struct {
	RoleID     string
	Name       string
	IsEveryone bool
}
