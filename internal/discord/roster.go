package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/stemsi/proctor-bot/internal/model"
)

// ErrNotConnected is returned before the gateway has delivered READY.
var ErrNotConnected = errors.New("discord gateway not connected")

// StateRoster reads the guild roster from the gateway state cache, which
// discordgo fills from GUILD_CREATE events.
type StateRoster struct {
	state *discordgo.State
}

func NewStateRoster(state *discordgo.State) *StateRoster {
	return &StateRoster{state: state}
}

// FetchRoster returns every available guild with its roles. The @everyone
// role shares its id with the guild.
func (r *StateRoster) FetchRoster(ctx context.Context) ([]model.GuildSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.state.RLock()
	defer r.state.RUnlock()

	if r.state.User == nil {
		return nil, ErrNotConnected
	}

	snapshots := make([]model.GuildSnapshot, 0, len(r.state.Guilds))
	for _, g := range r.state.Guilds {
		if g.Unavailable {
			continue
		}
		snap := model.GuildSnapshot{
			GuildID: g.ID,
			Name:    g.Name,
			Roles:   make([]model.RoleSnapshot, 0, len(g.Roles)),
		}
		for _, role := range g.Roles {
			snap.Roles = append(snap.Roles, model.RoleSnapshot{
				RoleID:     role.ID,
				Name:       role.Name,
				IsEveryone: role.ID == g.ID,
			})
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// Connected reports whether the gateway has delivered READY.
func (r *StateRoster) Connected() bool {
	r.state.RLock()
	defer r.state.RUnlock()
	return r.state.User != nil
}
