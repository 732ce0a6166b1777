package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// ErrInvalidRoleID is returned for roles that are not Discord snowflakes, such
// as the placeholder rank of starter certifications.
var ErrInvalidRoleID = errors.New("role id is not a discord snowflake")

// MemberRoleAdder is the subset of *discordgo.Session used to grant roles.
type MemberRoleAdder interface {
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// RoleGranter assigns reward roles. Discord treats adding a held role as a
// no-op, so repeated grants succeed.
type RoleGranter struct {
	api MemberRoleAdder
}

func NewRoleGranter(api MemberRoleAdder) *RoleGranter {
	return &RoleGranter{api: api}
}

func (g *RoleGranter) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	if _, err := strconv.ParseUint(roleID, 10, 64); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRoleID, roleID)
	}
	if err := g.api.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s to member %s: %w", roleID, userID, err)
	}
	return nil
}
