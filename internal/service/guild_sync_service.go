package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/metrics"
	"github.com/stemsi/proctor-bot/internal/model"
	"golang.org/x/sync/semaphore"
)

// RosterSource reports the guilds the bot is currently a member of.
type RosterSource interface {
	FetchRoster(ctx context.Context) ([]model.GuildSnapshot, error)
}

// GuildStore persists guilds.
type GuildStore interface {
	List(ctx context.Context) ([]model.Guild, error)
	Create(ctx context.Context, discordGuildID, name string) (*model.Guild, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Summaries(ctx context.Context) ([]model.GuildSummary, error)
}

// RankStore persists guild roles.
type RankStore interface {
	ListByGuild(ctx context.Context, guildID uuid.UUID) ([]model.Rank, error)
	Create(ctx context.Context, guildID uuid.UUID, discordRoleID, name string) (*model.Rank, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	Count(ctx context.Context) (int, error)
}

// TemplateStore persists starter certifications.
type TemplateStore interface {
	HasTemplates(ctx context.Context, guildID uuid.UUID) (bool, error)
	CountTemplates(ctx context.Context) (int, error)
	CreateWithQuestions(ctx context.Context, c *model.Certification) error
}

// SyncBroadcaster notifies dashboards. Delivery is best-effort.
type SyncBroadcaster interface {
	PublishGuildsUpdated(ctx context.Context, guilds []model.GuildSummary)
	PublishSyncStatus(ctx context.Context, status model.SyncStatus)
}

// GuildSyncService reconciles stored guilds and ranks with the live Discord
// roster. At most one reconciliation runs at a time, whether started by the
// background loop or by RunOnce.
type GuildSyncService struct {
	roster      RosterSource
	guilds      GuildStore
	ranks       RankStore
	templates   TemplateStore
	broadcaster SyncBroadcaster
	state       *GuildSyncState

	gate     *semaphore.Weighted
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewGuildSyncService creates a new GuildSyncService.
func NewGuildSyncService(
	roster RosterSource,
	guilds GuildStore,
	ranks RankStore,
	templates TemplateStore,
	broadcaster SyncBroadcaster,
	state *GuildSyncState,
	interval, grace time.Duration,
	log zerolog.Logger,
) *GuildSyncService {
	state.SetInterval(interval)
	return &GuildSyncService{
		roster:      roster,
		guilds:      guilds,
		ranks:       ranks,
		templates:   templates,
		broadcaster: broadcaster,
		state:       state,
		gate:        semaphore.NewWeighted(1),
		interval:    interval,
		grace:       grace,
		now:         time.Now,
		log:         log.With().Str("component", "guild_sync").Logger(),
	}
}

// Start runs reconciliations until ctx is cancelled. It blocks; run it in a
// goroutine. A run in progress is allowed to finish.
func (s *GuildSyncService) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("Guild sync loop started")

	if !sleep(ctx, s.grace) {
		return
	}
	for {
		if err := s.gate.Acquire(ctx, 1); err != nil {
			break
		}
		s.sync(context.WithoutCancel(ctx))
		s.gate.Release(1)

		if !sleep(ctx, s.interval) {
			break
		}
	}
	s.log.Info().Msg("Guild sync loop stopped")
}

// RunOnce performs one reconciliation and returns the resulting status. It
// waits for any run in progress. Once started, the run is not cancelled with ctx.
func (s *GuildSyncService) RunOnce(ctx context.Context) (model.SyncStatus, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return model.SyncStatus{}, err
	}
	defer s.gate.Release(1)

	s.sync(context.WithoutCancel(ctx))
	return s.state.Snapshot(), nil
}

// Status returns the latest status snapshot.
func (s *GuildSyncService) Status() model.SyncStatus {
	return s.state.Snapshot()
}

func (s *GuildSyncService) sync(ctx context.Context) {
	startedAt := s.now()
	s.state.MarkRun(startedAt)

	roster, err := s.roster.FetchRoster(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to fetch guild roster")
		s.fail(ctx, err)
		return
	}

	s.log.Info().Int("guild_count", len(roster)).Msg("Guild roster fetched")
	if len(roster) == 0 {
		s.log.Warn().Msg("Guild roster is empty. Check the bot invite, token and gateway intents")
	}

	changed, err := s.reconcile(ctx, roster)
	if changed {
		s.publishGuilds(ctx)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Guild sync failed")
		s.fail(ctx, err)
		return
	}

	summaries, err := s.guilds.Summaries(ctx)
	if err != nil {
		s.fail(ctx, fmt.Errorf("count guilds: %w", err))
		return
	}
	roles, err := s.ranks.Count(ctx)
	if err != nil {
		s.fail(ctx, fmt.Errorf("count ranks: %w", err))
		return
	}
	templates, err := s.templates.CountTemplates(ctx)
	if err != nil {
		s.fail(ctx, fmt.Errorf("count templates: %w", err))
		return
	}

	duration := s.now().Sub(startedAt)
	s.state.MarkSuccess(startedAt, len(summaries), roles, templates, duration)
	metrics.GuildSyncRuns.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.GuildSyncDuration.Observe(duration.Seconds())

	s.log.Info().
		Int("guilds", len(summaries)).
		Int("ranks", roles).
		Int("templates", templates).
		Bool("changed", changed).
		Dur("duration", duration).
		Msg("Guild sync completed")

	s.broadcaster.PublishSyncStatus(ctx, s.state.Snapshot())
}

func (s *GuildSyncService) fail(ctx context.Context, err error) {
	s.state.MarkFailure(err)
	metrics.GuildSyncRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
	s.broadcaster.PublishSyncStatus(ctx, s.state.Snapshot())
}

func (s *GuildSyncService) publishGuilds(ctx context.Context) {
	summaries, err := s.guilds.Summaries(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load guilds for broadcast")
		return
	}
	s.broadcaster.PublishGuildsUpdated(ctx, summaries)
}

// reconcile upserts guilds and ranks from the roster and seeds starter
// certifications where a guild has none. It reports whether any guild or rank
// row was written, even when it stops early on an error. Nothing is deleted.
func (s *GuildSyncService) reconcile(ctx context.Context, roster []model.GuildSnapshot) (bool, error) {
	existing, err := s.guilds.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list guilds: %w", err)
	}
	byDiscordID := make(map[string]model.Guild, len(existing))
	for _, g := range existing {
		byDiscordID[g.DiscordGuildID] = g
	}

	changed := false
	created := make(map[string]bool)
	for _, snap := range roster {
		stored, ok := byDiscordID[snap.GuildID]
		switch {
		case !ok:
			g, err := s.guilds.Create(ctx, snap.GuildID, snap.Name)
			if err != nil {
				return changed, fmt.Errorf("create guild %s: %w", snap.GuildID, err)
			}
			stored = *g
			created[snap.GuildID] = true
			changed = true
			s.log.Info().Str("guild_id", snap.GuildID).Str("name", snap.Name).Msg("Guild added")
		case stored.Name != snap.Name:
			if err := s.guilds.Rename(ctx, stored.ID, snap.Name); err != nil {
				return changed, fmt.Errorf("rename guild %s: %w", snap.GuildID, err)
			}
			stored.Name = snap.Name
			changed = true
		}
		byDiscordID[snap.GuildID] = stored
	}

	provisioned := make(map[uuid.UUID]bool)
	for _, snap := range roster {
		stored := byDiscordID[snap.GuildID]

		ranks, err := s.syncRanks(ctx, stored, snap.Roles, &changed)
		if err != nil {
			return changed, err
		}

		if provisioned[stored.ID] {
			continue
		}
		provisioned[stored.ID] = true
		if err := s.ensureTemplates(ctx, stored, created[snap.GuildID], ranks, &changed); err != nil {
			return changed, err
		}
	}
	return changed, nil
}

// syncRanks upserts a guild's roles and returns its ranks keyed by Discord
// role id after the writes.
func (s *GuildSyncService) syncRanks(ctx context.Context, guild model.Guild, roles []model.RoleSnapshot, changed *bool) (map[string]model.Rank, error) {
	existing, err := s.ranks.ListByGuild(ctx, guild.ID)
	if err != nil {
		return nil, fmt.Errorf("list ranks for guild %s: %w", guild.DiscordGuildID, err)
	}
	byRoleID := make(map[string]model.Rank, len(existing))
	for _, r := range existing {
		byRoleID[r.DiscordRoleID] = r
	}

	for _, role := range roles {
		if role.IsEveryone {
			continue
		}
		rank, ok := byRoleID[role.RoleID]
		if !ok {
			created, err := s.ranks.Create(ctx, guild.ID, role.RoleID, role.Name)
			if err != nil {
				return nil, fmt.Errorf("create rank %s: %w", role.RoleID, err)
			}
			byRoleID[role.RoleID] = *created
			*changed = true
			continue
		}
		if rank.Name != role.Name {
			if err := s.ranks.Rename(ctx, rank.ID, role.Name); err != nil {
				return nil, fmt.Errorf("rename rank %s: %w", role.RoleID, err)
			}
			rank.Name = role.Name
			byRoleID[role.RoleID] = rank
			*changed = true
		}
	}
	return byRoleID, nil
}

// ensureTemplates seeds the starter catalog for a guild that is new or has no
// templates, creating the placeholder rank first if needed.
func (s *GuildSyncService) ensureTemplates(ctx context.Context, guild model.Guild, isNew bool, ranks map[string]model.Rank, changed *bool) error {
	if !isNew {
		has, err := s.templates.HasTemplates(ctx, guild.ID)
		if err != nil {
			return fmt.Errorf("check templates for guild %s: %w", guild.DiscordGuildID, err)
		}
		if has {
			return nil
		}
	}

	placeholder, ok := ranks[model.PlaceholderRankID]
	if !ok {
		created, err := s.ranks.Create(ctx, guild.ID, model.PlaceholderRankID, model.PlaceholderRankName)
		if err != nil {
			return fmt.Errorf("create placeholder rank for guild %s: %w", guild.DiscordGuildID, err)
		}
		placeholder = *created
		*changed = true
	}

	for _, tmpl := range BuildTemplates(guild.ID, placeholder.ID) {
		if err := s.templates.CreateWithQuestions(ctx, &tmpl); err != nil {
			return fmt.Errorf("seed template %q for guild %s: %w", tmpl.Name, guild.DiscordGuildID, err)
		}
	}
	s.log.Info().Str("guild_id", guild.DiscordGuildID).Msg("Starter certifications provisioned")
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
