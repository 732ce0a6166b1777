package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore backs GuildStore, RankStore and TemplateStore with maps and
// counts every write.
type memoryStore struct {
	mu        sync.Mutex
	guilds    []model.Guild
	ranks     []model.Rank
	templates []model.Certification
	writes    int

	failRankCreate error
}

func (m *memoryStore) List(_ context.Context) ([]model.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Guild(nil), m.guilds...), nil
}

func (m *memoryStore) Create(_ context.Context, discordGuildID, name string) (*model.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := model.Guild{ID: uuid.New(), DiscordGuildID: discordGuildID, Name: name}
	m.guilds = append(m.guilds, g)
	m.writes++
	return &g, nil
}

func (m *memoryStore) Rename(_ context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.guilds {
		if m.guilds[i].ID == id {
			m.guilds[i].Name = name
			m.writes++
		}
	}
	return nil
}

func (m *memoryStore) Summaries(_ context.Context) ([]model.GuildSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.GuildSummary, 0, len(m.guilds))
	for _, g := range m.guilds {
		out = append(out, model.GuildSummary{ID: g.ID, DiscordGuildID: g.DiscordGuildID, Name: g.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) guildByDiscordID(id string) model.Guild {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.guilds {
		if g.DiscordGuildID == id {
			return g
		}
	}
	return model.Guild{}
}

type memoryRanks struct{ *memoryStore }

func (m memoryRanks) ListByGuild(_ context.Context, guildID uuid.UUID) ([]model.Rank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Rank
	for _, r := range m.ranks {
		if r.GuildID == guildID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m memoryRanks) Create(_ context.Context, guildID uuid.UUID, roleID, name string) (*model.Rank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRankCreate != nil {
		return nil, m.failRankCreate
	}
	r := model.Rank{ID: uuid.New(), GuildID: guildID, DiscordRoleID: roleID, Name: name}
	m.ranks = append(m.ranks, r)
	m.writes++
	return &r, nil
}

func (m memoryRanks) Rename(_ context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.ranks {
		if m.ranks[i].ID == id {
			m.ranks[i].Name = name
			m.writes++
		}
	}
	return nil
}

func (m memoryRanks) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ranks), nil
}

type memoryTemplates struct{ *memoryStore }

func (m memoryTemplates) HasTemplates(_ context.Context, guildID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.templates {
		if c.GuildID == guildID {
			return true, nil
		}
	}
	return false, nil
}

func (m memoryTemplates) CountTemplates(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.templates), nil
}

func (m memoryTemplates) CreateWithQuestions(_ context.Context, c *model.Certification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	m.templates = append(m.templates, *c)
	m.writes++
	return nil
}

type fakeRoster struct {
	mu     sync.Mutex
	guilds []model.GuildSnapshot
	err    error
}

func (f *fakeRoster) FetchRoster(_ context.Context) ([]model.GuildSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.guilds, f.err
}

type recordingBroadcaster struct {
	mu            sync.Mutex
	guildUpdates  [][]model.GuildSummary
	statusUpdates []model.SyncStatus
}

func (b *recordingBroadcaster) PublishGuildsUpdated(_ context.Context, guilds []model.GuildSummary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.guildUpdates = append(b.guildUpdates, guilds)
}

func (b *recordingBroadcaster) PublishSyncStatus(_ context.Context, status model.SyncStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusUpdates = append(b.statusUpdates, status)
}

type syncFixture struct {
	svc    *GuildSyncService
	store  *memoryStore
	roster *fakeRoster
	bc     *recordingBroadcaster
}

func newSyncFixture(roster ...model.GuildSnapshot) *syncFixture {
	f := &syncFixture{
		store:  &memoryStore{},
		roster: &fakeRoster{guilds: roster},
		bc:     &recordingBroadcaster{},
	}
	f.svc = NewGuildSyncService(f.roster, f.store, memoryRanks{f.store}, memoryTemplates{f.store},
		f.bc, NewGuildSyncState(time.Minute), time.Minute, 0, zerolog.Nop())
	return f
}

func alphaGuild() model.GuildSnapshot {
	return model.GuildSnapshot{
		GuildID: "100",
		Name:    "Alpha",
		Roles: []model.RoleSnapshot{
			{RoleID: "100", Name: "@everyone", IsEveryone: true},
			{RoleID: "101", Name: "Moderator"},
			{RoleID: "102", Name: "Member"},
		},
	}
}

func TestRunOnce_SeedsNewGuild(t *testing.T) {
	f := newSyncFixture(alphaGuild())

	status, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Nil(t, status.LastError)
	require.NotNil(t, status.LastRun)
	require.NotNil(t, status.LastSuccess)
	require.NotNil(t, status.LastDurationMs)
	assert.Equal(t, 1, status.LastGuildCount)
	assert.Equal(t, 3, status.LastRoleCount, "two roles plus the placeholder")
	assert.Equal(t, 4, status.LastTemplateCount)
	assert.Equal(t, 60, status.IntervalSeconds)

	guild := f.store.guildByDiscordID("100")
	for _, tmpl := range f.store.templates {
		assert.Equal(t, guild.ID, tmpl.GuildID)
		assert.True(t, tmpl.IsTemplate)
		assert.Equal(t, TemplatePassingScore, tmpl.PassingScorePercent)
	}
	var placeholder model.Rank
	for _, r := range f.store.ranks {
		assert.NotEqual(t, "100", r.DiscordRoleID, "everyone role is never stored")
		if r.DiscordRoleID == model.PlaceholderRankID {
			placeholder = r
		}
	}
	assert.Equal(t, model.PlaceholderRankName, placeholder.Name)
	assert.Equal(t, placeholder.ID, f.store.templates[0].RankID)

	require.Len(t, f.bc.guildUpdates, 1)
	assert.Equal(t, "Alpha", f.bc.guildUpdates[0][0].Name)
	assert.Len(t, f.bc.statusUpdates, 1)
}

func TestRunOnce_Idempotent(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	ctx := context.Background()

	_, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)
	writes := f.store.writes

	_, err = f.svc.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, writes, f.store.writes)
	assert.Len(t, f.store.templates, 4)
	assert.Len(t, f.bc.guildUpdates, 1)
	assert.Len(t, f.bc.statusUpdates, 2)
}

func TestRunOnce_RenamesWithoutDeleting(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	ctx := context.Background()
	_, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)

	renamed := alphaGuild()
	renamed.Name = "Alpha Prime"
	renamed.Roles = []model.RoleSnapshot{{RoleID: "101", Name: "Mod"}}
	f.roster.guilds = []model.GuildSnapshot{renamed}

	status, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Alpha Prime", f.store.guildByDiscordID("100").Name)
	assert.Equal(t, 3, status.LastRoleCount)
	names := map[string]string{}
	for _, r := range f.store.ranks {
		names[r.DiscordRoleID] = r.Name
	}
	assert.Equal(t, "Mod", names["101"])
	assert.Equal(t, "Member", names["102"])
	assert.Len(t, f.bc.guildUpdates, 2)
}

func TestRunOnce_KeepsGuildsMissingFromRoster(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	ctx := context.Background()
	_, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)

	f.roster.guilds = nil
	status, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, status.LastGuildCount)
	assert.Len(t, f.store.guilds, 1)
	assert.Len(t, f.bc.guildUpdates, 1)
}

func TestRunOnce_ReseedsGuildWithoutTemplates(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	ctx := context.Background()
	_, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)

	f.store.templates = nil
	status, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, status.LastTemplateCount)
	placeholders := 0
	for _, r := range f.store.ranks {
		if r.DiscordRoleID == model.PlaceholderRankID {
			placeholders++
		}
	}
	assert.Equal(t, 1, placeholders)
}

func TestRunOnce_DuplicateRosterEntriesSeedOnce(t *testing.T) {
	f := newSyncFixture(alphaGuild(), alphaGuild())

	_, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.store.guilds, 1)
	assert.Len(t, f.store.templates, 4)
}

func TestRunOnce_FetchFailureKeepsPreviousCounts(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	ctx := context.Background()
	_, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)
	writes := f.store.writes

	f.roster.err = errors.New("gateway unavailable")
	status, err := f.svc.RunOnce(ctx)
	require.NoError(t, err)

	require.NotNil(t, status.LastError)
	assert.Equal(t, "gateway unavailable", *status.LastError)
	assert.Equal(t, 1, status.LastGuildCount)
	assert.Equal(t, writes, f.store.writes)
	assert.Len(t, f.bc.guildUpdates, 1)
	require.Len(t, f.bc.statusUpdates, 2)
	assert.NotNil(t, f.bc.statusUpdates[1].LastError)

	f.roster.err = nil
	status, err = f.svc.RunOnce(ctx)
	require.NoError(t, err)
	assert.Nil(t, status.LastError)
}

func TestRunOnce_PersistenceFailureMarksRunFailed(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	f.store.failRankCreate = errors.New("connection reset")

	status, err := f.svc.RunOnce(context.Background())
	require.NoError(t, err)

	require.NotNil(t, status.LastError)
	assert.Contains(t, *status.LastError, "connection reset")
	assert.Nil(t, status.LastSuccess)
	assert.Len(t, f.store.guilds, 1, "committed writes remain")
	assert.Len(t, f.bc.guildUpdates, 1)
}

func TestRunOnce_CancelledWhileWaitingForGate(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	require.True(t, f.svc.gate.TryAcquire(1))
	defer f.svc.gate.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.store.guilds)
}

func TestRunOnce_SerializesConcurrentCalls(t *testing.T) {
	f := newSyncFixture(alphaGuild())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, f.store.guilds, 1)
	assert.Len(t, f.store.templates, 4)
	assert.Len(t, f.bc.guildUpdates, 1)
	assert.Len(t, f.bc.statusUpdates, 8)
}

func TestStart_StopsOnCancel(t *testing.T) {
	f := newSyncFixture(alphaGuild())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.svc.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return f.svc.Status().LastSuccess != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestGuildSyncState_SnapshotsAreIndependent(t *testing.T) {
	state := NewGuildSyncState(30 * time.Second)
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	state.MarkRun(first)
	before := state.Snapshot()
	state.MarkRun(first.Add(time.Hour))
	state.MarkFailure(errors.New("boom"))

	assert.Equal(t, first, *before.LastRun)
	assert.Nil(t, before.LastError)
	assert.Equal(t, 30, before.IntervalSeconds)

	state.MarkSuccess(first, 2, 5, 8, 1500*time.Millisecond)
	after := state.Snapshot()
	assert.Nil(t, after.LastError)
	assert.Equal(t, 1500.0, *after.LastDurationMs)
	assert.Equal(t, 2, after.LastGuildCount)
}

func TestBuildTemplates(t *testing.T) {
	guildID, rankID := uuid.New(), uuid.New()
	templates := BuildTemplates(guildID, rankID)

	require.Len(t, templates, 4)
	for _, c := range templates {
		assert.Equal(t, rankID, c.RankID)
		assert.GreaterOrEqual(t, len(c.Questions), 3)
		for _, q := range c.Questions {
			require.Len(t, q.Answers, 4)
			correct := 0
			for i, a := range q.Answers {
				assert.Equal(t, i+1, a.Order)
				if a.IsCorrect {
					correct++
				}
			}
			assert.Equal(t, 1, correct, q.Text)
		}
	}
}
