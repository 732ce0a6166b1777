package service

import (
	"sync"
	"time"

	"github.com/stemsi/proctor-bot/internal/model"
)

// GuildSyncState holds the latest reconciliation status. Every mutation
// builds a new value under the lock; pointer fields always point at fresh
// allocations so snapshots never observe later writes.
type GuildSyncState struct {
	mu     sync.RWMutex
	status model.SyncStatus
}

// NewGuildSyncState creates a state with the given advertised interval.
func NewGuildSyncState(interval time.Duration) *GuildSyncState {
	return &GuildSyncState{
		status: model.SyncStatus{IntervalSeconds: int(interval / time.Second)},
	}
}

// Snapshot returns the current status.
func (s *GuildSyncState) Snapshot() model.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *GuildSyncState) SetInterval(d time.Duration) {
	s.update(func(st *model.SyncStatus) {
		st.IntervalSeconds = int(d / time.Second)
	})
}

func (s *GuildSyncState) MarkRun(startedAt time.Time) {
	s.update(func(st *model.SyncStatus) {
		st.LastRun = &startedAt
	})
}

// MarkFailure records err and leaves the previous counts untouched.
func (s *GuildSyncState) MarkFailure(err error) {
	msg := err.Error()
	s.update(func(st *model.SyncStatus) {
		st.LastError = &msg
	})
}

// MarkSuccess records a completed run and clears any previous error.
func (s *GuildSyncState) MarkSuccess(startedAt time.Time, guilds, roles, templates int, duration time.Duration) {
	ms := float64(duration) / float64(time.Millisecond)
	s.update(func(st *model.SyncStatus) {
		st.LastSuccess = &startedAt
		st.LastError = nil
		st.LastGuildCount = guilds
		st.LastRoleCount = roles
		st.LastTemplateCount = templates
		st.LastDurationMs = &ms
	})
}

func (s *GuildSyncState) update(fn func(*model.SyncStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.status
	fn(&next)
	s.status = next
}
