package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Store is a concurrent table of active sessions keyed by session id.
// Replace and Remove are compare-and-swap operations against the value the
// caller previously read, so two racing updates of one session cannot both win.
type Store struct {
	sessions sync.Map // uuid.UUID -> *ExamSession
	count    atomic.Int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Create inserts a new session. It returns false if the id is already taken.
func (s *Store) Create(sess *ExamSession) bool {
	if _, loaded := s.sessions.LoadOrStore(sess.SessionID, sess); loaded {
		return false
	}
	s.count.Add(1)
	return true
}

// Get returns the current value for id.
func (s *Store) Get(id uuid.UUID) (*ExamSession, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*ExamSession), true
}

// Replace swaps old for next only if old is still the stored value.
func (s *Store) Replace(old, next *ExamSession) bool {
	return s.sessions.CompareAndSwap(old.SessionID, old, next)
}

// Remove deletes old only if it is still the stored value.
func (s *Store) Remove(old *ExamSession) bool {
	if !s.sessions.CompareAndDelete(old.SessionID, old) {
		return false
	}
	s.count.Add(-1)
	return true
}

// Sweep removes every session whose deadline has passed at now and returns
// the removed values.
func (s *Store) Sweep(now time.Time) []*ExamSession {
	var removed []*ExamSession
	s.sessions.Range(func(_, v any) bool {
		sess := v.(*ExamSession)
		if sess.Expired(now) && s.Remove(sess) {
			removed = append(removed, sess)
		}
		return true
	})
	return removed
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	return int(s.count.Load())
}
