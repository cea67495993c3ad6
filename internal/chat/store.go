package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"sqlchat/internal/metrics"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 24 * time.Hour

// Store owns the sessions of every connected user, keyed by session id.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	idleTTL     time.Duration
	maxMessages int
	now         func() time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

func WithMaxMessages(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.maxMessages = n
		}
	}
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions:    make(map[string]*Session),
		idleTTL:     DefaultIdleTTL,
		maxMessages: DefaultMaxMessages,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a live session. Expired sessions are removed and reported as missing.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(sess.idleSince()) > s.idleTTL {
		delete(s.sessions, id)
		metrics.SetActiveSessions(len(s.sessions))
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// GetOrCreate returns the session for id, creating a fresh one with a new id when
// id is empty, unknown or expired.
func (s *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	}
	sess := NewSession(uuid.NewString())
	sess.maxMessages = s.maxMessages

	s.mu.Lock()
	sess.touch(s.now())
	s.sessions[sess.ID] = sess
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()
	return sess
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	metrics.SetActiveSessions(len(s.sessions))
	s.mu.Unlock()
}

// Sweep removes idle sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.idleTTL {
			delete(s.sessions, id)
			dropped++
		}
	}
	metrics.SetActiveSessions(len(s.sessions))
	return dropped
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
