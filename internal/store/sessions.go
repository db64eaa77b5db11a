package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
)

// Session scopes a credential resolver and a result store to one user.
// Lock it for the duration of any operation that touches either.
type Session struct {
	ID       string
	Resolver *credential.Resolver
	Results  *ResultStore

	sync.Mutex
	lastSeen time.Time
}

// DefaultMaxSessions bounds the registry when no limit is configured.
const DefaultMaxSessions = 1000

const sweepInterval = time.Minute

// Sessions is a registry of sessions keyed by id. Sessions idle longer than
// the TTL are dropped, and once the registry holds max sessions the least
// recently seen one makes room for a new one.
type Sessions struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	ttl         time.Duration
	max         int
	lastSweep   time.Time
	newResolver func() *credential.Resolver
	now         func() time.Time
	logger      *slog.Logger
}

func NewSessions(ttl time.Duration, newResolver func() *credential.Resolver, logger *slog.Logger) *Sessions {
	return &Sessions{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		max:         DefaultMaxSessions,
		newResolver: newResolver,
		now:         time.Now,
		logger:      logger,
	}
}

// SetMaxSessions changes the registry bound. n <= 0 restores the default.
func (s *Sessions) SetMaxSessions(n int) {
	if n <= 0 {
		n = DefaultMaxSessions
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.max = n
}

// Get returns the session for id, or creates a new one when id is unknown or
// expired. The returned session's ID may differ from the id passed in.
func (s *Sessions) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.evictExpiredLocked(now)
		s.lastSweep = now
	}

	if sess, ok := s.sessions[id]; ok {
		if !s.expired(sess, now) {
			sess.lastSeen = now
			return sess
		}
		delete(s.sessions, id)
		s.logger.Debug("session expired", "session_id", id)
	}

	if len(s.sessions) >= s.max {
		s.evictExpiredLocked(now)
		for len(s.sessions) >= s.max {
			s.evictOldestLocked()
		}
	}

	sess := &Session{
		ID:       uuid.NewString(),
		Resolver: s.newResolver(),
		Results:  NewResultStore(),
		lastSeen: now,
	}
	s.sessions[sess.ID] = sess
	s.logger.Debug("session created", "session_id", sess.ID)
	return sess
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

func (s *Sessions) evictExpiredLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			s.logger.Debug("session expired", "session_id", id)
		}
	}
}

func (s *Sessions) evictOldestLocked() {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
			oldest = sess
		}
	}
	if oldest == nil {
		return
	}
	delete(s.sessions, oldest.ID)
	s.logger.Debug("session evicted at capacity", "session_id", oldest.ID)
}
