// Package session keeps per-conversation turn history in memory.
//
// The store is bounded: the least recently used session is evicted once
// MaxSessions is reached, and sessions idle longer than IdleTTL are removed
// by Sweep. A conversation that is evicted starts over with empty history.
package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/quotebot/internal/clock"
)

// Eviction reasons passed to Config.OnEvict.
const (
	EvictCapacity = "capacity"
	EvictIdle     = "idle"
	EvictManual   = "manual"
)

// Config bounds the store. A zero value for either bound disables it.
type Config struct {
	MaxSessions int
	IdleTTL     time.Duration
	// OnEvict, if set, is called once per removed session with the reason.
	OnEvict func(reason string)
	Clock   clock.Clock
}

// Store maps session ids to sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*list.Element
	lru      *list.List // front is most recently used

	config Config
	clock  clock.Clock
	logger *zap.Logger
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// NewStore creates an empty store.
func NewStore(config Config, logger *zap.Logger) *Store {
	c := config.Clock
	if c == nil {
		c = clock.New()
	}
	return &Store{
		sessions: make(map[string]*list.Element),
		lru:      list.New(),
		config:   config,
		clock:    c,
		logger:   logger,
	}
}

// Do runs fn with exclusive access to the session for id, creating it when
// absent. Calls for the same id are serialized; calls for different ids run
// concurrently.
func (s *Store) Do(id string, fn func(*Session) error) error {
	for {
		sess := s.acquire(id)

		sess.mu.Lock()
		// The session may have been evicted while we waited for its lock.
		if !s.attached(sess) {
			sess.mu.Unlock()
			continue
		}
		defer sess.mu.Unlock()
		return fn(sess)
	}
}

func (s *Store) attached(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.sessions[sess.id]
	return ok && el.Value.(*entry).session == sess
}

func (s *Store) acquire(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if el, ok := s.sessions[id]; ok {
		e := el.Value.(*entry)
		e.lastUsed = now
		s.lru.MoveToFront(el)
		return e.session
	}

	e := &entry{session: &Session{id: id}, lastUsed: now}
	s.sessions[id] = s.lru.PushFront(e)

	if s.config.MaxSessions > 0 {
		for s.lru.Len() > s.config.MaxSessions {
			s.removeElement(s.lru.Back(), EvictCapacity)
		}
	}
	return e.session
}

// Sweep removes sessions idle for longer than IdleTTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	if s.config.IdleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for el := s.lru.Back(); el != nil; {
		e := el.Value.(*entry)
		if now.Sub(e.lastUsed) <= s.config.IdleTTL {
			break
		}
		prev := el.Prev()
		s.removeElement(el, EvictIdle)
		removed++
		el = prev
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.config.IdleTTL <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("swept idle sessions",
					zap.Int("removed", n),
					zap.Int("remaining", s.Len()),
				)
			}
		}
	}
}

// Evict drops the session for id. It reports whether a session was removed.
func (s *Store) Evict(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.sessions[id]
	if !ok {
		return false
	}
	s.removeElement(el, EvictManual)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Store) removeElement(el *list.Element, reason string) {
	e := s.lru.Remove(el).(*entry)
	delete(s.sessions, e.session.id)
	if s.config.OnEvict != nil {
		s.config.OnEvict(reason)
	}
}
