package planning

import (
	"sync"
	"time"

	"fleemy/internal/cache"
)

// Sessions hands out one controller per user. Idle controllers are evicted;
// their queued changes survive in the outbox.
type Sessions struct {
	opts  Options
	mu    sync.Mutex
	cache *cache.LRUCache[*Controller]
}

func NewSessions(opts Options, maxUsers int, idle time.Duration) *Sessions {
	return &Sessions{
		opts:  opts,
		cache: cache.NewLRUCache[*Controller](maxUsers, idle),
	}
}

// For returns the controller of uid, creating it on first use.
func (s *Sessions) For(uid string) (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cache.Get(uid); ok {
		return c, nil
	}
	c, err := NewController(uid, s.opts)
	if err != nil {
		return nil, err
	}
	s.cache.Set(uid, c)
	return c, nil
}

// RegisterWith hands the session LRU to a cache.Manager for idle eviction.
func (s *Sessions) RegisterWith(mgr *cache.Manager) {
	mgr.Register("planning_sessions", s.cache)
}

// Users lists the uids with a live session.
func (s *Sessions) Users() []string {
	return s.cache.Keys()
}

func (s *Sessions) Len() int {
	return s.cache.Size()
}
