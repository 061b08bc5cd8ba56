package oauth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// stateStore holds pending per-attempt CSRF state values. A state is valid
// for one callback within its deadline, then gone.
type stateStore struct {
	mu      sync.Mutex
	pending map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		pending: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers and returns a fresh opaque state value.
func (s *stateStore) Create() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// Drop stale attempts on the way through so the map cannot grow without
	// bound under abandoned sign-ins.
	for k, deadline := range s.pending {
		if now.After(deadline) {
			delete(s.pending, k)
		}
	}
	s.pending[state] = now.Add(s.ttl)
	return state, nil
}

// Consume validates and removes a state value. It returns false for
// unknown, reused or expired states.
func (s *stateStore) Consume(state string) bool {
	if state == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.pending[state]
	if !ok {
		return false
	}
	delete(s.pending, state)
	return s.now().Before(deadline)
}
