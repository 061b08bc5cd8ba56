package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Session is the metadata attached to one bearer token.
type Session struct {
	Token     string    `json:"-"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Provider  string    `json:"provider"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Registry tracks active sessions by opaque bearer token. Implementations
// must be safe for concurrent use from multiple request goroutines.
type Registry interface {
	Issue(userID int, username, role, provider string) (*Session, error)
	Resolve(token string) (*Session, bool)
	Revoke(token string)
}

// MemoryRegistry is an in-process Registry. Sessions do not survive a
// restart; that is accepted behavior, not a defect.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryRegistry creates a registry whose sessions expire after ttl.
// A zero ttl means sessions only die on revocation or restart.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue creates a session and returns it with a fresh token.
func (r *MemoryRegistry) Issue(userID int, username, role, provider string) (*Session, error) {
	issued := r.now()
	token, err := newToken(issued)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	s := &Session{
		Token:    token,
		UserID:   userID,
		Username: username,
		Role:     role,
		Provider: provider,
		IssuedAt: issued,
	}
	if r.ttl > 0 {
		s.ExpiresAt = issued.Add(r.ttl)
	}

	r.mu.Lock()
	r.sessions[token] = s
	r.mu.Unlock()
	return s, nil
}

// Resolve returns the session for a token, evicting it if expired.
func (r *MemoryRegistry) Resolve(token string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.ExpiresAt.IsZero() && r.now().After(s.ExpiresAt) {
		r.mu.Lock()
		delete(r.sessions, token)
		r.mu.Unlock()
		return nil, false
	}
	return s, true
}

// Revoke removes a session. Revoking an unknown token is a no-op.
func (r *MemoryRegistry) Revoke(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Sweep evicts all expired sessions and reports how many were removed.
func (r *MemoryRegistry) Sweep() int {
	if r.ttl == 0 {
		return 0
	}
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for token, s := range r.sessions {
		if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries, expired or not.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// newToken builds an opaque token from 18 random bytes plus the issuance
// time, so uniqueness is practically collision-free.
func newToken(issued time.Time) (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf) + "." + strconv.FormatInt(issued.UnixNano(), 36), nil
}
