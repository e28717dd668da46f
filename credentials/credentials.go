// Package credentials supplies bearer tokens to the transport.
//
// Token refresh is out of scope: a Source hands out whatever token it holds
// and forgets it when the backend answers 401.
package credentials

import (
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/crmkit/event"
)

// Source provides the bearer token for outbound requests.
type Source interface {
	// Token returns the current token, or false when there is none.
	Token() (string, bool)
	// Clear drops the stored token. Called when the backend rejects it.
	Clear()
}

// MemoryStore is an in-memory Source.
//
// Tokens that parse as JWTs are checked against their exp claim without
// verifying the signature; an expired JWT is reported as absent so no
// request is sent with it. Opaque tokens are handed out as is.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	expires time.Time
	now     func() time.Time
	cleared event.Emitter[struct{}]
}

// NewMemoryStore creates a store holding token, which may be empty.
func NewMemoryStore(token string) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	s.Set(token)
	return s
}

// Set replaces the stored token.
func (s *MemoryStore) Set(token string) {
	exp := expiry(token)
	s.mu.Lock()
	s.token = token
	s.expires = exp
	s.mu.Unlock()
}

// Token implements Source.
func (s *MemoryStore) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", false
	}
	if !s.expires.IsZero() && !s.now().Before(s.expires) {
		return "", false
	}
	return s.token, true
}

// ExpiresAt returns the exp claim of the stored JWT, or zero.
func (s *MemoryStore) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expires
}

// Clear implements Source and notifies OnClear subscribers when a token was held.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.expires = time.Time{}
	s.mu.Unlock()
	if had {
		s.cleared.Emit(struct{}{})
	}
}

// OnClear registers cb to run after a held token is cleared, typically to
// send the user back to sign-in.
func (s *MemoryStore) OnClear(cb func()) (unsubscribe func()) {
	return s.cleared.Subscribe(func(struct{}) { cb() })
}

// expiry reads the exp claim of a JWT without verifying it.
func expiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := &gojwt.RegisteredClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// None is a Source without a token.
type None struct{}

func (None) Token() (string, bool) { return "", false }
func (None) Clear()                {}
