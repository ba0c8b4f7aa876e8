// Package session holds the access token for one signed-in user and decodes
// its claims. The refresh token never appears here: it lives in an HTTP-only
// cookie the browser (or the transport's cookie jar) sends on its own.
package session

import (
	"sync"
)

// Session is the explicit owner of the current access token. It is created at
// login and cleared at logout or when a token refresh fails for good. Pure
// storage: no network access, no expiry judgement of its own.
type Session struct {
	mu    sync.RWMutex
	token string
}

// New returns an empty, unauthenticated session.
func New() *Session {
	return &Session{}
}

// Token returns the current access token. The second result is false when the
// session is unauthenticated, which callers must treat as a valid state.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// SetToken replaces the access token wholesale.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear removes the access token, returning the session to the
// unauthenticated state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Authenticated reports whether a token is present. It says nothing about
// whether the server still accepts it.
func (s *Session) Authenticated() bool {
	_, ok := s.Token()
	return ok
}

// Claims decodes the claims of the current token, or nil when the session is
// empty or the token is malformed.
func (s *Session) Claims() *Claims {
	token, ok := s.Token()
	if !ok {
		return nil
	}
	return DecodeClaims(token)
}
