package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the CRM bearer token issued at sign-in. The agent never
// verifies the signature (the backend does); it only reads the registered
// claims so an already-expired session fails fast, before a photo upload is
// wasted on a guaranteed 401.
type Session struct {
	token  string
	claims jwt.RegisteredClaims
}

// NewSession parses the bearer token without verifying it. An opaque
// (non-JWT) token is accepted with empty claims; expiry checks then always
// pass and the backend has the final word.
func NewSession(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("empty session token")
	}
	s := &Session{token: token}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &s.claims); err != nil {
		// Opaque token. Keep it; only the expiry fast path is lost.
		s.claims = jwt.RegisteredClaims{}
	}
	return s, nil
}

// Bearer returns the raw token for the Authorization header.
func (s *Session) Bearer() string { return s.token }

// Expired reports whether the token's exp claim has passed. Tokens without
// an exp claim are treated as live.
func (s *Session) Expired(now time.Time) bool {
	if s.claims.ExpiresAt == nil {
		return false
	}
	return now.After(s.claims.ExpiresAt.Time)
}

// Subject returns the sub claim, for logging.
func (s *Session) Subject() string { return s.claims.Subject }
