package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Permissions are the coarse capability flags the backend mints into access
// tokens for admin screens.
type Permissions struct {
	CanCreate bool `json:"canCreate"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
	CanView   bool `json:"canView"`
}

// Claims are the access token claims this client cares about. Signature
// verification is the server's job; the client only reads the payload.
type Claims struct {
	Role        string      `json:"role,omitempty"`
	Permissions Permissions `json:"permissions"`
	jwt.RegisteredClaims
}

// SubjectID returns the subject (user) id claim.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// Expired reports whether the token's expiry is at or before now. A token
// without an exp claim is treated as not expired; the server decides.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiringWithin(now, 0)
}

// ExpiringWithin reports whether the token expires within the given window
// from now. Used to refresh proactively instead of eating a guaranteed 401.
func (c *Claims) ExpiringWithin(now time.Time, window time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.Time.After(now.Add(window))
}

// DecodeClaims parses a bearer token's payload without verifying the
// signature. Malformed input yields nil: "cannot infer claims" is not the
// same as "invalid session", which only the server can determine.
func DecodeClaims(token string) *Claims {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, &Claims{})
	if err != nil {
		return nil
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
