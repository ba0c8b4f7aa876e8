package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MakeToken mints a signed access token for tests. The client never checks
// the signature, so a throwaway HMAC key is enough.
func MakeToken(subject, role string, expiresAt time.Time, perms map[string]bool) string {
	claims := jwt.MapClaims{
		"sub": subject,
		"jti": uuid.NewString(),
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	if perms != nil {
		claims["permissions"] = perms
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("testutil-signing-key"))
	if err != nil {
		panic(err)
	}
	return signed
}

// MakeExpiredToken mints a token that expired an hour ago.
func MakeExpiredToken(subject, role string) string {
	return MakeToken(subject, role, time.Now().Add(-time.Hour), nil)
}
