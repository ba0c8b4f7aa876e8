package session

import (
	"testing"
	"time"

	"github.com/salehnevergiveup/marketplace-sdk/pkg/testutil"
)

func TestDecodeClaims_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "hello world"},
		{"two segments", "abc.def"},
		{"garbage payload", "eyJhbGciOiJIUzI1NiJ9.%%%%.sig"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecodeClaims(tc.token); got != nil {
				t.Errorf("DecodeClaims(%q) = %+v, want nil", tc.token, got)
			}
		})
	}
}

func TestDecodeClaims_DoesNotVerifySignature(t *testing.T) {
	// A token signed with an arbitrary key still decodes; signature checking
	// belongs to the server.
	token := testutil.MakeToken("user-1", "buyer", time.Now().Add(time.Hour), nil)
	claims := DecodeClaims(token)
	if claims == nil {
		t.Fatal("DecodeClaims returned nil for a well-formed token")
	}
	if claims.SubjectID() != "user-1" {
		t.Errorf("subject = %s, want user-1", claims.SubjectID())
	}
}

func TestClaims_Expiry(t *testing.T) {
	now := time.Now()

	fresh := DecodeClaims(testutil.MakeToken("u", "", now.Add(10*time.Minute), nil))
	if fresh == nil {
		t.Fatal("decode failed")
	}
	if fresh.Expired(now) {
		t.Error("token expiring in 10m should not be expired now")
	}
	if fresh.ExpiringWithin(now, 5*time.Minute) {
		t.Error("token expiring in 10m is not within a 5m window")
	}
	if !fresh.ExpiringWithin(now, 15*time.Minute) {
		t.Error("token expiring in 10m is within a 15m window")
	}

	stale := DecodeClaims(testutil.MakeExpiredToken("u", ""))
	if stale == nil {
		t.Fatal("decode failed")
	}
	if !stale.Expired(now) {
		t.Error("expired token should report Expired")
	}
}

func TestClaims_NoExpClaim(t *testing.T) {
	// Tokens without exp are the server's problem, not grounds for a refresh.
	c := &Claims{}
	if c.Expired(time.Now()) {
		t.Error("claims without exp should not be treated as expired")
	}
}
