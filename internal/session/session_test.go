package session

import (
	"sync"
	"testing"
	"time"

	"github.com/salehnevergiveup/marketplace-sdk/pkg/testutil"
)

func TestSession_TokenLifecycle(t *testing.T) {
	s := New()

	if _, ok := s.Token(); ok {
		t.Error("new session should be unauthenticated")
	}
	if s.Authenticated() {
		t.Error("Authenticated() should be false for a new session")
	}

	s.SetToken("tok-1")
	tok, ok := s.Token()
	if !ok || tok != "tok-1" {
		t.Errorf("Token() = %q, %t, want tok-1, true", tok, ok)
	}

	s.SetToken("tok-2")
	tok, _ = s.Token()
	if tok != "tok-2" {
		t.Errorf("token not replaced wholesale, got %q", tok)
	}

	s.Clear()
	if s.Authenticated() {
		t.Error("session should be unauthenticated after Clear")
	}
}

func TestSession_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetToken("tok")
		}()
		go func() {
			defer wg.Done()
			s.Token()
			s.Claims()
		}()
	}
	wg.Wait()
}

func TestSession_Claims(t *testing.T) {
	s := New()
	if s.Claims() != nil {
		t.Error("empty session should yield nil claims")
	}

	s.SetToken(testutil.MakeToken("user-9", "admin", time.Now().Add(time.Hour), map[string]bool{
		"canCreate": true,
		"canView":   true,
	}))
	claims := s.Claims()
	if claims == nil {
		t.Fatal("claims should decode")
	}
	if claims.SubjectID() != "user-9" {
		t.Errorf("subject = %s, want user-9", claims.SubjectID())
	}
	if claims.Role != "admin" {
		t.Errorf("role = %s, want admin", claims.Role)
	}
	if !claims.Permissions.CanCreate || !claims.Permissions.CanView {
		t.Errorf("permissions = %+v", claims.Permissions)
	}
	if claims.Permissions.CanDelete {
		t.Error("canDelete should be false")
	}
}
