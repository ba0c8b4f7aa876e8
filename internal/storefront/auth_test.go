package storefront

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/salehnevergiveup/marketplace-sdk/internal/session"
	"github.com/salehnevergiveup/marketplace-sdk/internal/transport"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/logger"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/testutil"
)

func newUnauthenticatedService(t *testing.T) (*Service, *testutil.FakeBackend, *session.Session) {
	t.Helper()
	b := testutil.NewFakeBackend()
	t.Cleanup(b.Close)

	sess := session.New()
	client := transport.NewClient(sess, transport.Config{
		AuthBaseURL:   b.AuthBaseURL(),
		PublicBaseURL: b.PublicBaseURL(),
		Logger:        logger.NewNop(),
	})
	return New(client, logger.NewNop()), b, sess
}

func TestLogin(t *testing.T) {
	svc, b, sess := newUnauthenticatedService(t)
	token := testutil.MakeToken("user-3", "admin", time.Now().Add(time.Hour), map[string]bool{"canEdit": true})
	b.Handle(http.MethodPost, "/public/authentication/login", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteSuccess(w, map[string]string{"accessToken": token})
	})

	claims, err := svc.Login(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if claims == nil || claims.SubjectID() != "user-3" {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.Permissions.CanEdit {
		t.Error("canEdit should be set")
	}

	stored, ok := sess.Token()
	if !ok || stored != token {
		t.Error("session should hold the returned access token")
	}

	req := b.LastRequestTo("/public/authentication/login")
	if req == nil {
		t.Fatal("no login request recorded")
	}
	if got := gjson.GetBytes(req.Body, "email").String(); got != "user@example.com" {
		t.Errorf("email = %q", got)
	}
	if req.Authorization != "" {
		t.Errorf("login must not carry a bearer header, got %q", req.Authorization)
	}
}

func TestLogin_Rejected(t *testing.T) {
	svc, b, sess := newUnauthenticatedService(t)
	b.Handle(http.MethodPost, "/public/authentication/login", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteFailure(w, http.StatusUnauthorized, "bad credentials")
	})

	if _, err := svc.Login(context.Background(), "user@example.com", "wrong"); err == nil {
		t.Error("rejected login should error")
	}
	if sess.Authenticated() {
		t.Error("rejected login must not leave a token behind")
	}
}

func TestLogout_ClearsSessionEvenOnServerFailure(t *testing.T) {
	svc, b, sess := newUnauthenticatedService(t)
	sess.SetToken(testutil.MakeToken("user-3", "buyer", time.Now().Add(time.Hour), nil))
	b.Handle(http.MethodPost, "/authentication/logout", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteFailure(w, http.StatusInternalServerError, "session store down")
	})

	err := svc.Logout(context.Background())
	if err == nil {
		t.Error("server failure should surface")
	}
	if sess.Authenticated() {
		t.Error("local token must be cleared regardless of the server outcome")
	}
}
