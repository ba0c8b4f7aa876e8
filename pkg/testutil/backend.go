// Package testutil provides common testing utilities: a fake marketplace
// backend and access-token fixtures shared by package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gorilla/mux"
)

// RecordedRequest is one request the fake backend received.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          []byte
}

// FakeBackend is an in-memory stand-in for the marketplace API. It serves
// both the authenticated and the public channel from one httptest server and
// records every request it sees. The refresh-token endpoint is wired by
// default; everything else is registered per test via Handle.
type FakeBackend struct {
	Server *httptest.Server
	router *mux.Router

	mu           sync.Mutex
	requests     []RecordedRequest
	refreshCalls int
	failRefresh  bool
	nextToken    string
}

// NewFakeBackend starts a fake backend with the refresh endpoint installed.
// Callers must Close it.
func NewFakeBackend() *FakeBackend {
	b := &FakeBackend{router: mux.NewRouter()}
	b.router.Use(b.record)
	b.router.HandleFunc("/authentication/public/refresh-token", b.handleRefresh).Methods(http.MethodPost)
	b.Server = httptest.NewServer(b.router)
	return b
}

// Close shuts the underlying server down.
func (b *FakeBackend) Close() {
	b.Server.Close()
}

// AuthBaseURL returns the base URL of the authenticated channel.
func (b *FakeBackend) AuthBaseURL() string {
	return b.Server.URL
}

// PublicBaseURL returns the base URL of the public channel.
func (b *FakeBackend) PublicBaseURL() string {
	return b.Server.URL + "/public"
}

// Handle registers a handler for one method and path.
func (b *FakeBackend) Handle(method, path string, h http.HandlerFunc) {
	b.router.HandleFunc(path, h).Methods(method)
}

// Requests returns a copy of every request received so far.
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestsTo returns the recorded requests whose path matches exactly.
func (b *FakeBackend) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range b.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// LastRequestTo returns the most recent request to path, or nil.
func (b *FakeBackend) LastRequestTo(path string) *RecordedRequest {
	reqs := b.RequestsTo(path)
	if len(reqs) == 0 {
		return nil
	}
	return &reqs[len(reqs)-1]
}

// RefreshCalls returns how many times the refresh endpoint was hit.
func (b *FakeBackend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// FailRefresh makes the refresh endpoint answer with a server failure.
func (b *FakeBackend) FailRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = true
}

// SetRefreshToken fixes the access token the refresh endpoint hands out.
func (b *FakeBackend) SetRefreshToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextToken = token
}

func (b *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          body,
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	fail := b.failRefresh
	token := b.nextToken
	n := b.refreshCalls
	b.mu.Unlock()

	if fail {
		WriteFailure(w, http.StatusInternalServerError, "refresh token invalid")
		return
	}
	if token == "" {
		token = fmt.Sprintf("refreshed-token-%d", n)
	}
	WriteSuccess(w, map[string]any{"accessToken": token})
}

// WriteSuccess writes a marketplace success envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

// WriteFailure writes a marketplace failure envelope with the given status.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
