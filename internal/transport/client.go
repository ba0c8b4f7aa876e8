package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/salehnevergiveup/marketplace-sdk/internal/session"
	"github.com/salehnevergiveup/marketplace-sdk/pkg/logger"
)

const maxBodyBytes = 8 << 20

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Config configures a Client.
type Config struct {
	// AuthBaseURL is the base URL for authenticated calls.
	AuthBaseURL string
	// PublicBaseURL is the base URL for public calls.
	PublicBaseURL string
	// Timeout bounds a single round trip. Defaults to 30s.
	Timeout time.Duration
	// RefreshSkew refreshes the token proactively when it expires within
	// this window. Zero still refreshes already-expired tokens.
	RefreshSkew time.Duration
	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64
	// RateBurst is the limiter burst size. Defaults to 1 when RateLimit is set.
	RateBurst int
	// Metrics receives request and refresh observations when non-nil.
	Metrics *Metrics
	// Logger defaults to a "transport" logger when nil.
	Logger *logger.Logger
}

// Client sends requests to the marketplace backend. It selects the channel,
// attaches the bearer token, performs the one-shot refresh-and-retry on 401,
// and folds every outcome into a Response envelope.
//
// Cookies are shared across both channels through one jar so the HTTP-only
// refresh cookie set at login rides along with every call.
type Client struct {
	httpClient    *http.Client
	session       *session.Session
	authBaseURL   string
	publicBaseURL string
	refreshSkew   time.Duration
	limiter       *rate.Limiter
	metrics       *Metrics
	log           *logger.Logger
}

// NewClient creates a dispatcher bound to the given session.
func NewClient(sess *session.Session, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("transport")
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst == 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	jar, _ := cookiejar.New(nil)
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		session:       sess,
		authBaseURL:   strings.TrimRight(cfg.AuthBaseURL, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		refreshSkew:   cfg.RefreshSkew,
		limiter:       limiter,
		metrics:       cfg.Metrics,
		log:           log,
	}
}

// Session returns the session this client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

// Send dispatches one request and returns the normalized envelope. It never
// returns a transport error to the caller.
func (c *Client) Send(ctx context.Context, req Request) Response {
	if !allowedMethods[req.Method] {
		return failure(KindLocal, 0, fmt.Sprintf("invalid request method %q", req.Method))
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return failure(KindTransport, 0, err.Error())
		}
	}

	if c.metrics != nil {
		c.metrics.inFlight.Inc()
		defer c.metrics.inFlight.Dec()
	}

	start := time.Now()
	resp := c.send(ctx, req)
	if c.metrics != nil {
		c.metrics.observeRequest(req, resp, time.Since(start))
	}
	return resp
}

func (c *Client) send(ctx context.Context, req Request) Response {
	body, contentType, err := encodePayload(req)
	if err != nil {
		return failure(KindLocal, 0, err.Error())
	}

	requestID := uuid.NewString()
	log := c.log.WithField("request_id", requestID).
		WithField("method", req.Method).
		WithField("path", req.Path)

	token := ""
	if req.RequiresAuth {
		if current, ok := c.session.Token(); ok {
			if claims := session.DecodeClaims(current); claims != nil && claims.ExpiringWithin(time.Now(), c.refreshSkew) {
				log.Debug("access token expiring, refreshing before send")
				if refreshErr := c.refreshToken(ctx); refreshErr != nil {
					return failure(KindAuthExpired, http.StatusUnauthorized, "session expired")
				}
			}
			token, _ = c.session.Token()
		}
	}

	// One original attempt plus at most one replay after a 401-triggered
	// refresh. The counter lives in this call frame, so concurrent requests
	// cannot interfere with each other's retry budget.
	const maxRetries = 1
	for attempt := 0; ; attempt++ {
		resp, sendErr := c.roundTrip(ctx, req, token, requestID, body, contentType)
		if sendErr != nil {
			log.WithError(sendErr).Warn("request failed in transport")
			return failure(KindTransport, 0, sendErr.Error())
		}

		if resp.Status == http.StatusUnauthorized && req.RequiresAuth {
			if attempt >= maxRetries {
				log.Warn("401 after replay, giving up")
				return failure(KindAuthExpired, resp.Status, messageOr(resp, "session expired"))
			}
			log.Debug("401 received, refreshing token")
			if refreshErr := c.refreshToken(ctx); refreshErr != nil {
				return failure(KindAuthExpired, http.StatusUnauthorized, "session expired")
			}
			token, _ = c.session.Token()
			continue
		}
		return resp
	}
}

func (c *Client) roundTrip(ctx context.Context, req Request, token, requestID string, body []byte, contentType string) (Response, error) {
	base := c.publicBaseURL
	if req.RequiresAuth {
		base = c.authBaseURL
	}
	url := base + "/" + strings.TrimPrefix(req.Path, "/")

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, reader)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}
	return parseEnvelope(httpResp.StatusCode, raw), nil
}

// parseEnvelope folds an HTTP response into the envelope shape. Bodies that
// are not envelope JSON are carried as raw data on 2xx and as the failure
// message otherwise.
func parseEnvelope(status int, body []byte) Response {
	var env Response
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && looksLikeEnvelope(body) {
		env.Status = status
		if status >= 400 {
			env.Success = false
			env.Kind = KindServer
			if env.Message == "" {
				env.Message = http.StatusText(status)
			}
		} else if !env.Success {
			// 2xx with an explicit success:false is a server-reported failure.
			env.Kind = KindServer
		}
		return env
	}

	if status >= 200 && status < 300 {
		return Response{Success: true, Data: body, Status: status}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return failure(KindServer, status, msg)
}

func looksLikeEnvelope(body []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	_, ok := probe["success"]
	return ok
}

func messageOr(resp Response, fallback string) string {
	if resp.Message != "" {
		return resp.Message
	}
	return fallback
}

// encodePayload serializes the request payload once so the 401 replay reuses
// identical bytes. Binary file fields switch the encoding to multipart.
func encodePayload(req Request) ([]byte, string, error) {
	if len(req.Files) > 0 {
		return encodeMultipart(req)
	}
	if req.Payload == nil {
		return nil, "", nil
	}
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request payload: %w", err)
	}
	return body, "application/json", nil
}

func encodeMultipart(req Request) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range req.Files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", f.Field, err)
		}
	}

	if req.Payload != nil {
		fields, err := payloadFields(req.Payload)
		if err != nil {
			return nil, "", err
		}
		for key, value := range fields {
			if err := w.WriteField(key, value); err != nil {
				return nil, "", fmt.Errorf("write form field %s: %w", key, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// payloadFields flattens a payload into string form fields via a JSON round
// trip. Nested values are carried as their JSON encoding.
func payloadFields(payload any) (map[string]string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal form payload: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("form payload must be an object: %w", err)
	}
	fields := make(map[string]string, len(m))
	for key, value := range m {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			fields[key] = s
			continue
		}
		fields[key] = string(value)
	}
	return fields, nil
}
