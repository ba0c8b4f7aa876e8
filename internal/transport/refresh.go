package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// refreshPath is served on the authenticated channel's base URL but is a
// public endpoint: the credential is the HTTP-only refresh cookie, not the
// bearer header.
const refreshPath = "/authentication/public/refresh-token"

// refreshToken exchanges the current access token for a new one. The expiring
// token goes in the request body; the server pairs it with the refresh cookie
// the jar sends automatically. On any failure the session is cleared: refresh
// failure always ends the session.
//
// Concurrent 401s each run their own refresh. Redundant refreshes are
// tolerated; the server accepts a re-exchange and the last writer wins.
func (c *Client) refreshToken(ctx context.Context) error {
	current, _ := c.session.Token()

	payload, err := json.Marshal(map[string]string{"accessToken": current})
	if err != nil {
		return c.refreshFailed(fmt.Errorf("marshal refresh payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBaseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return c.refreshFailed(fmt.Errorf("build refresh request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.refreshFailed(fmt.Errorf("refresh token: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.refreshFailed(fmt.Errorf("read refresh response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.refreshFailed(fmt.Errorf("refresh token: status %d", resp.StatusCode))
	}

	var env struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return c.refreshFailed(fmt.Errorf("decode refresh response: %w", err))
	}
	if env.Data.AccessToken == "" {
		return c.refreshFailed(fmt.Errorf("refresh response carried no access token"))
	}

	c.session.SetToken(env.Data.AccessToken)
	if c.metrics != nil {
		c.metrics.observeRefresh(true)
	}
	c.log.Debug("access token refreshed")
	return nil
}

func (c *Client) refreshFailed(err error) error {
	c.session.Clear()
	if c.metrics != nil {
		c.metrics.observeRefresh(false)
	}
	c.log.WithError(err).Warn("token refresh failed, session cleared")
	return err
}
