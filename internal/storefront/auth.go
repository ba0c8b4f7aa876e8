package storefront

import (
	"context"
	"fmt"
	"net/http"

	"github.com/salehnevergiveup/marketplace-sdk/internal/session"
	"github.com/salehnevergiveup/marketplace-sdk/internal/transport"
)

const (
	pathLogin  = "authentication/login"
	pathLogout = "authentication/logout"
)

// Login authenticates against the public channel and stores the returned
// access token in the session. The refresh token arrives as an HTTP-only
// cookie on the same response and stays invisible to this layer.
func (s *Service) Login(ctx context.Context, email, password string) (*session.Claims, error) {
	resp := s.client.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Payload: map[string]string{
			"email":    email,
			"password": password,
		},
	})
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if err := resp.DecodeData(&data); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("login: response carried no access token")
	}

	s.client.Session().SetToken(data.AccessToken)
	claims := session.DecodeClaims(data.AccessToken)
	if claims != nil {
		s.log.WithField("subject", claims.SubjectID()).
			WithField("role", claims.Role).
			Info("logged in")
	}
	return claims, nil
}

// Logout tears the session down. The server is notified best-effort; the
// local token is cleared regardless of the outcome.
func (s *Service) Logout(ctx context.Context) error {
	resp := s.client.Send(ctx, transport.Request{
		Method:       http.MethodPost,
		Path:         pathLogout,
		RequiresAuth: true,
	})
	s.client.Session().Clear()
	if err := resp.Err(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info("logged out")
	return nil
}
