package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/groupdesk/internal/auth"
)

// JWTServiceConfig maps the auth.jwt block onto auth.JWTConfig.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	out := auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		Audience:       strings.TrimSpace(c.JWT.Audience),
		AccessTokenTTL: c.JWT.TTL,
		Leeway:         c.JWT.Leeway,
	}
	if out.AccessTokenTTL <= 0 {
		out.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if out.Leeway < 0 {
		out.Leeway = 0
	}
	return out
}

// TokenService builds the verifier shared by the HTTP and websocket routes.
func (c AuthConfig) TokenService() (*auth.JWTService, error) {
	svc, err := auth.NewJWTService(c.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("auth.jwt: %w", err)
	}
	return svc, nil
}
