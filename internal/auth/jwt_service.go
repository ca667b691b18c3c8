package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL applies to tokens minted by the dev issuer.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultLeeway absorbs clock drift between the identity provider and us.
	DefaultLeeway = 30 * time.Second
)

var (
	ErrMissingSecret = errors.New("jwt: secret must be provided")
	ErrEmptyToken    = errors.New("jwt: token string is empty")
	ErrWrongIssuer   = errors.New("jwt: invalid issuer")
	ErrNoSubject     = errors.New("jwt: missing user id claim")
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret         string
	Issuer         string
	Audience       string
	AccessTokenTTL time.Duration
	Leeway         time.Duration
	Clock          func() time.Time
}

// Identity is who a token speaks for. The identity provider is external; the
// engine only needs the opaque user id and, for e-mail invitations, the address.
type Identity struct {
	UserID string
	Email  string
}

// Claims is the token payload.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller the claims were issued for.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email}
}

// JWTService verifies bearer tokens and, for local development, issues them.
type JWTService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	parser   *jwt.Parser
	now      func() time.Time
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrMissingSecret
	}

	svc := &JWTService{
		key:      []byte(cfg.Secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		ttl:      cfg.AccessTokenTTL,
		now:      cfg.Clock,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultAccessTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	leeway := cfg.Leeway
	if leeway < 0 {
		leeway = 0
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return svc.now() }),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}
	if svc.audience != "" {
		opts = append(opts, jwt.WithAudience(svc.audience))
	}
	svc.parser = jwt.NewParser(opts...)

	return svc, nil
}

// Issue signs a token for id. Production tokens come from the identity
// provider; this backs the -issue-token flag and the test suites.
func (s *JWTService) Issue(id Identity) (string, error) {
	userID := strings.TrimSpace(id.UserID)
	if userID == "" {
		return "", ErrNoSubject
	}

	issuedAt := s.now().UTC()
	claims := Claims{
		UserID: userID,
		Email:  strings.ToLower(strings.TrimSpace(id.Email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and audience and returns the claims.
// Tokens without a uid claim fall back to the subject.
func (s *JWTService) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyToken
	}

	claims := new(Claims)
	if _, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrWrongIssuer
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrNoSubject
	}
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))

	return claims, nil
}
