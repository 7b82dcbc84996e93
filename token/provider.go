// Package token issues and verifies the signed access and refresh tokens of
// the auth core. A Provider is a pure function pair parameterized by a secret
// and two TTLs; it holds no mutable state and is safe for concurrent use.
//
// Verification deliberately collapses every failure mode into ErrInvalid.
// Callers must not be able to distinguish an expired token from a forged one.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalid is returned for any malformed, expired, or tampered token.
var ErrInvalid = errors.New("invalid token")

// TypeRefresh is the discriminator claim value carried by refresh tokens.
const TypeRefresh = "refresh"

// Config parameterizes a Provider.
type Config struct {
	// Secret is the HS256 signing key. Required.
	Secret []byte
	// AccessTTL bounds access tokens (short, e.g. 15 minutes).
	AccessTTL time.Duration
	// RefreshTTL bounds refresh tokens (long, e.g. 7 days).
	RefreshTTL time.Duration
	// Issuer is embedded and enforced when non-empty.
	Issuer string
}

// Provider signs and verifies tokens.
type Provider struct {
	config Config
}

// AccessClaims is the payload of an access token. Subject carries the user
// id. TokenType is never set on issue; it exists so a refresh token smuggled
// into VerifyAccess is detected and rejected.
type AccessClaims struct {
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token. Subject carries the user
// id, ID the jti used for single-use enforcement, and TokenType the fixed
// refresh discriminator.
type RefreshClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// NewProvider validates cfg and builds a Provider.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: signing secret required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	return &Provider{config: cfg}, nil
}

// IssueAccess signs an access token for the subject with its role embedded.
func (p *Provider) IssueAccess(userID, role string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.config.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.config.Secret)
}

// IssueRefresh signs a refresh token for the subject and returns the token
// alongside its jti.
func (p *Provider) IssueRefresh(userID string) (string, string, error) {
	now := time.Now()
	jti := uuid.NewString()
	claims := RefreshClaims{
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			Issuer:    p.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.config.RefreshTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.config.Secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// VerifyAccess checks signature and expiry and returns the payload, or
// ErrInvalid.
func (p *Provider) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := p.parse(tokenStr, claims); err != nil {
		return nil, ErrInvalid
	}
	if claims.Subject == "" || claims.TokenType != "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// VerifyRefresh checks signature, expiry, and the refresh discriminator and
// returns the payload, or ErrInvalid. An access token presented here fails.
func (p *Provider) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenStr, claims); err != nil {
		return nil, ErrInvalid
	}
	if claims.TokenType != TypeRefresh || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (p *Provider) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(p.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return p.config.Secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// Remaining reports how much of the token's lifetime is left at time now.
// The result is negative for an already-expired token.
func Remaining(claims jwt.Claims, now time.Time) time.Duration {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Time.Sub(now)
}
