// Package auth verifies the access tokens issued by the account service and
// turns them into domain principals.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/alanyoungcy/optionsdesk/internal/domain"
)

// Claims is the access-token payload.
type Claims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`

	jwt.RegisteredClaims
}

// Principal returns the identity the claims describe.
func (c Claims) Principal() domain.Principal {
	role := c.Role
	if role == "" {
		role = domain.RoleUser
	}
	return domain.Principal{UserID: c.UserID, Email: c.Email, Role: role}
}

// Config holds the token verification parameters.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TokenTTL time.Duration
}

// JWT signs and verifies HS256 access tokens.
type JWT struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// New returns a JWT for cfg. The secret must be non-empty.
func New(cfg Config) (*JWT, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: empty jwt secret")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWT{secret: []byte(cfg.Secret), issuer: cfg.Issuer, audience: cfg.Audience, ttl: ttl}, nil
}

// Sign issues a token for claims, filling in issuer, audience and the
// validity window when unset.
func (j *JWT) Sign(claims Claims) (string, time.Time, error) {
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.ttl))
	}
	if claims.Issuer == "" {
		claims.Issuer = j.issuer
	}
	if len(claims.Audience) == 0 && j.audience != "" {
		claims.Audience = jwt.ClaimStrings{j.audience}
	}
	if claims.Subject == "" {
		claims.Subject = claims.UserID
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return s, claims.ExpiresAt.Time, nil
}

// Verify checks the signature, expiry, issuer and audience of token. Any
// failure is reported as domain.ErrUnauthorized.
func (j *JWT) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		opts = append(opts, jwt.WithAudience(j.audience))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("auth: %v: %w", err, domain.ErrUnauthorized)
	}
	if !parsed.Valid || claims.UserID == "" {
		return Claims{}, fmt.Errorf("auth: invalid token: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}
