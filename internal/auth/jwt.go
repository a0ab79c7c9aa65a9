// Package auth validates bearer tokens for the operator and admin APIs.
// Tokens are issued by an external identity provider sharing the HMAC
// secret; this service only verifies them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bissquit/status-garden/internal/domain"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrInvalidRole  = errors.New("token carries an unknown role")
)

// Config holds JWT verification settings.
type Config struct {
	SecretKey string
	// TokenDuration is used when issuing tokens (tests, local tooling).
	TokenDuration time.Duration
}

// Claims is the token payload. Subject carries the user ID.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HMAC-signed bearer tokens. It implements
// httputil.TokenValidator.
type Authenticator struct {
	config Config
}

func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{config: config}
}

// ValidateToken parses and verifies a token, returning the subject and role.
func (a *Authenticator) ValidateToken(_ context.Context, token string) (string, domain.Role, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.SecretKey), nil
	})
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	if !claims.Role.IsValid() {
		return "", "", ErrInvalidRole
	}
	return claims.Subject, claims.Role, nil
}

// IssueToken signs a token for the given user and role. Used by tests and
// local tooling; production tokens come from the identity provider.
func (a *Authenticator) IssueToken(userID string, role domain.Role) (string, error) {
	now := time.Now()
	duration := a.config.TokenDuration
	if duration == 0 {
		duration = time.Hour
	}

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
