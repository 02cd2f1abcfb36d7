// Package auth issues and validates the bearer tokens that protect the
// dittosmb status API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// ScopeRead grants access to the read-only status endpoints.
const ScopeRead = "status:read"

// Claims are the claims carried by a status API token.
type Claims struct {
	jwt.RegisteredClaims

	Scope string `json:"scope"`
}

// JWTConfig holds configuration for token generation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer is the token issuer claim. Default: "dittosmb"
	Issuer string

	// TokenDuration is the default token lifetime. Default: 24h.
	TokenDuration time.Duration
}

// JWTService handles token generation and validation.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a JWT service with the given configuration.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = "dittosmb"
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = 24 * time.Hour
	}
	return &JWTService{config: config}, nil
}

// GenerateToken signs a read token for subject. A ttl of 0 uses the
// configured TokenDuration.
func (s *JWTService) GenerateToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if ttl == 0 {
		ttl = s.config.TokenDuration
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: ScopeRead,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, ErrTokenSigningFailed
	}
	return signed, expiresAt, nil
}

// ValidateToken checks signature, expiry, issuer and scope.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Scope != ScopeRead {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
