// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/models"
)

// Token errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// TokenConfig contains configuration for the token service.
type TokenConfig struct {
	// Secret is the HMAC signing key (required).
	Secret string

	// Issuer is the token issuer claim.
	Issuer string

	// TokenTTL is the token lifetime. Tokens are bound to sessions, so the
	// TTL should not exceed the session lifetime.
	TokenTTL time.Duration

	// TokenIDGenerator generates unique token IDs (default: UUID).
	TokenIDGenerator func() string
}

// DefaultTokenConfig returns default token configuration.
func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret:   secret,
		Issuer:   "secanalyzer",
		TokenTTL: 15 * time.Minute,
		TokenIDGenerator: func() string {
			return uuid.New().String()
		},
	}
}

// Claims are the JWT claims carried by operator access tokens. The session ID
// is authoritative: the claims are a transport, not a source of truth, and
// every request still validates the referenced session.
type Claims struct {
	SessionID string        `json:"session_id"`
	UserID    string        `json:"user_id"`
	Username  string        `json:"username"`
	Roles     []models.Role `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService signs and validates session-bound access tokens.
type TokenService struct {
	mu     sync.RWMutex
	config TokenConfig
}

// NewTokenService creates a token service.
func NewTokenService(config TokenConfig) *TokenService {
	if config.Secret == "" {
		panic("session: token secret is required")
	}
	if config.Issuer == "" {
		config.Issuer = "secanalyzer"
	}
	if config.TokenTTL == 0 {
		config.TokenTTL = 15 * time.Minute
	}
	if config.TokenIDGenerator == nil {
		config.TokenIDGenerator = func() string {
			return uuid.New().String()
		}
	}

	return &TokenService{config: config}
}

// UpdateSecret replaces the signing secret for key rotation.
// Thread-safe with respect to concurrent generation and validation.
func (s *TokenService) UpdateSecret(secret string) {
	s.mu.Lock()
	s.config.Secret = secret
	s.mu.Unlock()
}

// Generate signs an access token for the given security context.
func (s *TokenService) Generate(sctx *models.SecurityContext) (string, time.Time, error) {
	s.mu.RLock()
	secret := s.config.Secret
	ttl := s.config.TokenTTL
	issuer := s.config.Issuer
	tokenIDGen := s.config.TokenIDGenerator
	s.mu.RUnlock()

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	if expiresAt.After(sctx.ExpiresAt) {
		expiresAt = sctx.ExpiresAt
	}

	claims := &Claims{
		SessionID: sctx.SessionID.String(),
		UserID:    sctx.UserID,
		Username:  sctx.Username,
		Roles:     sctx.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenIDGen(),
			Issuer:    issuer,
			Subject:   sctx.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate verifies an access token and returns its claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	s.mu.RLock()
	secret := s.config.Secret
	s.mu.RUnlock()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, mapTokenError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// SessionID extracts the bound session ID from a valid token.
func (s *TokenService) SessionID(tokenString string) (uuid.UUID, error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.SessionID)
}

// mapTokenError maps jwt library errors to package errors.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	default:
		return ErrInvalidToken
	}
}
