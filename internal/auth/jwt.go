package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "delivery-api"

// TokenManager issues and validates HS256 access tokens whose subject is the
// user ID.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Expiry returns the lifetime of issued tokens.
func (m *TokenManager) Expiry() time.Duration {
	return m.expiry
}

// Issue returns a signed access token for userID.
func (m *TokenManager) Issue(userID string) (string, error) {
	now := m.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Subject validates token and returns its subject.
func (m *TokenManager) Subject(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("parse access token: %w", err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", errors.New("invalid access token claims")
	}
	return claims.Subject, nil
}
