package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongType    = errors.New("unexpected token type")
)

// Claims carries the token subject (user email or id) and its type.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Manager signs and validates session tokens.
type Manager struct {
	secretKey       string
	accessDuration  time.Duration
	refreshDuration time.Duration
}

// NewManager creates a token manager.
func NewManager(secretKey string, accessDuration, refreshDuration time.Duration) *Manager {
	return &Manager{
		secretKey:       secretKey,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
	}
}

// GenerateAccessToken mints a short-lived access token for the subject.
func (m *Manager) GenerateAccessToken(subject string) (string, error) {
	return m.generate(subject, TypeAccess, m.accessDuration)
}

// GenerateRefreshToken mints a long-lived refresh token for the subject.
func (m *Manager) GenerateRefreshToken(subject string) (string, error) {
	return m.generate(subject, TypeRefresh, m.refreshDuration)
}

func (m *Manager) generate(subject, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Validate checks signature and expiry and returns the claims.
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateType validates the token and additionally checks its declared type.
// Refresh minting uses this so an access token cannot be replayed as a
// refresh token.
func (m *Manager) ValidateType(tokenString, wantType string) (*Claims, error) {
	claims, err := m.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != wantType {
		return nil, ErrWrongType
	}
	return claims, nil
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.accessDuration
}

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration {
	return m.refreshDuration
}
