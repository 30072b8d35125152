package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aescanero/reelgen/internal/domain"
)

// Claims is the payload carried by reelgen bearer tokens
type Claims struct {
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 bearer tokens
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates a token service with the given signing secret and token lifetime
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue mints a signed token for the given user ID
func (s *Service) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("user ID is required")
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse verifies a token string and returns the user ID it carries
func (s *Service) Parse(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}

	return claims.Subject, nil
}

// TTL returns the configured token lifetime
func (s *Service) TTL() time.Duration {
	return s.ttl
}
