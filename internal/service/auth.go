package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"

	"github.com/cordobacasas/casas/internal/domain"
)

const adminSubject = "admin"

// AuthService handles admin login, logout, and session token operations.
type AuthService struct {
	passwordHash []byte
	jwtSecret    []byte
	ttl          time.Duration
	revoked      *expirable.LRU[string, struct{}]
}

// NewAuthService creates a new AuthService. passwordHash is a bcrypt hash of
// the admin password.
func NewAuthService(passwordHash, jwtSecret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		ttl:          ttl,
		// A revoked token only needs remembering until it would have expired.
		revoked: expirable.NewLRU[string, struct{}](0, nil, ttl),
	}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login verifies the admin password and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, password string) (string, *domain.AdminSession, error) {
	if password == "" {
		return "", nil, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", nil, domain.ErrUnauthorized
	}

	now := time.Now()
	session := &domain.AdminSession{
		ID:        uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	token, err := s.generateJWT(session)
	if err != nil {
		return "", nil, fmt.Errorf("generate jwt: %w", err)
	}
	return token, session, nil
}

// ValidateToken parses and validates a session token.
func (s *AuthService) ValidateToken(tokenString string) (*domain.AdminSession, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithSubject(adminSubject), jwt.WithExpirationRequired())
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	id, _ := claims["jti"].(string)
	if id == "" {
		return nil, domain.ErrUnauthorized
	}
	if s.revoked.Contains(id) {
		return nil, domain.ErrUnauthorized
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, domain.ErrUnauthorized
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, domain.ErrUnauthorized
	}

	return &domain.AdminSession{ID: id, IssuedAt: iat.Time, ExpiresAt: exp.Time}, nil
}

// Logout revokes the session so its token is no longer accepted.
func (s *AuthService) Logout(session *domain.AdminSession) {
	if session == nil || session.ID == "" {
		return
	}
	s.revoked.Add(session.ID, struct{}{})
}

func (s *AuthService) generateJWT(session *domain.AdminSession) (string, error) {
	claims := jwt.MapClaims{
		"sub": adminSubject,
		"jti": session.ID,
		"iat": session.IssuedAt.Unix(),
		"exp": session.ExpiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
