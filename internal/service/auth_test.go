package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cordobacasas/casas/internal/domain"
	"github.com/cordobacasas/casas/internal/service"
)

const (
	testJWTSecret     = "test-secret-key-for-unit-tests-0123456789"
	testAdminPassword = "password123"
)

func newTestAuthService(t *testing.T, ttl time.Duration) *service.AuthService {
	t.Helper()
	// Use cost 4 for fast tests.
	hash, err := service.HashPassword(testAdminPassword, 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return service.NewAuthService(hash, testJWTSecret, ttl)
}

func TestAuthService_Login_Success(t *testing.T) {
	auth := newTestAuthService(t, time.Hour)

	token, session, err := auth.Login(context.Background(), testAdminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" || session.ID == "" {
		t.Fatal("expected a token and a session id")
	}
	if !session.ExpiresAt.After(session.IssuedAt) {
		t.Fatalf("expected expiry after issue time, got %v / %v", session.IssuedAt, session.ExpiresAt)
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	auth := newTestAuthService(t, time.Hour)

	_, _, err := auth.Login(context.Background(), "wrongpassword")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_Login_EmptyPassword(t *testing.T) {
	auth := newTestAuthService(t, time.Hour)

	_, _, err := auth.Login(context.Background(), "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	if _, err := service.HashPassword("short", 4); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAuthService_JWT_GenerateAndValidate(t *testing.T) {
	auth := newTestAuthService(t, time.Hour)

	token, session, err := auth.Login(context.Background(), testAdminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.ID != session.ID {
		t.Fatalf("expected session %s, got %s", session.ID, got.ID)
	}
	if got.Expired(time.Now()) {
		t.Fatal("expected fresh session not to be expired")
	}
}

func TestAuthService_JWT_InvalidToken(t *testing.T) {
	auth := newTestAuthService(t, time.Hour)

	_, err := auth.ValidateToken("not-a-valid-jwt")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_JWT_TamperedToken(t *testing.T) {
	auth := newTestAuthService(t, time.Hour)

	token, _, err := auth.Login(context.Background(), testAdminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Tamper with the token by flipping several characters in the signature.
	tampered := token[:len(token)-5] + "XXXXX"
	_, err = auth.ValidateToken(tampered)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for tampered token, got %v", err)
	}
}

func TestAuthService_JWT_WrongSecret(t *testing.T) {
	auth1 := newTestAuthService(t, time.Hour)

	token, _, err := auth1.Login(context.Background(), testAdminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	hash, _ := service.HashPassword(testAdminPassword, 4)
	auth2 := service.NewAuthService(hash, "a-completely-different-secret-value!!", time.Hour)

	_, err = auth2.ValidateToken(token)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong secret, got %v", err)
	}
}

func TestAuthService_Logout_RevokesToken(t *testing.T) {
	auth := newTestAuthService(t, time.Hour)

	token, session, err := auth.Login(context.Background(), testAdminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	auth.Logout(session)

	if _, err := auth.ValidateToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after logout, got %v", err)
	}

	// Other sessions stay valid.
	other, _, err := auth.Login(context.Background(), testAdminPassword)
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if _, err := auth.ValidateToken(other); err != nil {
		t.Fatalf("expected second session valid, got %v", err)
	}
}

func TestAuthService_ExpiredToken(t *testing.T) {
	auth := newTestAuthService(t, time.Second)

	token, _, err := auth.Login(context.Background(), testAdminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	time.Sleep(2100 * time.Millisecond)

	if _, err := auth.ValidateToken(token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}
