package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/GustheTrader/Build-flow/internal/adapter/memkv"
	"github.com/GustheTrader/Build-flow/internal/config"
	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/user"
)

func newTestAuth(t *testing.T, hashes ...string) *AuthService {
	t.Helper()
	return NewAuthService(memkv.New(), config.Auth{
		Enabled:      true,
		JWTSecret:    "test-secret-key-for-auth-service",
		JWTIssuer:    "buildflow",
		TokenTTL:     time.Hour,
		APIKeyHashes: hashes,
	})
}

func TestAuthService_IssueAndValidate(t *testing.T) {
	s := newTestAuth(t)
	tok, err := s.IssueToken("u-42", user.RoleReviewer, 0)
	if err != nil {
		t.Fatal(err)
	}
	p, claims, err := s.ValidateAccessToken(context.Background(), tok)
	if err != nil {
		t.Fatal(err)
	}
	if p.Subject != "u-42" || p.Role != user.RoleReviewer || p.Method != user.MethodJWT {
		t.Fatalf("principal = %+v", p)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) != time.Hour {
		t.Fatalf("expected configured ttl, claims = %+v", claims.RegisteredClaims)
	}
}

func TestAuthService_IssueTokenValidation(t *testing.T) {
	s := newTestAuth(t)
	tests := []struct {
		name    string
		subject string
		role    user.Role
	}{
		{"empty subject", "", user.RoleAdmin},
		{"bad role", "u1", user.Role("owner")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.IssueToken(tt.subject, tt.role, 0); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	s := newTestAuth(t)
	other := NewAuthService(memkv.New(), config.Auth{JWTSecret: "a-different-secret", JWTIssuer: "buildflow", TokenTTL: time.Hour})
	foreign, _ := other.IssueToken("u1", user.RoleAdmin, 0)

	wrongIssuer := NewAuthService(memkv.New(), config.Auth{JWTSecret: "test-secret-key-for-auth-service", JWTIssuer: "elsewhere", TokenTTL: time.Hour})
	misissued, _ := wrongIssuer.IssueToken("u1", user.RoleAdmin, 0)

	expiring := newTestAuth(t)
	expiring.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiring.IssueToken("u1", user.RoleAdmin, time.Minute)

	for name, tok := range map[string]string{
		"garbage":      "not.a.jwt",
		"wrong secret": foreign,
		"wrong issuer": misissued,
		"expired":      expired,
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.ValidateAccessToken(context.Background(), tok); !errors.Is(err, domain.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestAuthService_Revoke(t *testing.T) {
	s := newTestAuth(t)
	ctx := context.Background()
	tok, _ := s.IssueToken("u1", user.RoleAdmin, 0)
	_, claims, err := s.ValidateAccessToken(ctx, tok)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeToken(ctx, claims); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.ValidateAccessToken(ctx, tok); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("revoked token accepted: %v", err)
	}
}

func TestAuthService_APIKey(t *testing.T) {
	const key = "bf_live_0123456789abcdef"
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestAuth(t, "not-a-hash", string(h))

	p, err := s.ValidateAPIKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if p.Subject != "api-key-1" || p.Method != user.MethodAPIKey {
		t.Fatalf("principal = %+v", p)
	}
	// Second lookup is served from the fingerprint cache.
	if _, err := s.ValidateAPIKey(key); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateAPIKey("bf_live_wrong"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestHashAPIKey(t *testing.T) {
	if _, err := HashAPIKey("short"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for short key, got %v", err)
	}
	h, err := HashAPIKey("bf_live_0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("bf_live_0123456789abcdef")) != nil {
		t.Fatal("hash does not verify")
	}
}
