package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/GustheTrader/Build-flow/internal/config"
	"github.com/GustheTrader/Build-flow/internal/domain"
	"github.com/GustheTrader/Build-flow/internal/domain/user"
	"github.com/GustheTrader/Build-flow/internal/port/kvstore"
)

const keyRevokedToken = "auth:revoked:"

// Claims are the JWT claims issued by the API.
type Claims struct {
	Role user.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies HS256 access tokens and checks API keys
// against the configured bcrypt hashes.
type AuthService struct {
	store  kvstore.Store
	cfg    config.Auth
	secret []byte
	now    func() time.Time

	// keyCache remembers the SHA-256 of API keys that already matched a
	// bcrypt hash, so each key pays the bcrypt cost once per process.
	keyCache sync.Map
}

// NewAuthService creates the auth service. store holds revoked token ids.
func NewAuthService(store kvstore.Store, cfg config.Auth) *AuthService {
	return &AuthService{
		store:  store,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		now:    time.Now,
	}
}

// IssueToken signs an access token for subject with the given role. A zero
// ttl uses the configured token TTL.
func (s *AuthService) IssueToken(subject string, role user.Role, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("issue token: jwt secret not configured: %w", domain.ErrValidation)
	}
	if subject == "" {
		return "", fmt.Errorf("issue token: subject is required: %w", domain.ErrValidation)
	}
	if !user.ValidRoles[role] {
		return "", fmt.Errorf("issue token: invalid role %q: %w", role, domain.ErrValidation)
	}
	if ttl <= 0 {
		ttl = s.cfg.TokenTTL
	}
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.cfg.JWTIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, issuer and expiry and returns the claims.
func (s *AuthService) ParseToken(tokenStr string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, fmt.Errorf("jwt auth not configured: %w", domain.ErrUnauthorized)
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.JWTIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w: %v", domain.ErrUnauthorized, err)
	}
	if !user.ValidRoles[claims.Role] {
		return nil, fmt.Errorf("invalid token role %q: %w", claims.Role, domain.ErrUnauthorized)
	}
	return claims, nil
}

// ValidateAccessToken parses the token and rejects revoked ones. The
// revocation lookup fails closed when the store is unavailable.
func (s *AuthService) ValidateAccessToken(ctx context.Context, tokenStr string) (*user.Principal, *Claims, error) {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return nil, nil, err
	}
	if claims.ID != "" {
		_, err := s.store.Get(ctx, keyRevokedToken+claims.ID)
		switch {
		case err == nil:
			return nil, nil, fmt.Errorf("token has been revoked: %w", domain.ErrUnauthorized)
		case !errors.Is(err, domain.ErrNotFound):
			slog.ErrorContext(ctx, "token revocation check failed, denying token", "jti", claims.ID, "error", err)
			return nil, nil, fmt.Errorf("unable to verify token status: %w", domain.ErrUnauthorized)
		}
	}
	return &user.Principal{Subject: claims.Subject, Role: claims.Role, Method: user.MethodJWT}, claims, nil
}

// RevokeToken blocks the token id until its natural expiry.
func (s *AuthService) RevokeToken(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return fmt.Errorf("revoke token: token has no id: %w", domain.ErrValidation)
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if left := claims.ExpiresAt.Sub(s.now()); left > ttl {
			ttl = left
		}
	}
	exp := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	if err := s.store.Set(ctx, keyRevokedToken+claims.ID, []byte(exp), ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	slog.InfoContext(ctx, "access token revoked", "jti", claims.ID, "subject", claims.Subject)
	return nil
}

// ValidateAPIKey compares rawKey against the configured bcrypt hashes. A
// matching key authenticates as an admin principal named after the hash
// position, e.g. "api-key-0".
func (s *AuthService) ValidateAPIKey(rawKey string) (*user.Principal, error) {
	if rawKey == "" {
		return nil, fmt.Errorf("empty api key: %w", domain.ErrUnauthorized)
	}
	fp := fingerprint(rawKey)
	if p, ok := s.keyCache.Load(fp); ok {
		principal := p.(user.Principal)
		return &principal, nil
	}
	for i, h := range s.cfg.APIKeyHashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(rawKey)) == nil {
			principal := user.Principal{Subject: "api-key-" + strconv.Itoa(i), Role: user.RoleAdmin, Method: user.MethodAPIKey}
			s.keyCache.Store(fp, principal)
			return &principal, nil
		}
	}
	return nil, fmt.Errorf("invalid api key: %w", domain.ErrUnauthorized)
}

// HashAPIKey returns the bcrypt hash to put in auth.api_key_hashes.
func HashAPIKey(rawKey string) (string, error) {
	if len(rawKey) < 16 {
		return "", fmt.Errorf("api key must be at least 16 characters: %w", domain.ErrValidation)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(h), nil
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
