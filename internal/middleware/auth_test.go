package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GustheTrader/Build-flow/internal/adapter/memkv"
	"github.com/GustheTrader/Build-flow/internal/config"
	"github.com/GustheTrader/Build-flow/internal/domain/user"
	"github.com/GustheTrader/Build-flow/internal/middleware"
	"github.com/GustheTrader/Build-flow/internal/service"
)

const testAPIKey = "bf_test_key_0123456789"

func newAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	hash, err := service.HashAPIKey(testAPIKey)
	if err != nil {
		t.Fatal(err)
	}
	return service.NewAuthService(memkv.New(), config.Auth{
		Enabled:      true,
		JWTSecret:    "test-secret-that-is-long-enough-32b",
		JWTIssuer:    "buildflow",
		TokenTTL:     time.Hour,
		APIKeyHashes: []string{hash},
	})
}

// principalEcho writes the authenticated principal as JSON.
func principalEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if p == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	})
}

func TestAuth(t *testing.T) {
	svc := newAuthService(t)
	token, err := svc.IssueToken("alice", user.RoleReviewer, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
		wantSub    string
		wantMethod user.AuthMethod
	}{
		{"bearer token", "/api/v1/projects", map[string]string{"Authorization": "Bearer " + token}, http.StatusOK, "alice", user.MethodJWT},
		{"api key", "/api/v1/projects", map[string]string{"X-API-Key": testAPIKey}, http.StatusOK, "api-key-0", user.MethodAPIKey},
		{"ws query token", "/ws?token=" + token, nil, http.StatusOK, "alice", user.MethodJWT},
		{"query token outside ws", "/api/v1/projects?token=" + token, nil, http.StatusUnauthorized, "", ""},
		{"missing credentials", "/api/v1/projects", nil, http.StatusUnauthorized, "", ""},
		{"bad token", "/api/v1/projects", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, "", ""},
		{"bad api key", "/api/v1/projects", map[string]string{"X-API-Key": "wrong-key-wrong-key"}, http.StatusUnauthorized, "", ""},
		{"empty bearer", "/api/v1/projects", map[string]string{"Authorization": "Bearer "}, http.StatusUnauthorized, "", ""},
		{"public health", "/health", nil, http.StatusNoContent, "", ""},
		{"public webhook", "/api/v1/webhooks/payments", nil, http.StatusNoContent, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.Auth(svc, true)(principalEcho())
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var p user.Principal
			if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
				t.Fatal(err)
			}
			if p.Subject != tt.wantSub || p.Method != tt.wantMethod {
				t.Fatalf("principal = %+v", p)
			}
		})
	}
}

func TestAuth_RevokedToken(t *testing.T) {
	svc := newAuthService(t)
	token, err := svc.IssueToken("alice", user.RoleViewer, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RevokeToken(t.Context(), claims); err != nil {
		t.Fatal(err)
	}

	h := middleware.Auth(svc, true)(principalEcho())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_Disabled(t *testing.T) {
	h := middleware.Auth(nil, false)(principalEcho())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/projects", http.NoBody))

	var p user.Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p != user.LocalAdmin {
		t.Fatalf("principal = %+v, want local admin", p)
	}
}

func TestAuth_ClaimsOnlyForJWT(t *testing.T) {
	svc := newAuthService(t)
	token, _ := svc.IssueToken("alice", user.RoleAdmin, time.Hour)

	var sawClaims bool
	h := middleware.Auth(svc, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		sawClaims = middleware.ClaimsFromContext(r.Context()) != nil
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !sawClaims {
		t.Fatal("expected claims for bearer auth")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/projects", http.NoBody)
	req.Header.Set("X-API-Key", testAPIKey)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if sawClaims {
		t.Fatal("expected no claims for api key auth")
	}
}
