package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GustheTrader/Build-flow/internal/domain/user"
	"github.com/GustheTrader/Build-flow/internal/middleware"
)

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		role user.Role
		anon bool
		want int
	}{
		{"admin", user.RoleAdmin, false, http.StatusOK},
		{"manager", user.RoleManager, false, http.StatusOK},
		{"reviewer", user.RoleReviewer, false, http.StatusOK},
		{"viewer", user.RoleViewer, false, http.StatusForbidden},
		{"anonymous", "", true, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := middleware.RequireRole(user.ReviewerRoles...)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/hitl/x/approve", http.NoBody)
			if !tt.anon {
				req = req.WithContext(middleware.WithPrincipal(req.Context(), &user.Principal{Subject: "u", Role: tt.role}))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
