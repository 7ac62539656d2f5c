package mcp

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/GustheTrader/Build-flow/internal/domain/user"
	"github.com/GustheTrader/Build-flow/internal/middleware"
)

var errForbidden = errors.New("caller role may not run agents")

// guard authenticates requests with authn and admits reviewer roles. A nil
// authn leaves the endpoint open.
func guard(authn func(http.Handler) http.Handler, next http.Handler) http.Handler {
	if authn == nil {
		return next
	}
	return authn(middleware.RequireRole(user.ReviewerRoles...)(next))
}

// requireEditor rejects callers whose role may not execute agents.
// Contexts without a principal pass.
func requireEditor(ctx context.Context) error {
	p := middleware.PrincipalFromContext(ctx)
	if p != nil && !slices.Contains(user.EditorRoles, p.Role) {
		return errForbidden
	}
	return nil
}

// reviewer names the caller recorded on review decisions.
func reviewer(ctx context.Context) string {
	if p := middleware.PrincipalFromContext(ctx); p != nil {
		return p.Subject
	}
	return "mcp"
}
