package rbac

import (
	"log/slog"
	"net/http"

	"github.com/faisal-mohamed/rfp/internal/platform/httpx"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. It relies on the
// authentication layer having placed a Principal in the request context.
type Middleware struct {
	Logger *slog.Logger
}

// RequireAny ensures the current principal holds at least one of the required permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return m.require("require any", func(p Principal) bool {
		return len(perms) == 0 || p.HasAny(perms...)
	})
}

// RequireAll ensures the current principal holds all required permissions.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	return m.require("require all", func(p Principal) bool {
		return p.HasAll(perms...)
	})
}

// RequireRoute guards a handler with the route table entry for key.
func (m Middleware) RequireRoute(key string) func(http.Handler) http.Handler {
	return m.require("require route", func(p Principal) bool {
		return p.CanAccessRoute(key)
	})
}

func (m Middleware) require(check string, allowed func(Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !allowed(principal) {
				if m.Logger != nil {
					m.Logger.Warn("rbac "+check+" denied",
						slog.String("principal", principal.ID),
						slog.String("role", principal.Role.String()),
						slog.String("path", r.URL.Path))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing required permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
