package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faisal-mohamed/rfp/internal/platform/httpx"
)

// PermissionsHandler exposes the permission model to the view layer.
type PermissionsHandler struct {
	logger *slog.Logger
	rbac   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny())
		r.Get("/", h.listRoles)
		r.Get("/me", h.showMine)
	})
}

type roleEntry struct {
	Role        Role         `json:"role"`
	Permissions []Permission `json:"permissions"`
}

type principalPermissions struct {
	Principal   Principal       `json:"principal"`
	Permissions []Permission    `json:"permissions"`
	Routes      map[string]bool `json:"routes"`
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	entries := make([]roleEntry, 0, len(allRoles))
	for _, role := range allRoles {
		perms, err := PermissionsFor(role)
		if err != nil {
			h.logger.Error("permissions for role", slog.String("role", role.String()), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		entries = append(entries, roleEntry{Role: role, Permissions: perms})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": entries})
}

func (h *PermissionsHandler) showMine(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	routes := make(map[string]bool, len(routePermissions))
	for _, key := range RouteKeys() {
		routes[key] = principal.CanAccessRoute(key)
	}
	httpx.JSON(w, http.StatusOK, principalPermissions{
		Principal:   principal,
		Permissions: principal.Permissions(),
		Routes:      routes,
	})
}
