package accounts

import (
	"github.com/go-chi/chi/v5"

	"github.com/faisal-mohamed/rfp/internal/rbac"
)

// MountRoutes registers the account routes. The service repeats the
// manage_users check for callers that bypass HTTP.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRoute(rbac.RouteUsers))
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/stats", h.Stats)
		r.Get("/{id}", h.Show)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}
