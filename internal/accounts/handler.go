package accounts

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/faisal-mohamed/rfp/internal/platform/db"
	"github.com/faisal-mohamed/rfp/internal/platform/httpx"
	"github.com/faisal-mohamed/rfp/internal/rbac"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Handler exposes the account lifecycle over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the account handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseListQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), principal(r), filter, page)
	if err != nil {
		h.fail(w, r, "list accounts failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get account failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Create(r.Context(), principal(r), req.draft())
	if err != nil {
		h.fail(w, r, "create account failed", err)
		return
	}
	h.logger.Info("account created", slog.String("account_id", acc.ID), slog.String("role", acc.Role.String()))
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Update(r.Context(), principal(r), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		h.fail(w, r, "update account failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.Delete(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "delete account failed", err)
		return
	}
	h.logger.Info("account deleted", slog.String("account_id", removed.ID))
	httpx.JSON(w, http.StatusOK, deleteAccountResponse{
		Message: fmt.Sprintf("account %s %s deleted", removed.FirstName, removed.LastName),
		Removed: removed,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, "account stats failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, statsResponse{Stats: stats, Roles: rbac.AllRoles()})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	level := slog.LevelInfo
	switch {
	case db.IsTransient(err):
		level = slog.LevelWarn
	case errorsIsUnexpected(err):
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}

func errorsIsUnexpected(err error) bool {
	switch outcome(err) {
	case "unavailable", "error":
		return true
	}
	return false
}

func principal(r *http.Request) rbac.Principal {
	p, _ := rbac.PrincipalFromContext(r.Context())
	return p
}

func parseListQuery(r *http.Request) (Filter, Page, error) {
	q := r.URL.Query()
	filter := Filter{Search: q.Get("search")}
	page := Page{Number: 1, Size: defaultPageSize}

	if raw := strings.TrimSpace(q.Get("role")); raw != "" && !strings.EqualFold(raw, "all") {
		role, err := rbac.ParseRole(raw)
		if err != nil {
			return Filter{}, Page{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		filter.Role = &role
	}
	switch strings.ToLower(strings.TrimSpace(q.Get("status"))) {
	case "", "all":
	case "active":
		active := true
		filter.Active = &active
	case "inactive":
		active := false
		filter.Active = &active
	default:
		return Filter{}, Page{}, fmt.Errorf("%w: status must be active, inactive or all", ErrInvalidInput)
	}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Filter{}, Page{}, fmt.Errorf("%w: page must be a positive integer", ErrInvalidInput)
		}
		page.Number = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Filter{}, Page{}, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidInput)
		}
		page.Size = min(n, maxPageSize)
	}
	return filter, page, nil
}
