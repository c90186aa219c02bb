package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/faisal-mohamed/rfp/internal/platform/httpx"
	"github.com/faisal-mohamed/rfp/internal/rbac"
	"github.com/faisal-mohamed/rfp/internal/shared"
)

type bearerContextKey struct{}

// Middleware resolves the calling principal from a bearer token or the session.
type Middleware struct {
	Service  *Service
	Tokens   *TokenIssuer
	Sessions *shared.SessionManager
	Logger   *slog.Logger
}

// Authenticate places the caller's principal in the request context. Requests
// without credentials pass through anonymously; route guards decide whether
// that is acceptable.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var accountID string
		bearer, hasBearer := bearerToken(r)
		sess := shared.SessionFromContext(ctx)

		switch {
		case hasBearer:
			id, err := m.Tokens.Parse(bearer)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
				return
			}
			accountID = id
			ctx = context.WithValue(ctx, bearerContextKey{}, true)
		case sess != nil:
			accountID = sess.AccountID()
		}
		if accountID == "" {
			next.ServeHTTP(w, r)
			return
		}

		principal, err := m.Service.Resolve(ctx, accountID)
		switch {
		case errors.Is(err, ErrUnknownAccount):
			if hasBearer {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "account is no longer active")
				return
			}
			m.log().Info("dropping session of inactive account", slog.String("account_id", accountID))
			m.Sessions.Destroy(sess)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		case err != nil:
			m.log().Error("resolve principal", slog.String("account_id", accountID), slog.Any("error", err))
			httpx.RespondError(w, httpx.ErrUnavailable)
			return
		}

		next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(ctx, principal)))
	})
}

func (m Middleware) log() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// IsBearer reports whether the request was authenticated with a bearer token.
func IsBearer(ctx context.Context) bool {
	v, _ := ctx.Value(bearerContextKey{}).(bool)
	return v
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
