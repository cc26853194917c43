package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/pkg/httpx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

type identityCtxKey struct{}

// IdentityFromContext returns the authenticated caller attached by the
// authn middleware. The second return is false on unauthenticated routes.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(domain.Identity)
	return identity, ok
}

// authn verifies the bearer token and resolves the live identity for the
// request. Every protected route goes through this, so role and status
// changes are picked up on the very next request.
func authn(auth *service.AuthService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error:            "unauthorized",
					ErrorDescription: "Authentication required",
				})
				return
			}

			identity, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrAccountDeactivated):
					httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
						Error:            "unauthorized",
						ErrorDescription: "Account is deactivated",
					})
				case errors.Is(err, service.ErrUnauthenticated):
					httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
						Error:            "unauthorized",
						ErrorDescription: "Invalid or expired session",
					})
				default:
					slogx.FromContext(r.Context()).Error("authentication failed", "err", err)
					httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
						Error:            "server_error",
						ErrorDescription: "Failed to authenticate request",
					})
				}
				return
			}

			ctx := context.WithValue(r.Context(), identityCtxKey{}, identity)
			// Also expose the user id for per-user rate limiting.
			ctx = context.WithValue(ctx, httpx.CtxKeyUserID, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole gates a route to the listed roles. It must run after authn.
func requireRole(auth *service.AuthService, allowed ...domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error:            "unauthorized",
					ErrorDescription: "Authentication required",
				})
				return
			}

			if err := auth.Authorize(identity, allowed...); err != nil {
				httpx.WriteJSON(w, http.StatusForbidden, ErrorResponse{
					Error:            "forbidden",
					ErrorDescription: "Insufficient permissions",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
