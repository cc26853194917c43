package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/pkg/httpx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

type LoginHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP authenticates an email/password pair and returns a session
// token. Unknown emails and wrong passwords produce the same response.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Invalid JSON body",
		})
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "email and password are required",
		})
		return
	}

	token, user, err := h.AuthService.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:            "invalid_credentials",
				ErrorDescription: "Invalid credentials",
			})
		case errors.Is(err, service.ErrAccountDeactivated):
			httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:            "account_deactivated",
				ErrorDescription: "Account is deactivated",
			})
		default:
			log.Error("login failed", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to log in",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}
