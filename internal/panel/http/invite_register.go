package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/pkg/httpx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

type RegisterHandler struct {
	InviteService *service.InviteService
	AuthService   *service.AuthService
}

// ServeHTTP redeems an invite and creates the account it promised, then
// logs the new user straight in.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Invalid JSON body",
		})
		return
	}
	if req.Token == "" || req.Name == "" || req.Password == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "token, name, and password are required",
		})
		return
	}

	user, err := h.InviteService.RegisterViaInvite(ctx, req.Token, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInviteNotFound):
			httpx.WriteJSON(w, http.StatusNotFound, ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "Invalid invite token",
			})
		case errors.Is(err, service.ErrInviteAlreadyUsed):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "invite_used",
				ErrorDescription: "Invite has already been used",
			})
		case errors.Is(err, service.ErrInviteExpired):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "invite_expired",
				ErrorDescription: "Invite has expired",
			})
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "conflict",
				ErrorDescription: "A user with this email already exists",
			})
		case errors.Is(err, service.ErrInvalidInviteRequest):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "Invalid registration details",
			})
		default:
			log.Error("failed to register via invite", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to register",
			})
		}
		return
	}

	// Issue a session immediately so the frontend can skip the login form.
	token, _, err := h.AuthService.Login(ctx, user.Email, req.Password)
	if err != nil {
		log.Error("failed to log in freshly registered user", "err", err)
		httpx.WriteJSON(w, http.StatusCreated, LoginResponse{User: toUserResponse(user)})
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, LoginResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}
