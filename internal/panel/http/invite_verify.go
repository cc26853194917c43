package http

import (
	"errors"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/pkg/httpx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

type InviteVerifyHandler struct {
	InviteService *service.InviteService
}

// ServeHTTP checks an invite token before the registration form is shown.
// Public endpoint; unknown, consumed, and expired tokens get distinct errors.
func (h *InviteVerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token := r.URL.Query().Get("token")
	if token == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "token is required",
		})
		return
	}

	invite, err := h.InviteService.VerifyInvite(ctx, token)
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
		default:
			log.Error("failed to verify invite", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to verify invite",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, InviteVerifyResponse{
		Email: invite.Email,
		Role:  invite.Role.String(),
	})
}
