package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/panel/domain"
	"github.com/opsdeck/opsdeck/internal/panel/service"
	"github.com/opsdeck/opsdeck/pkg/httpx"
	"github.com/opsdeck/opsdeck/pkg/slogx"
)

type InviteCreateHandler struct {
	InviteService *service.InviteService
}

// ServeHTTP mints an invite for an email/role pair. Admin only. The response
// carries the redemption link with the raw token, which is never stored.
func (h *InviteCreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req InviteCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Invalid JSON body",
		})
		return
	}
	if req.Email == "" || req.Role == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "email and role are required",
		})
		return
	}

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Authentication required",
		})
		return
	}

	invite, link, err := h.InviteService.CreateInvite(ctx, req.Email, domain.Role(req.Role), identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInviteRequest):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "Invalid email address",
			})
		case errors.Is(err, service.ErrInvalidRole):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "Invalid role",
			})
		case errors.Is(err, service.ErrEmailTaken):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "conflict",
				ErrorDescription: "A user with this email already exists",
			})
		case errors.Is(err, service.ErrInvitePending):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "conflict",
				ErrorDescription: "A pending invite already exists for this email",
			})
		default:
			log.Error("failed to create invite", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to create invite",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, InviteCreateResponse{
		Invite:     toInviteResponse(invite),
		InviteLink: link,
	})
}
