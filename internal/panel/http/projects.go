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

type ProjectsHandler struct {
	ProjectService *service.ProjectService
}

// HandleList returns all live projects, newest first.
func (h *ProjectsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projects, err := h.ProjectService.ListProjects(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to list projects", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to list projects",
		})
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet returns a single project. Soft-deleted projects read as missing.
func (h *ProjectsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	project, err := h.ProjectService.GetProject(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			httpx.WriteJSON(w, http.StatusNotFound, ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "Project not found",
			})
			return
		}
		slogx.FromContext(ctx).Error("failed to fetch project", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to fetch project",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toProjectResponse(project))
}

// HandleCreate records a new project owned by the caller.
func (h *ProjectsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:            "unauthorized",
			ErrorDescription: "Authentication required",
		})
		return
	}

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Invalid JSON body",
		})
		return
	}

	project, err := h.ProjectService.CreateProject(ctx, identity.UserID, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, service.ErrInvalidProjectRequest) {
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "name is required",
			})
			return
		}
		log.Error("failed to create project", "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:            "server_error",
			ErrorDescription: "Failed to create project",
		})
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toProjectResponse(project))
}

// HandleUpdate edits name, description, and status of a live project.
func (h *ProjectsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "Invalid JSON body",
		})
		return
	}
	status := domain.ProjectStatus(req.Status)
	if req.Status == "" {
		status = domain.ProjectActive
	}

	project, err := h.ProjectService.UpdateProject(ctx, r.PathValue("id"), req.Name, req.Description, status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidProjectRequest):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "invalid_request",
				ErrorDescription: "Invalid project fields",
			})
		case errors.Is(err, service.ErrProjectNotFound):
			httpx.WriteJSON(w, http.StatusNotFound, ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "Project not found",
			})
		case errors.Is(err, service.ErrProjectDeleted):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "conflict",
				ErrorDescription: "Project has been deleted",
			})
		default:
			log.Error("failed to update project", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to update project",
			})
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toProjectResponse(project))
}

// HandleDelete soft-deletes a project. Admin only.
func (h *ProjectsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.ProjectService.DeleteProject(ctx, r.PathValue("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrProjectNotFound):
			httpx.WriteJSON(w, http.StatusNotFound, ErrorResponse{
				Error:            "not_found",
				ErrorDescription: "Project not found",
			})
		case errors.Is(err, service.ErrProjectDeleted):
			httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:            "conflict",
				ErrorDescription: "Project has already been deleted",
			})
		default:
			slogx.FromContext(ctx).Error("failed to delete project", "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
				Error:            "server_error",
				ErrorDescription: "Failed to delete project",
			})
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
