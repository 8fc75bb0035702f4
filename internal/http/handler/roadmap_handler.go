package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// RoadmapHandler handles project milestones
type RoadmapHandler struct {
	roadmapService *service.RoadmapService
	logger         *zap.Logger
}

// NewRoadmapHandler creates a new RoadmapHandler instance
func NewRoadmapHandler(roadmapService *service.RoadmapService, logger *zap.Logger) *RoadmapHandler {
	return &RoadmapHandler{
		roadmapService: roadmapService,
		logger:         logger,
	}
}

// List godoc
// @Summary List milestones of a project
// @Tags Roadmap
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} domain.RoadmapItem
// @Security BearerAuth
// @Security PortalToken
// @Router /projects/{id}/roadmap [get]
func (h *RoadmapHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	items, err := h.roadmapService.List(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list roadmap")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// Create godoc
// @Summary Add a milestone
// @Tags Roadmap
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.CreateRoadmapItemRequest true "Milestone"
// @Success 201 {object} domain.RoadmapItem
// @Security BearerAuth
// @Router /projects/{id}/roadmap [post]
func (h *RoadmapHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.CreateRoadmapItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.roadmapService.Create(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create milestone")
		return
	}
	respondCreated(w, item, "Project")
}

// Update godoc
// @Summary Update a milestone
// @Tags Roadmap
// @Accept json
// @Produce json
// @Param id path string true "Milestone ID"
// @Param request body domain.UpdateRoadmapItemRequest true "Changes"
// @Success 200 {object} domain.RoadmapItem
// @Security BearerAuth
// @Router /roadmap/{id} [put]
func (h *RoadmapHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "milestone")
	if !ok {
		return
	}
	var req domain.UpdateRoadmapItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.roadmapService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update milestone")
		return
	}
	respondFound(w, item, "Milestone")
}

// Delete godoc
// @Summary Delete a milestone
// @Tags Roadmap
// @Param id path string true "Milestone ID"
// @Success 204
// @Security BearerAuth
// @Router /roadmap/{id} [delete]
func (h *RoadmapHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "milestone")
	if !ok {
		return
	}
	deleted, err := h.roadmapService.Delete(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "milestone")
}
