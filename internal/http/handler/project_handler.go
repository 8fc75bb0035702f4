package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// ProjectHandler handles projects and their memberships
type ProjectHandler struct {
	projectService *service.ProjectService
	memberService  *service.MemberService
	logger         *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler instance
func NewProjectHandler(projectService *service.ProjectService, memberService *service.MemberService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		memberService:  memberService,
		logger:         logger,
	}
}

// List godoc
// @Summary List projects
// @Description Projects the caller created, is a member of, or holds a portal link for
// @Tags Projects
// @Produce json
// @Success 200 {array} domain.Project
// @Security BearerAuth
// @Security PortalToken
// @Router /projects [get]
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projectService.List(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err, "list projects")
		return
	}
	respondJSON(w, http.StatusOK, projects)
}

// Create godoc
// @Summary Create a project
// @Description The caller becomes the project's owner
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body domain.CreateProjectRequest true "Project"
// @Success 201 {object} domain.Project
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /projects [post]
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	project, err := h.projectService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create project")
		return
	}
	if project == nil {
		respondWithError(w, http.StatusUnauthorized, "A user session is required to create projects")
		return
	}
	respondJSON(w, http.StatusCreated, project)
}

// GetByID godoc
// @Summary Get a project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} domain.Project
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Security PortalToken
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	project, err := h.projectService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get project")
		return
	}
	respondFound(w, project, "Project")
}

// Update godoc
// @Summary Update a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.UpdateProjectRequest true "Changes"
// @Success 200 {object} domain.Project
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.UpdateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	project, err := h.projectService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update project")
		return
	}
	respondFound(w, project, "Project")
}

// Delete godoc
// @Summary Delete a project
// @Tags Projects
// @Param id path string true "Project ID"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	deleted, err := h.projectService.Delete(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "project")
}

// ListMembers godoc
// @Summary List project members
// @Tags Members
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} domain.ProjectMember
// @Security BearerAuth
// @Router /projects/{id}/members [get]
func (h *ProjectHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	members, err := h.memberService.List(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list members")
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// AddMember godoc
// @Summary Add a member to a project
// @Tags Members
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.AddMemberRequest true "Member"
// @Success 201 {object} domain.ProjectMember
// @Failure 404 {object} domain.ErrorResponse
// @Failure 422 {object} domain.ErrorResponse "Position already held"
// @Security BearerAuth
// @Router /projects/{id}/members [post]
func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.AddMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	member, err := h.memberService.Add(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "add member")
		return
	}
	respondCreated(w, member, "Project")
}

// AssignPosition godoc
// @Summary Set or clear a member's engineering position
// @Description Primary, secondary and admin positions are held by at most one member per project
// @Tags Members
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param memberId path string true "Member ID"
// @Param request body domain.AssignPositionRequest true "Position"
// @Success 200 {object} domain.ProjectMember
// @Failure 404 {object} domain.ErrorResponse
// @Failure 422 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/members/{memberId}/position [put]
func (h *ProjectHandler) AssignPosition(w http.ResponseWriter, r *http.Request) {
	memberID, ok := urlUUID(w, r, "memberId", "member")
	if !ok {
		return
	}
	var req domain.AssignPositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	member, err := h.memberService.AssignPosition(r.Context(), memberID, req.Position)
	if err != nil {
		handleServiceError(w, h.logger, err, "assign position")
		return
	}
	respondFound(w, member, "Member")
}

// RemoveMember godoc
// @Summary Remove a member from a project
// @Tags Members
// @Param id path string true "Project ID"
// @Param memberId path string true "Member ID"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/members/{memberId} [delete]
func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	memberID, ok := urlUUID(w, r, "memberId", "member")
	if !ok {
		return
	}
	removed, err := h.memberService.Remove(r.Context(), memberID)
	respondDeleted(w, h.logger, removed, err, "member")
}
