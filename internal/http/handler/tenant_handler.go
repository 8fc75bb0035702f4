package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// TenantHandler handles the tenant schedule of a project
type TenantHandler struct {
	tenantService *service.TenantService
	logger        *zap.Logger
}

// NewTenantHandler creates a new TenantHandler instance
func NewTenantHandler(tenantService *service.TenantService, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{
		tenantService: tenantService,
		logger:        logger,
	}
}

// List godoc
// @Summary List tenants of a project
// @Tags Tenants
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} domain.Tenant
// @Security BearerAuth
// @Security PortalToken
// @Router /projects/{id}/tenants [get]
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	tenants, err := h.tenantService.List(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list tenants")
		return
	}
	respondJSON(w, http.StatusOK, tenants)
}

// Create godoc
// @Summary Add a tenant
// @Description Bumps the project's tenant schedule version and notifies the other members
// @Tags Tenants
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.CreateTenantRequest true "Tenant"
// @Success 201 {object} domain.Tenant
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/tenants [post]
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.CreateTenantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tenant, err := h.tenantService.Create(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create tenant")
		return
	}
	respondCreated(w, tenant, "Project")
}

// Update godoc
// @Summary Update a tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param request body domain.UpdateTenantRequest true "Changes"
// @Success 200 {object} domain.Tenant
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /tenants/{id} [put]
func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "tenant")
	if !ok {
		return
	}
	var req domain.UpdateTenantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tenant, err := h.tenantService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update tenant")
		return
	}
	respondFound(w, tenant, "Tenant")
}

// Delete godoc
// @Summary Delete a tenant
// @Tags Tenants
// @Param id path string true "Tenant ID"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /tenants/{id} [delete]
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "tenant")
	if !ok {
		return
	}
	deleted, err := h.tenantService.Delete(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "tenant")
}
