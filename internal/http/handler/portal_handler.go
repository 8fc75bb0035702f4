package handler

import (
	"net/http"
	"strings"

	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// PortalHandler handles portal token issuance and validation
type PortalHandler struct {
	tokenService *service.PortalTokenService
	logger       *zap.Logger
}

// NewPortalHandler creates a new PortalHandler instance
func NewPortalHandler(tokenService *service.PortalTokenService, logger *zap.Logger) *PortalHandler {
	return &PortalHandler{
		tokenService: tokenService,
		logger:       logger,
	}
}

// Validate godoc
// @Summary Validate a portal link
// @Description Accepts the token secret or the short code. Invalid, revoked and expired links all report isValid=false.
// @Tags Portal
// @Accept json
// @Produce json
// @Param request body domain.ValidatePortalTokenRequest true "Credential"
// @Success 200 {object} domain.PortalValidationDTO
// @Failure 400 {object} domain.APIError
// @Failure 429 {object} domain.ErrorResponse
// @Router /portal/validate [post]
func (h *PortalHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req domain.ValidatePortalTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	credential := strings.TrimSpace(req.Token)
	if credential == "" {
		credential = strings.TrimSpace(req.Code)
	}

	result, err := h.tokenService.Validate(r.Context(), credential, auth.RequestMetaFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err, "validate portal token")
		return
	}
	respondJSON(w, http.StatusOK, result.ToDTO())
}

// List godoc
// @Summary List portal tokens of a project
// @Tags Portal
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} domain.PortalToken
// @Security BearerAuth
// @Router /projects/{id}/portal-tokens [get]
func (h *PortalHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	tokens, err := h.tokenService.List(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list portal tokens")
		return
	}
	respondJSON(w, http.StatusOK, tokens)
}

// Create godoc
// @Summary Issue a portal token
// @Description The plaintext secret is returned once and never stored
// @Tags Portal
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.CreatePortalTokenRequest true "Token"
// @Success 201 {object} domain.PortalTokenCreatedDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/portal-tokens [post]
func (h *PortalHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.CreatePortalTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	created, err := h.tokenService.Create(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create portal token")
		return
	}
	respondCreated(w, created, "Project")
}

// Revoke godoc
// @Summary Revoke a portal token
// @Tags Portal
// @Param id path string true "Token ID"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /portal-tokens/{id}/revoke [post]
func (h *PortalHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "portal token")
	if !ok {
		return
	}
	revoked, err := h.tokenService.Revoke(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "revoke portal token")
		return
	}
	if !revoked {
		respondWithError(w, http.StatusNotFound, "Portal token not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AccessLog godoc
// @Summary List recent uses of a portal token
// @Tags Portal
// @Produce json
// @Param id path string true "Token ID"
// @Success 200 {array} domain.PortalAccessLog
// @Security BearerAuth
// @Router /portal-tokens/{id}/access-log [get]
func (h *PortalHandler) AccessLog(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "portal token")
	if !ok {
		return
	}
	entries, err := h.tokenService.AccessLog(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "load portal access log")
		return
	}
	if entries == nil {
		respondWithError(w, http.StatusNotFound, "Portal token not found")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
