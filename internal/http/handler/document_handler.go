package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// DocumentHandler handles project document metadata
type DocumentHandler struct {
	documentService *service.DocumentService
	logger          *zap.Logger
}

// NewDocumentHandler creates a new DocumentHandler instance
func NewDocumentHandler(documentService *service.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

// List godoc
// @Summary List documents of a project
// @Description Client links only see the categories on their token
// @Tags Documents
// @Produce json
// @Param id path string true "Project ID"
// @Param category query string false "Filter by category"
// @Success 200 {array} domain.ProjectDocument
// @Security BearerAuth
// @Security PortalToken
// @Router /projects/{id}/documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	docs, err := h.documentService.List(r.Context(), projectID, r.URL.Query().Get("category"))
	if err != nil {
		handleServiceError(w, h.logger, err, "list documents")
		return
	}
	respondJSON(w, http.StatusOK, docs)
}

// Create godoc
// @Summary File document metadata
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.CreateDocumentRequest true "Document"
// @Success 201 {object} domain.ProjectDocument
// @Security BearerAuth
// @Router /projects/{id}/documents [post]
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.CreateDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.documentService.Create(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create document")
		return
	}
	respondCreated(w, doc, "Project")
}

// GetByID godoc
// @Summary Get document metadata
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} domain.ProjectDocument
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Security PortalToken
// @Router /documents/{id} [get]
func (h *DocumentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "document")
	if !ok {
		return
	}
	doc, err := h.documentService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get document")
		return
	}
	respondFound(w, doc, "Document")
}

// Delete godoc
// @Summary Delete document metadata
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Security BearerAuth
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "document")
	if !ok {
		return
	}
	deleted, err := h.documentService.Delete(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "document")
}
