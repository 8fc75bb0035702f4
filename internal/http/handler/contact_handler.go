package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// ContactHandler handles HTTP requests for the contact directory
type ContactHandler struct {
	contactService *service.ContactService
	logger         *zap.Logger
}

// NewContactHandler creates a new ContactHandler
func NewContactHandler(contactService *service.ContactService, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
		logger:         logger,
	}
}

// List godoc
// @Summary List contacts
// @Description Get paginated list of contacts, optionally searched by name, company or email
// @Tags Contacts
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page" default(20)
// @Param search query string false "Search by name, company or email"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.Contact}
// @Security BearerAuth
// @Router /contacts [get]
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	result, err := h.contactService.List(r.Context(), page, pageSize, r.URL.Query().Get("search"))
	if err != nil {
		handleServiceError(w, h.logger, err, "list contacts")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Param request body domain.CreateContactRequest true "Contact"
// @Success 201 {object} domain.Contact
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /contacts [post]
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateContactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	contact, err := h.contactService.Create(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create contact")
		return
	}
	if contact == nil {
		respondWithError(w, http.StatusUnauthorized, "A user session is required to add contacts")
		return
	}
	respondJSON(w, http.StatusCreated, contact)
}

// GetByID godoc
// @Summary Get contact
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact ID"
// @Success 200 {object} domain.Contact
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /contacts/{id} [get]
func (h *ContactHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "contact")
	if !ok {
		return
	}
	contact, err := h.contactService.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get contact")
		return
	}
	respondFound(w, contact, "Contact")
}

// Update godoc
// @Summary Update contact
// @Tags Contacts
// @Accept json
// @Produce json
// @Param id path string true "Contact ID"
// @Param request body domain.UpdateContactRequest true "Changes"
// @Success 200 {object} domain.Contact
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /contacts/{id} [put]
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "contact")
	if !ok {
		return
	}
	var req domain.UpdateContactRequest
	if !decodeBody(w, r, &req) {
		return
	}
	contact, err := h.contactService.Update(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update contact")
		return
	}
	respondFound(w, contact, "Contact")
}

// Delete godoc
// @Summary Delete contact
// @Description Admins only
// @Tags Contacts
// @Param id path string true "Contact ID"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /contacts/{id} [delete]
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "contact")
	if !ok {
		return
	}
	deleted, err := h.contactService.Delete(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "contact")
}
