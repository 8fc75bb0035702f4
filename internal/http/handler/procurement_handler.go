package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// ProcurementHandler handles procurement items and deliveries
type ProcurementHandler struct {
	procurementService *service.ProcurementService
	logger             *zap.Logger
}

// NewProcurementHandler creates a new ProcurementHandler instance
func NewProcurementHandler(procurementService *service.ProcurementService, logger *zap.Logger) *ProcurementHandler {
	return &ProcurementHandler{
		procurementService: procurementService,
		logger:             logger,
	}
}

// ListItems godoc
// @Summary List procurement items of a project
// @Tags Procurement
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} domain.ProcurementItem
// @Security BearerAuth
// @Security PortalToken
// @Router /projects/{id}/procurement [get]
func (h *ProcurementHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	items, err := h.procurementService.ListItems(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list procurement items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// CreateItem godoc
// @Summary Add a procurement item
// @Tags Procurement
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.CreateProcurementItemRequest true "Item"
// @Success 201 {object} domain.ProcurementItem
// @Security BearerAuth
// @Router /projects/{id}/procurement [post]
func (h *ProcurementHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.CreateProcurementItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.procurementService.CreateItem(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create procurement item")
		return
	}
	respondCreated(w, item, "Project")
}

// GetItem godoc
// @Summary Get a procurement item
// @Tags Procurement
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} domain.ProcurementItem
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Security PortalToken
// @Router /procurement/{id} [get]
func (h *ProcurementHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "procurement item")
	if !ok {
		return
	}
	item, err := h.procurementService.GetItem(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get procurement item")
		return
	}
	respondFound(w, item, "Procurement item")
}

// UpdateItem godoc
// @Summary Update a procurement item
// @Description Status changes are recorded in the item's history; delivery completes the linked milestone.
// @Description Contractor links may only set orderDate and expectedDeliveryDate.
// @Tags Procurement
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param request body domain.UpdateProcurementItemRequest true "Changes"
// @Success 200 {object} domain.ProcurementItem
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Security PortalToken
// @Router /procurement/{id} [put]
func (h *ProcurementHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "procurement item")
	if !ok {
		return
	}
	var req domain.UpdateProcurementItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.procurementService.UpdateItem(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update procurement item")
		return
	}
	respondFound(w, item, "Procurement item")
}

// DeleteItem godoc
// @Summary Delete a procurement item
// @Tags Procurement
// @Param id path string true "Item ID"
// @Success 204
// @Security BearerAuth
// @Router /procurement/{id} [delete]
func (h *ProcurementHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "procurement item")
	if !ok {
		return
	}
	deleted, err := h.procurementService.DeleteItem(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "procurement item")
}

// History godoc
// @Summary List status transitions of a procurement item
// @Tags Procurement
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {array} domain.ProcurementHistoryDTO
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /procurement/{id}/history [get]
func (h *ProcurementHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "procurement item")
	if !ok {
		return
	}
	history, err := h.procurementService.History(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "list procurement history")
		return
	}
	if history == nil {
		respondWithError(w, http.StatusNotFound, "Procurement item not found")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// ListDeliveries godoc
// @Summary List deliveries of a procurement item
// @Tags Procurement
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {array} domain.ProcurementDelivery
// @Security BearerAuth
// @Security PortalToken
// @Router /procurement/{id}/deliveries [get]
func (h *ProcurementHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "procurement item")
	if !ok {
		return
	}
	deliveries, err := h.procurementService.ListDeliveries(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "list deliveries")
		return
	}
	respondJSON(w, http.StatusOK, deliveries)
}

// CreateDelivery godoc
// @Summary Confirm a delivery
// @Tags Procurement
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param request body domain.CreateDeliveryRequest true "Delivery"
// @Success 201 {object} domain.ProcurementDelivery
// @Security BearerAuth
// @Security PortalToken
// @Router /procurement/{id}/deliveries [post]
func (h *ProcurementHandler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "procurement item")
	if !ok {
		return
	}
	var req domain.CreateDeliveryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	delivery, err := h.procurementService.CreateDelivery(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create delivery")
		return
	}
	respondCreated(w, delivery, "Procurement item")
}
