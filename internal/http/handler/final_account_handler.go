package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// FinalAccountHandler handles final accounts, their bills, sections and line items
type FinalAccountHandler struct {
	finalAccountService *service.FinalAccountService
	logger              *zap.Logger
}

// NewFinalAccountHandler creates a new FinalAccountHandler instance
func NewFinalAccountHandler(finalAccountService *service.FinalAccountService, logger *zap.Logger) *FinalAccountHandler {
	return &FinalAccountHandler{
		finalAccountService: finalAccountService,
		logger:              logger,
	}
}

// ListAccounts godoc
// @Summary List final accounts of a project
// @Tags FinalAccounts
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} domain.FinalAccount
// @Security BearerAuth
// @Router /projects/{id}/final-accounts [get]
func (h *FinalAccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	accounts, err := h.finalAccountService.ListAccounts(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list final accounts")
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// CreateAccount godoc
// @Summary Create a final account
// @Tags FinalAccounts
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.CreateFinalAccountRequest true "Final account"
// @Success 201 {object} domain.FinalAccount
// @Security BearerAuth
// @Router /projects/{id}/final-accounts [post]
func (h *FinalAccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.CreateFinalAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.finalAccountService.CreateAccount(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create final account")
		return
	}
	respondCreated(w, account, "Project")
}

// ListBills godoc
// @Summary List bills of a final account
// @Tags FinalAccounts
// @Produce json
// @Param id path string true "Final account ID"
// @Success 200 {array} domain.FinalAccountBill
// @Security BearerAuth
// @Router /final-accounts/{id}/bills [get]
func (h *FinalAccountHandler) ListBills(w http.ResponseWriter, r *http.Request) {
	accountID, ok := urlUUID(w, r, "id", "final account")
	if !ok {
		return
	}
	bills, err := h.finalAccountService.ListBills(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list bills")
		return
	}
	respondJSON(w, http.StatusOK, bills)
}

// CreateBill godoc
// @Summary Add a bill to a final account
// @Tags FinalAccounts
// @Accept json
// @Produce json
// @Param id path string true "Final account ID"
// @Param request body domain.CreateBillRequest true "Bill"
// @Success 201 {object} domain.FinalAccountBill
// @Security BearerAuth
// @Router /final-accounts/{id}/bills [post]
func (h *FinalAccountHandler) CreateBill(w http.ResponseWriter, r *http.Request) {
	accountID, ok := urlUUID(w, r, "id", "final account")
	if !ok {
		return
	}
	var req domain.CreateBillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bill, err := h.finalAccountService.CreateBill(r.Context(), accountID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create bill")
		return
	}
	respondCreated(w, bill, "Final account")
}

// ListSections godoc
// @Summary List sections of a bill
// @Tags FinalAccounts
// @Produce json
// @Param id path string true "Bill ID"
// @Success 200 {array} domain.FinalAccountSection
// @Security BearerAuth
// @Router /final-account-bills/{id}/sections [get]
func (h *FinalAccountHandler) ListSections(w http.ResponseWriter, r *http.Request) {
	billID, ok := urlUUID(w, r, "id", "bill")
	if !ok {
		return
	}
	sections, err := h.finalAccountService.ListSections(r.Context(), billID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list sections")
		return
	}
	respondJSON(w, http.StatusOK, sections)
}

// CreateSection godoc
// @Summary Add a section to a bill
// @Tags FinalAccounts
// @Accept json
// @Produce json
// @Param id path string true "Bill ID"
// @Param request body domain.CreateSectionRequest true "Section"
// @Success 201 {object} domain.FinalAccountSection
// @Security BearerAuth
// @Router /final-account-bills/{id}/sections [post]
func (h *FinalAccountHandler) CreateSection(w http.ResponseWriter, r *http.Request) {
	billID, ok := urlUUID(w, r, "id", "bill")
	if !ok {
		return
	}
	var req domain.CreateSectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	section, err := h.finalAccountService.CreateSection(r.Context(), billID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create section")
		return
	}
	respondCreated(w, section, "Bill")
}

// ListItems godoc
// @Summary List line items of a section
// @Tags FinalAccounts
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {array} domain.FinalAccountItem
// @Security BearerAuth
// @Router /final-account-sections/{id}/items [get]
func (h *FinalAccountHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := urlUUID(w, r, "id", "section")
	if !ok {
		return
	}
	items, err := h.finalAccountService.ListItems(r.Context(), sectionID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// CreateItem godoc
// @Summary Add a line item
// @Description The total is derived from the item type unless an explicit non-zero total is given
// @Tags FinalAccounts
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param request body domain.CreateItemRequest true "Item"
// @Success 201 {object} domain.FinalAccountItem
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Router /final-account-sections/{id}/items [post]
func (h *FinalAccountHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := urlUUID(w, r, "id", "section")
	if !ok {
		return
	}
	var req domain.CreateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.finalAccountService.CreateItem(r.Context(), sectionID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create item")
		return
	}
	respondCreated(w, item, "Section")
}

// GetItem godoc
// @Summary Get a line item
// @Tags FinalAccounts
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} domain.FinalAccountItem
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /final-account-items/{id} [get]
func (h *FinalAccountHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "item")
	if !ok {
		return
	}
	item, err := h.finalAccountService.GetItem(r.Context(), id)
	if err != nil {
		handleServiceError(w, h.logger, err, "get item")
		return
	}
	respondFound(w, item, "Item")
}

// UpdateItem godoc
// @Summary Update a line item
// @Tags FinalAccounts
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param request body domain.UpdateItemRequest true "Changes"
// @Success 200 {object} domain.FinalAccountItem
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /final-account-items/{id} [put]
func (h *FinalAccountHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "item")
	if !ok {
		return
	}
	var req domain.UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	item, err := h.finalAccountService.UpdateItem(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update item")
		return
	}
	respondFound(w, item, "Item")
}

// DeleteItem godoc
// @Summary Delete a line item
// @Tags FinalAccounts
// @Param id path string true "Item ID"
// @Success 204
// @Security BearerAuth
// @Router /final-account-items/{id} [delete]
func (h *FinalAccountHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "item")
	if !ok {
		return
	}
	deleted, err := h.finalAccountService.DeleteItem(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "item")
}

// Import godoc
// @Summary Import a bill of quantities
// @Description Accepts a boq_import v1 envelope and creates the bill, sections and items in one transaction
// @Tags FinalAccounts
// @Accept json
// @Produce json
// @Param id path string true "Final account ID"
// @Param request body domain.PayloadEnvelope true "Envelope"
// @Success 201 {object} domain.ImportResultDTO
// @Failure 400 {object} domain.ErrorResponse "Unsupported or malformed payload"
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /final-accounts/{id}/import [post]
func (h *FinalAccountHandler) Import(w http.ResponseWriter, r *http.Request) {
	accountID, ok := urlUUID(w, r, "id", "final account")
	if !ok {
		return
	}
	var env domain.PayloadEnvelope
	if !decodeBody(w, r, &env) {
		return
	}
	result, err := h.finalAccountService.Import(r.Context(), accountID, env)
	if err != nil {
		handleServiceError(w, h.logger, err, "import bill of quantities")
		return
	}
	respondCreated(w, result, "Final account")
}
