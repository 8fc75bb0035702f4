package handler

import (
	"net/http"

	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// CableHandler handles cable schedules and their entries
type CableHandler struct {
	cableService *service.CableService
	logger       *zap.Logger
}

// NewCableHandler creates a new CableHandler instance
func NewCableHandler(cableService *service.CableService, logger *zap.Logger) *CableHandler {
	return &CableHandler{
		cableService: cableService,
		logger:       logger,
	}
}

// ListSchedules godoc
// @Summary List cable schedules of a project
// @Tags Cables
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {array} domain.CableSchedule
// @Security BearerAuth
// @Security PortalToken
// @Router /projects/{id}/cable-schedules [get]
func (h *CableHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	schedules, err := h.cableService.ListSchedules(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list cable schedules")
		return
	}
	respondJSON(w, http.StatusOK, schedules)
}

// CreateSchedule godoc
// @Summary Create a cable schedule
// @Tags Cables
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body domain.CreateCableScheduleRequest true "Schedule"
// @Success 201 {object} domain.CableSchedule
// @Security BearerAuth
// @Router /projects/{id}/cable-schedules [post]
func (h *CableHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	var req domain.CreateCableScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	schedule, err := h.cableService.CreateSchedule(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create cable schedule")
		return
	}
	respondCreated(w, schedule, "Project")
}

// ListEntries godoc
// @Summary List entries of a cable schedule
// @Tags Cables
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {array} domain.CableEntry
// @Security BearerAuth
// @Security PortalToken
// @Router /cable-schedules/{id}/entries [get]
func (h *CableHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := urlUUID(w, r, "id", "schedule")
	if !ok {
		return
	}
	entries, err := h.cableService.ListEntries(r.Context(), scheduleID)
	if err != nil {
		handleServiceError(w, h.logger, err, "list cable entries")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// CreateEntry godoc
// @Summary Add a cable entry
// @Tags Cables
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param request body domain.CreateCableEntryRequest true "Entry"
// @Success 201 {object} domain.CableEntry
// @Security BearerAuth
// @Router /cable-schedules/{id}/entries [post]
func (h *CableHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	scheduleID, ok := urlUUID(w, r, "id", "schedule")
	if !ok {
		return
	}
	var req domain.CreateCableEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.cableService.CreateEntry(r.Context(), scheduleID, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "create cable entry")
		return
	}
	respondCreated(w, entry, "Schedule")
}

// UpdateEntry godoc
// @Summary Update a cable entry
// @Description Contractor links may only set contractorInstalled, measuredLength and installedAt
// @Tags Cables
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param request body domain.UpdateCableEntryRequest true "Changes"
// @Success 200 {object} domain.CableEntry
// @Failure 404 {object} domain.ErrorResponse
// @Security BearerAuth
// @Security PortalToken
// @Router /cable-entries/{id} [put]
func (h *CableHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "cable entry")
	if !ok {
		return
	}
	var req domain.UpdateCableEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := h.cableService.UpdateEntry(r.Context(), id, &req)
	if err != nil {
		handleServiceError(w, h.logger, err, "update cable entry")
		return
	}
	respondFound(w, entry, "Cable entry")
}

// DeleteEntry godoc
// @Summary Delete a cable entry
// @Tags Cables
// @Param id path string true "Entry ID"
// @Success 204
// @Security BearerAuth
// @Router /cable-entries/{id} [delete]
func (h *CableHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "cable entry")
	if !ok {
		return
	}
	deleted, err := h.cableService.DeleteEntry(r.Context(), id)
	respondDeleted(w, h.logger, deleted, err, "cable entry")
}
