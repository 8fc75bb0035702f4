package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"github.com/straye-as/project-access-api/internal/service"
	"go.uber.org/zap"
)

// AuditHandler handles audit record queries
type AuditHandler struct {
	auditService *service.AuditService
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// ListForProject godoc
// @Summary List audit records of a project
// @Description Returns a paginated list of audit records with optional filters, newest first
// @Tags Audit
// @Produce json
// @Param id path string true "Project ID"
// @Param page query int false "Page number (default: 1)"
// @Param pageSize query int false "Page size (default: 20, max: 200)"
// @Param entityType query string false "Filter by entity type"
// @Param changeType query string false "Filter by change type" Enums(created, updated, deleted)
// @Param changedBy query string false "Filter by actor user ID"
// @Param startTime query string false "Filter by start time (RFC3339)"
// @Param endTime query string false "Filter by end time (RFC3339)"
// @Param sortBy query string false "Sort field" Enums(changedAt, entityType, changeType)
// @Param sortOrder query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.AuditRecordDTO}
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/audit [get]
func (h *AuditHandler) ListForProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	page, pageSize := pagination(r)

	filter, ok := parseAuditFilter(w, r)
	if !ok {
		return
	}
	filter.Sort = sortConfig(r)

	result, err := h.auditService.ListForProject(r.Context(), projectID, filter, page, pageSize)
	if err != nil {
		handleServiceError(w, h.logger, err, "list audit records")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListByEntity godoc
// @Summary Get the history of one entity
// @Description Records of deleted rows keep no entity reference and are only reachable through the project listing
// @Tags Audit
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Param limit query int false "Max records (default and max: 200)"
// @Success 200 {array} domain.AuditRecordDTO
// @Security BearerAuth
// @Router /audit/{entityType}/{entityId} [get]
func (h *AuditHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	entityID, ok := urlUUID(w, r, "entityId", "entity")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.auditService.ListByEntity(r.Context(), chi.URLParam(r, "entityType"), entityID, limit)
	if err != nil {
		handleServiceError(w, h.logger, err, "list entity history")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// Summary godoc
// @Summary Count audit records of a project by change type
// @Tags Audit
// @Produce json
// @Param id path string true "Project ID"
// @Param entityType query string false "Filter by entity type"
// @Param changedBy query string false "Filter by actor user ID"
// @Param startTime query string false "Filter by start time (RFC3339)"
// @Param endTime query string false "Filter by end time (RFC3339)"
// @Success 200 {object} domain.AuditSummaryDTO
// @Failure 400 {object} domain.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/audit/summary [get]
func (h *AuditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}
	filter, ok := parseAuditFilter(w, r)
	if !ok {
		return
	}

	summary, err := h.auditService.SummaryForProject(r.Context(), projectID, filter)
	if err != nil {
		handleServiceError(w, h.logger, err, "summarize audit records")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// parseAuditFilter reads the shared audit query filters, writing 400 on invalid input
func parseAuditFilter(w http.ResponseWriter, r *http.Request) (repository.AuditRecordFilter, bool) {
	query := r.URL.Query()
	filter := repository.AuditRecordFilter{EntityType: query.Get("entityType")}

	if changeType := query.Get("changeType"); changeType != "" {
		ct := domain.ChangeType(changeType)
		if ct != domain.ChangeCreated && ct != domain.ChangeUpdated && ct != domain.ChangeDeleted {
			respondWithError(w, http.StatusBadRequest, "Invalid changeType: must be one of created, updated, deleted")
			return filter, false
		}
		filter.ChangeType = &ct
	}

	if changedBy := query.Get("changedBy"); changedBy != "" {
		id, err := uuid.Parse(changedBy)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid changedBy: must be a valid UUID")
			return filter, false
		}
		filter.ChangedBy = &id
	}

	if startStr := query.Get("startTime"); startStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startStr); err == nil {
			start := startTime.UTC()
			filter.StartTime = &start
		}
	}
	if endStr := query.Get("endTime"); endStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endStr); err == nil {
			end := endTime.UTC()
			filter.EndTime = &end
		}
	}

	return filter, true
}
