package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
)

// CableService manages cable schedules and their entries. Contractor portals
// may record installation progress on entries.
type CableService struct {
	schedules scopedOps[domain.CableSchedule]
	entries   scopedOps[domain.CableEntry]
	logger    *zap.Logger
}

// NewCableService creates a new CableService instance
func NewCableService(writer *Writer, authorizer *access.Authorizer, logger *zap.Logger) *CableService {
	schedules := repository.NewScopedRepository[domain.CableSchedule](writer.DB(), access.ResourceCableSchedule)
	entries := repository.NewScopedRepository[domain.CableEntry](writer.DB(), access.ResourceCableEntry)
	return &CableService{
		schedules: newScopedOps(writer, authorizer, schedules, logger),
		entries:   newScopedOps(writer, authorizer, entries, logger),
		logger:    logger,
	}
}

// ListSchedules returns the cable schedules of a project
func (s *CableService) ListSchedules(ctx context.Context, projectID uuid.UUID) ([]domain.CableSchedule, error) {
	return s.schedules.list(ctx, "name ASC", "project_id = ?", projectID)
}

// CreateSchedule adds a cable schedule to a project
func (s *CableService) CreateSchedule(ctx context.Context, projectID uuid.UUID, req *domain.CreateCableScheduleRequest) (*domain.CableSchedule, error) {
	schedule := &domain.CableSchedule{
		ProjectID: projectID,
		Name:      strings.TrimSpace(req.Name),
		Revision:  req.Revision,
	}
	return s.schedules.create(ctx, projectID, schedule, Pipeline[domain.CableSchedule]{})
}

// ListEntries returns the entries of a schedule
func (s *CableService) ListEntries(ctx context.Context, scheduleID uuid.UUID) ([]domain.CableEntry, error) {
	return s.entries.list(ctx, "cable_tag ASC", "schedule_id = ?", scheduleID)
}

// CreateEntry adds a cable run to a schedule. The schedule's project decides access.
func (s *CableService) CreateEntry(ctx context.Context, scheduleID uuid.UUID, req *domain.CreateCableEntryRequest) (*domain.CableEntry, error) {
	projectID, found, err := s.schedules.resolveProject(ctx, scheduleID)
	if err != nil || !found {
		return nil, err
	}
	entry := &domain.CableEntry{
		ScheduleID:   scheduleID,
		CableTag:     strings.TrimSpace(req.CableTag),
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		CableType:    req.CableType,
		DesignLength: req.DesignLength,
	}
	return s.entries.create(ctx, projectID, entry, Pipeline[domain.CableEntry]{})
}

// UpdateEntry changes the set fields of a cable entry. Portal callers are
// limited to the installation columns.
func (s *CableService) UpdateEntry(ctx context.Context, id uuid.UUID, req *domain.UpdateCableEntryRequest) (*domain.CableEntry, error) {
	updates := map[string]interface{}{}
	if req.CableTag != nil {
		updates["cable_tag"] = strings.TrimSpace(*req.CableTag)
	}
	if req.FromLocation != nil {
		updates["from_location"] = *req.FromLocation
	}
	if req.ToLocation != nil {
		updates["to_location"] = *req.ToLocation
	}
	if req.CableType != nil {
		updates["cable_type"] = *req.CableType
	}
	if req.DesignLength != nil {
		updates["design_length"] = *req.DesignLength
	}
	if req.MeasuredLength != nil {
		updates["measured_length"] = decimal.NewNullDecimal(*req.MeasuredLength)
	}
	if req.ContractorInstalled != nil {
		updates["contractor_installed"] = *req.ContractorInstalled
	}
	if req.InstalledAt != nil {
		updates["installed_at"] = req.InstalledAt.UTC()
	}
	return s.entries.update(ctx, id, updates, Pipeline[domain.CableEntry]{})
}

// DeleteEntry removes a cable entry
func (s *CableService) DeleteEntry(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.entries.remove(ctx, id, Pipeline[domain.CableEntry]{})
}
