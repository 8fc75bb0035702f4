package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
)

// RoadmapService manages project milestones
type RoadmapService struct {
	ops scopedOps[domain.RoadmapItem]
	now func() time.Time
}

// NewRoadmapService creates a new RoadmapService instance
func NewRoadmapService(writer *Writer, authorizer *access.Authorizer, logger *zap.Logger) *RoadmapService {
	repo := repository.NewScopedRepository[domain.RoadmapItem](writer.DB(), access.ResourceRoadmapItem)
	return &RoadmapService{
		ops: newScopedOps(writer, authorizer, repo, logger),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// List returns the milestones of a project by due date
func (s *RoadmapService) List(ctx context.Context, projectID uuid.UUID) ([]domain.RoadmapItem, error) {
	return s.ops.list(ctx, "due_date ASC, created_at ASC", "project_id = ?", projectID)
}

// GetByID returns a milestone the caller may read
func (s *RoadmapService) GetByID(ctx context.Context, id uuid.UUID) (*domain.RoadmapItem, error) {
	return s.ops.get(ctx, id)
}

// Create adds a milestone to a project
func (s *RoadmapService) Create(ctx context.Context, projectID uuid.UUID, req *domain.CreateRoadmapItemRequest) (*domain.RoadmapItem, error) {
	item := &domain.RoadmapItem{
		ProjectID: projectID,
		Title:     strings.TrimSpace(req.Title),
		DueDate:   utcPtr(req.DueDate),
	}
	return s.ops.create(ctx, projectID, item, Pipeline[domain.RoadmapItem]{})
}

// Update changes a milestone. Completing it stamps completed_at; reopening clears it.
func (s *RoadmapService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateRoadmapItemRequest) (*domain.RoadmapItem, error) {
	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}
		updates["title"] = title
	}
	if req.DueDate != nil {
		updates["due_date"] = req.DueDate.UTC()
	}
	if req.Completed != nil {
		updates["completed"] = *req.Completed
		if *req.Completed {
			updates["completed_at"] = s.now()
		} else {
			updates["completed_at"] = nil
		}
	}
	return s.ops.update(ctx, id, updates, Pipeline[domain.RoadmapItem]{})
}

// Delete removes a milestone
func (s *RoadmapService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.ops.remove(ctx, id, Pipeline[domain.RoadmapItem]{})
}
