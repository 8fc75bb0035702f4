package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectService handles business logic for projects
type ProjectService struct {
	ops    scopedOps[domain.Project]
	logger *zap.Logger
}

// NewProjectService creates a new ProjectService instance
func NewProjectService(writer *Writer, authorizer *access.Authorizer, logger *zap.Logger) *ProjectService {
	repo := repository.NewScopedRepository[domain.Project](writer.DB(), access.ResourceProject)
	return &ProjectService{
		ops:    newScopedOps(writer, authorizer, repo, logger),
		logger: logger,
	}
}

// Create inserts a project and makes the caller its owner in the same
// transaction. Callers without a user identity cannot own a project and get nil.
func (s *ProjectService) Create(ctx context.Context, req *domain.CreateProjectRequest) (*domain.Project, error) {
	p := auth.PrincipalOrAnonymous(ctx)
	if !p.IsAuthenticated() {
		return nil, nil
	}

	status := req.Status
	if status == "" {
		status = domain.ProjectStatusPlanning
	}

	project := &domain.Project{
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		Status:           status,
		CreatedBy:        p.UserID,
		SupplyVoltage:    req.SupplyVoltage,
		ConnectedLoadKVA: req.ConnectedLoadKVA,
		ContractValue:    req.ContractValue,
	}
	project.ID = uuid.New()

	created, err := s.ops.create(ctx, project.ID, project, Pipeline[domain.Project]{
		Propagate: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.Project]) error {
			owner := &domain.ProjectMember{
				ProjectID: m.After.ID,
				UserID:    p.UserID,
				Role:      domain.MemberRoleOwner,
			}
			if err := tx.WithContext(ctx).Create(owner).Error; err != nil {
				return err
			}
			s.ops.writer.auditSideEffect(ctx, tx, AuditEntry{
				EntityType: string(access.ResourceProjectMember),
				EntityID:   owner.ID,
				ProjectID:  m.ProjectID,
				ChangeType: domain.ChangeCreated,
				NewValues:  owner,
				Principal:  m.Principal,
				Meta:       m.Meta,
			})
			return nil
		},
	})
	if err != nil || created == nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.String("project_id", created.ID.String()),
		zap.String("created_by", p.UserID.String()))
	return created, nil
}

// GetByID returns a project the caller may read, nil otherwise
func (s *ProjectService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return s.ops.get(ctx, id)
}

// List returns every project the caller may read, newest first
func (s *ProjectService) List(ctx context.Context) ([]domain.Project, error) {
	return s.ops.list(ctx, "created_at DESC", nil)
}

// Update changes the set fields of a project
func (s *ProjectService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateProjectRequest) (*domain.Project, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.ContractValue != nil {
		updates["contract_value"] = *req.ContractValue
	}
	return s.ops.update(ctx, id, updates, Pipeline[domain.Project]{})
}

// Delete removes a project. Dependent rows go with it through cascading keys;
// audit records, status history and portal access logs are kept.
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := s.ops.remove(ctx, id, Pipeline[domain.Project]{})
	if err != nil || !deleted {
		return false, err
	}
	s.logger.Info("project deleted", zap.String("project_id", id.String()))
	return true, nil
}
