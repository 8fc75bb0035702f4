package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantService manages a project's tenant schedule. Every change bumps the
// project's schedule version and notifies the other project members.
type TenantService struct {
	ops           scopedOps[domain.Tenant]
	projectRepo   *repository.ProjectRepository
	notifications *NotificationService
	logger        *zap.Logger
}

// NewTenantService creates a new TenantService instance
func NewTenantService(
	writer *Writer,
	authorizer *access.Authorizer,
	projectRepo *repository.ProjectRepository,
	notifications *NotificationService,
	logger *zap.Logger,
) *TenantService {
	repo := repository.NewScopedRepository[domain.Tenant](writer.DB(), access.ResourceTenant)
	return &TenantService{
		ops:           newScopedOps(writer, authorizer, repo, logger),
		projectRepo:   projectRepo,
		notifications: notifications,
		logger:        logger,
	}
}

// List returns the tenants of a project ordered by shop number
func (s *TenantService) List(ctx context.Context, projectID uuid.UUID) ([]domain.Tenant, error) {
	return s.ops.list(ctx, "shop_number ASC", "project_id = ?", projectID)
}

// Create adds a tenant to a project's schedule
func (s *TenantService) Create(ctx context.Context, projectID uuid.UUID, req *domain.CreateTenantRequest) (*domain.Tenant, error) {
	if req.AreaM2.IsNegative() {
		return nil, fmt.Errorf("%w: area must not be negative", ErrInvalidInput)
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = "pending"
	}
	tenant := &domain.Tenant{
		ProjectID:   projectID,
		ShopNumber:  strings.TrimSpace(req.ShopNumber),
		Name:        strings.TrimSpace(req.Name),
		AreaM2:      req.AreaM2,
		BreakerSize: req.BreakerSize,
		Status:      status,
	}
	return s.ops.create(ctx, projectID, tenant, s.sideEffects("added"))
}

// Update changes the set fields of a tenant
func (s *TenantService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateTenantRequest) (*domain.Tenant, error) {
	updates := map[string]interface{}{}
	if req.ShopNumber != nil {
		updates["shop_number"] = strings.TrimSpace(*req.ShopNumber)
	}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.AreaM2 != nil {
		if req.AreaM2.IsNegative() {
			return nil, fmt.Errorf("%w: area must not be negative", ErrInvalidInput)
		}
		updates["area_m2"] = *req.AreaM2
	}
	if req.BreakerSize != nil {
		updates["breaker_size"] = *req.BreakerSize
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	return s.ops.update(ctx, id, updates, s.sideEffects("updated"))
}

// Delete removes a tenant from the schedule
func (s *TenantService) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.ops.remove(ctx, id, s.sideEffects("removed"))
}

func (s *TenantService) sideEffects(verb string) Pipeline[domain.Tenant] {
	return Pipeline[domain.Tenant]{
		Propagate: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.Tenant]) error {
			return s.projectRepo.WithTx(tx).BumpTenantScheduleVersion(ctx, tenantProject(m))
		},
		Notify: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.Tenant]) error {
			tenant := m.After
			if tenant == nil {
				tenant = m.Before
			}
			notice := ProjectNotice{
				ProjectID:  tenant.ProjectID,
				Actor:      m.Principal.ActorID(),
				Type:       domain.NotificationTenantScheduleChanged,
				Title:      "Tenant schedule changed",
				Message:    fmt.Sprintf("Tenant %s (%s) was %s", tenant.Name, tenant.ShopNumber, verb),
				EntityType: m.EntityType,
			}
			if m.ChangeType != domain.ChangeDeleted {
				id := tenant.ID
				notice.EntityID = &id
			}
			_, err := s.notifications.NotifyProjectMembers(ctx, tx, notice)
			return err
		},
	}
}

func tenantProject(m *Mutation[domain.Tenant]) uuid.UUID {
	if m.After != nil {
		return m.After.ProjectID
	}
	return m.Before.ProjectID
}
