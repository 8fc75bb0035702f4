package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/access"
	"github.com/straye-as/project-access-api/internal/auth"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/straye-as/project-access-api/internal/mapper"
	"github.com/straye-as/project-access-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProcurementService manages procurement items and deliveries. Status changes
// are appended to the status history; reaching delivered completes the linked
// roadmap milestone.
type ProcurementService struct {
	writer        *Writer
	items         scopedOps[domain.ProcurementItem]
	deliveries    scopedOps[domain.ProcurementDelivery]
	historyRepo   *repository.ProcurementHistoryRepository
	notifications *NotificationService
	logger        *zap.Logger
	now           func() time.Time
}

// NewProcurementService creates a new ProcurementService instance
func NewProcurementService(
	writer *Writer,
	authorizer *access.Authorizer,
	historyRepo *repository.ProcurementHistoryRepository,
	notifications *NotificationService,
	logger *zap.Logger,
) *ProcurementService {
	db := writer.DB()
	return &ProcurementService{
		writer:        writer,
		items:         newScopedOps(writer, authorizer, repository.NewScopedRepository[domain.ProcurementItem](db, access.ResourceProcurementItem), logger),
		deliveries:    newScopedOps(writer, authorizer, repository.NewScopedRepository[domain.ProcurementDelivery](db, access.ResourceProcurementDelivery), logger),
		historyRepo:   historyRepo,
		notifications: notifications,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for completion and history timestamps
func (s *ProcurementService) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

// ListItems returns the procurement items of a project
func (s *ProcurementService) ListItems(ctx context.Context, projectID uuid.UUID) ([]domain.ProcurementItem, error) {
	return s.items.list(ctx, "created_at ASC", "project_id = ?", projectID)
}

// GetItem returns a procurement item the caller may read
func (s *ProcurementService) GetItem(ctx context.Context, id uuid.UUID) (*domain.ProcurementItem, error) {
	return s.items.get(ctx, id)
}

// CreateItem adds a procurement item to a project
func (s *ProcurementService) CreateItem(ctx context.Context, projectID uuid.UUID, req *domain.CreateProcurementItemRequest) (*domain.ProcurementItem, error) {
	status := req.Status
	if status == "" {
		status = domain.ProcurementPending
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	item := &domain.ProcurementItem{
		ProjectID:            projectID,
		RoadmapItemID:        req.RoadmapItemID,
		Description:          req.Description,
		Supplier:             req.Supplier,
		Status:               status,
		OrderDate:            utcPtr(req.OrderDate),
		ExpectedDeliveryDate: utcPtr(req.ExpectedDeliveryDate),
	}
	return s.items.create(ctx, projectID, item, s.statusEffects())
}

// UpdateItem changes the set fields of a procurement item. Contractor portals
// may only move the order and expected delivery dates.
func (s *ProcurementService) UpdateItem(ctx context.Context, id uuid.UUID, req *domain.UpdateProcurementItemRequest) (*domain.ProcurementItem, error) {
	updates := map[string]interface{}{}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Supplier != nil {
		updates["supplier"] = *req.Supplier
	}
	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *req.Status)
		}
		updates["status"] = *req.Status
	}
	if req.RoadmapItemID != nil {
		updates["roadmap_item_id"] = *req.RoadmapItemID
	}
	if req.OrderDate != nil {
		updates["order_date"] = req.OrderDate.UTC()
	}
	if req.ExpectedDeliveryDate != nil {
		updates["expected_delivery_date"] = req.ExpectedDeliveryDate.UTC()
	}
	return s.items.update(ctx, id, updates, s.statusEffects())
}

// DeleteItem removes a procurement item. Its status history is kept.
func (s *ProcurementService) DeleteItem(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.items.remove(ctx, id, Pipeline[domain.ProcurementItem]{})
}

// History returns the status transitions of an item the caller may read
func (s *ProcurementService) History(ctx context.Context, itemID uuid.UUID) ([]domain.ProcurementHistoryDTO, error) {
	item, err := s.items.get(ctx, itemID)
	if err != nil || item == nil {
		return nil, err
	}
	history, err := s.historyRepo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list procurement history: %w", err)
	}
	return mapper.ToProcurementHistoryDTOs(history), nil
}

// ListDeliveries returns the deliveries of an item
func (s *ProcurementService) ListDeliveries(ctx context.Context, itemID uuid.UUID) ([]domain.ProcurementDelivery, error) {
	return s.deliveries.list(ctx, "delivered_at DESC", "procurement_item_id = ?", itemID)
}

// CreateDelivery confirms a delivery against an item. Contractor portals may do
// this; such deliveries are flagged as submitted via the portal.
func (s *ProcurementService) CreateDelivery(ctx context.Context, itemID uuid.UUID, req *domain.CreateDeliveryRequest) (*domain.ProcurementDelivery, error) {
	if req.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	projectID, found, err := s.items.resolveProject(ctx, itemID)
	if err != nil || !found {
		return nil, err
	}

	p := auth.PrincipalOrAnonymous(ctx)
	deliveredAt := s.now()
	if req.DeliveredAt != nil {
		deliveredAt = req.DeliveredAt.UTC()
	}
	delivery := &domain.ProcurementDelivery{
		ProcurementItemID:  itemID,
		DeliveredAt:        deliveredAt,
		ReceivedBy:         req.ReceivedBy,
		Quantity:           req.Quantity,
		Note:               req.Note,
		SubmittedViaPortal: p.Portal != nil && !p.IsAuthenticated(),
	}
	return s.deliveries.create(ctx, projectID, delivery, Pipeline[domain.ProcurementDelivery]{})
}

// statusEffects records status transitions and completes the linked milestone
// on delivery. Both run as propagation so they commit or roll back with the item.
func (s *ProcurementService) statusEffects() Pipeline[domain.ProcurementItem] {
	return Pipeline[domain.ProcurementItem]{
		Propagate: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.ProcurementItem]) error {
			from, to, changed := statusTransition(m)
			if !changed {
				return nil
			}
			now := s.now()
			itemID := m.After.ID
			history := &domain.ProcurementStatusHistory{
				ProcurementItemID: &itemID,
				ProjectID:         m.After.ProjectID,
				FromStatus:        from,
				ToStatus:          to,
				ChangedBy:         m.Principal.ActorID(),
				ActorKind:         m.Principal.KindString(),
				ChangedAt:         now,
			}
			if err := s.historyRepo.WithTx(tx).Create(ctx, history); err != nil {
				return fmt.Errorf("failed to record status history: %w", err)
			}
			if to == domain.ProcurementDelivered && m.After.RoadmapItemID != nil {
				return s.completeMilestone(ctx, tx, m, *m.After.RoadmapItemID, now)
			}
			return nil
		},
		Notify: func(ctx context.Context, tx *gorm.DB, m *Mutation[domain.ProcurementItem]) error {
			_, to, changed := statusTransition(m)
			if !changed || to != domain.ProcurementDelivered {
				return nil
			}
			itemID := m.After.ID
			_, err := s.notifications.NotifyProjectMembers(ctx, tx, ProjectNotice{
				ProjectID:  m.After.ProjectID,
				Actor:      m.Principal.ActorID(),
				Type:       domain.NotificationProcurementDelivered,
				Title:      "Procurement delivered",
				Message:    fmt.Sprintf("%s was delivered", m.After.Description),
				EntityType: m.EntityType,
				EntityID:   &itemID,
			})
			return err
		},
	}
}

func (s *ProcurementService) completeMilestone(ctx context.Context, tx *gorm.DB, m *Mutation[domain.ProcurementItem], roadmapID uuid.UUID, now time.Time) error {
	var before domain.RoadmapItem
	err := tx.WithContext(ctx).
		Where("id = ? AND project_id = ?", roadmapID, m.After.ProjectID).
		First(&before).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && before.Completed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load roadmap item: %w", err)
	}

	after := before
	after.Completed = true
	after.CompletedAt = &now
	result := tx.WithContext(ctx).Model(&domain.RoadmapItem{}).
		Where("id = ?", roadmapID).
		Updates(map[string]interface{}{"completed": true, "completed_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to complete roadmap item: %w", result.Error)
	}

	s.writer.auditSideEffect(ctx, tx, AuditEntry{
		EntityType: string(access.ResourceRoadmapItem),
		EntityID:   roadmapID,
		ProjectID:  m.ProjectID,
		ChangeType: domain.ChangeUpdated,
		OldValues:  &before,
		NewValues:  &after,
		Principal:  m.Principal,
		Meta:       m.Meta,
	})
	return nil
}

// statusTransition reports the status change of a create or update
func statusTransition(m *Mutation[domain.ProcurementItem]) (*domain.ProcurementStatus, domain.ProcurementStatus, bool) {
	if m.After == nil {
		return nil, "", false
	}
	if m.Before == nil {
		return nil, m.After.Status, true
	}
	if m.Before.Status == m.After.Status {
		return nil, "", false
	}
	from := m.Before.Status
	return &from, m.After.Status, true
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
