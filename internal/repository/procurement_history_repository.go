package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

// ProcurementHistoryRepository stores the append-only procurement status log
type ProcurementHistoryRepository struct {
	db *gorm.DB
}

func NewProcurementHistoryRepository(db *gorm.DB) *ProcurementHistoryRepository {
	return &ProcurementHistoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *ProcurementHistoryRepository) WithTx(tx *gorm.DB) *ProcurementHistoryRepository {
	return &ProcurementHistoryRepository{db: tx}
}

// Create records a new status transition
func (r *ProcurementHistoryRepository) Create(ctx context.Context, history *domain.ProcurementStatusHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// ListByItem returns all transitions of a procurement item, oldest first
func (r *ProcurementHistoryRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]domain.ProcurementStatusHistory, error) {
	var history []domain.ProcurementStatusHistory
	err := r.db.WithContext(ctx).
		Where("procurement_item_id = ?", itemID).
		Order("changed_at ASC").
		Find(&history).Error
	return history, err
}

// ListByProject returns all transitions within a project, newest first
func (r *ProcurementHistoryRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.ProcurementStatusHistory, error) {
	var history []domain.ProcurementStatusHistory
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("changed_at DESC").
		Limit(limit).
		Find(&history).Error
	return history, err
}
