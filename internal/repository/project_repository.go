package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

// ProjectRepository holds project writes that are not plain row CRUD
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *ProjectRepository) WithTx(tx *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

// BumpTenantScheduleVersion atomically increments the tenant schedule version
func (r *ProjectRepository) BumpTenantScheduleVersion(ctx context.Context, projectID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&domain.Project{}).
		Where("id = ?", projectID).
		UpdateColumn("tenant_schedule_version", gorm.Expr("tenant_schedule_version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TenantScheduleVersion returns the current tenant schedule version
func (r *ProjectRepository) TenantScheduleVersion(ctx context.Context, projectID uuid.UUID) (int, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).Select("tenant_schedule_version").First(&project, "id = ?", projectID).Error
	return project.TenantScheduleVersion, err
}
