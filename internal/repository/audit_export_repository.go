package repository

import (
	"context"

	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

// AuditExportRepository tracks completed audit exports
type AuditExportRepository struct {
	db *gorm.DB
}

func NewAuditExportRepository(db *gorm.DB) *AuditExportRepository {
	return &AuditExportRepository{db: db}
}

func (r *AuditExportRepository) Create(ctx context.Context, export *domain.AuditExport) error {
	return r.db.WithContext(ctx).Create(export).Error
}

// LatestCursor returns the watermark of the most recent export, the zero cursor when none ran
func (r *AuditExportRepository) LatestCursor(ctx context.Context) (AuditCursor, error) {
	var export domain.AuditExport
	err := r.db.WithContext(ctx).Order("until DESC").Order("until_id DESC").First(&export).Error
	found, err := notFound(&export, err)
	if err != nil || found == nil {
		return AuditCursor{}, err
	}
	cursor := AuditCursor{ChangedAt: found.Until}
	if found.UntilID != nil {
		cursor.ID = *found.UntilID
	}
	return cursor, nil
}
