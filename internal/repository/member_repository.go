package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

// MemberRepository holds membership queries used by write-path side effects
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx
func (r *MemberRepository) WithTx(tx *gorm.DB) *MemberRepository {
	return &MemberRepository{db: tx}
}

// ListUserIDs returns the user ids of every member of a project except exclude
func (r *MemberRepository) ListUserIDs(ctx context.Context, projectID uuid.UUID, exclude *uuid.UUID) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&domain.ProjectMember{}).Where("project_id = ?", projectID)
	if exclude != nil {
		query = query.Where("user_id <> ?", *exclude)
	}

	var ids []uuid.UUID
	err := query.Order("created_at ASC").Pluck("user_id", &ids).Error
	return ids, err
}

// PositionHolder returns the member holding an exclusive position, nil when vacant
func (r *MemberRepository) PositionHolder(ctx context.Context, projectID uuid.UUID, position domain.Position) (*domain.ProjectMember, error) {
	var member domain.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND exclusive_position = ?", projectID, position).
		First(&member).Error
	return notFound(&member, err)
}
