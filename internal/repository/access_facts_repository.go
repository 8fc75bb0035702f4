package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"gorm.io/gorm"
)

// AccessFactsRepository answers authorization questions from project_members,
// projects and portal_tokens. It implements access.Facts.
type AccessFactsRepository struct {
	db *gorm.DB
}

// NewAccessFactsRepository creates a new access facts repository
func NewAccessFactsRepository(db *gorm.DB) *AccessFactsRepository {
	return &AccessFactsRepository{db: db}
}

// Membership returns the membership row of userID in projectID, nil when absent
func (r *AccessFactsRepository) Membership(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error) {
	var member domain.ProjectMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&member).Error
	return notFound(&member, err)
}

// ProjectCreator returns the creator of a project
func (r *AccessFactsRepository) ProjectCreator(ctx context.Context, projectID uuid.UUID) (uuid.UUID, bool, error) {
	var creators []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Project{}).
		Where("id = ?", projectID).
		Limit(1).
		Pluck("created_by", &creators).Error
	if err != nil {
		return uuid.Nil, false, err
	}
	if len(creators) == 0 {
		return uuid.Nil, false, nil
	}
	return creators[0], true, nil
}

// PortalTokenActive reports whether a token is active and unexpired at now
func (r *AccessFactsRepository) PortalTokenActive(ctx context.Context, tokenID uuid.UUID, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.PortalToken{}).
		Where("id = ? AND active = ? AND expires_at > ?", tokenID, true, now).
		Count(&count).Error
	return count > 0, err
}

// AccessibleProjects returns projects userID created plus projects where the
// membership role is at least minRole or the position is one of positions.
func (r *AccessFactsRepository) AccessibleProjects(ctx context.Context, userID uuid.UUID, minRole domain.MemberRole, positions []domain.Position) ([]uuid.UUID, error) {
	var created []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&domain.Project{}).
		Where("created_by = ?", userID).
		Pluck("id", &created).Error; err != nil {
		return nil, err
	}

	roles := rolesAtLeast(minRole)
	query := r.db.WithContext(ctx).Model(&domain.ProjectMember{}).Where("user_id = ?", userID)
	if len(positions) > 0 {
		query = query.Where("(role IN ? OR position IN ?)", roles, positions)
	} else {
		query = query.Where("role IN ?", roles)
	}

	var joined []uuid.UUID
	if err := query.Pluck("project_id", &joined).Error; err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(created)+len(joined))
	ids := make([]uuid.UUID, 0, len(created)+len(joined))
	for _, id := range append(created, joined...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func rolesAtLeast(min domain.MemberRole) []domain.MemberRole {
	var roles []domain.MemberRole
	for _, role := range []domain.MemberRole{domain.MemberRoleOwner, domain.MemberRoleEditor, domain.MemberRoleMember} {
		if role.AtLeast(min) {
			roles = append(roles, role)
		}
	}
	return roles
}
