package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRoleRepository handles global role data access
type UserRoleRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRoleRepository creates a new user role repository
func NewUserRoleRepository(db *gorm.DB, logger *zap.Logger) *UserRoleRepository {
	return &UserRoleRepository{
		db:     db,
		logger: logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *UserRoleRepository) WithTx(tx *gorm.DB) *UserRoleRepository {
	return &UserRoleRepository{db: tx, logger: r.logger}
}

// GetRole returns the role row of a user, nil when none exists
func (r *UserRoleRepository) GetRole(ctx context.Context, userID uuid.UUID) (*domain.UserRole, error) {
	var role domain.UserRole
	err := r.db.WithContext(ctx).First(&role, "user_id = ?", userID).Error
	return notFound(&role, err)
}

// Upsert sets the role of a user
func (r *UserRoleRepository) Upsert(ctx context.Context, role *domain.UserRole) error {
	role.UpdatedAt = time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "granted_by", "updated_at"}),
	}).Create(role).Error
	if err != nil {
		r.logger.Error("failed to upsert user role",
			zap.String("user_id", role.UserID.String()),
			zap.String("role", string(role.Role)),
			zap.Error(err))
		return err
	}
	return nil
}

// ClaimAdminSeed inserts the single admin seed row for userID. It returns true
// only for the one caller whose insert created the row.
func (r *UserRoleRepository) ClaimAdminSeed(ctx context.Context, userID uuid.UUID) (bool, error) {
	seed := &domain.AdminSeed{ID: 1, UserID: userID, SeededAt: time.Now().UTC()}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(seed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CountAdmins returns the number of users holding the admin role
func (r *UserRoleRepository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserRole{}).Where("role = ?", domain.RoleAdmin).Count(&count).Error
	return count, err
}
